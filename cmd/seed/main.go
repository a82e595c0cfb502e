package main

import (
	"context"
	"os"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/ecogen/ecogen/backend/internal/domain/entities"
	"github.com/ecogen/ecogen/backend/internal/infrastructure/clients/postgres"
	"github.com/ecogen/ecogen/backend/internal/infrastructure/observability"
	"github.com/ecogen/ecogen/backend/pkg/config"
)

type seedFacility struct {
	name    string
	kind    entities.FacilityType
	city    string
	address string
	contact string
}

var demoFacilities = []seedFacility{
	{"Green Earth Recycling", entities.FacilityTypeRecycling, "Eco City", "12 Green Road", "+1 555 0101"},
	{"Circle Back Materials", entities.FacilityTypeRecycling, "Eco City", "88 Harbour Way", "+1 555 0102"},
	{"Second Life Plastics", entities.FacilityTypeRecycling, "Eco City", "4 Mill Lane", ""},
	{"Metro Glass & Paper", entities.FacilityTypeRecycling, "Eco City", "230 Station Street", "+1 555 0104"},
	{"Hope Children's Home", entities.FacilityTypeOrphanage, "Eco City", "7 Sunrise Avenue", "+1 555 0201"},
	{"Little Stars Orphanage", entities.FacilityTypeOrphanage, "Eco City", "19 Church Road", "+1 555 0202"},
	{"Bright Future House", entities.FacilityTypeOrphanage, "Eco City", "41 Park View", ""},
	{"Eco Biogas Company", entities.FacilityTypeBiogas, "Eco City", "Plot 3, Industrial Estate", "+1 555 0301"},
	{"Methane Makers Co-op", entities.FacilityTypeBiogas, "Eco City", "15 Farm Road", "+1 555 0302"},
	{"Lagos Recycling Hub", entities.FacilityTypeRecycling, "Lagos", "1 Broad Street", "+234 1 555 0401"},
	{"Ikeja Waste to Energy", entities.FacilityTypeBiogas, "Lagos", "5 Oba Akinjobi Way", ""},
	{"Abuja Children's Haven", entities.FacilityTypeOrphanage, "Abuja", "Area 8, Garki", "+234 9 555 0501"},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	observability.InitLogger("ecogen-seed", cfg.Log.Env, cfg.Log.Level)

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("data store is not configured")
	}

	ctx := context.Background()

	pgClient, err := postgres.NewClient(ctx, &cfg.Store)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to the data store")
	}
	defer pgClient.Close()

	if err := pgClient.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to apply migrations")
	}

	if os.Getenv("RESET_DB") == "true" {
		log.Info().Msg("RESET_DB=true detected, truncating locations before seeding")
		if _, err := pgClient.DB().ExecContext(ctx, `TRUNCATE TABLE locations`); err != nil {
			log.Fatal().Err(err).Msg("failed to reset locations")
		}
	}

	db := goqu.New("postgres", pgClient.DB())
	now := time.Now().UTC()

	rows := make([]interface{}, 0, len(demoFacilities))
	for _, f := range demoFacilities {
		var contact interface{}
		if f.contact != "" {
			contact = f.contact
		}
		rows = append(rows, goqu.Record{
			"id":         uuid.New().String(),
			"name":       f.name,
			"type":       string(f.kind),
			"city":       f.city,
			"address":    f.address,
			"contact":    contact,
			"created_at": now,
		})
	}

	query, args, err := db.Insert("locations").Prepared(true).Rows(rows...).ToSQL()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build insert")
	}

	result, err := pgClient.DB().ExecContext(ctx, query, args...)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to seed facilities")
	}
	inserted, _ := result.RowsAffected()

	log.Info().Int64("facilities", inserted).Msg("seed complete")
}
