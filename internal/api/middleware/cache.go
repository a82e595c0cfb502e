package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ecogen/ecogen/backend/internal/domain/providers"
)

// CacheConfig holds cache configuration for a route
type CacheConfig struct {
	TTLSeconds int
	Enabled    bool
}

// DefaultCacheRoutes caches the public facility listing pages
var DefaultCacheRoutes = map[string]CacheConfig{
	"/api/facilities": {TTLSeconds: 60, Enabled: true},
}

const (
	cacheHeader    = "X-Cache"
	cacheKeyPrefix = "http:cache:"
)

// cachedResponse is what gets stored for a route hit
type cachedResponse struct {
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// CacheMiddleware caches successful GET responses for configured routes.
// Routes match on the exact path; /api/facilities/{id} is cached one layer
// down by the repository decorator.
type CacheMiddleware struct {
	cache  providers.CacheProvider
	routes map[string]CacheConfig
	logger zerolog.Logger
}

// NewCacheMiddleware creates a cache middleware. A nil cache disables it.
func NewCacheMiddleware(cache providers.CacheProvider, routes map[string]CacheConfig, logger zerolog.Logger) *CacheMiddleware {
	if routes == nil {
		routes = DefaultCacheRoutes
	}
	return &CacheMiddleware{
		cache:  cache,
		routes: routes,
		logger: logger.With().Str("component", "http_cache").Logger(),
	}
}

// Middleware returns the cache middleware handler
func (m *CacheMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route, ok := m.route(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		key := cacheKey(r.URL.Path, r.URL.Query())
		if hit, ok := m.lookup(r, key); ok {
			SetRoute(r.Context(), r.Method+" "+strings.TrimSuffix(r.URL.Path, "/"))
			w.Header().Set(cacheHeader, "HIT")
			w.Header().Set("Content-Type", hit.ContentType)
			_, _ = w.Write(hit.Body)
			return
		}

		buf := &bufferedResponse{header: make(http.Header), status: http.StatusOK}
		next.ServeHTTP(buf, r)

		if buf.status == http.StatusOK && buf.body.Len() > 0 {
			m.store(r, key, route, cachedResponse{ContentType: buf.header.Get("Content-Type"), Body: buf.body.Bytes()})
		}

		for name, values := range buf.header {
			w.Header()[name] = values
		}
		w.Header().Set(cacheHeader, "MISS")
		w.WriteHeader(buf.status)
		_, _ = w.Write(buf.body.Bytes())
	})
}

func (m *CacheMiddleware) route(r *http.Request) (CacheConfig, bool) {
	if m.cache == nil || r.Method != http.MethodGet {
		return CacheConfig{}, false
	}
	route, ok := m.routes[strings.TrimSuffix(r.URL.Path, "/")]
	return route, ok && route.Enabled
}

func (m *CacheMiddleware) lookup(r *http.Request, key string) (cachedResponse, bool) {
	var hit cachedResponse
	data, err := m.cache.Get(r.Context(), key)
	if err != nil {
		return hit, false
	}
	if err := json.Unmarshal(data, &hit); err != nil {
		m.logger.Warn().Err(err).Str("path", r.URL.Path).Msg("discarding unreadable cached response")
		return hit, false
	}
	return hit, true
}

func (m *CacheMiddleware) store(r *http.Request, key string, route CacheConfig, entry cachedResponse) {
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	if err := m.cache.Set(r.Context(), key, data, route.TTLSeconds); err != nil {
		m.logger.Warn().Err(err).Str("path", r.URL.Path).Msg("failed to cache response")
	}
}

// cacheKey hashes the path with the query after trimming and lowercasing
// every value, so "?location=Eco+City" and "?location=eco%20city" share an
// entry. url.Values.Encode sorts by key.
func cacheKey(path string, query url.Values) string {
	normalized := make(url.Values, len(query))
	for name, values := range query {
		for _, v := range values {
			normalized.Add(name, strings.ToLower(strings.TrimSpace(v)))
		}
	}
	sum := sha256.Sum256([]byte(path + "?" + normalized.Encode()))
	return cacheKeyPrefix + hex.EncodeToString(sum[:])
}

// bufferedResponse holds the downstream response until it is known whether
// it can be cached
type bufferedResponse struct {
	header http.Header
	body   bytes.Buffer
	status int
	wrote  bool
}

func (b *bufferedResponse) Header() http.Header {
	return b.header
}

func (b *bufferedResponse) WriteHeader(status int) {
	if b.wrote {
		return
	}
	b.status = status
	b.wrote = true
}

func (b *bufferedResponse) Write(data []byte) (int, error) {
	b.wrote = true
	return b.body.Write(data)
}
