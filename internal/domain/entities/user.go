package entities

import (
	"time"
)

// Role is the closed set of account roles
type Role string

const (
	RoleEventManager Role = "event_manager"
	RoleIndividual   Role = "individual"
)

// Valid reports whether r is a known role
func (r Role) Valid() bool {
	return r == RoleEventManager || r == RoleIndividual
}

// User is the profile row of an authenticated identity. Location is the
// free-text anchor used for facility searches.
type User struct {
	ID        string    `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	Name      *string   `json:"name,omitempty" db:"name"`
	Role      Role      `json:"role" db:"role"`
	Location  string    `json:"location" db:"location"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Clone returns a copy that shares no pointers with u
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	if u.Name != nil {
		name := *u.Name
		c.Name = &name
	}
	return &c
}

// Credential is the auth boundary's record of a registered email
type Credential struct {
	UserID       string    `json:"user_id" db:"user_id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
