package domain

import "time"

// Role is the closed set of caller roles. Anything outside this set is
// denied everything by the access guard rather than defaulting open.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleInsurer Role = "insurer"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleInsurer
}

// Principal is the authenticated actor making a request.
// Produced by the auth layer from a verified token; the access guard
// treats it as opaque input.
type Principal struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

// Action is an operation on a claim subject to access control.
type Action string

const (
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// ClaimScope restricts which claims a listing or report query may touch.
// The zero value matches nothing (fail closed).
type ClaimScope struct {
	// All matches every claim (admin).
	All bool

	// OwnerID, when All is false and non-empty, restricts to claims
	// owned by that principal.
	OwnerID string
}

// User is a registered account. PasswordHash is a bcrypt hash and is
// never serialized.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
}
