package domain

import "time"

// Role is the closed set of account roles.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// ParseRole converts raw input into a Role, rejecting anything outside the enum.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleAdmin:
		return RoleAdmin, true
	case RoleUser:
		return RoleUser, true
	default:
		return "", false
	}
}

func (r Role) String() string { return string(r) }

// User models an account. PasswordHash never leaves the service layer.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	FirstName    *string   `json:"first_name"`
	LastName     *string   `json:"last_name"`
	Position     *string   `json:"position"`
	OdooBatchID  *string   `json:"odoo_batch_id"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Public returns a copy of u with the password representation cleared.
func (u *User) Public() *User {
	if u == nil {
		return nil
	}
	clone := *u
	clone.PasswordHash = ""
	return &clone
}

// UserPatch carries the fields of a partial account update. Nil means unchanged.
type UserPatch struct {
	Username     *string
	Role         *Role
	PasswordHash *string
	FirstName    *string
	LastName     *string
	Position     *string
	OdooBatchID  *string
	UpdatedAt    time.Time
}
