package models

import (
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Role is an ordered permission level. A higher role satisfies every
// requirement of a lower one, so checks reduce to an integer comparison.
type Role int

const (
	RoleUser Role = iota
	RoleOperator
	RoleAdmin
	RoleSuperadmin
)

// roleNames maps roles to their stored string form.
var roleNames = map[Role]string{
	RoleUser:       "user",
	RoleOperator:   "operator",
	RoleAdmin:      "admin",
	RoleSuperadmin: "superadmin",
}

// String returns the lowercase name of the role.
func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("role(%d)", int(r))
}

// ParseRole converts a stored role name back to a Role.
func ParseRole(s string) (Role, error) {
	for role, name := range roleNames {
		if name == s {
			return role, nil
		}
	}
	return RoleUser, fmt.Errorf("unknown role %q", s)
}

// MarshalJSON renders the role as its string name.
func (r Role) MarshalJSON() ([]byte, error) {
	return []byte(`"` + r.String() + `"`), nil
}

// UnmarshalJSON parses a role from its string name.
func (r *Role) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	role, err := ParseRole(s)
	if err != nil {
		return err
	}
	*r = role
	return nil
}

// User is an account that can log in and, depending on role, record sprays
// or administer the system.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Name         string    `gorm:"size:255;not null" json:"name"`
	Email        string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	Role         Role      `gorm:"not null;default:0" json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	LastLogin    time.Time `json:"last_login"`

	SprayRecords []SprayRecord `gorm:"foreignKey:OperatorID" json:"-"`
}

// TableName returns the table name for users.
func (User) TableName() string {
	return "users"
}

// HasPermission reports whether the user's role satisfies the required role.
// The hierarchy is a strict total order: superadmin satisfies everything,
// user satisfies only user.
func (u *User) HasPermission(required Role) bool {
	return u.Role >= required
}

// IsSuperadmin reports whether the user holds the superadmin role.
func (u *User) IsSuperadmin() bool {
	return u.Role == RoleSuperadmin
}

// SetPassword hashes the plaintext password with bcrypt and stores the hash.
func (u *User) SetPassword(plaintext string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	u.PasswordHash = string(hash)
	return nil
}

// CheckPassword reports whether the plaintext password matches the stored hash.
func (u *User) CheckPassword(plaintext string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(plaintext)) == nil
}
