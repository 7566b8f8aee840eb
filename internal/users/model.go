package users

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Role controls what a user may do. Admins manage lookup entities and
// accounts; operators work the assignment board.
type Role string

const (
	// RoleAdmin may manage every entity.
	RoleAdmin Role = "ADMIN"
	// RoleOperator manages assignments and reads lookup entities.
	RoleOperator Role = "OPERATOR"
)

// ErrInvalidRole indicates a role value outside ADMIN/OPERATOR.
var ErrInvalidRole = errors.New("users: invalid role")

// ParseRole validates raw input and returns a Role.
func ParseRole(rawValue string) (Role, error) {
	switch Role(strings.ToUpper(strings.TrimSpace(rawValue))) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleOperator:
		return RoleOperator, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, rawValue)
	}
}

// User is an application account.
type User struct {
	ID           int64     `gorm:"column:id;primaryKey" json:"id"`
	Email        string    `gorm:"column:email;size:255;uniqueIndex;not null" json:"email"`
	FullName     string    `gorm:"column:full_name;size:255;not null" json:"full_name"`
	PasswordHash string    `gorm:"column:password_hash;size:255;not null" json:"-"`
	Role         Role      `gorm:"column:role;size:20;not null;default:OPERATOR" json:"role"`
	IsActive     bool      `gorm:"column:is_active;not null;default:true" json:"is_active"`
	Version      int64     `gorm:"column:version;not null;default:1" json:"version"`
	CreatedAt    time.Time `gorm:"column:created_at;not null" json:"created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at;not null" json:"updated_at"`
}

// TableName provides the explicit table binding for GORM.
func (User) TableName() string {
	return "users"
}
