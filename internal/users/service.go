package users

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/dcdock/dcdock/internal/auth"
)

var (
	// ErrInvalidCredentials indicates an unknown email or a wrong password.
	// Deliberately one error for both so login probes learn nothing.
	ErrInvalidCredentials = errors.New("users: invalid credentials")
	// ErrInactiveUser indicates a deactivated account attempted to log in.
	ErrInactiveUser = errors.New("users: user is inactive")
	// ErrUserNotFound indicates the user id references no row.
	ErrUserNotFound = errors.New("users: user not found")
	// ErrEmailTaken indicates the email is already registered.
	ErrEmailTaken = errors.New("users: email already registered")

	errMissingDatabase = errors.New("database handle is required")
)

// ServiceConfig describes the dependencies of the user service.
type ServiceConfig struct {
	Database *gorm.DB
	Clock    func() time.Time
}

// Service manages accounts and credential checks.
type Service struct {
	db    *gorm.DB
	clock func() time.Time
}

// NewService constructs the user service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{db: cfg.Database, clock: clock}, nil
}

// CreateInput carries the fields required to register a user.
type CreateInput struct {
	Email    string
	FullName string
	Password string
	Role     Role
}

// Authenticate verifies email and password and returns the account.
// Inactive accounts cannot authenticate.
func (s *Service) Authenticate(ctx context.Context, email, password string) (User, error) {
	normalized := strings.ToLower(strings.TrimSpace(email))

	var user User
	err := s.db.WithContext(ctx).Where("email = ?", normalized).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, err
	}
	if !auth.VerifyPassword(user.PasswordHash, password) {
		return User{}, ErrInvalidCredentials
	}
	if !user.IsActive {
		return User{}, ErrInactiveUser
	}
	return user, nil
}

// GetByID returns one user.
func (s *Service) GetByID(ctx context.Context, id int64) (User, error) {
	var user User
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, ErrUserNotFound
	}
	return user, err
}

// List returns all users ordered by email.
func (s *Service) List(ctx context.Context) ([]User, error) {
	var all []User
	err := s.db.WithContext(ctx).Order("email ASC").Find(&all).Error
	return all, err
}

// Create registers a new account with a hashed password.
func (s *Service) Create(ctx context.Context, input CreateInput) (User, error) {
	normalized := strings.ToLower(strings.TrimSpace(input.Email))
	role := input.Role
	if role == "" {
		role = RoleOperator
	}

	var existing int64
	if err := s.db.WithContext(ctx).Model(&User{}).Where("email = ?", normalized).Count(&existing).Error; err != nil {
		return User{}, err
	}
	if existing > 0 {
		return User{}, ErrEmailTaken
	}

	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		return User{}, err
	}

	now := s.clock().UTC()
	user := User{
		Email:        normalized,
		FullName:     strings.TrimSpace(input.FullName),
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return User{}, err
	}
	return user, nil
}

// UpdateInput carries the account fields an update may change. Nil
// pointers leave the stored value untouched.
type UpdateInput struct {
	Email    *string
	FullName *string
	Password *string
	Role     *Role
	IsActive *bool
}

// Update applies a partial account change and bumps the version. Setting
// IsActive false deactivates the account; existing tokens expire on their
// own schedule.
func (s *Service) Update(ctx context.Context, id int64, input UpdateInput) (User, error) {
	var user User
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, err
	}

	if input.Email != nil {
		normalized := strings.ToLower(strings.TrimSpace(*input.Email))
		if normalized != user.Email {
			var existing int64
			if err := s.db.WithContext(ctx).Model(&User{}).Where("email = ?", normalized).Count(&existing).Error; err != nil {
				return User{}, err
			}
			if existing > 0 {
				return User{}, ErrEmailTaken
			}
		}
		user.Email = normalized
	}
	if input.FullName != nil {
		user.FullName = strings.TrimSpace(*input.FullName)
	}
	if input.Password != nil {
		hash, err := auth.HashPassword(*input.Password)
		if err != nil {
			return User{}, err
		}
		user.PasswordHash = hash
	}
	if input.Role != nil {
		user.Role = *input.Role
	}
	if input.IsActive != nil {
		user.IsActive = *input.IsActive
	}

	user.Version++
	user.UpdatedAt = s.clock().UTC()
	if err := s.db.WithContext(ctx).Save(&user).Error; err != nil {
		return User{}, err
	}
	return user, nil
}
