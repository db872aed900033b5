package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/you/projectsvc/domain"
)

const minPasswordLength = 8

// UserServiceImpl implements domain.UserService
type UserServiceImpl struct {
	userRepo    domain.UserRepository
	passwordSvc domain.PasswordService
	audit       domain.AuditLogger
}

// NewUserService creates a new user service
func NewUserService(userRepo domain.UserRepository, passwordSvc domain.PasswordService, audit domain.AuditLogger) *UserServiceImpl {
	return &UserServiceImpl{userRepo: userRepo, passwordSvc: passwordSvc, audit: audit}
}

// Register implements domain.UserService
func (s *UserServiceImpl) Register(ctx context.Context, in domain.RegisterInput) (*domain.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if _, err := mail.ParseAddress(email); err != nil || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("%w: email is not valid", domain.ErrInvalidInput)
	}
	if len(in.Password) < minPasswordLength {
		return nil, fmt.Errorf("%w: password must be at least %d characters", domain.ErrInvalidInput, minPasswordLength)
	}
	if strings.TrimSpace(in.FirstName) == "" || strings.TrimSpace(in.LastName) == "" {
		return nil, fmt.Errorf("%w: first and last name are required", domain.ErrInvalidInput)
	}

	role := in.Role
	switch role {
	case "":
		role = domain.RoleStudent
	case domain.RoleStudent, domain.RoleTeacher, domain.RoleAdmin:
	default:
		return nil, fmt.Errorf("%w: unknown role %q", domain.ErrInvalidInput, role)
	}

	if existing, err := s.userRepo.FindByEmail(ctx, email); err == nil && existing != nil {
		return nil, domain.ErrUserAlreadyExists
	} else if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	hashed, err := s.passwordSvc.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &domain.User{
		Email:        email,
		PasswordHash: hashed,
		Role:         role,
		FirstName:    strings.TrimSpace(in.FirstName),
		MiddleName:   strings.TrimSpace(in.MiddleName),
		LastName:     strings.TrimSpace(in.LastName),
		IsActive:     true,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrUserAlreadyExists) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	if s.audit != nil {
		_ = s.audit.LogEvent(ctx, domain.NewAuditEvent(domain.UserRegistrationEvent, user.ID).
			WithEmail(user.Email).
			WithMetadata("role", user.Role))
	}
	return user, nil
}

// GetProfile implements domain.UserService
func (s *UserServiceImpl) GetProfile(ctx context.Context, userID uint) (*domain.User, error) {
	return s.userRepo.FindByID(ctx, userID)
}

var _ domain.UserService = (*UserServiceImpl)(nil)
