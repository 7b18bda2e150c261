package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/repair-case-service/internal/auth"
	"github.com/spec-kit/repair-case-service/internal/config"
	"github.com/spec-kit/repair-case-service/internal/domain"
	"github.com/spec-kit/repair-case-service/internal/repository"
	apperrors "github.com/spec-kit/repair-case-service/pkg/util/errorutil"
)

// StaffService manages staff accounts.
type StaffService struct {
	staff      repository.StaffRepository
	bcryptCost int
	logger     *zap.Logger
}

// NewStaffService constructs the service.
func NewStaffService(cfg config.Config, staff repository.StaffRepository, logger *zap.Logger) *StaffService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StaffService{staff: staff, bcryptCost: cfg.Auth.BcryptCost, logger: logger}
}

// StaffCreateInput describes a new staff account.
type StaffCreateInput struct {
	Name     string
	Email    string
	Password string
	Role     domain.StaffRole
}

func requireLeader(actor *domain.StaffMember) error {
	if actor == nil || actor.Role != domain.StaffRoleLeader {
		return apperrors.NewForbidden("leader role required")
	}
	return nil
}

// CreateStaffMember adds a new staff account. Only leaders manage staff.
func (s *StaffService) CreateStaffMember(ctx context.Context, actor *domain.StaffMember, input StaffCreateInput) (*domain.StaffMember, error) {
	if err := requireLeader(actor); err != nil {
		return nil, err
	}
	return s.create(ctx, input)
}

// EnsureLeader creates a leader account for the given email unless one
// already exists. It seeds the first account of a fresh deployment.
func (s *StaffService) EnsureLeader(ctx context.Context, email, password string) error {
	if strings.TrimSpace(email) == "" {
		return nil
	}
	if _, err := s.staff.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email))); err == nil {
		return nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	staff, err := s.create(ctx, StaffCreateInput{
		Name:     "Bootstrap Leader",
		Email:    email,
		Password: password,
		Role:     domain.StaffRoleLeader,
	})
	if err != nil {
		return err
	}
	s.logger.Info("bootstrap leader created", zap.String("staff_id", staff.ID))
	return nil
}

func (s *StaffService) create(ctx context.Context, input StaffCreateInput) (*domain.StaffMember, error) {
	name := strings.TrimSpace(input.Name)
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if name == "" {
		return nil, apperrors.NewFieldValidationError("name", "name required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperrors.NewFieldValidationError("email", "valid email required")
	}
	if err := auth.ValidatePassword(input.Password); err != nil {
		return nil, apperrors.NewFieldValidationError("password", err.Error())
	}
	switch input.Role {
	case domain.StaffRoleCS, domain.StaffRoleTechnician, domain.StaffRoleLeader:
	default:
		return nil, apperrors.NewFieldValidationError("role", "role must be CS, TECHNICIAN or LEADER")
	}

	if existing, err := s.staff.GetByEmail(ctx, email); err == nil && existing != nil {
		return nil, apperrors.NewConflict("staff email already exists", map[string]any{"email": email})
	} else if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.MapError(err)
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	staff := &domain.StaffMember{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         input.Role,
		Active:       true,
	}
	if err := s.staff.Create(ctx, staff); err != nil {
		return nil, apperrors.MapError(err)
	}
	return staff, nil
}
