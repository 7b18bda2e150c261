package service

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/repair-case-service/internal/auth"
	"github.com/spec-kit/repair-case-service/internal/config"
	"github.com/spec-kit/repair-case-service/internal/domain"
	"github.com/spec-kit/repair-case-service/internal/repository"
	apperrors "github.com/spec-kit/repair-case-service/pkg/util/errorutil"
)

// AuthService coordinates the staff login flow.
type AuthService struct {
	staff    repository.StaffRepository
	tokenMgr *auth.TokenManager
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, staff repository.StaffRepository) *AuthService {
	return &AuthService{
		staff:    staff,
		tokenMgr: auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
	}
}

// TokenManager exposes the manager so the HTTP layer validates what this
// service issues.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

// LoginStaff authenticates staff and returns a role-bearing token. Unknown
// emails and wrong passwords produce the same error.
func (s *AuthService) LoginStaff(ctx context.Context, email, password string) (*domain.StaffMember, string, domain.Token, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, "", domain.Token{}, apperrors.NewValidationError("email and password required", nil)
	}

	staff, err := s.staff.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, "", domain.Token{}, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, "", domain.Token{}, apperrors.NewInternalError(err)
	}
	if err := auth.ComparePassword(staff.PasswordHash, password); err != nil {
		return nil, "", domain.Token{}, apperrors.NewUnauthorized("invalid credentials")
	}
	if !staff.Active {
		return nil, "", domain.Token{}, apperrors.NewUnauthorized("staff account disabled")
	}

	token, signed, err := s.tokenMgr.GenerateToken(staff)
	if err != nil {
		return nil, "", domain.Token{}, apperrors.NewInternalError(err)
	}
	return staff, signed, token, nil
}
