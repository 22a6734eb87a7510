package service

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/xela07ax/tenant-agent-core/internal/domain"
	"github.com/xela07ax/tenant-agent-core/internal/infra/auth"
)

type AuthProvider interface {
	GetOperatorByUsername(ctx context.Context, username string) (*domain.Operator, error)
}

// AuthService проверяет пароли и выпускает токены. Встроенный
// BaseValidator делает его же TokenValidator'ом для middleware.
type AuthService struct {
	*auth.BaseValidator

	repo   AuthProvider
	issuer *auth.Issuer
}

func NewAuthService(repo AuthProvider, validator *auth.BaseValidator, issuer *auth.Issuer) *AuthService {
	return &AuthService{
		BaseValidator: validator,
		repo:          repo,
		issuer:        issuer,
	}
}

func (s *AuthService) GenerateToken(ctx context.Context, username, password string) (*domain.TokenResponse, error) {
	// 1. Аутентификация (источник правды — Postgres)
	op, err := s.repo.GetOperatorByUsername(ctx, username)
	if err != nil || op == nil {
		return nil, errors.New("invalid credentials")
	}

	// 2. Проверка пароля (bcrypt)
	if err := bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(password)); err != nil {
		return nil, errors.New("invalid credentials")
	}

	// 3. Подпись токена закрытым ключом (RS256)
	signed, expiresIn, err := s.issuer.IssueToken(op)
	if err != nil {
		return nil, err
	}

	return &domain.TokenResponse{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresIn:   expiresIn,
	}, nil
}
