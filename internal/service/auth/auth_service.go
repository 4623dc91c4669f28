// Package auth registers accounts, issues opaque API tokens and signs CSRF tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mamadbah2/vaccine-orders/internal/apperror"
	"github.com/mamadbah2/vaccine-orders/internal/domain/models"
	"github.com/mamadbah2/vaccine-orders/internal/repository"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidCSRF        = errors.New("invalid csrf token")
)

const csrfPurpose = "csrf"

type csrfClaims struct {
	Purpose string `json:"purpose"`
	jwt.RegisteredClaims
}

// Service implements account and token use cases.
type Service struct {
	users      repository.Users
	secret     []byte
	csrfTTL    time.Duration
	bcryptCost int
	logger     *zap.Logger
	now        func() time.Time
}

// NewService wires an auth service. secret signs CSRF tokens.
func NewService(users repository.Users, secret string, csrfTTL time.Duration, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		users:      users,
		secret:     []byte(secret),
		csrfTTL:    csrfTTL,
		bcryptCost: bcrypt.DefaultCost,
		logger:     logger,
		now:        time.Now,
	}
}

// HashPassword hashes a password with bcrypt.
func (s *Service) HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(bytes), nil
}

// Register creates a shopper account.
func (s *Service) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.ToLower(strings.TrimSpace(req.Email))

	if username == "" {
		return nil, apperror.Invalid("username", "This field is required.")
	}
	if req.Password1 == "" || req.Password2 == "" {
		return nil, apperror.Invalid("password", "Password fields are required.")
	}
	if req.Password1 != req.Password2 {
		return nil, apperror.Invalid("password", "Passwords do not match.")
	}
	if _, err := s.users.GetUserByUsername(ctx, username); err == nil {
		return nil, apperror.Invalid("username", "A user with that username already exists.")
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	if email != "" {
		if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
			return nil, apperror.Invalid("email", "A user with that email already exists.")
		} else if !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
	}

	u := models.User{
		Username:    username,
		Email:       email,
		CompanyName: strings.TrimSpace(req.CompanyName),
	}
	return s.create(ctx, u, req.Password1)
}

// EnsureStaff creates a staff superuser when no account with that username exists.
func (s *Service) EnsureStaff(ctx context.Context, username, email, password string) (*models.User, error) {
	existing, err := s.users.GetUserByUsername(ctx, username)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	return s.create(ctx, models.User{
		Username:    username,
		Email:       strings.ToLower(email),
		IsStaff:     true,
		IsSuperuser: true,
	}, password)
}

func (s *Service) create(ctx context.Context, u models.User, password string) (*models.User, error) {
	hash, err := s.HashPassword(password)
	if err != nil {
		return nil, err
	}
	u.PasswordHash = hash
	if err := s.users.CreateUser(ctx, &u); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, apperror.Invalid("username", "A user with that username already exists.")
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	s.logger.Info("user registered", zap.Int64("user_id", u.ID), zap.String("username", u.Username), zap.Bool("staff", u.IsStaff))
	return &u, nil
}

// Login checks the password and issues a new opaque token.
func (s *Service) Login(ctx context.Context, req models.LoginRequest) (*models.AuthToken, *models.User, error) {
	u, err := s.users.GetUserByUsername(ctx, strings.TrimSpace(req.Username))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)) != nil {
		return nil, nil, ErrInvalidCredentials
	}

	token := models.AuthToken{Key: newTokenKey(), UserID: u.ID, CreatedAt: s.now().UTC()}
	if err := s.users.SaveToken(ctx, token); err != nil {
		return nil, nil, fmt.Errorf("save token: %w", err)
	}
	s.logger.Info("user logged in", zap.String("username", u.Username))
	return &token, u, nil
}

// Logout revokes key.
func (s *Service) Logout(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	return s.users.DeleteToken(ctx, key)
}

// Authenticate resolves the user owning key.
func (s *Service) Authenticate(ctx context.Context, key string) (*models.User, error) {
	if key == "" {
		return nil, ErrInvalidToken
	}
	t, err := s.users.GetToken(ctx, key)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}
	u, err := s.users.GetUser(ctx, t.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidToken
	}
	return u, err
}

// IssueCSRF returns a signed, short-lived token to echo back in the X-CSRFToken header.
func (s *Service) IssueCSRF() (string, error) {
	now := s.now()
	claims := csrfClaims{
		Purpose: csrfPurpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.csrfTTL)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign csrf token: %w", err)
	}
	return signed, nil
}

// VerifyCSRF checks signature, expiry and purpose of a CSRF token.
func (s *Service) VerifyCSRF(token string) error {
	if token == "" {
		return ErrInvalidCSRF
	}
	claims := &csrfClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil || !parsed.Valid || claims.Purpose != csrfPurpose {
		return ErrInvalidCSRF
	}
	return nil
}

func newTokenKey() string {
	a := strings.ReplaceAll(uuid.NewString(), "-", "")
	b := strings.ReplaceAll(uuid.NewString(), "-", "")
	return (a + b)[:40]
}
