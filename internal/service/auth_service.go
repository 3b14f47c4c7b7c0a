// Package service provides business logic implementations.
package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/NGeff/gld-rest-api/internal/config"
	"github.com/NGeff/gld-rest-api/internal/email"
	"github.com/NGeff/gld-rest-api/internal/models"
	apierrors "github.com/NGeff/gld-rest-api/internal/pkg/errors"
	"github.com/NGeff/gld-rest-api/internal/repository"
)

// AuthService defines the interface for account and session operations.
type AuthService interface {
	Register(ctx context.Context, req RegisterRequest) (*models.User, error)
	Login(ctx context.Context, req LoginRequest) (*LoginResponse, error)
	VerifyEmail(ctx context.Context, token string) error
	ForgotPassword(ctx context.Context, emailAddr string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	GetProfile(ctx context.Context, userID uuid.UUID) (*models.User, error)

	// ParseToken validates a session token and returns its claims.
	ParseToken(token string) (*TokenClaims, error)
}

// RegisterRequest is the request for creating a new account.
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// LoginRequest is the request for opening a session.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse carries the session token and the authenticated account.
type LoginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

// TokenClaims are the claims embedded in a session token.
type TokenClaims struct {
	UserID uuid.UUID
	Role   models.Role
	jwt.RegisteredClaims
}

type authService struct {
	userRepo   repository.UserRepository
	apiKeyRepo repository.APIKeyRepository
	mailer     email.Service
	cfg        *config.AuthConfig
	logger     *slog.Logger
}

// NewAuthService creates a new auth service.
func NewAuthService(
	userRepo repository.UserRepository,
	apiKeyRepo repository.APIKeyRepository,
	mailer email.Service,
	cfg *config.AuthConfig,
	logger *slog.Logger,
) AuthService {
	return &authService{
		userRepo:   userRepo,
		apiKeyRepo: apiKeyRepo,
		mailer:     mailer,
		cfg:        cfg,
		logger:     logger,
	}
}

// Register creates an account on the free plan with one default API key and
// sends the verification email in the background.
func (s *authService) Register(ctx context.Context, req RegisterRequest) (*models.User, error) {
	existing, err := s.userRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if existing != nil {
		return nil, apierrors.NewConflictError("An account with this email already exists")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	verifyToken := randomToken()
	user := &models.User{
		ID:                uuid.New(),
		Name:              req.Name,
		Email:             req.Email,
		PasswordHash:      string(hash),
		VerificationToken: &verifyToken,
		Plan:              models.PlanFree,
		Role:              models.RoleUser,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	key := &models.APIKey{
		ID:       uuid.New(),
		UserID:   user.ID,
		Key:      models.GenerateKey(),
		Name:     "Default",
		IsActive: true,
	}
	key.KeyHash = models.HashKey(key.Key)
	if err := s.apiKeyRepo.Create(ctx, key); err != nil {
		return nil, fmt.Errorf("failed to create default key: %w", err)
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := s.mailer.SendVerification(ctx, user.Email, user.Name, verifyToken); err != nil {
			s.logger.Error("failed to send verification email",
				"user_id", user.ID, "error", err)
		}
	}()

	return user, nil
}

// Login authenticates credentials and issues a session token. Unverified and
// suspended accounts cannot open sessions.
func (s *authService) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	user, err := s.userRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		return nil, apierrors.ErrUnauthorized.WithMessage("Invalid email or password")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, apierrors.ErrUnauthorized.WithMessage("Invalid email or password")
	}
	if !user.IsVerified {
		return nil, apierrors.ErrForbidden.WithMessage("Please verify your email before logging in")
	}
	if user.IsSuspended {
		return nil, apierrors.ErrForbidden.WithMessage("This account is suspended")
	}

	expiresAt := time.Now().Add(s.cfg.JWTExpiry)
	token, err := s.generateToken(user, expiresAt)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &LoginResponse{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// VerifyEmail consumes a verification token and marks the account verified.
func (s *authService) VerifyEmail(ctx context.Context, token string) error {
	user, err := s.userRepo.GetByVerificationToken(ctx, token)
	if err != nil {
		return fmt.Errorf("failed to look up token: %w", err)
	}
	if user == nil {
		return apierrors.ErrBadRequest.WithMessage("Invalid or expired verification token")
	}

	user.IsVerified = true
	user.VerificationToken = nil
	if err := s.userRepo.Update(ctx, user); err != nil {
		return fmt.Errorf("failed to verify user: %w", err)
	}
	return nil
}

// ForgotPassword issues a reset token. It reports success even for unknown
// addresses so the endpoint cannot be used to probe which emails exist.
func (s *authService) ForgotPassword(ctx context.Context, emailAddr string) error {
	user, err := s.userRepo.GetByEmail(ctx, emailAddr)
	if err != nil {
		return fmt.Errorf("failed to look up user: %w", err)
	}
	if user == nil {
		return nil
	}

	resetToken := randomToken()
	expires := time.Now().Add(time.Hour)
	user.ResetPasswordToken = &resetToken
	user.ResetPasswordExpires = &expires
	if err := s.userRepo.Update(ctx, user); err != nil {
		return fmt.Errorf("failed to store reset token: %w", err)
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := s.mailer.SendPasswordReset(ctx, user.Email, user.Name, resetToken); err != nil {
			s.logger.Error("failed to send reset email",
				"user_id", user.ID, "error", err)
		}
	}()

	return nil
}

// ResetPassword consumes a reset token and replaces the password.
func (s *authService) ResetPassword(ctx context.Context, token, newPassword string) error {
	user, err := s.userRepo.GetByResetToken(ctx, token)
	if err != nil {
		return fmt.Errorf("failed to look up token: %w", err)
	}
	if user == nil || user.ResetPasswordExpires == nil || user.ResetPasswordExpires.Before(time.Now()) {
		return apierrors.ErrBadRequest.WithMessage("Invalid or expired reset token")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.cfg.BcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	user.PasswordHash = string(hash)
	user.ResetPasswordToken = nil
	user.ResetPasswordExpires = nil
	if err := s.userRepo.Update(ctx, user); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

// GetProfile returns the account for an authenticated session.
func (s *authService) GetProfile(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return nil, apierrors.NewNotFoundError("User")
	}
	return user, nil
}

func (s *authService) generateToken(user *models.User, expiresAt time.Time) (string, error) {
	claims := &TokenClaims{
		UserID: user.ID,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWTSecret))
}

// ParseToken validates a session token signature and expiry.
func (s *authService) ParseToken(tokenString string) (*TokenClaims, error) {
	claims := &TokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, apierrors.ErrUnauthorized.WithMessage("Invalid or expired token")
	}
	if claims.UserID == uuid.Nil {
		if id, err := uuid.Parse(claims.Subject); err == nil {
			claims.UserID = id
		}
	}
	return claims, nil
}

func randomToken() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		panic("service: " + err.Error())
	}
	return hex.EncodeToString(buf)
}
