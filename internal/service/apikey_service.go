package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/NGeff/gld-rest-api/internal/models"
	apierrors "github.com/NGeff/gld-rest-api/internal/pkg/errors"
	"github.com/NGeff/gld-rest-api/internal/repository"
)

// APIKeyService defines the interface for API key management.
type APIKeyService interface {
	Create(ctx context.Context, user *models.User, req CreateKeyRequest) (*models.APIKey, error)
	List(ctx context.Context, userID uuid.UUID) ([]*models.APIKey, error)
	Reveal(ctx context.Context, userID, keyID uuid.UUID) (*models.APIKey, error)
	SetActive(ctx context.Context, userID, keyID uuid.UUID, active bool) (*models.APIKey, error)
	Delete(ctx context.Context, userID, keyID uuid.UUID) error
}

// CreateKeyRequest is the request for issuing a new API key. CustomKey is
// optional and restricted to plans that allow caller-chosen secrets.
type CreateKeyRequest struct {
	Name      string `json:"name" validate:"required,min=1,max=100"`
	CustomKey string `json:"custom_key,omitempty" validate:"omitempty,max=68"`
}

type apiKeyService struct {
	apiKeyRepo repository.APIKeyRepository
}

// NewAPIKeyService creates a new API key service.
func NewAPIKeyService(apiKeyRepo repository.APIKeyRepository) APIKeyService {
	return &apiKeyService{apiKeyRepo: apiKeyRepo}
}

// Create issues a key for the account, enforcing the plan's key cap and the
// custom-secret rules.
func (s *apiKeyService) Create(ctx context.Context, user *models.User, req CreateKeyRequest) (*models.APIKey, error) {
	count, err := s.apiKeyRepo.CountByUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to count keys: %w", err)
	}
	if max := user.Plan.MaxAPIKeys(); max >= 0 && count >= max {
		return nil, apierrors.ErrForbidden.WithMessage(
			fmt.Sprintf("The %s plan allows at most %d API key(s)", user.Plan, max))
	}

	secret := req.CustomKey
	if secret != "" {
		if !user.Plan.AllowsCustomKeys() {
			return nil, apierrors.ErrForbidden.WithMessage("Custom API keys require the pro or enterprise plan")
		}
		if !models.IsValidCustomKey(secret) {
			return nil, apierrors.NewValidationError("custom_key",
				"must start with gld_ followed by 20-64 letters, digits, hyphens or underscores")
		}
		exists, err := s.apiKeyRepo.ExistsByHash(ctx, models.HashKey(secret))
		if err != nil {
			return nil, fmt.Errorf("failed to check key uniqueness: %w", err)
		}
		if exists {
			return nil, apierrors.NewConflictError("This API key is already in use")
		}
	} else {
		secret = models.GenerateKey()
	}

	key := &models.APIKey{
		ID:       uuid.New(),
		UserID:   user.ID,
		Key:      secret,
		KeyHash:  models.HashKey(secret),
		Name:     req.Name,
		IsActive: true,
	}
	if err := s.apiKeyRepo.Create(ctx, key); err != nil {
		return nil, fmt.Errorf("failed to create key: %w", err)
	}
	return key, nil
}

// List returns all keys owned by the account.
func (s *apiKeyService) List(ctx context.Context, userID uuid.UUID) ([]*models.APIKey, error) {
	keys, err := s.apiKeyRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	return keys, nil
}

// Reveal returns a key including its full secret.
func (s *apiKeyService) Reveal(ctx context.Context, userID, keyID uuid.UUID) (*models.APIKey, error) {
	return s.getOwned(ctx, userID, keyID)
}

// SetActive toggles a key without destroying its usage history.
func (s *apiKeyService) SetActive(ctx context.Context, userID, keyID uuid.UUID, active bool) (*models.APIKey, error) {
	key, err := s.getOwned(ctx, userID, keyID)
	if err != nil {
		return nil, err
	}
	if err := s.apiKeyRepo.SetActive(ctx, keyID, active); err != nil {
		return nil, fmt.Errorf("failed to update key: %w", err)
	}
	key.IsActive = active
	return key, nil
}

// Delete permanently removes a key.
func (s *apiKeyService) Delete(ctx context.Context, userID, keyID uuid.UUID) error {
	if _, err := s.getOwned(ctx, userID, keyID); err != nil {
		return err
	}
	if err := s.apiKeyRepo.Delete(ctx, keyID); err != nil {
		return fmt.Errorf("failed to delete key: %w", err)
	}
	return nil
}

// getOwned loads a key and verifies ownership. A key belonging to another
// account reads as not found rather than forbidden.
func (s *apiKeyService) getOwned(ctx context.Context, userID, keyID uuid.UUID) (*models.APIKey, error) {
	key, err := s.apiKeyRepo.GetByID(ctx, keyID)
	if err != nil {
		return nil, fmt.Errorf("failed to load key: %w", err)
	}
	if key == nil || key.UserID != userID {
		return nil, apierrors.NewNotFoundError("API key")
	}
	return key, nil
}
