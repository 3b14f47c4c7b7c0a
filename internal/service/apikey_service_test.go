package service

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/NGeff/gld-rest-api/internal/models"
	apierrors "github.com/NGeff/gld-rest-api/internal/pkg/errors"
)

func TestAPIKeyService_CreateEnforcesPlanCap(t *testing.T) {
	keyRepo := newMockAPIKeyRepo()
	svc := NewAPIKeyService(keyRepo)
	ctx := context.Background()

	user := &models.User{ID: uuid.New(), Plan: models.PlanBasic}

	for i := 0; i < models.PlanBasic.MaxAPIKeys(); i++ {
		if _, err := svc.Create(ctx, user, CreateKeyRequest{Name: "key"}); err != nil {
			t.Fatalf("Create() key %d error = %v", i+1, err)
		}
	}

	_, err := svc.Create(ctx, user, CreateKeyRequest{Name: "one too many"})
	if apierrors.AsAPIError(err).StatusCode != 403 {
		t.Errorf("exceeding the key cap must fail with 403, got %v", err)
	}
}

func TestAPIKeyService_CreateEnterpriseUnlimited(t *testing.T) {
	keyRepo := newMockAPIKeyRepo()
	svc := NewAPIKeyService(keyRepo)
	ctx := context.Background()

	user := &models.User{ID: uuid.New(), Plan: models.PlanEnterprise}
	for i := 0; i < 25; i++ {
		if _, err := svc.Create(ctx, user, CreateKeyRequest{Name: "key"}); err != nil {
			t.Fatalf("Create() key %d error = %v", i+1, err)
		}
	}
}

func TestAPIKeyService_CustomKeyRequiresPlan(t *testing.T) {
	keyRepo := newMockAPIKeyRepo()
	svc := NewAPIKeyService(keyRepo)
	ctx := context.Background()

	custom := "gld_mycustomsecret12345678"

	basic := &models.User{ID: uuid.New(), Plan: models.PlanBasic}
	_, err := svc.Create(ctx, basic, CreateKeyRequest{Name: "custom", CustomKey: custom})
	if apierrors.AsAPIError(err).StatusCode != 403 {
		t.Errorf("basic plan custom key must fail with 403, got %v", err)
	}

	pro := &models.User{ID: uuid.New(), Plan: models.PlanPro}
	key, err := svc.Create(ctx, pro, CreateKeyRequest{Name: "custom", CustomKey: custom})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if key.Key != custom {
		t.Errorf("Key = %q, want the chosen secret", key.Key)
	}
}

func TestAPIKeyService_CustomKeyFormatAndUniqueness(t *testing.T) {
	keyRepo := newMockAPIKeyRepo()
	svc := NewAPIKeyService(keyRepo)
	ctx := context.Background()

	pro := &models.User{ID: uuid.New(), Plan: models.PlanPro}

	_, err := svc.Create(ctx, pro, CreateKeyRequest{Name: "bad", CustomKey: "gld_short"})
	if apierrors.AsAPIError(err).StatusCode != 400 {
		t.Errorf("malformed custom key must fail with 400, got %v", err)
	}

	custom := "gld_" + strings.Repeat("x", 30)
	if _, err := svc.Create(ctx, pro, CreateKeyRequest{Name: "first", CustomKey: custom}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	other := &models.User{ID: uuid.New(), Plan: models.PlanEnterprise}
	_, err = svc.Create(ctx, other, CreateKeyRequest{Name: "dup", CustomKey: custom})
	if apierrors.AsAPIError(err).StatusCode != 409 {
		t.Errorf("duplicate custom key must fail with 409, got %v", err)
	}
}

func TestAPIKeyService_OwnershipScoping(t *testing.T) {
	keyRepo := newMockAPIKeyRepo()
	svc := NewAPIKeyService(keyRepo)
	ctx := context.Background()

	owner := &models.User{ID: uuid.New(), Plan: models.PlanPro}
	key, err := svc.Create(ctx, owner, CreateKeyRequest{Name: "mine"})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	// Another account sees the key as not found, never as forbidden.
	stranger := uuid.New()
	if _, err := svc.Reveal(ctx, stranger, key.ID); apierrors.AsAPIError(err).StatusCode != 404 {
		t.Errorf("Reveal() by non-owner = %v, want 404", err)
	}
	if err := svc.Delete(ctx, stranger, key.ID); apierrors.AsAPIError(err).StatusCode != 404 {
		t.Errorf("Delete() by non-owner = %v, want 404", err)
	}

	if _, err := svc.SetActive(ctx, owner.ID, key.ID, false); err != nil {
		t.Fatalf("SetActive() error = %v", err)
	}
	got, _ := keyRepo.GetByID(ctx, key.ID)
	if got.IsActive {
		t.Error("key must be inactive after toggle")
	}
}
