package service

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/NGeff/gld-rest-api/internal/models"
	apierrors "github.com/NGeff/gld-rest-api/internal/pkg/errors"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newAccessFixture(t *testing.T, plan models.Plan) (*accessService, *mockUserRepo, *mockAPIKeyRepo, *mockLogRepo, *models.User, *models.APIKey, string) {
	t.Helper()

	userRepo := newMockUserRepo()
	keyRepo := newMockAPIKeyRepo()
	logRepo := &mockLogRepo{}

	user := userRepo.add(&models.User{
		Name:             "Ana",
		Email:            "ana@example.com",
		Plan:             plan,
		LastRequestReset: time.Now(),
	})

	secret := models.GenerateKey()
	key := &models.APIKey{
		UserID:   user.ID,
		Key:      secret,
		KeyHash:  models.HashKey(secret),
		Name:     "Default",
		IsActive: true,
	}
	if err := keyRepo.Create(context.Background(), key); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	svc := NewAccessService(userRepo, keyRepo, logRepo, discardLogger()).(*accessService)
	return svc, userRepo, keyRepo, logRepo, user, key, secret
}

func TestAccessService_Authenticate(t *testing.T) {
	svc, _, _, _, user, _, secret := newAccessFixture(t, models.PlanFree)

	gotUser, gotKey, err := svc.Authenticate(context.Background(), secret)
	if err != nil {
		t.Fatalf("Authenticate() error = %v", err)
	}
	if gotUser.ID != user.ID {
		t.Errorf("user ID = %v, want %v", gotUser.ID, user.ID)
	}
	if gotKey == nil || gotKey.UserID != user.ID {
		t.Error("key must belong to the authenticated user")
	}
}

func TestAccessService_AuthenticateUnknownKey(t *testing.T) {
	svc, _, _, _, _, _, _ := newAccessFixture(t, models.PlanFree)

	_, _, err := svc.Authenticate(context.Background(), "gld_doesnotexist0000000000")
	apiErr := apierrors.AsAPIError(err)
	if apiErr.StatusCode != 401 {
		t.Errorf("status = %d, want 401", apiErr.StatusCode)
	}
}

func TestAccessService_AuthenticateInactiveKey(t *testing.T) {
	svc, _, keyRepo, _, _, key, secret := newAccessFixture(t, models.PlanFree)

	if err := keyRepo.SetActive(context.Background(), key.ID, false); err != nil {
		t.Fatalf("SetActive() error = %v", err)
	}

	// Disabled keys must be indistinguishable from unknown ones.
	_, _, err := svc.Authenticate(context.Background(), secret)
	apiErr := apierrors.AsAPIError(err)
	if apiErr.StatusCode != 401 {
		t.Errorf("status = %d, want 401", apiErr.StatusCode)
	}
}

func TestAccessService_AuthenticateOrphanedKey(t *testing.T) {
	svc, userRepo, _, _, user, _, secret := newAccessFixture(t, models.PlanFree)
	userRepo.remove(user.ID)

	// A key whose owning account is gone is an account problem, not a
	// credential problem.
	_, _, err := svc.Authenticate(context.Background(), secret)
	apiErr := apierrors.AsAPIError(err)
	if apiErr.StatusCode != 403 {
		t.Errorf("status = %d, want 403", apiErr.StatusCode)
	}
}

func TestAccessService_AuthenticateSuspended(t *testing.T) {
	svc, _, _, _, user, _, secret := newAccessFixture(t, models.PlanFree)
	user.IsSuspended = true

	_, _, err := svc.Authenticate(context.Background(), secret)
	apiErr := apierrors.AsAPIError(err)
	if apiErr.StatusCode != 403 {
		t.Errorf("status = %d, want 403", apiErr.StatusCode)
	}
}

func TestAccessService_AdmitCountsToCeiling(t *testing.T) {
	svc, _, _, _, user, key, _ := newAccessFixture(t, models.PlanFree)
	ctx := context.Background()

	limit := models.PlanFree.DailyLimit()
	for i := 0; i < limit; i++ {
		if err := svc.Admit(ctx, user, key); err != nil {
			t.Fatalf("Admit() call %d error = %v", i+1, err)
		}
	}
	if user.RequestsToday != limit {
		t.Errorf("RequestsToday = %d, want %d", user.RequestsToday, limit)
	}

	// Call N+1 is rejected with the quota payload and consumes nothing.
	err := svc.Admit(ctx, user, key)
	apiErr := apierrors.AsAPIError(err)
	if apiErr.StatusCode != 429 {
		t.Fatalf("status = %d, want 429", apiErr.StatusCode)
	}
	details, ok := apiErr.Details.(apierrors.QuotaDetails)
	if !ok {
		t.Fatalf("Details = %T, want QuotaDetails", apiErr.Details)
	}
	if details.Limit != limit || details.Used != limit {
		t.Errorf("details = %+v, want limit=used=%d", details, limit)
	}
	if details.ResetsAt == "" {
		t.Error("ResetsAt must describe when the quota resets")
	}
}

func TestAccessService_AdmitRollsOverAtMidnight(t *testing.T) {
	svc, userRepo, _, _, user, key, _ := newAccessFixture(t, models.PlanFree)

	// Exhausted yesterday.
	user.RequestsToday = models.PlanFree.DailyLimit()
	user.LastRequestReset = time.Now().Add(-24 * time.Hour)

	if err := svc.Admit(context.Background(), user, key); err != nil {
		t.Fatalf("Admit() after day change error = %v", err)
	}

	stored, _ := userRepo.GetByID(context.Background(), user.ID)
	if stored.RequestsToday != 1 {
		t.Errorf("RequestsToday after rollover = %d, want 1", stored.RequestsToday)
	}
}

func TestAccessService_AdmitConcurrentRespectsCeiling(t *testing.T) {
	svc, userRepo, _, _, user, key, _ := newAccessFixture(t, models.PlanFree)
	ctx := context.Background()

	limit := models.PlanFree.DailyLimit()
	user.RequestsToday = limit - 5
	user.LastRequestReset = time.Now()

	const attempts = 20
	var wg sync.WaitGroup
	results := make(chan error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			u := &models.User{ID: user.ID, Plan: user.Plan}
			results <- svc.Admit(ctx, u, key)
		}()
	}
	wg.Wait()
	close(results)

	var admitted, rejected int
	for err := range results {
		if err == nil {
			admitted++
		} else {
			rejected++
		}
	}

	if admitted != 5 {
		t.Errorf("admitted = %d, want exactly 5", admitted)
	}
	if rejected != attempts-5 {
		t.Errorf("rejected = %d, want %d", rejected, attempts-5)
	}

	stored, _ := userRepo.GetByID(ctx, user.ID)
	if stored.RequestsToday != limit {
		t.Errorf("RequestsToday = %d, want %d", stored.RequestsToday, limit)
	}
}

func TestAccessService_AdmitUnknownPlanFallsBackToFree(t *testing.T) {
	svc, _, _, _, user, key, _ := newAccessFixture(t, models.Plan("legacy"))
	ctx := context.Background()

	for i := 0; i < models.PlanFree.DailyLimit(); i++ {
		if err := svc.Admit(ctx, user, key); err != nil {
			t.Fatalf("Admit() call %d error = %v", i+1, err)
		}
	}

	err := svc.Admit(ctx, user, key)
	if apierrors.AsAPIError(err).StatusCode != 429 {
		t.Error("unknown plan must be capped at the free ceiling")
	}
}

func TestAccessService_RecordPersistsEntry(t *testing.T) {
	svc, _, _, logRepo, user, key, _ := newAccessFixture(t, models.PlanFree)

	svc.Record(user, key, "/v1/utils/cep/01310100", "GET", 200, 42*time.Millisecond)

	waitFor(t, func() bool { return logRepo.count() == 1 })

	entry := logRepo.entries[0]
	if entry.UserID != user.ID || entry.APIKeyID != key.ID {
		t.Error("entry must reference the calling user and key")
	}
	if entry.Endpoint != "/v1/utils/cep/01310100" || entry.StatusCode != 200 {
		t.Errorf("entry = %+v", entry)
	}
	if entry.ResponseTimeMs != 42 {
		t.Errorf("ResponseTimeMs = %d, want 42", entry.ResponseTimeMs)
	}
}

func TestAccessService_RecordFailureDoesNotPanic(t *testing.T) {
	svc, _, _, logRepo, user, key, _ := newAccessFixture(t, models.PlanFree)
	logRepo.failing = true

	// A failing audit store must not affect the caller.
	svc.Record(user, key, "/v1/utils/weather", "GET", 200, time.Millisecond)
	time.Sleep(50 * time.Millisecond)

	if logRepo.count() != 0 {
		t.Error("no entry should be stored when the log repo fails")
	}
}

// waitFor polls until cond holds or the deadline passes. Needed because the
// audit write is detached from the request path.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
