package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/NGeff/gld-rest-api/internal/models"
	"github.com/NGeff/gld-rest-api/internal/pkg/civil"
	apierrors "github.com/NGeff/gld-rest-api/internal/pkg/errors"
	"github.com/NGeff/gld-rest-api/internal/pkg/metrics"
	"github.com/NGeff/gld-rest-api/internal/repository"
)

// AccessService is the admission pipeline for the metered API surface:
// API key authentication, account gating, and daily quota consumption.
type AccessService interface {
	// Authenticate resolves an API key secret to its key and owning account.
	Authenticate(ctx context.Context, secret string) (*models.User, *models.APIKey, error)

	// Admit consumes one unit of the account's daily quota. The ceiling is
	// read from the account's plan at call time.
	Admit(ctx context.Context, user *models.User, key *models.APIKey) error

	// Record persists an audit entry for a completed call. It never blocks
	// the response; failures are logged and counted, not surfaced.
	Record(user *models.User, key *models.APIKey, endpoint, method string, statusCode int, elapsed time.Duration)
}

type accessService struct {
	userRepo   repository.UserRepository
	apiKeyRepo repository.APIKeyRepository
	logRepo    repository.RequestLogRepository
	logger     *slog.Logger

	// now is injectable for rollover tests.
	now func() time.Time
}

// NewAccessService creates a new access service.
func NewAccessService(
	userRepo repository.UserRepository,
	apiKeyRepo repository.APIKeyRepository,
	logRepo repository.RequestLogRepository,
	logger *slog.Logger,
) AccessService {
	return &accessService{
		userRepo:   userRepo,
		apiKeyRepo: apiKeyRepo,
		logRepo:    logRepo,
		logger:     logger,
		now:        time.Now,
	}
}

// Authenticate looks up the key by digest and gates on key and account state.
// Unknown and inactive keys are indistinguishable to the caller.
func (s *accessService) Authenticate(ctx context.Context, secret string) (*models.User, *models.APIKey, error) {
	key, err := s.apiKeyRepo.GetActiveByHash(ctx, models.HashKey(secret))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to look up key: %w", err)
	}
	if key == nil {
		metrics.AuthFailures.WithLabelValues("invalid_key").Inc()
		return nil, nil, apierrors.ErrUnauthorized.WithMessage("Invalid API key")
	}

	user, err := s.userRepo.GetByID(ctx, key.UserID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load key owner: %w", err)
	}
	if user == nil {
		metrics.AuthFailures.WithLabelValues("account_missing").Inc()
		return nil, nil, apierrors.ErrForbidden.WithMessage("Account not found")
	}
	if user.IsSuspended {
		metrics.AuthFailures.WithLabelValues("suspended").Inc()
		return nil, nil, apierrors.ErrForbidden.WithMessage("This account is suspended")
	}

	return user, key, nil
}

// Admit atomically consumes one quota slot, rolling the counter over at the
// billing-timezone midnight when needed.
func (s *accessService) Admit(ctx context.Context, user *models.User, key *models.APIKey) error {
	now := s.now()
	result, err := s.userRepo.ConsumeDailyQuota(ctx, user.ID, user.Plan.DailyLimit(), now)
	if err != nil {
		return fmt.Errorf("failed to consume quota: %w", err)
	}
	if !result.Admitted {
		metrics.QuotaRejections.WithLabelValues(string(user.Plan)).Inc()
		resetsAt := civil.NextMidnight(now).Format(time.RFC3339)
		return apierrors.NewQuotaExceededError(result.Limit, result.Used, resetsAt)
	}

	user.RequestsToday = result.Used
	metrics.MeteredCallsAdmitted.Inc()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.apiKeyRepo.RecordUsage(ctx, key.ID, now); err != nil {
			s.logger.Warn("failed to record key usage", "key_id", key.ID, "error", err)
		}
	}()

	return nil
}

// Record writes the audit entry on a detached goroutine so callers observe
// response latency that excludes audit persistence.
func (s *accessService) Record(user *models.User, key *models.APIKey, endpoint, method string, statusCode int, elapsed time.Duration) {
	entry := &models.RequestLog{
		UserID:         user.ID,
		APIKeyID:       key.ID,
		Endpoint:       endpoint,
		Method:         method,
		StatusCode:     statusCode,
		ResponseTimeMs: elapsed.Milliseconds(),
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.logRepo.Create(ctx, entry); err != nil {
			metrics.RequestLogFailures.Inc()
			s.logger.Error("failed to persist request log",
				"user_id", user.ID, "endpoint", endpoint, "error", err)
		}
	}()
}
