package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/NGeff/gld-rest-api/internal/models"
	"github.com/NGeff/gld-rest-api/internal/pkg/civil"
	apierrors "github.com/NGeff/gld-rest-api/internal/pkg/errors"
	"github.com/NGeff/gld-rest-api/internal/repository"
)

// AdminService defines the interface for administrative operations.
type AdminService interface {
	Stats(ctx context.Context) (*PlatformStats, error)
	ListUsers(ctx context.Context, q repository.ListUsersQuery) ([]*models.User, int64, error)
	GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error)
	UpdateUserPlan(ctx context.Context, userID uuid.UUID, plan models.Plan, expiresAt *time.Time) (*models.User, error)
	SetUserSuspended(ctx context.Context, userID uuid.UUID, suspended bool) (*models.User, error)
	ListPayments(ctx context.Context, page, limit int) ([]*models.Payment, int64, error)
}

// PlatformStats is the admin dashboard summary.
type PlatformStats struct {
	TotalUsers    int64                 `json:"total_users"`
	UsersByPlan   map[models.Plan]int64 `json:"users_by_plan"`
	RequestsToday int64                 `json:"requests_today"`
}

type adminService struct {
	userRepo    repository.UserRepository
	paymentRepo repository.PaymentRepository
	logRepo     repository.RequestLogRepository

	now func() time.Time
}

// NewAdminService creates a new admin service.
func NewAdminService(
	userRepo repository.UserRepository,
	paymentRepo repository.PaymentRepository,
	logRepo repository.RequestLogRepository,
) AdminService {
	return &adminService{
		userRepo:    userRepo,
		paymentRepo: paymentRepo,
		logRepo:     logRepo,
		now:         time.Now,
	}
}

func (s *adminService) Stats(ctx context.Context) (*PlatformStats, error) {
	total, err := s.userRepo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	byPlan, err := s.userRepo.CountByPlan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count plans: %w", err)
	}

	// "Today" is the billing-timezone civil day, the same boundary the
	// quota ledger rolls over on.
	dayStart := civil.StartOfDay(s.now())
	requests, err := s.logRepo.CountSince(ctx, dayStart)
	if err != nil {
		return nil, fmt.Errorf("failed to count requests: %w", err)
	}

	return &PlatformStats{
		TotalUsers:    total,
		UsersByPlan:   byPlan,
		RequestsToday: requests,
	}, nil
}

func (s *adminService) ListUsers(ctx context.Context, q repository.ListUsersQuery) ([]*models.User, int64, error) {
	return s.userRepo.List(ctx, q)
}

func (s *adminService) GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return nil, apierrors.NewNotFoundError("User")
	}
	return user, nil
}

// UpdateUserPlan sets a user's plan directly, bypassing payment. A nil
// expiry means the plan never lapses.
func (s *adminService) UpdateUserPlan(ctx context.Context, userID uuid.UUID, plan models.Plan, expiresAt *time.Time) (*models.User, error) {
	if !plan.IsValid() {
		return nil, apierrors.NewValidationError("plan", "must be free, basic, pro or enterprise")
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return nil, apierrors.NewNotFoundError("User")
	}

	if err := s.userRepo.UpdatePlan(ctx, userID, plan, expiresAt); err != nil {
		return nil, fmt.Errorf("failed to update plan: %w", err)
	}
	user.Plan = plan
	user.PlanExpiresAt = expiresAt
	return user, nil
}

// SetUserSuspended toggles account suspension. Admin accounts cannot be
// suspended.
func (s *adminService) SetUserSuspended(ctx context.Context, userID uuid.UUID, suspended bool) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return nil, apierrors.NewNotFoundError("User")
	}
	if user.IsAdmin() {
		return nil, apierrors.ErrForbidden.WithMessage("Admin accounts cannot be suspended")
	}

	if err := s.userRepo.SetSuspended(ctx, userID, suspended); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	user.IsSuspended = suspended
	return user, nil
}

func (s *adminService) ListPayments(ctx context.Context, page, limit int) ([]*models.Payment, int64, error) {
	return s.paymentRepo.ListAll(ctx, page, limit)
}
