// Package repository provides data access layer implementations.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/NGeff/gld-rest-api/internal/models"
	"github.com/NGeff/gld-rest-api/internal/pkg/civil"
)

// QuotaResult is the outcome of one atomic quota consumption attempt.
type QuotaResult struct {
	Admitted bool
	Used     int
	Limit    int
}

// ListUsersQuery holds filters and pagination for the admin user listing.
type ListUsersQuery struct {
	Search string
	Plan   models.Plan
	Page   int
	Limit  int
}

// UserRepository defines the interface for user account data operations.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByVerificationToken(ctx context.Context, token string) (*models.User, error)
	GetByResetToken(ctx context.Context, token string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	UpdatePlan(ctx context.Context, id uuid.UUID, plan models.Plan, expiresAt *time.Time) error
	SetSuspended(ctx context.Context, id uuid.UUID, suspended bool) error
	List(ctx context.Context, q ListUsersQuery) ([]*models.User, int64, error)
	ListExpiring(ctx context.Context) ([]*models.User, error)
	Count(ctx context.Context) (int64, error)
	CountByPlan(ctx context.Context) (map[models.Plan]int64, error)

	// ConsumeDailyQuota atomically performs the rollover check, ceiling
	// check, and increment for one account. Two concurrent calls must not
	// both take the last quota slot, nor both skip the midnight rollover.
	ConsumeDailyQuota(ctx context.Context, id uuid.UUID, limit int, now time.Time) (QuotaResult, error)

	// ResetDailyCounters zeroes requests_today for every account with a
	// non-zero counter and returns how many rows changed.
	ResetDailyCounters(ctx context.Context, now time.Time) (int64, error)
}

type userRepo struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new user repository.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepo{pool: pool}
}

const userColumns = `id, name, email, password_hash, is_verified, verification_token,
	reset_password_token, reset_password_expires, plan, plan_expires_at, role,
	is_suspended, requests_today, last_request_reset, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.PasswordHash,
		&u.IsVerified,
		&u.VerificationToken,
		&u.ResetPasswordToken,
		&u.ResetPasswordExpires,
		&u.Plan,
		&u.PlanExpiresAt,
		&u.Role,
		&u.IsSuspended,
		&u.RequestsToday,
		&u.LastRequestReset,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Create inserts a new user into the database.
func (r *userRepo) Create(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, name, email, password_hash, is_verified, verification_token, plan, role)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING requests_today, last_request_reset, created_at, updated_at`

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.Plan == "" {
		user.Plan = models.PlanFree
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}

	return r.pool.QueryRow(ctx, query,
		user.ID,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.IsVerified,
		user.VerificationToken,
		user.Plan,
		user.Role,
	).Scan(&user.RequestsToday, &user.LastRequestReset, &user.CreatedAt, &user.UpdatedAt)
}

// GetByID retrieves a user by its UUID.
func (r *userRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

// GetByEmail retrieves a user by email.
func (r *userRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1)`
	return scanUser(r.pool.QueryRow(ctx, query, email))
}

// GetByVerificationToken retrieves a user by its email verification token.
func (r *userRepo) GetByVerificationToken(ctx context.Context, token string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE verification_token = $1`
	return scanUser(r.pool.QueryRow(ctx, query, token))
}

// GetByResetToken retrieves a user by an unexpired password reset token.
func (r *userRepo) GetByResetToken(ctx context.Context, token string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users
		WHERE reset_password_token = $1 AND reset_password_expires > NOW()`
	return scanUser(r.pool.QueryRow(ctx, query, token))
}

// Update persists mutable account fields.
func (r *userRepo) Update(ctx context.Context, user *models.User) error {
	query := `
		UPDATE users SET
			name = $2,
			email = $3,
			password_hash = $4,
			is_verified = $5,
			verification_token = $6,
			reset_password_token = $7,
			reset_password_expires = $8,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`

	err := r.pool.QueryRow(ctx, query,
		user.ID,
		user.Name,
		user.Email,
		user.PasswordHash,
		user.IsVerified,
		user.VerificationToken,
		user.ResetPasswordToken,
		user.ResetPasswordExpires,
	).Scan(&user.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return pgx.ErrNoRows
	}
	return err
}

// UpdatePlan sets an account's plan and expiry timestamp in one statement.
func (r *userRepo) UpdatePlan(ctx context.Context, id uuid.UUID, plan models.Plan, expiresAt *time.Time) error {
	query := `UPDATE users SET plan = $2, plan_expires_at = $3, updated_at = NOW() WHERE id = $1`
	result, err := r.pool.Exec(ctx, query, id, plan, expiresAt)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// SetSuspended toggles an account's suspension flag.
func (r *userRepo) SetSuspended(ctx context.Context, id uuid.UUID, suspended bool) error {
	query := `UPDATE users SET is_suspended = $2, updated_at = NOW() WHERE id = $1`
	result, err := r.pool.Exec(ctx, query, id, suspended)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// List retrieves users matching the query with pagination.
func (r *userRepo) List(ctx context.Context, q ListUsersQuery) ([]*models.User, int64, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 || q.Limit > 100 {
		q.Limit = 20
	}

	where := `WHERE ($1 = '' OR name ILIKE '%' || $1 || '%' OR email ILIKE '%' || $1 || '%')
		AND ($2 = '' OR plan = $2)`

	var total int64
	countQuery := `SELECT COUNT(*) FROM users ` + where
	if err := r.pool.QueryRow(ctx, countQuery, q.Search, string(q.Plan)).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + userColumns + ` FROM users ` + where + `
		ORDER BY created_at DESC LIMIT $3 OFFSET $4`

	rows, err := r.pool.Query(ctx, query, q.Search, string(q.Plan), q.Limit, (q.Page-1)*q.Limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, u)
	}
	return users, total, rows.Err()
}

// ListExpiring retrieves every non-free account with an expiry timestamp,
// the working set of the plan lifecycle sweep.
func (r *userRepo) ListExpiring(ctx context.Context) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users
		WHERE plan <> 'free' AND plan_expires_at IS NOT NULL
		ORDER BY plan_expires_at`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// Count returns the total number of accounts.
func (r *userRepo) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}

// CountByPlan returns the number of accounts per plan.
func (r *userRepo) CountByPlan(ctx context.Context) (map[models.Plan]int64, error) {
	rows, err := r.pool.Query(ctx, `SELECT plan, COUNT(*) FROM users GROUP BY plan`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[models.Plan]int64)
	for rows.Next() {
		var plan models.Plan
		var count int64
		if err := rows.Scan(&plan, &count); err != nil {
			return nil, err
		}
		counts[plan] = count
	}
	return counts, rows.Err()
}

// ConsumeDailyQuota performs rollover, ceiling check, and increment as one
// conditional UPDATE. The calendar-date comparison runs inside Postgres in
// the billing timezone, and row locking serializes concurrent attempts for
// the same account, so the last slot can never be handed out twice.
func (r *userRepo) ConsumeDailyQuota(ctx context.Context, id uuid.UUID, limit int, now time.Time) (QuotaResult, error) {
	query := `
		UPDATE users SET
			requests_today = CASE
				WHEN (last_request_reset AT TIME ZONE $4)::date IS DISTINCT FROM ($2 AT TIME ZONE $4)::date
				THEN 1
				ELSE requests_today + 1
			END,
			last_request_reset = CASE
				WHEN (last_request_reset AT TIME ZONE $4)::date IS DISTINCT FROM ($2 AT TIME ZONE $4)::date
				THEN $2
				ELSE last_request_reset
			END
		WHERE id = $1
			AND ((last_request_reset AT TIME ZONE $4)::date IS DISTINCT FROM ($2 AT TIME ZONE $4)::date
				OR requests_today < $3)
		RETURNING requests_today`

	var used int
	err := r.pool.QueryRow(ctx, query, id, now, limit, civil.Timezone).Scan(&used)
	if err == nil {
		return QuotaResult{Admitted: true, Used: used, Limit: limit}, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return QuotaResult{}, fmt.Errorf("failed to consume quota: %w", err)
	}

	// Rejected: fetch the current counter for the error payload.
	var current int
	err = r.pool.QueryRow(ctx, `SELECT requests_today FROM users WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return QuotaResult{}, pgx.ErrNoRows
	}
	if err != nil {
		return QuotaResult{}, fmt.Errorf("failed to read quota counter: %w", err)
	}
	return QuotaResult{Admitted: false, Used: current, Limit: limit}, nil
}

// ResetDailyCounters bulk-zeroes daily counters. The guard predicate makes
// a second run within the same day a no-op.
func (r *userRepo) ResetDailyCounters(ctx context.Context, now time.Time) (int64, error) {
	query := `UPDATE users SET requests_today = 0, last_request_reset = $1, updated_at = NOW()
		WHERE requests_today > 0`
	result, err := r.pool.Exec(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

// Compile-time check to ensure userRepo implements UserRepository.
var _ UserRepository = (*userRepo)(nil)
