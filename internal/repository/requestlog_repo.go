package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/NGeff/gld-rest-api/internal/models"
	"github.com/NGeff/gld-rest-api/internal/pkg/ulid"
)

// RequestLogRepository defines the interface for request audit records.
// Entries are append-only; nothing updates or deletes them.
type RequestLogRepository interface {
	Create(ctx context.Context, entry *models.RequestLog) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.RequestLog, error)
	CountSince(ctx context.Context, since time.Time) (int64, error)
}

type requestLogRepo struct {
	pool *pgxpool.Pool
}

// NewRequestLogRepository creates a new request log repository.
func NewRequestLogRepository(pool *pgxpool.Pool) RequestLogRepository {
	return &requestLogRepo{pool: pool}
}

// Create appends a request log entry.
func (r *requestLogRepo) Create(ctx context.Context, entry *models.RequestLog) error {
	if entry.ID == "" {
		entry.ID = ulid.New()
	}

	query := `
		INSERT INTO request_logs (id, user_id, api_key_id, endpoint, method, status_code, response_time_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`

	return r.pool.QueryRow(ctx, query,
		entry.ID,
		entry.UserID,
		entry.APIKeyID,
		entry.Endpoint,
		entry.Method,
		entry.StatusCode,
		entry.ResponseTimeMs,
	).Scan(&entry.CreatedAt)
}

// ListByUser retrieves the newest entries for a user.
func (r *requestLogRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.RequestLog, error) {
	if limit < 1 || limit > 500 {
		limit = 50
	}

	query := `
		SELECT id, user_id, api_key_id, endpoint, method, status_code, response_time_ms, created_at
		FROM request_logs
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*models.RequestLog
	for rows.Next() {
		var e models.RequestLog
		if err := rows.Scan(
			&e.ID,
			&e.UserID,
			&e.APIKeyID,
			&e.Endpoint,
			&e.Method,
			&e.StatusCode,
			&e.ResponseTimeMs,
			&e.CreatedAt,
		); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// CountSince returns the number of metered calls recorded since an instant.
func (r *requestLogRepo) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM request_logs WHERE created_at >= $1`, since).Scan(&count)
	return count, err
}

// Compile-time check to ensure requestLogRepo implements RequestLogRepository.
var _ RequestLogRepository = (*requestLogRepo)(nil)
