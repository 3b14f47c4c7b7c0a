package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/NGeff/gld-rest-api/internal/models"
)

// APIKeyRepository defines the interface for API key data operations.
type APIKeyRepository interface {
	Create(ctx context.Context, key *models.APIKey) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.APIKey, error)
	GetActiveByHash(ctx context.Context, keyHash string) (*models.APIKey, error)
	ExistsByHash(ctx context.Context, keyHash string) (bool, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.APIKey, error)
	CountByUser(ctx context.Context, userID uuid.UUID) (int, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
	Delete(ctx context.Context, id uuid.UUID) error

	// RecordUsage bumps the lifetime counter and last-used timestamp after
	// an admitted call.
	RecordUsage(ctx context.Context, id uuid.UUID, at time.Time) error
}

type apiKeyRepo struct {
	pool *pgxpool.Pool
}

// NewAPIKeyRepository creates a new API key repository.
func NewAPIKeyRepository(pool *pgxpool.Pool) APIKeyRepository {
	return &apiKeyRepo{pool: pool}
}

const apiKeyColumns = `id, user_id, key, key_hash, name, is_active, request_count, last_used, created_at`

func scanAPIKey(row pgx.Row) (*models.APIKey, error) {
	var k models.APIKey
	err := row.Scan(
		&k.ID,
		&k.UserID,
		&k.Key,
		&k.KeyHash,
		&k.Name,
		&k.IsActive,
		&k.RequestCount,
		&k.LastUsed,
		&k.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &k, nil
}

// Create inserts a new API key into the database.
func (r *apiKeyRepo) Create(ctx context.Context, key *models.APIKey) error {
	query := `
		INSERT INTO api_keys (id, user_id, key, key_hash, name)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING is_active, request_count, created_at`

	if key.ID == uuid.Nil {
		key.ID = uuid.New()
	}

	return r.pool.QueryRow(ctx, query,
		key.ID,
		key.UserID,
		key.Key,
		key.KeyHash,
		key.Name,
	).Scan(&key.IsActive, &key.RequestCount, &key.CreatedAt)
}

// GetByID retrieves an API key by its UUID.
func (r *apiKeyRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.APIKey, error) {
	query := `SELECT ` + apiKeyColumns + ` FROM api_keys WHERE id = $1`
	return scanAPIKey(r.pool.QueryRow(ctx, query, id))
}

// GetActiveByHash retrieves an active API key by its secret digest.
func (r *apiKeyRepo) GetActiveByHash(ctx context.Context, keyHash string) (*models.APIKey, error) {
	query := `SELECT ` + apiKeyColumns + ` FROM api_keys WHERE key_hash = $1 AND is_active = TRUE`
	return scanAPIKey(r.pool.QueryRow(ctx, query, keyHash))
}

// ExistsByHash reports whether any key, active or not, already uses a digest.
func (r *apiKeyRepo) ExistsByHash(ctx context.Context, keyHash string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM api_keys WHERE key_hash = $1)`, keyHash).Scan(&exists)
	return exists, err
}

// ListByUser retrieves all keys for a user, newest first.
func (r *apiKeyRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.APIKey, error) {
	query := `SELECT ` + apiKeyColumns + ` FROM api_keys WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		k, err := scanAPIKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// CountByUser returns the number of keys a user holds.
func (r *apiKeyRepo) CountByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM api_keys WHERE user_id = $1`, userID).Scan(&count)
	return count, err
}

// SetActive toggles a key's active flag.
func (r *apiKeyRepo) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	result, err := r.pool.Exec(ctx, `UPDATE api_keys SET is_active = $2 WHERE id = $1`, id, active)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// Delete permanently removes a key.
func (r *apiKeyRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM api_keys WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// RecordUsage bumps the lifetime counter and last-used timestamp.
func (r *apiKeyRepo) RecordUsage(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `UPDATE api_keys SET request_count = request_count + 1, last_used = $2 WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, id, at)
	return err
}

// Compile-time check to ensure apiKeyRepo implements APIKeyRepository.
var _ APIKeyRepository = (*apiKeyRepo)(nil)
