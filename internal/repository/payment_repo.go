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

// PaymentRepository defines the interface for payment data operations.
type PaymentRepository interface {
	Create(ctx context.Context, payment *models.Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	GetForUser(ctx context.Context, id, userID uuid.UUID) (*models.Payment, error)

	// FindLivePending returns the newest pending, unexpired payment for the
	// (user, plan) pair, or nil. Reused instead of creating a duplicate charge.
	FindLivePending(ctx context.Context, userID uuid.UUID, plan models.Plan, now time.Time) (*models.Payment, error)

	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Payment, error)
	ListAll(ctx context.Context, page, limit int) ([]*models.Payment, int64, error)
	MarkApproved(ctx context.Context, id uuid.UUID, paidAt time.Time) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.PaymentStatus) error
}

type paymentRepo struct {
	pool *pgxpool.Pool
}

// NewPaymentRepository creates a new payment repository.
func NewPaymentRepository(pool *pgxpool.Pool) PaymentRepository {
	return &paymentRepo{pool: pool}
}

const paymentColumns = `id, user_id, plan, amount, status, provider_id, qr_code,
	qr_code_image, pix_copy_paste, expires_at, paid_at, created_at`

func scanPayment(row pgx.Row) (*models.Payment, error) {
	var p models.Payment
	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.Plan,
		&p.Amount,
		&p.Status,
		&p.ProviderID,
		&p.QRCode,
		&p.QRCodeImage,
		&p.PixCopyPaste,
		&p.ExpiresAt,
		&p.PaidAt,
		&p.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Create inserts a new payment into the database.
func (r *paymentRepo) Create(ctx context.Context, payment *models.Payment) error {
	query := `
		INSERT INTO payments (id, user_id, plan, amount, status, provider_id, qr_code, qr_code_image, pix_copy_paste, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at`

	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	if payment.Status == "" {
		payment.Status = models.PaymentPending
	}

	return r.pool.QueryRow(ctx, query,
		payment.ID,
		payment.UserID,
		payment.Plan,
		payment.Amount,
		payment.Status,
		payment.ProviderID,
		payment.QRCode,
		payment.QRCodeImage,
		payment.PixCopyPaste,
		payment.ExpiresAt,
	).Scan(&payment.CreatedAt)
}

// GetByID retrieves a payment by its UUID.
func (r *paymentRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	return scanPayment(r.pool.QueryRow(ctx, query, id))
}

// GetForUser retrieves a payment scoped to its owner.
func (r *paymentRepo) GetForUser(ctx context.Context, id, userID uuid.UUID) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1 AND user_id = $2`
	return scanPayment(r.pool.QueryRow(ctx, query, id, userID))
}

// FindLivePending returns the newest reusable payment for a (user, plan) pair.
func (r *paymentRepo) FindLivePending(ctx context.Context, userID uuid.UUID, plan models.Plan, now time.Time) (*models.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments
		WHERE user_id = $1 AND plan = $2 AND status = 'pending' AND expires_at > $3
		ORDER BY created_at DESC
		LIMIT 1`
	return scanPayment(r.pool.QueryRow(ctx, query, userID, plan, now))
}

// ListByUser retrieves the newest payments for a user.
func (r *paymentRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*models.Payment, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}

	query := `SELECT ` + paymentColumns + ` FROM payments
		WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []*models.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// ListAll retrieves payments across all users with pagination, newest first.
func (r *paymentRepo) ListAll(ctx context.Context, page, limit int) ([]*models.Payment, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM payments`).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + paymentColumns + ` FROM payments
		ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	rows, err := r.pool.Query(ctx, query, limit, (page-1)*limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var payments []*models.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, 0, err
		}
		payments = append(payments, p)
	}
	return payments, total, rows.Err()
}

// MarkApproved transitions a pending payment to approved and stamps paid_at.
// The status guard makes the transition idempotent under concurrent polls.
func (r *paymentRepo) MarkApproved(ctx context.Context, id uuid.UUID, paidAt time.Time) error {
	query := `UPDATE payments SET status = 'approved', paid_at = $2 WHERE id = $1 AND status = 'pending'`
	_, err := r.pool.Exec(ctx, query, id, paidAt)
	return err
}

// UpdateStatus sets a payment's status.
func (r *paymentRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status models.PaymentStatus) error {
	result, err := r.pool.Exec(ctx, `UPDATE payments SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// Compile-time check to ensure paymentRepo implements PaymentRepository.
var _ PaymentRepository = (*paymentRepo)(nil)
