package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/NGeff/gld-rest-api/internal/models"
)

// TicketRepository defines the interface for support ticket data operations.
type TicketRepository interface {
	// Create inserts a ticket together with its opening message in one
	// transaction. The ticket must carry at least one message.
	Create(ctx context.Context, ticket *models.Ticket) error

	GetByID(ctx context.Context, id uuid.UUID) (*models.Ticket, error)
	GetForUser(ctx context.Context, id, userID uuid.UUID) (*models.Ticket, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Ticket, error)
	ListAll(ctx context.Context, q ListTicketsQuery) ([]*models.Ticket, int64, error)

	// AddMessage appends a message to the thread and bumps the ticket's
	// updated_at.
	AddMessage(ctx context.Context, msg *models.TicketMessage) error

	UpdateStatus(ctx context.Context, id uuid.UUID, status models.TicketStatus) error
}

// ListTicketsQuery filters the admin ticket listing.
type ListTicketsQuery struct {
	Status models.TicketStatus // empty means all
	Page   int
	Limit  int
}

type ticketRepo struct {
	pool *pgxpool.Pool
}

// NewTicketRepository creates a new ticket repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepo{pool: pool}
}

const ticketColumns = `id, user_id, subject, status, created_at, updated_at`

func scanTicket(row pgx.Row) (*models.Ticket, error) {
	var t models.Ticket
	err := row.Scan(
		&t.ID,
		&t.UserID,
		&t.Subject,
		&t.Status,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Create inserts the ticket and its opening message atomically.
func (r *ticketRepo) Create(ctx context.Context, ticket *models.Ticket) error {
	if ticket.ID == uuid.Nil {
		ticket.ID = uuid.New()
	}
	if ticket.Status == "" {
		ticket.Status = models.TicketOpen
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO tickets (id, user_id, subject, status)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`,
		ticket.ID, ticket.UserID, ticket.Subject, ticket.Status,
	).Scan(&ticket.CreatedAt, &ticket.UpdatedAt)
	if err != nil {
		return err
	}

	for i := range ticket.Messages {
		msg := &ticket.Messages[i]
		if msg.ID == uuid.Nil {
			msg.ID = uuid.New()
		}
		msg.TicketID = ticket.ID
		err = tx.QueryRow(ctx, `
			INSERT INTO ticket_messages (id, ticket_id, sender, content)
			VALUES ($1, $2, $3, $4)
			RETURNING created_at`,
			msg.ID, msg.TicketID, msg.Sender, msg.Content,
		).Scan(&msg.CreatedAt)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// GetByID retrieves a ticket with its full message thread.
func (r *ticketRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id = $1`
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, id))
	if err != nil || ticket == nil {
		return ticket, err
	}
	return ticket, r.loadMessages(ctx, ticket)
}

// GetForUser retrieves a ticket scoped to its owner, with the full thread.
func (r *ticketRepo) GetForUser(ctx context.Context, id, userID uuid.UUID) (*models.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id = $1 AND user_id = $2`
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, id, userID))
	if err != nil || ticket == nil {
		return ticket, err
	}
	return ticket, r.loadMessages(ctx, ticket)
}

// ListByUser retrieves a user's tickets newest first, without threads.
func (r *ticketRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]*models.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets
		WHERE user_id = $1 ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tickets []*models.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}

// ListAll retrieves tickets across all users, most recently active first.
func (r *ticketRepo) ListAll(ctx context.Context, q ListTicketsQuery) ([]*models.Ticket, int64, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 || q.Limit > 100 {
		q.Limit = 20
	}

	where := `WHERE ($1 = '' OR status = $1)`

	var total int64
	countQuery := `SELECT COUNT(*) FROM tickets ` + where
	if err := r.pool.QueryRow(ctx, countQuery, string(q.Status)).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + ticketColumns + ` FROM tickets ` + where + `
		ORDER BY updated_at DESC LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, string(q.Status), q.Limit, (q.Page-1)*q.Limit)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var tickets []*models.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, 0, err
		}
		tickets = append(tickets, t)
	}
	return tickets, total, rows.Err()
}

// AddMessage appends to the thread and marks the ticket as recently active.
func (r *ticketRepo) AddMessage(ctx context.Context, msg *models.TicketMessage) error {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO ticket_messages (id, ticket_id, sender, content)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		msg.ID, msg.TicketID, msg.Sender, msg.Content,
	).Scan(&msg.CreatedAt)
	if err != nil {
		return err
	}

	result, err := tx.Exec(ctx, `UPDATE tickets SET updated_at = NOW() WHERE id = $1`, msg.TicketID)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}

	return tx.Commit(ctx)
}

// UpdateStatus sets a ticket's status.
func (r *ticketRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status models.TicketStatus) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE tickets SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepo) loadMessages(ctx context.Context, ticket *models.Ticket) error {
	rows, err := r.pool.Query(ctx, `
		SELECT id, ticket_id, sender, content, created_at
		FROM ticket_messages WHERE ticket_id = $1 ORDER BY created_at`, ticket.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var m models.TicketMessage
		if err := rows.Scan(&m.ID, &m.TicketID, &m.Sender, &m.Content, &m.CreatedAt); err != nil {
			return err
		}
		ticket.Messages = append(ticket.Messages, m)
	}
	return rows.Err()
}

// Compile-time check to ensure ticketRepo implements TicketRepository.
var _ TicketRepository = (*ticketRepo)(nil)
