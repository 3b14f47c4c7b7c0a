package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/NGeff/gld-rest-api/internal/email"
	"github.com/NGeff/gld-rest-api/internal/models"
	apierrors "github.com/NGeff/gld-rest-api/internal/pkg/errors"
	"github.com/NGeff/gld-rest-api/internal/repository"
)

// TicketService defines the interface for support ticket operations. The
// admin-side operations notify the ticket owner by email.
type TicketService interface {
	Create(ctx context.Context, user *models.User, req CreateTicketRequest) (*models.Ticket, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]*models.Ticket, error)
	GetForUser(ctx context.Context, userID, ticketID uuid.UUID) (*models.Ticket, error)

	// AddMessage appends a user message to an open or in-progress thread.
	AddMessage(ctx context.Context, userID, ticketID uuid.UUID, content string) (*models.Ticket, error)

	ListAll(ctx context.Context, q repository.ListTicketsQuery) ([]*models.Ticket, int64, error)
	Get(ctx context.Context, ticketID uuid.UUID) (*models.Ticket, error)

	// Reply appends a staff message, moves an open ticket to in_progress,
	// and notifies the owner with a preview of the reply.
	Reply(ctx context.Context, ticketID uuid.UUID, content string) (*models.Ticket, error)

	// SetStatus transitions the ticket. Closing a not-yet-closed ticket
	// notifies the owner; re-closing does not.
	SetStatus(ctx context.Context, ticketID uuid.UUID, status models.TicketStatus) (*models.Ticket, error)
}

// CreateTicketRequest opens a new ticket with its first message.
type CreateTicketRequest struct {
	Subject string `json:"subject" validate:"required,min=1,max=200"`
	Message string `json:"message" validate:"required,min=1,max=5000"`
}

type ticketService struct {
	ticketRepo repository.TicketRepository
	userRepo   repository.UserRepository
	mailer     email.Service
	logger     *slog.Logger
}

// NewTicketService creates a new ticket service.
func NewTicketService(
	ticketRepo repository.TicketRepository,
	userRepo repository.UserRepository,
	mailer email.Service,
	logger *slog.Logger,
) TicketService {
	return &ticketService{
		ticketRepo: ticketRepo,
		userRepo:   userRepo,
		mailer:     mailer,
		logger:     logger,
	}
}

func (s *ticketService) Create(ctx context.Context, user *models.User, req CreateTicketRequest) (*models.Ticket, error) {
	ticket := &models.Ticket{
		UserID:  user.ID,
		Subject: req.Subject,
		Status:  models.TicketOpen,
		Messages: []models.TicketMessage{
			{Sender: models.TicketSenderUser, Content: req.Message},
		},
	}

	if err := s.ticketRepo.Create(ctx, ticket); err != nil {
		return nil, fmt.Errorf("failed to create ticket: %w", err)
	}

	s.logger.Info("ticket opened", "ticket_id", ticket.ID, "user_id", user.ID)
	return ticket, nil
}

func (s *ticketService) ListForUser(ctx context.Context, userID uuid.UUID) ([]*models.Ticket, error) {
	tickets, err := s.ticketRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	return tickets, nil
}

func (s *ticketService) GetForUser(ctx context.Context, userID, ticketID uuid.UUID) (*models.Ticket, error) {
	ticket, err := s.ticketRepo.GetForUser(ctx, ticketID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load ticket: %w", err)
	}
	if ticket == nil {
		return nil, apierrors.NewNotFoundError("Ticket")
	}
	return ticket, nil
}

func (s *ticketService) AddMessage(ctx context.Context, userID, ticketID uuid.UUID, content string) (*models.Ticket, error) {
	ticket, err := s.ticketRepo.GetForUser(ctx, ticketID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load ticket: %w", err)
	}
	if ticket == nil {
		return nil, apierrors.NewNotFoundError("Ticket")
	}
	if ticket.Status == models.TicketClosed {
		return nil, apierrors.ErrBadRequest.WithMessage("Cannot reply to a closed ticket")
	}

	msg := models.TicketMessage{
		TicketID: ticket.ID,
		Sender:   models.TicketSenderUser,
		Content:  content,
	}
	if err := s.ticketRepo.AddMessage(ctx, &msg); err != nil {
		return nil, fmt.Errorf("failed to add message: %w", err)
	}

	ticket.Messages = append(ticket.Messages, msg)
	return ticket, nil
}

func (s *ticketService) ListAll(ctx context.Context, q repository.ListTicketsQuery) ([]*models.Ticket, int64, error) {
	if q.Status != "" && !q.Status.IsValid() {
		return nil, 0, apierrors.NewValidationError("status", "must be open, in_progress or closed")
	}
	return s.ticketRepo.ListAll(ctx, q)
}

func (s *ticketService) Get(ctx context.Context, ticketID uuid.UUID) (*models.Ticket, error) {
	ticket, err := s.ticketRepo.GetByID(ctx, ticketID)
	if err != nil {
		return nil, fmt.Errorf("failed to load ticket: %w", err)
	}
	if ticket == nil {
		return nil, apierrors.NewNotFoundError("Ticket")
	}
	return ticket, nil
}

func (s *ticketService) Reply(ctx context.Context, ticketID uuid.UUID, content string) (*models.Ticket, error) {
	ticket, err := s.ticketRepo.GetByID(ctx, ticketID)
	if err != nil {
		return nil, fmt.Errorf("failed to load ticket: %w", err)
	}
	if ticket == nil {
		return nil, apierrors.NewNotFoundError("Ticket")
	}

	msg := models.TicketMessage{
		TicketID: ticket.ID,
		Sender:   models.TicketSenderAdmin,
		Content:  content,
	}
	if err := s.ticketRepo.AddMessage(ctx, &msg); err != nil {
		return nil, fmt.Errorf("failed to add message: %w", err)
	}
	ticket.Messages = append(ticket.Messages, msg)

	if ticket.Status == models.TicketOpen {
		if err := s.ticketRepo.UpdateStatus(ctx, ticket.ID, models.TicketInProgress); err != nil {
			return nil, fmt.Errorf("failed to update ticket: %w", err)
		}
		ticket.Status = models.TicketInProgress
	}

	s.notifyOwner(ctx, ticket, func(ctx context.Context, owner *models.User) error {
		return s.mailer.SendTicketReply(ctx, owner.Email, owner.Name,
			ticket.Subject, ticket.ID.String(), messagePreview(content))
	})

	return ticket, nil
}

func (s *ticketService) SetStatus(ctx context.Context, ticketID uuid.UUID, status models.TicketStatus) (*models.Ticket, error) {
	if !status.IsValid() {
		return nil, apierrors.NewValidationError("status", "must be open, in_progress or closed")
	}

	ticket, err := s.ticketRepo.GetByID(ctx, ticketID)
	if err != nil {
		return nil, fmt.Errorf("failed to load ticket: %w", err)
	}
	if ticket == nil {
		return nil, apierrors.NewNotFoundError("Ticket")
	}

	wasClosed := ticket.Status == models.TicketClosed
	if err := s.ticketRepo.UpdateStatus(ctx, ticket.ID, status); err != nil {
		return nil, fmt.Errorf("failed to update ticket: %w", err)
	}
	ticket.Status = status

	if status == models.TicketClosed && !wasClosed {
		s.notifyOwner(ctx, ticket, func(ctx context.Context, owner *models.User) error {
			return s.mailer.SendTicketClosed(ctx, owner.Email, owner.Name,
				ticket.Subject, ticket.ID.String())
		})
	}

	return ticket, nil
}

// notifyOwner resolves the ticket owner and sends on a detached goroutine so
// support actions never block on the mail provider.
func (s *ticketService) notifyOwner(ctx context.Context, ticket *models.Ticket, send func(ctx context.Context, owner *models.User) error) {
	owner, err := s.userRepo.GetByID(ctx, ticket.UserID)
	if err != nil || owner == nil {
		s.logger.Warn("ticket owner not found for notification",
			"ticket_id", ticket.ID, "user_id", ticket.UserID, "error", err)
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := send(ctx, owner); err != nil {
			s.logger.Error("failed to send ticket notification",
				"ticket_id", ticket.ID, "user_id", owner.ID, "error", err)
		}
	}()
}

// messagePreview truncates long replies for the notification email.
func messagePreview(content string) string {
	runes := []rune(content)
	if len(runes) <= 100 {
		return content
	}
	return string(runes[:100]) + "..."
}
