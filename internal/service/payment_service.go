package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/NGeff/gld-rest-api/internal/config"
	"github.com/NGeff/gld-rest-api/internal/email"
	"github.com/NGeff/gld-rest-api/internal/mercadopago"
	"github.com/NGeff/gld-rest-api/internal/models"
	apierrors "github.com/NGeff/gld-rest-api/internal/pkg/errors"
	"github.com/NGeff/gld-rest-api/internal/pkg/metrics"
	"github.com/NGeff/gld-rest-api/internal/repository"
)

// PaymentProcessor defines the provider operations the payment service needs.
// Implemented by the Mercado Pago client; faked in tests.
type PaymentProcessor interface {
	CreatePayment(ctx context.Context, payment *mercadopago.PaymentRequest) (*mercadopago.PaymentResponse, error)
	GetPayment(ctx context.Context, providerID string) (*mercadopago.PaymentResponse, error)
	CancelPayment(ctx context.Context, providerID string) error
}

// PaymentService defines the interface for plan purchase operations.
type PaymentService interface {
	// CreatePayment issues a PIX charge for a plan upgrade, reusing a live
	// pending charge for the same (user, plan) pair instead of duplicating it.
	CreatePayment(ctx context.Context, user *models.User, plan models.Plan) (*models.Payment, error)

	// Reconcile polls the provider for a payment's current status and, on
	// first approval, activates the purchased plan.
	Reconcile(ctx context.Context, user *models.User, paymentID uuid.UUID) (*models.Payment, error)

	Cancel(ctx context.Context, user *models.User, paymentID uuid.UUID) (*models.Payment, error)
	ListForUser(ctx context.Context, userID uuid.UUID) ([]*models.Payment, error)
}

type paymentService struct {
	paymentRepo repository.PaymentRepository
	userRepo    repository.UserRepository
	processor   PaymentProcessor
	mailer      email.Service
	cfg         *config.PaymentConfig
	logger      *slog.Logger

	now func() time.Time
}

// NewPaymentService creates a new payment service.
func NewPaymentService(
	paymentRepo repository.PaymentRepository,
	userRepo repository.UserRepository,
	processor PaymentProcessor,
	mailer email.Service,
	cfg *config.PaymentConfig,
	logger *slog.Logger,
) PaymentService {
	return &paymentService{
		paymentRepo: paymentRepo,
		userRepo:    userRepo,
		processor:   processor,
		mailer:      mailer,
		cfg:         cfg,
		logger:      logger,
		now:         time.Now,
	}
}

func (s *paymentService) CreatePayment(ctx context.Context, user *models.User, plan models.Plan) (*models.Payment, error) {
	price, ok := models.PriceFor(plan)
	if !ok {
		return nil, apierrors.NewValidationError("plan", "must be basic, pro or enterprise")
	}
	if user.Plan == plan && user.PlanExpiresAt != nil && user.PlanExpiresAt.After(s.now()) {
		return nil, apierrors.NewConflictError("This plan is already active on your account")
	}

	now := s.now()
	existing, err := s.paymentRepo.FindLivePending(ctx, user.ID, plan, now)
	if err != nil {
		return nil, fmt.Errorf("failed to check pending payments: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	expiresAt := now.Add(s.cfg.ExpiryWindow)
	resp, err := s.processor.CreatePayment(ctx, &mercadopago.PaymentRequest{
		TransactionAmount: price,
		Description:       fmt.Sprintf("GLD API - %s plan (30 days)", plan),
		DateOfExpiration:  mercadopago.FormatExpiration(expiresAt),
		Payer: mercadopago.Payer{
			Email:     user.Email,
			FirstName: user.Name,
		},
	})
	if err != nil {
		s.logger.Error("payment creation failed", "user_id", user.ID, "plan", plan, "error", err)
		return nil, apierrors.ErrServiceUnavailable.WithMessage("Payment provider is unavailable. Please try again.")
	}

	providerID := fmt.Sprintf("%d", resp.ID)
	qrText := resp.PointOfInteraction.TransactionData.QRCode
	qrImage := resp.PointOfInteraction.TransactionData.QRCodeBase64
	if qrImage == "" && qrText != "" {
		qrImage = renderQRCode(qrText)
	}

	payment := &models.Payment{
		ID:         uuid.New(),
		UserID:     user.ID,
		Plan:       plan,
		Amount:     price,
		Status:     models.PaymentPending,
		ProviderID: &providerID,
		ExpiresAt:  expiresAt,
	}
	if qrText != "" {
		payment.QRCode = &qrText
		payment.PixCopyPaste = &qrText
	}
	if qrImage != "" {
		payment.QRCodeImage = &qrImage
	}

	if err := s.paymentRepo.Create(ctx, payment); err != nil {
		return nil, fmt.Errorf("failed to store payment: %w", err)
	}

	s.logger.Info("payment created",
		"payment_id", payment.ID, "user_id", user.ID, "plan", plan, "amount", price)
	return payment, nil
}

func (s *paymentService) Reconcile(ctx context.Context, user *models.User, paymentID uuid.UUID) (*models.Payment, error) {
	payment, err := s.paymentRepo.GetForUser(ctx, paymentID, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load payment: %w", err)
	}
	if payment == nil {
		return nil, apierrors.NewNotFoundError("Payment")
	}

	// Terminal states never change again; re-polling an approved payment
	// must not re-extend the plan.
	if payment.Status != models.PaymentPending {
		return payment, nil
	}
	if payment.ProviderID == nil {
		return payment, nil
	}

	resp, err := s.processor.GetPayment(ctx, *payment.ProviderID)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return nil, apierrors.ErrServiceUnavailable.WithMessage("Payment status is temporarily unknown. Please try again.")
		}
		s.logger.Error("payment status poll failed", "payment_id", payment.ID, "error", err)
		return nil, apierrors.ErrServiceUnavailable.WithMessage("Payment provider is unavailable. Please try again.")
	}

	switch resp.Status {
	case "approved":
		return payment, s.approve(ctx, user, payment)
	case "rejected":
		if err := s.paymentRepo.UpdateStatus(ctx, payment.ID, models.PaymentRejected); err != nil {
			return nil, fmt.Errorf("failed to update payment: %w", err)
		}
		payment.Status = models.PaymentRejected
	case "cancelled":
		if err := s.paymentRepo.UpdateStatus(ctx, payment.ID, models.PaymentCancelled); err != nil {
			return nil, fmt.Errorf("failed to update payment: %w", err)
		}
		payment.Status = models.PaymentCancelled
	}
	return payment, nil
}

// approve activates the purchased plan. MarkApproved's pending-only guard
// keeps a racing second poll from extending the plan twice.
func (s *paymentService) approve(ctx context.Context, user *models.User, payment *models.Payment) error {
	now := s.now()
	if err := s.paymentRepo.MarkApproved(ctx, payment.ID, now); err != nil {
		return fmt.Errorf("failed to mark payment approved: %w", err)
	}

	expiresAt := now.Add(s.cfg.PlanDuration)
	if err := s.userRepo.UpdatePlan(ctx, user.ID, payment.Plan, &expiresAt); err != nil {
		return fmt.Errorf("failed to activate plan: %w", err)
	}

	payment.Status = models.PaymentApproved
	payment.PaidAt = &now
	user.Plan = payment.Plan
	user.PlanExpiresAt = &expiresAt

	metrics.PaymentsApproved.WithLabelValues(string(payment.Plan)).Inc()
	s.logger.Info("payment approved",
		"payment_id", payment.ID, "user_id", user.ID, "plan", payment.Plan)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := s.mailer.SendPaymentConfirmation(ctx, user.Email, user.Name, payment.Plan); err != nil {
			s.logger.Error("failed to send payment confirmation",
				"user_id", user.ID, "error", err)
		}
	}()

	return nil
}

func (s *paymentService) Cancel(ctx context.Context, user *models.User, paymentID uuid.UUID) (*models.Payment, error) {
	payment, err := s.paymentRepo.GetForUser(ctx, paymentID, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load payment: %w", err)
	}
	if payment == nil {
		return nil, apierrors.NewNotFoundError("Payment")
	}
	if payment.Status != models.PaymentPending {
		return nil, apierrors.ErrBadRequest.WithMessage("Only pending payments can be cancelled")
	}

	// Best effort at the provider; the local record is authoritative.
	if payment.ProviderID != nil {
		if err := s.processor.CancelPayment(ctx, *payment.ProviderID); err != nil {
			s.logger.Warn("provider cancel failed", "payment_id", payment.ID, "error", err)
		}
	}

	if err := s.paymentRepo.UpdateStatus(ctx, payment.ID, models.PaymentCancelled); err != nil {
		return nil, fmt.Errorf("failed to cancel payment: %w", err)
	}
	payment.Status = models.PaymentCancelled
	return payment, nil
}

func (s *paymentService) ListForUser(ctx context.Context, userID uuid.UUID) ([]*models.Payment, error) {
	payments, err := s.paymentRepo.ListByUser(ctx, userID, 20)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	return payments, nil
}

// renderQRCode produces a base64 PNG for wallets that cannot consume the
// copy-paste payload. Returns empty on encode failure.
func renderQRCode(text string) string {
	png, err := qrcode.Encode(text, qrcode.Medium, 256)
	if err != nil {
		return ""
	}
	return base64.StdEncoding.EncodeToString(png)
}
