package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/NGeff/gld-rest-api/internal/middleware"
	"github.com/NGeff/gld-rest-api/internal/models"
	apierrors "github.com/NGeff/gld-rest-api/internal/pkg/errors"
	"github.com/NGeff/gld-rest-api/internal/pkg/response"
	"github.com/NGeff/gld-rest-api/internal/service"
)

// PaymentHandler handles plan purchase HTTP requests.
type PaymentHandler struct {
	paymentService service.PaymentService
	validate       *validator.Validate
}

// NewPaymentHandler creates a new payment handler.
func NewPaymentHandler(paymentService service.PaymentService) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
		validate:       validator.New(),
	}
}

// Routes returns a chi router with payment routes. All routes require
// session auth.
func (h *PaymentHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Create)
	r.Get("/", h.List)
	r.Get("/{id}/status", h.Status)
	r.Post("/{id}/cancel", h.Cancel)

	return r
}

// PaymentResponse is the public representation of a payment.
type PaymentResponse struct {
	ID           string     `json:"id"`
	Plan         string     `json:"plan"`
	Amount       float64    `json:"amount"`
	Status       string     `json:"status"`
	QRCode       *string    `json:"qr_code,omitempty"`
	QRCodeImage  *string    `json:"qr_code_image,omitempty"`
	PixCopyPaste *string    `json:"pix_copy_paste,omitempty"`
	ExpiresAt    time.Time  `json:"expires_at"`
	PaidAt       *time.Time `json:"paid_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

func toPaymentResponse(p *models.Payment) PaymentResponse {
	return PaymentResponse{
		ID:           p.ID.String(),
		Plan:         string(p.Plan),
		Amount:       p.Amount,
		Status:       string(p.Status),
		QRCode:       p.QRCode,
		QRCodeImage:  p.QRCodeImage,
		PixCopyPaste: p.PixCopyPaste,
		ExpiresAt:    p.ExpiresAt,
		PaidAt:       p.PaidAt,
		CreatedAt:    p.CreatedAt,
	}
}

// Create handles POST /payments
func (h *PaymentHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	var req struct {
		Plan string `json:"plan" validate:"required,oneof=basic pro enterprise"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierrors.ErrBadRequest.WithMessage("Invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Error(w, validationError(err))
		return
	}

	payment, err := h.paymentService.CreatePayment(r.Context(), user, models.Plan(req.Plan))
	if err != nil {
		response.Error(w, err)
		return
	}
	response.Created(w, toPaymentResponse(payment))
}

// List handles GET /payments
func (h *PaymentHandler) List(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	payments, err := h.paymentService.ListForUser(r.Context(), user.ID)
	if err != nil {
		response.Error(w, err)
		return
	}

	out := make([]PaymentResponse, 0, len(payments))
	for _, p := range payments {
		out = append(out, toPaymentResponse(p))
	}
	response.OK(w, out)
}

// Status handles GET /payments/{id}/status, polling the provider and
// activating the plan on first approval.
func (h *PaymentHandler) Status(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	paymentID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, apierrors.NewValidationError("id", "invalid UUID format"))
		return
	}

	payment, err := h.paymentService.Reconcile(r.Context(), user, paymentID)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, toPaymentResponse(payment))
}

// Cancel handles POST /payments/{id}/cancel
func (h *PaymentHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	paymentID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, apierrors.NewValidationError("id", "invalid UUID format"))
		return
	}

	payment, err := h.paymentService.Cancel(r.Context(), user, paymentID)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, toPaymentResponse(payment))
}
