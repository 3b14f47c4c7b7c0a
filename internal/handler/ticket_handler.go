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
	"github.com/NGeff/gld-rest-api/internal/repository"
	"github.com/NGeff/gld-rest-api/internal/service"
)

// TicketHandler handles support ticket HTTP requests.
type TicketHandler struct {
	ticketService service.TicketService
	validate      *validator.Validate
}

// NewTicketHandler creates a new ticket handler.
func NewTicketHandler(ticketService service.TicketService) *TicketHandler {
	return &TicketHandler{
		ticketService: ticketService,
		validate:      validator.New(),
	}
}

// Routes returns a chi router with the user-facing ticket routes. All routes
// require session auth.
func (h *TicketHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/messages", h.AddMessage)

	return r
}

// AdminRoutes returns a chi router with the staff-facing ticket routes.
func (h *TicketHandler) AdminRoutes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.AdminList)
	r.Get("/{id}", h.AdminGet)
	r.Post("/{id}/reply", h.Reply)
	r.Patch("/{id}/status", h.UpdateStatus)

	return r
}

// TicketResponse is the API representation of a ticket thread.
type TicketResponse struct {
	ID        string                  `json:"id"`
	UserID    string                  `json:"user_id"`
	Subject   string                  `json:"subject"`
	Status    models.TicketStatus     `json:"status"`
	Messages  []TicketMessageResponse `json:"messages,omitempty"`
	CreatedAt time.Time               `json:"created_at"`
	UpdatedAt time.Time               `json:"updated_at"`
}

// TicketMessageResponse is a single thread entry.
type TicketMessageResponse struct {
	Sender    models.TicketSender `json:"sender"`
	Content   string              `json:"content"`
	CreatedAt time.Time           `json:"created_at"`
}

func toTicketResponse(t *models.Ticket) TicketResponse {
	out := TicketResponse{
		ID:        t.ID.String(),
		UserID:    t.UserID.String(),
		Subject:   t.Subject,
		Status:    t.Status,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
	for _, m := range t.Messages {
		out.Messages = append(out.Messages, TicketMessageResponse{
			Sender:    m.Sender,
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
		})
	}
	return out
}

// Create handles POST /tickets
func (h *TicketHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	var req service.CreateTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierrors.ErrBadRequest.WithMessage("Invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Error(w, validationError(err))
		return
	}

	ticket, err := h.ticketService.Create(r.Context(), user, req)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.Created(w, toTicketResponse(ticket))
}

// List handles GET /tickets
func (h *TicketHandler) List(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	tickets, err := h.ticketService.ListForUser(r.Context(), user.ID)
	if err != nil {
		response.Error(w, err)
		return
	}

	out := make([]TicketResponse, 0, len(tickets))
	for _, t := range tickets {
		out = append(out, toTicketResponse(t))
	}
	response.OK(w, out)
}

// Get handles GET /tickets/{id}
func (h *TicketHandler) Get(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	ticketID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, apierrors.NewValidationError("id", "invalid UUID format"))
		return
	}

	ticket, err := h.ticketService.GetForUser(r.Context(), user.ID, ticketID)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, toTicketResponse(ticket))
}

// AddMessage handles POST /tickets/{id}/messages
func (h *TicketHandler) AddMessage(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	ticketID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, apierrors.NewValidationError("id", "invalid UUID format"))
		return
	}

	var req struct {
		Message string `json:"message" validate:"required,min=1,max=5000"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierrors.ErrBadRequest.WithMessage("Invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Error(w, validationError(err))
		return
	}

	ticket, err := h.ticketService.AddMessage(r.Context(), user.ID, ticketID, req.Message)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, toTicketResponse(ticket))
}

// AdminList handles GET /admin/tickets
func (h *TicketHandler) AdminList(w http.ResponseWriter, r *http.Request) {
	q := repository.ListTicketsQuery{
		Status: models.TicketStatus(r.URL.Query().Get("status")),
		Page:   queryInt(r, "page", 1),
		Limit:  queryInt(r, "limit", 20),
	}

	tickets, total, err := h.ticketService.ListAll(r.Context(), q)
	if err != nil {
		response.Error(w, err)
		return
	}

	out := make([]TicketResponse, 0, len(tickets))
	for _, t := range tickets {
		out = append(out, toTicketResponse(t))
	}

	totalPages := int((total + int64(q.Limit) - 1) / int64(q.Limit))
	response.JSONWithMeta(w, http.StatusOK, out, &response.Meta{
		Page:       q.Page,
		PerPage:    q.Limit,
		Total:      total,
		TotalPages: totalPages,
	})
}

// AdminGet handles GET /admin/tickets/{id}
func (h *TicketHandler) AdminGet(w http.ResponseWriter, r *http.Request) {
	ticketID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, apierrors.NewValidationError("id", "invalid UUID format"))
		return
	}

	ticket, err := h.ticketService.Get(r.Context(), ticketID)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, toTicketResponse(ticket))
}

// Reply handles POST /admin/tickets/{id}/reply
func (h *TicketHandler) Reply(w http.ResponseWriter, r *http.Request) {
	ticketID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, apierrors.NewValidationError("id", "invalid UUID format"))
		return
	}

	var req struct {
		Message string `json:"message" validate:"required,min=1,max=5000"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierrors.ErrBadRequest.WithMessage("Invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Error(w, validationError(err))
		return
	}

	ticket, err := h.ticketService.Reply(r.Context(), ticketID, req.Message)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, toTicketResponse(ticket))
}

// UpdateStatus handles PATCH /admin/tickets/{id}/status
func (h *TicketHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ticketID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, apierrors.NewValidationError("id", "invalid UUID format"))
		return
	}

	var req struct {
		Status string `json:"status" validate:"required,oneof=open in_progress closed"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierrors.ErrBadRequest.WithMessage("Invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Error(w, validationError(err))
		return
	}

	ticket, err := h.ticketService.SetStatus(r.Context(), ticketID, models.TicketStatus(req.Status))
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, toTicketResponse(ticket))
}
