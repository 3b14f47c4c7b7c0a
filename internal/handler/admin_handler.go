package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/NGeff/gld-rest-api/internal/models"
	apierrors "github.com/NGeff/gld-rest-api/internal/pkg/errors"
	"github.com/NGeff/gld-rest-api/internal/pkg/response"
	"github.com/NGeff/gld-rest-api/internal/repository"
	"github.com/NGeff/gld-rest-api/internal/service"
)

// AdminHandler handles administrative HTTP requests.
type AdminHandler struct {
	adminService service.AdminService
	validate     *validator.Validate
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(adminService service.AdminService) *AdminHandler {
	return &AdminHandler{
		adminService: adminService,
		validate:     validator.New(),
	}
}

// Routes returns a chi router with admin routes. All routes require
// session auth plus the admin role.
func (h *AdminHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/stats", h.Stats)
	r.Get("/users", h.ListUsers)
	r.Get("/users/{id}", h.GetUser)
	r.Patch("/users/{id}/plan", h.UpdateUserPlan)
	r.Patch("/users/{id}/suspend", h.SuspendUser)
	r.Get("/payments", h.ListPayments)

	return r
}

// Stats handles GET /admin/stats
func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.adminService.Stats(r.Context())
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, stats)
}

// ListUsers handles GET /admin/users
func (h *AdminHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	q := repository.ListUsersQuery{
		Search: r.URL.Query().Get("search"),
		Plan:   models.Plan(r.URL.Query().Get("plan")),
		Page:   queryInt(r, "page", 1),
		Limit:  queryInt(r, "limit", 20),
	}

	users, total, err := h.adminService.ListUsers(r.Context(), q)
	if err != nil {
		response.Error(w, err)
		return
	}

	out := make([]UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}

	totalPages := int((total + int64(q.Limit) - 1) / int64(q.Limit))
	response.JSONWithMeta(w, http.StatusOK, out, &response.Meta{
		Page:       q.Page,
		PerPage:    q.Limit,
		Total:      total,
		TotalPages: totalPages,
	})
}

// GetUser handles GET /admin/users/{id}
func (h *AdminHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, apierrors.NewValidationError("id", "invalid UUID format"))
		return
	}

	user, err := h.adminService.GetUser(r.Context(), userID)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, toUserResponse(user))
}

// UpdateUserPlan handles PATCH /admin/users/{id}/plan
func (h *AdminHandler) UpdateUserPlan(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, apierrors.NewValidationError("id", "invalid UUID format"))
		return
	}

	var req struct {
		Plan      string     `json:"plan" validate:"required,oneof=free basic pro enterprise"`
		ExpiresAt *time.Time `json:"expires_at,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierrors.ErrBadRequest.WithMessage("Invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Error(w, validationError(err))
		return
	}

	user, err := h.adminService.UpdateUserPlan(r.Context(), userID, models.Plan(req.Plan), req.ExpiresAt)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, toUserResponse(user))
}

// SuspendUser handles PATCH /admin/users/{id}/suspend
func (h *AdminHandler) SuspendUser(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, apierrors.NewValidationError("id", "invalid UUID format"))
		return
	}

	var req struct {
		Suspended bool `json:"suspended"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierrors.ErrBadRequest.WithMessage("Invalid request body"))
		return
	}

	user, err := h.adminService.SetUserSuspended(r.Context(), userID, req.Suspended)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, toUserResponse(user))
}

// ListPayments handles GET /admin/payments
func (h *AdminHandler) ListPayments(w http.ResponseWriter, r *http.Request) {
	page := queryInt(r, "page", 1)
	limit := queryInt(r, "limit", 20)

	payments, total, err := h.adminService.ListPayments(r.Context(), page, limit)
	if err != nil {
		response.Error(w, err)
		return
	}

	out := make([]PaymentResponse, 0, len(payments))
	for _, p := range payments {
		out = append(out, toPaymentResponse(p))
	}

	totalPages := int((total + int64(limit) - 1) / int64(limit))
	response.JSONWithMeta(w, http.StatusOK, out, &response.Meta{
		Page:       page,
		PerPage:    limit,
		Total:      total,
		TotalPages: totalPages,
	})
}

func queryInt(r *http.Request, name string, def int) int {
	if raw := r.URL.Query().Get(name); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			return n
		}
	}
	return def
}
