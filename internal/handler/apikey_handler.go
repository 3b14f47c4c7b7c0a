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

// APIKeyHandler handles API key management HTTP requests.
type APIKeyHandler struct {
	keyService service.APIKeyService
	validate   *validator.Validate
}

// NewAPIKeyHandler creates a new API key handler.
func NewAPIKeyHandler(keyService service.APIKeyService) *APIKeyHandler {
	return &APIKeyHandler{
		keyService: keyService,
		validate:   validator.New(),
	}
}

// Routes returns a chi router with API key routes. All routes require
// session auth.
func (h *APIKeyHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}/reveal", h.Reveal)
	r.Patch("/{id}/toggle", h.Toggle)
	r.Delete("/{id}", h.Delete)

	return r
}

// APIKeyResponse is the masked representation of a key.
type APIKeyResponse struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Key          string     `json:"key"`
	IsActive     bool       `json:"is_active"`
	RequestCount int64      `json:"request_count"`
	LastUsed     *time.Time `json:"last_used,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

func toAPIKeyResponse(k *models.APIKey, revealed bool) APIKeyResponse {
	key := k.MaskedKey()
	if revealed {
		key = k.Key
	}
	return APIKeyResponse{
		ID:           k.ID.String(),
		Name:         k.Name,
		Key:          key,
		IsActive:     k.IsActive,
		RequestCount: k.RequestCount,
		LastUsed:     k.LastUsed,
		CreatedAt:    k.CreatedAt,
	}
}

// List handles GET /apikeys
func (h *APIKeyHandler) List(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	keys, err := h.keyService.List(r.Context(), user.ID)
	if err != nil {
		response.Error(w, err)
		return
	}

	out := make([]APIKeyResponse, 0, len(keys))
	for _, k := range keys {
		out = append(out, toAPIKeyResponse(k, false))
	}
	response.OK(w, out)
}

// Create handles POST /apikeys. The full secret is returned once, in this
// response only.
func (h *APIKeyHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	var req service.CreateKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierrors.ErrBadRequest.WithMessage("Invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Error(w, validationError(err))
		return
	}

	key, err := h.keyService.Create(r.Context(), user, req)
	if err != nil {
		response.Error(w, err)
		return
	}

	response.Created(w, toAPIKeyResponse(key, true))
}

// Reveal handles GET /apikeys/{id}/reveal
func (h *APIKeyHandler) Reveal(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	keyID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, apierrors.NewValidationError("id", "invalid UUID format"))
		return
	}

	key, err := h.keyService.Reveal(r.Context(), user.ID, keyID)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, toAPIKeyResponse(key, true))
}

// Toggle handles PATCH /apikeys/{id}/toggle
func (h *APIKeyHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	keyID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, apierrors.NewValidationError("id", "invalid UUID format"))
		return
	}

	var req struct {
		Active bool `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierrors.ErrBadRequest.WithMessage("Invalid request body"))
		return
	}

	key, err := h.keyService.SetActive(r.Context(), user.ID, keyID, req.Active)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, toAPIKeyResponse(key, false))
}

// Delete handles DELETE /apikeys/{id}
func (h *APIKeyHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())

	keyID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, apierrors.NewValidationError("id", "invalid UUID format"))
		return
	}

	if err := h.keyService.Delete(r.Context(), user.ID, keyID); err != nil {
		response.Error(w, err)
		return
	}
	response.NoContent(w)
}
