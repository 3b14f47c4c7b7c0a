// Package handler provides HTTP handlers for the GLD API.
package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/NGeff/gld-rest-api/internal/middleware"
	"github.com/NGeff/gld-rest-api/internal/models"
	apierrors "github.com/NGeff/gld-rest-api/internal/pkg/errors"
	"github.com/NGeff/gld-rest-api/internal/pkg/response"
	"github.com/NGeff/gld-rest-api/internal/service"
)

// AuthHandler handles account and session HTTP requests.
type AuthHandler struct {
	authService service.AuthService
	validate    *validator.Validate
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(authService service.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		validate:    validator.New(),
	}
}

// Routes returns a chi router with auth routes. The /me route is mounted
// separately behind session auth by the caller.
func (h *AuthHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/register", h.Register)
	r.Post("/login", h.Login)
	r.Get("/verify/{token}", h.VerifyEmail)
	r.Post("/forgot-password", h.ForgotPassword)
	r.Post("/reset-password/{token}", h.ResetPassword)

	return r
}

// UserResponse is the public representation of an account.
type UserResponse struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Email         string     `json:"email"`
	Plan          string     `json:"plan"`
	PlanExpiresAt *time.Time `json:"plan_expires_at,omitempty"`
	Role          string     `json:"role"`
	IsVerified    bool       `json:"is_verified"`
	RequestsToday int        `json:"requests_today"`
	DailyLimit    int        `json:"daily_limit"`
	CreatedAt     time.Time  `json:"created_at"`
}

func toUserResponse(u *models.User) UserResponse {
	return UserResponse{
		ID:            u.ID.String(),
		Name:          u.Name,
		Email:         u.Email,
		Plan:          string(u.Plan),
		PlanExpiresAt: u.PlanExpiresAt,
		Role:          string(u.Role),
		IsVerified:    u.IsVerified,
		RequestsToday: u.RequestsToday,
		DailyLimit:    u.Plan.DailyLimit(),
		CreatedAt:     u.CreatedAt,
	}
}

// Register handles POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierrors.ErrBadRequest.WithMessage("Invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Error(w, validationError(err))
		return
	}

	user, err := h.authService.Register(r.Context(), req)
	if err != nil {
		response.Error(w, err)
		return
	}

	response.Created(w, toUserResponse(user))
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req service.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierrors.ErrBadRequest.WithMessage("Invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Error(w, validationError(err))
		return
	}

	session, err := h.authService.Login(r.Context(), req)
	if err != nil {
		response.Error(w, err)
		return
	}

	response.OK(w, map[string]any{
		"token":      session.Token,
		"expires_at": session.ExpiresAt,
		"user":       toUserResponse(session.User),
	})
}

// VerifyEmail handles GET /auth/verify/{token}
func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if err := h.authService.VerifyEmail(r.Context(), token); err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, map[string]string{"message": "Email verified. You can now log in."})
}

// ForgotPassword handles POST /auth/forgot-password
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email" validate:"required,email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierrors.ErrBadRequest.WithMessage("Invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Error(w, validationError(err))
		return
	}

	if err := h.authService.ForgotPassword(r.Context(), req.Email); err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, map[string]string{"message": "If that email exists, a reset link was sent."})
}

// ResetPassword handles POST /auth/reset-password/{token}
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password" validate:"required,min=8,max=72"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, apierrors.ErrBadRequest.WithMessage("Invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Error(w, validationError(err))
		return
	}

	token := chi.URLParam(r, "token")
	if err := h.authService.ResetPassword(r.Context(), token, req.Password); err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, map[string]string{"message": "Password updated. You can now log in."})
}

// Me handles GET /auth/me (behind session auth).
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	if user == nil {
		response.Error(w, apierrors.ErrUnauthorized)
		return
	}
	response.OK(w, toUserResponse(user))
}

// validationError converts a validator error into the API error shape,
// reporting the first failing field.
func validationError(err error) error {
	if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
		first := errs[0]
		return apierrors.NewValidationError(first.Field(), "failed on '"+first.Tag()+"' constraint")
	}
	return apierrors.ErrBadRequest
}
