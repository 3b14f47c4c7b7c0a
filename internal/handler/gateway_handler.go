package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/NGeff/gld-rest-api/internal/gateway"
	apierrors "github.com/NGeff/gld-rest-api/internal/pkg/errors"
	"github.com/NGeff/gld-rest-api/internal/pkg/response"
)

// GatewayHandler serves the metered API surface: the wrapped upstream
// utilities each admitted call pays one quota unit for.
type GatewayHandler struct {
	upstream *gateway.Client
}

// NewGatewayHandler creates a new gateway handler.
func NewGatewayHandler(upstream *gateway.Client) *GatewayHandler {
	return &GatewayHandler{upstream: upstream}
}

// Routes returns a chi router with the metered utility routes. The caller
// mounts it behind the API key admission middleware.
func (h *GatewayHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/cep/{cep}", h.LookupCEP)
	r.Get("/weather", h.Weather)
	r.Get("/qrcode", h.QRCode)

	return r
}

// LookupCEP handles GET /v1/utils/cep/{cep}
func (h *GatewayHandler) LookupCEP(w http.ResponseWriter, r *http.Request) {
	addr, err := h.upstream.LookupCEP(r.Context(), chi.URLParam(r, "cep"))
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, addr)
}

// Weather handles GET /v1/utils/weather?lat=&lon=
func (h *GatewayHandler) Weather(w http.ResponseWriter, r *http.Request) {
	lat, err := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	if err != nil {
		response.Error(w, apierrors.NewValidationError("lat", "must be a number"))
		return
	}
	lon, err := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if err != nil {
		response.Error(w, apierrors.NewValidationError("lon", "must be a number"))
		return
	}

	weather, err := h.upstream.CurrentWeather(r.Context(), lat, lon)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, weather)
}

// QRCode handles GET /v1/utils/qrcode?text=&size= and responds with a PNG.
func (h *GatewayHandler) QRCode(w http.ResponseWriter, r *http.Request) {
	text := r.URL.Query().Get("text")
	if text == "" {
		response.Error(w, apierrors.NewValidationError("text", "text is required"))
		return
	}
	if len(text) > 2048 {
		response.Error(w, apierrors.NewValidationError("text", "must be at most 2048 characters"))
		return
	}

	size := 256
	if raw := r.URL.Query().Get("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 64 || n > 1024 {
			response.Error(w, apierrors.NewValidationError("size", "must be between 64 and 1024"))
			return
		}
		size = n
	}

	png, err := qrcode.Encode(text, qrcode.Medium, size)
	if err != nil {
		response.Error(w, apierrors.ErrInternal)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}
