// Package gateway implements the wrapped upstream endpoints exposed on the
// metered API surface.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"time"

	apierrors "github.com/NGeff/gld-rest-api/internal/pkg/errors"
)

var cepPattern = regexp.MustCompile(`^\d{8}$`)

// Client calls the public upstream services wrapped by the metered API.
type Client struct {
	client *http.Client
}

// NewClient creates a new upstream client.
func NewClient() *Client {
	return &Client{
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Address is a Brazilian postal address resolved from a CEP.
type Address struct {
	CEP          string `json:"cep"`
	Street       string `json:"logradouro"`
	Complement   string `json:"complemento,omitempty"`
	Neighborhood string `json:"bairro"`
	City         string `json:"localidade"`
	State        string `json:"uf"`
	Erro         bool   `json:"erro,omitempty"`
}

// LookupCEP resolves a postal code through ViaCEP. The CEP must be eight
// digits with no separator.
func (c *Client) LookupCEP(ctx context.Context, cep string) (*Address, error) {
	if !cepPattern.MatchString(cep) {
		return nil, apierrors.NewValidationError("cep", "must be exactly 8 digits")
	}

	url := fmt.Sprintf("https://viacep.com.br/ws/%s/json/", cep)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, apierrors.ErrServiceUnavailable.WithMessage("CEP lookup is temporarily unavailable")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apierrors.ErrServiceUnavailable.WithMessage("CEP lookup is temporarily unavailable")
	}

	var addr Address
	if err := json.NewDecoder(resp.Body).Decode(&addr); err != nil {
		return nil, fmt.Errorf("failed to parse upstream response: %w", err)
	}
	if addr.Erro {
		return nil, apierrors.NewNotFoundError("CEP")
	}
	return &addr, nil
}

// Weather is the current condition at a coordinate.
type Weather struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Current   struct {
		Temperature float64 `json:"temperature_2m"`
		WindSpeed   float64 `json:"wind_speed_10m"`
		Humidity    float64 `json:"relative_humidity_2m"`
	} `json:"current"`
}

// CurrentWeather fetches current conditions from Open-Meteo.
func (c *Client) CurrentWeather(ctx context.Context, lat, lon float64) (*Weather, error) {
	if lat < -90 || lat > 90 {
		return nil, apierrors.NewValidationError("lat", "must be between -90 and 90")
	}
	if lon < -180 || lon > 180 {
		return nil, apierrors.NewValidationError("lon", "must be between -180 and 180")
	}

	url := fmt.Sprintf(
		"https://api.open-meteo.com/v1/forecast?latitude=%f&longitude=%f&current=temperature_2m,relative_humidity_2m,wind_speed_10m",
		lat, lon)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, apierrors.ErrServiceUnavailable.WithMessage("Weather lookup is temporarily unavailable")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apierrors.ErrServiceUnavailable.WithMessage("Weather lookup is temporarily unavailable")
	}

	var weather Weather
	if err := json.NewDecoder(resp.Body).Decode(&weather); err != nil {
		return nil, fmt.Errorf("failed to parse upstream response: %w", err)
	}
	return &weather, nil
}
