package models

import (
	"time"

	"github.com/google/uuid"
)

// RequestLog is an append-only audit record of one metered API call.
type RequestLog struct {
	ID             string    `json:"id" db:"id"`
	UserID         uuid.UUID `json:"user_id" db:"user_id"`
	APIKeyID       uuid.UUID `json:"api_key_id" db:"api_key_id"`
	Endpoint       string    `json:"endpoint" db:"endpoint"`
	Method         string    `json:"method" db:"method"`
	StatusCode     int       `json:"status_code" db:"status_code"`
	ResponseTimeMs int64     `json:"response_time_ms" db:"response_time_ms"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}
