package dto

import (
	"github.com/helvetio/marketplace-backend/internal/models"
	"github.com/helvetio/marketplace-backend/internal/service"
)

// ErrorResponse is the uniform error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// SuccessResponse is the uniform success envelope for operations without a
// dedicated body.
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// AuthResponse carries a user together with their fresh token pair.
type AuthResponse struct {
	User   *models.User       `json:"user"`
	Tokens *service.TokenPair `json:"tokens"`
}

// BookingResponse pairs a created booking with its flow classification so
// the client can explain what happens next.
type BookingResponse struct {
	Booking *models.Booking            `json:"booking"`
	Flow    *service.BookingFlowResult `json:"flow"`
}
