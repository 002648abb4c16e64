package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestEscrowHandler_GetForBooking_Unauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &EscrowHandler{}
	r.GET("/bookings/:id/escrow", handler.GetForBooking)

	bookingID := uuid.New()
	req, _ := http.NewRequest("GET", "/bookings/"+bookingID.String()+"/escrow", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestEscrowHandler_GetForBooking_InvalidBookingID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	userID := uuid.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", userID)
		c.Next()
	})
	handler := &EscrowHandler{}
	r.GET("/bookings/:id/escrow", handler.GetForBooking)

	req, _ := http.NewRequest("GET", "/bookings/not-a-uuid/escrow", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEscrowHandler_Release_Unauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &EscrowHandler{}
	r.POST("/escrow/:id/release", handler.Release)

	txID := uuid.New()
	req, _ := http.NewRequest("POST", "/escrow/"+txID.String()+"/release", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestEscrowHandler_Capture_InvalidID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &EscrowHandler{}
	r.POST("/escrow/:id/capture", handler.Capture)

	req, _ := http.NewRequest("POST", "/escrow/not-a-uuid/capture", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
