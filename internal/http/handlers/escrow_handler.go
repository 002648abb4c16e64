package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/helvetio/marketplace-backend/internal/dto"
	"github.com/helvetio/marketplace-backend/internal/http/handlers/common"
	"github.com/helvetio/marketplace-backend/internal/service"
)

type EscrowHandler struct {
	svc      *service.EscrowService
	bookings *service.BookingService
}

func NewEscrowHandler(svc *service.EscrowService, bookings *service.BookingService) *EscrowHandler {
	return &EscrowHandler{svc: svc, bookings: bookings}
}

// GetForBooking handles GET /bookings/:id/escrow. Visible to both parties.
func (h *EscrowHandler) GetForBooking(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}
	bookingID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	// The booking lookup doubles as the access check.
	if _, err := h.bookings.GetBooking(c.Request.Context(), bookingID, userID); err != nil {
		common.RespondAppError(c, err)
		return
	}

	tx, err := h.svc.GetByBooking(c.Request.Context(), bookingID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, tx)
}

// Release handles POST /escrow/:id/release. Only the paying customer may
// sign the funds over to the vendor.
func (h *EscrowHandler) Release(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}
	txID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	tx, err := h.svc.Get(c.Request.Context(), txID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	if tx.CustomerID != userID {
		common.RespondError(c, http.StatusForbidden, "only the customer can release the escrow")
		return
	}

	released, err := h.svc.Release(c.Request.Context(), txID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, released)
}

// Capture handles POST /escrow/:id/capture. Admin only; normal captures
// happen during booking completion.
func (h *EscrowHandler) Capture(c *gin.Context) {
	txID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	tx, err := h.svc.Capture(c.Request.Context(), txID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, tx)
}

// Refund handles POST /escrow/:id/refund. Admin only; customer-side refunds
// run through disputes.
func (h *EscrowHandler) Refund(c *gin.Context) {
	txID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	tx, err := h.svc.Refund(c.Request.Context(), txID, req.Amount)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, tx)
}
