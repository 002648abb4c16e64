package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/helvetio/marketplace-backend/internal/dto"
	"github.com/helvetio/marketplace-backend/internal/http/handlers/common"
	"github.com/helvetio/marketplace-backend/internal/models"
	"github.com/helvetio/marketplace-backend/internal/service"
)

type BookingHandler struct {
	svc *service.BookingService
}

func NewBookingHandler(svc *service.BookingService) *BookingHandler {
	return &BookingHandler{svc: svc}
}

// Preview handles POST /bookings/preview: classifies the request without
// persisting anything, so the client can show the tier and deposit upfront.
func (h *BookingHandler) Preview(c *gin.Context) {
	if _, err := common.CurrentUserID(c); err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	serviceID, items, slot, ok := bindBookingRequest(c)
	if !ok {
		return
	}

	flow, _, _, err := h.svc.DetermineBookingFlow(c.Request.Context(), serviceID, items, slot)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, flow)
}

// Create handles POST /bookings.
func (h *BookingHandler) Create(c *gin.Context) {
	customerID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	serviceID, items, slot, ok := bindBookingRequest(c)
	if !ok {
		return
	}

	booking, flow, err := h.svc.CreateBooking(c.Request.Context(), customerID, serviceID, items, slot)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.BookingResponse{Booking: booking, Flow: flow})
}

// Get handles GET /bookings/:id.
func (h *BookingHandler) Get(c *gin.Context) {
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

	booking, err := h.svc.GetBooking(c.Request.Context(), bookingID, userID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}

// List handles GET /bookings?side=customer|vendor.
func (h *BookingHandler) List(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	limit, offset := common.GetPagination(c)
	asVendor := c.Query("side") == "vendor"
	bookings, err := h.svc.ListBookings(c.Request.Context(), userID, asVendor, limit, offset)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, bookings)
}

// Confirm handles POST /bookings/:id/confirm.
func (h *BookingHandler) Confirm(c *gin.Context) {
	h.transition(c, h.svc.ConfirmBooking)
}

// Decline handles POST /bookings/:id/decline.
func (h *BookingHandler) Decline(c *gin.Context) {
	h.transition(c, h.svc.DeclineBooking)
}

// Cancel handles POST /bookings/:id/cancel.
func (h *BookingHandler) Cancel(c *gin.Context) {
	h.transition(c, h.svc.CancelBooking)
}

// Complete handles POST /bookings/:id/complete.
func (h *BookingHandler) Complete(c *gin.Context) {
	h.transition(c, h.svc.CompleteBooking)
}

func (h *BookingHandler) transition(c *gin.Context, op func(ctx context.Context, bookingID, userID uuid.UUID) (*models.Booking, error)) {
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

	booking, err := op(c.Request.Context(), bookingID, userID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, booking)
}

func bindBookingRequest(c *gin.Context) (uuid.UUID, []service.SelectedItem, *service.Slot, bool) {
	var req dto.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return uuid.Nil, nil, nil, false
	}

	serviceID, err := uuid.Parse(req.ServiceID)
	if err != nil {
		common.RespondBadRequest(c, "invalid service_id")
		return uuid.Nil, nil, nil, false
	}

	items := make([]service.SelectedItem, 0, len(req.Items))
	for _, item := range req.Items {
		itemID, err := uuid.Parse(item.PriceListItemID)
		if err != nil {
			common.RespondBadRequest(c, "invalid price_list_item_id")
			return uuid.Nil, nil, nil, false
		}
		items = append(items, service.SelectedItem{
			PriceListItemID: itemID,
			DurationMinutes: item.DurationMinutes,
		})
	}

	var slot *service.Slot
	if req.StartsAt != nil && req.EndsAt != nil {
		slot = &service.Slot{Start: *req.StartsAt, End: *req.EndsAt}
	}
	return serviceID, items, slot, true
}
