package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/helvetio/marketplace-backend/internal/dto"
	"github.com/helvetio/marketplace-backend/internal/http/handlers/common"
	"github.com/helvetio/marketplace-backend/internal/models"
	"github.com/helvetio/marketplace-backend/internal/service"
)

type ListingHandler struct {
	svc *service.ListingService
}

func NewListingHandler(svc *service.ListingService) *ListingHandler {
	return &ListingHandler{svc: svc}
}

// Create handles POST /listings.
func (h *ListingHandler) Create(c *gin.Context) {
	vendorID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req dto.CreateListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	listing, err := h.svc.CreateListing(c.Request.Context(), vendorID, listingFromRequest(&req))
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, listing)
}

// Update handles PUT /listings/:id.
func (h *ListingHandler) Update(c *gin.Context) {
	vendorID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}
	listingID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.CreateListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	svc := listingFromRequest(&req)
	svc.ID = listingID
	listing, err := h.svc.UpdateListing(c.Request.Context(), vendorID, svc)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, listing)
}

// Archive handles DELETE /listings/:id.
func (h *ListingHandler) Archive(c *gin.Context) {
	vendorID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}
	listingID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	if err := h.svc.ArchiveListing(c.Request.Context(), listingID, vendorID); err != nil {
		common.RespondAppError(c, err)
		return
	}
	common.RespondSuccess(c, http.StatusOK, "listing archived", nil)
}

// Get handles GET /listings/:id.
func (h *ListingHandler) Get(c *gin.Context) {
	listingID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}
	listing, err := h.svc.GetListing(c.Request.Context(), listingID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, listing)
}

// ListMine handles GET /listings.
func (h *ListingHandler) ListMine(c *gin.Context) {
	vendorID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}
	listings, err := h.svc.ListVendorListings(c.Request.Context(), vendorID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, listings)
}

// CheckAvailability handles GET /listings/:id/availability?start=...&end=...
// Start and end are RFC 3339; CAPACITY_BOUND listings take no slot.
func (h *ListingHandler) CheckAvailability(c *gin.Context) {
	listingID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var slot *service.Slot
	if startRaw := c.Query("start"); startRaw != "" {
		start, err := time.Parse(time.RFC3339, startRaw)
		if err != nil {
			common.RespondBadRequest(c, "start must be RFC 3339")
			return
		}
		end, err := time.Parse(time.RFC3339, c.Query("end"))
		if err != nil {
			common.RespondBadRequest(c, "end must be RFC 3339")
			return
		}
		slot = &service.Slot{Start: start, End: end}
	}

	result, err := h.svc.CheckAvailability(c.Request.Context(), listingID, slot)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// AddBlock handles POST /listings/:id/blocks.
func (h *ListingHandler) AddBlock(c *gin.Context) {
	vendorID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}
	listingID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.CreateBlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	block, err := h.svc.AddBlock(c.Request.Context(), vendorID, &models.AvailabilityBlock{
		ServiceID: listingID,
		StartsAt:  req.StartsAt,
		EndsAt:    req.EndsAt,
		Reason:    req.Reason,
	})
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, block)
}

// RemoveBlock handles DELETE /listings/:id/blocks/:blockId.
func (h *ListingHandler) RemoveBlock(c *gin.Context) {
	vendorID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}
	listingID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}
	blockID, err := common.ParseUUIDParam(c, "blockId")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	if err := h.svc.RemoveBlock(c.Request.Context(), vendorID, listingID, blockID); err != nil {
		common.RespondAppError(c, err)
		return
	}
	common.RespondSuccess(c, http.StatusOK, "block removed", nil)
}

func listingFromRequest(req *dto.CreateListingRequest) *models.Service {
	svc := &models.Service{
		Title:                 req.Title,
		Description:           req.Description,
		SchedulingType:        req.SchedulingType,
		ConcurrentCapacity:    req.ConcurrentCapacity,
		MaxConcurrentOrders:   req.MaxConcurrentOrders,
		InstantBookingEnabled: req.InstantBookingEnabled,
		TurnaroundHours:       req.TurnaroundHours,
		MinLeadTimeHours:      req.MinLeadTimeHours,
	}
	for _, item := range req.PriceList {
		svc.PriceList = append(svc.PriceList, models.PriceListItem{
			Description:      item.Description,
			Price:            item.Price,
			Unit:             item.Unit,
			BillingType:      item.BillingType,
			PricingMode:      item.PricingMode,
			EstimatedMinutes: item.EstimatedMinutes,
		})
	}
	return svc
}
