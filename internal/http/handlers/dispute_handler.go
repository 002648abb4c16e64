package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/helvetio/marketplace-backend/internal/dto"
	"github.com/helvetio/marketplace-backend/internal/http/handlers/common"
	"github.com/helvetio/marketplace-backend/internal/service"
	"github.com/helvetio/marketplace-backend/internal/storage"
)

type DisputeHandler struct {
	svc      *service.DisputeService
	evidence *storage.EvidenceStorage
}

func NewDisputeHandler(svc *service.DisputeService, evidence *storage.EvidenceStorage) *DisputeHandler {
	return &DisputeHandler{svc: svc, evidence: evidence}
}

// Raise handles POST /bookings/:id/disputes.
func (h *DisputeHandler) Raise(c *gin.Context) {
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

	var req dto.RaiseDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	view, err := h.svc.RaiseDispute(c.Request.Context(), bookingID, userID, req.Reason, req.Description)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

// Get handles GET /disputes/:id.
func (h *DisputeHandler) Get(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}
	disputeID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	view, err := h.svc.GetDispute(c.Request.Context(), disputeID, userID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// ListMine handles GET /disputes.
func (h *DisputeHandler) ListMine(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	limit, offset := common.GetPagination(c)
	disputes, err := h.svc.ListDisputes(c.Request.Context(), userID, limit, offset)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, disputes)
}

// ProposeSettlement handles POST /disputes/:id/settlements.
func (h *DisputeHandler) ProposeSettlement(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}
	disputeID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.ProposeSettlementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	offer, err := h.svc.ProposeSettlement(c.Request.Context(), disputeID, userID, req.CustomerAmount, req.Message)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, offer)
}

// ListSettlements handles GET /disputes/:id/settlements.
func (h *DisputeHandler) ListSettlements(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}
	disputeID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	offers, err := h.svc.ListSettlementOffers(c.Request.Context(), disputeID, userID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, offers)
}

// AcceptSettlement handles POST /disputes/:id/settlements/:offerId/accept.
func (h *DisputeHandler) AcceptSettlement(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}
	disputeID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}
	offerID, err := common.ParseUUIDParam(c, "offerId")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	view, err := h.svc.AcceptSettlement(c.Request.Context(), disputeID, offerID, userID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// RejectSettlement handles POST /disputes/:id/settlements/:offerId/reject.
func (h *DisputeHandler) RejectSettlement(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}
	disputeID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}
	offerID, err := common.ParseUUIDParam(c, "offerId")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	if err := h.svc.RejectSettlement(c.Request.Context(), disputeID, offerID, userID); err != nil {
		common.RespondAppError(c, err)
		return
	}
	common.RespondSuccess(c, http.StatusOK, "offer rejected", nil)
}

// Escalate handles POST /disputes/:id/escalate.
func (h *DisputeHandler) Escalate(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}
	disputeID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	view, err := h.svc.Escalate(c.Request.Context(), disputeID, userID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// MediationProposal handles GET /disputes/:id/mediation.
func (h *DisputeHandler) MediationProposal(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}
	disputeID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	proposal, err := h.svc.RequestMediationProposal(c.Request.Context(), disputeID, userID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, proposal)
}

// Review handles POST /disputes/:id/review (admin).
func (h *DisputeHandler) Review(c *gin.Context) {
	disputeID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.ReviewDecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	view, err := h.svc.ReviewDecision(c.Request.Context(), disputeID, req.Approve)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// ResolveExternal handles POST /disputes/:id/external-resolution (admin).
func (h *DisputeHandler) ResolveExternal(c *gin.Context) {
	disputeID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.ResolveExternalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	view, err := h.svc.ResolveExternal(c.Request.Context(), disputeID, req.Outcome, req.CustomerAmount, req.Resolution)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// UploadEvidence handles POST /disputes/:id/evidence (multipart).
func (h *DisputeHandler) UploadEvidence(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}
	disputeID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		common.RespondBadRequest(c, "a file field is required")
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		common.RespondBadRequest(c, "cannot read upload")
		return
	}
	defer file.Close()

	path, fileType, size, err := h.evidence.Save(c.Request.Context(), disputeID, fileHeader.Filename, file)
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	record, err := h.svc.AddEvidence(c.Request.Context(), disputeID, userID, path, fileType, size)
	if err != nil {
		// The dispute refused the file; do not keep it on disk.
		_ = h.evidence.Delete(c.Request.Context(), path)
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, record)
}

// ListEvidence handles GET /disputes/:id/evidence.
func (h *DisputeHandler) ListEvidence(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}
	disputeID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	evidence, err := h.svc.ListEvidence(c.Request.Context(), disputeID, userID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, evidence)
}
