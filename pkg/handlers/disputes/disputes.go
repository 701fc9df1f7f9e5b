package disputes

import (
	"context"
	"net/http"

	"github.com/chris/escrow-settlement/pkg/api"
	"github.com/chris/escrow-settlement/pkg/handlers/respond"
	"github.com/chris/escrow-settlement/pkg/mapping"
	"github.com/chris/escrow-settlement/pkg/middleware"
	"github.com/chris/escrow-settlement/pkg/models"
)

// DisputeService is the part of the escrow engine the dispute routes drive.
type DisputeService interface {
	FileDispute(ctx context.Context, actor models.Identity, paymentID, reason, description string) (*models.DisputeRecord, error)
	GetDispute(ctx context.Context, actor models.Identity, disputeID string) (*models.DisputeRecord, error)
	ResolveDispute(ctx context.Context, actor models.Identity, disputeID string, outcome models.DisputeOutcome, note string) (*models.DisputeRecord, error)
}

// DisputesHandler holds the dependencies for dispute-related handlers.
type DisputesHandler struct {
	Service DisputeService
}

// NewDisputesHandler creates a new DisputesHandler.
func NewDisputesHandler(service DisputeService) *DisputesHandler {
	return &DisputesHandler{Service: service}
}

// FileDispute freezes a payment pending adjudication.
func (h *DisputesHandler) FileDispute(w http.ResponseWriter, r *http.Request, paymentId string) {
	var body api.NewDispute
	if err := respond.Decode(r, &body); err != nil {
		respond.Error(w, r, err)
		return
	}

	dispute, err := h.Service.FileDispute(r.Context(), middleware.IdentityFromContext(r.Context()), paymentId, body.Reason, body.Description)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusCreated, mapping.ToApiDispute(dispute))
}

func (h *DisputesHandler) GetDisputeById(w http.ResponseWriter, r *http.Request, disputeId string) {
	dispute, err := h.Service.GetDispute(r.Context(), middleware.IdentityFromContext(r.Context()), disputeId)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, mapping.ToApiDispute(dispute))
}

// ResolveDispute records an admin's decision and settles the payment accordingly.
func (h *DisputesHandler) ResolveDispute(w http.ResponseWriter, r *http.Request, disputeId string) {
	var body api.DisputeResolution
	if err := respond.Decode(r, &body); err != nil {
		respond.Error(w, r, err)
		return
	}

	dispute, err := h.Service.ResolveDispute(r.Context(), middleware.IdentityFromContext(r.Context()), disputeId, models.DisputeOutcome(body.Outcome), body.Note)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, mapping.ToApiDispute(dispute))
}
