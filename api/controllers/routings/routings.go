package routings

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/tradelinehq/tradeline/api/responses"
	"github.com/tradelinehq/tradeline/api/validators"
	"github.com/tradelinehq/tradeline/internal/routing"
	"github.com/tradelinehq/tradeline/pkg/enums"
	pkgerrors "github.com/tradelinehq/tradeline/pkg/errors"
	"github.com/tradelinehq/tradeline/pkg/logger"
)

type respondRequest struct {
	VendorID string `json:"vendor_id" validate:"required,uuid"`
	Decision string `json:"decision" validate:"required,oneof=accept reject"`
}

type respondResponse struct {
	ID          uuid.UUID            `json:"id"`
	RoutingID   uuid.UUID            `json:"routing_id"`
	VendorID    uuid.UUID            `json:"vendor_id"`
	Decision    enums.VendorDecision `json:"decision"`
	RespondedAt time.Time            `json:"responded_at"`
}

// Respond records a vendor's accept or reject for a routed order. Accepts
// race on a compare-and-set; the loser gets an ALREADY_TAKEN error.
func Respond(svc routing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		routingID, err := validators.UUIDParam(r, "routingId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req respondRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		vendorID, err := uuid.Parse(req.VendorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "vendor_id must be a valid uuid"))
			return
		}

		response, err := svc.Respond(r.Context(), routing.RespondInput{
			RoutingID: routingID,
			VendorID:  vendorID,
			Decision:  enums.VendorDecision(req.Decision),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, respondResponse{
			ID:          response.ID,
			RoutingID:   response.RoutingID,
			VendorID:    response.VendorID,
			Decision:    response.Decision,
			RespondedAt: response.RespondedAt,
		})
	}
}
