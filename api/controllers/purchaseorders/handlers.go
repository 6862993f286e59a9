package purchaseorders

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/stockroom-backend/api/controllers/vendorcontext"
	"github.com/angelmondragon/stockroom-backend/api/middleware"
	"github.com/angelmondragon/stockroom-backend/api/responses"
	"github.com/angelmondragon/stockroom-backend/api/validators"
	internalpo "github.com/angelmondragon/stockroom-backend/internal/purchaseorders"
	"github.com/angelmondragon/stockroom-backend/internal/receiving"
	"github.com/angelmondragon/stockroom-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockroom-backend/pkg/errors"
	"github.com/angelmondragon/stockroom-backend/pkg/logger"
	"github.com/angelmondragon/stockroom-backend/pkg/pagination"
)

type transitionRequest struct {
	Status enums.PurchaseOrderStatus `json:"status" validate:"required,oneof=ordered confirmed shipped"`
}

// Create opens a draft purchase order for the caller's vendor.
func Create(svc internalpo.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input internalpo.CreateInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := vendorcontext.Authorize(r, input.VendorID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input.ActorUserID = middleware.ActorUserID(r.Context())

		order, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

// Get returns a purchase order with its line items.
func Get(svc internalpo.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParseUUIDParam(r, "poId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		scope, err := vendorcontext.Scope(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.Get(r.Context(), orderID, scope)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// List pages purchase orders newest first.
func List(svc internalpo.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, err := vendorcontext.Scope(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filters := internalpo.ListFilters{VendorID: scope}
		if scope == nil {
			if filters.VendorID, err = validators.ParseQueryUUID(r, "vendor_id"); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}
		if filters.LocationID, err = validators.ParseQueryUUID(r, "location_id"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if raw := validators.QueryString(r, "status", 32); raw != "" {
			status := enums.PurchaseOrderStatus(strings.ToLower(raw))
			filters.Status = &status
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.List(r.Context(), filters, pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// Transition moves an order forward through ordered, confirmed and shipped.
func Transition(svc internalpo.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParseUUIDParam(r, "poId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body transitionRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		scope, err := vendorcontext.Scope(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.Transition(r.Context(), internalpo.TransitionInput{
			OrderID:     orderID,
			VendorID:    scope,
			To:          body.Status,
			ActorUserID: middleware.ActorUserID(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// Cancel cancels an order that has not received any stock.
func Cancel(svc internalpo.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParseUUIDParam(r, "poId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		scope, err := vendorcontext.Scope(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.Cancel(r.Context(), orderID, scope, middleware.ActorUserID(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// Receive applies a batch of line receipts to the order in the path. The
// batch is all-or-nothing.
func Receive(svc receiving.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParseUUIDParam(r, "poId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var input receiving.ReceiveInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if input.PurchaseOrderID != uuid.Nil && input.PurchaseOrderID != orderID {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Reject(pkgerrors.CodeValidation, pkgerrors.ReasonValidation, "po_id does not match path"))
			return
		}
		input.PurchaseOrderID = orderID
		if err := vendorcontext.Authorize(r, input.VendorID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input.ActorUserID = middleware.ActorUserID(r.Context())

		result, err := svc.Receive(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
