package inventory

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/stockroom-backend/api/controllers/vendorcontext"
	"github.com/angelmondragon/stockroom-backend/api/middleware"
	"github.com/angelmondragon/stockroom-backend/api/responses"
	"github.com/angelmondragon/stockroom-backend/api/validators"
	internalinventory "github.com/angelmondragon/stockroom-backend/internal/inventory"
	"github.com/angelmondragon/stockroom-backend/pkg/logger"
	"github.com/angelmondragon/stockroom-backend/pkg/pagination"
)

type thresholdRequest struct {
	LowStockThreshold int `json:"low_stock_threshold" validate:"min=0"`
}

// Record returns the projection row for a product at a location.
func Record(svc internalinventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		record, err := authorizedRecord(r, svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, record)
	}
}

// Movements pages the ledger entries behind a projection row, newest first.
func Movements(svc internalinventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		record, err := authorizedRecord(r, svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.ListMovements(r.Context(), record.ProductID, record.LocationID, pagination.Params{
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

// SetThreshold updates the low-stock threshold on an existing row.
func SetThreshold(svc internalinventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body thresholdRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		record, err := authorizedRecord(r, svc)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		updated, err := svc.SetLowStockThreshold(r.Context(), record.ProductID, record.LocationID, record.VendorID, body.LowStockThreshold)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, updated)
	}
}

// Adjust records a manual adjustment or correction movement.
func Adjust(svc internalinventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input internalinventory.AdjustInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := vendorcontext.Authorize(r, input.VendorID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input.ActorUserID = middleware.ActorUserID(r.Context())

		movement, err := svc.Adjust(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, internalinventory.NewMovementDTO(movement))
	}
}

// Transfer moves stock between two locations in one transaction.
func Transfer(svc internalinventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input internalinventory.TransferInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := vendorcontext.Authorize(r, input.VendorID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input.ActorUserID = middleware.ActorUserID(r.Context())

		result, err := svc.Transfer(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// LowStock lists rows at or below their threshold for a vendor.
func LowStock(svc internalinventory.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requested, err := validators.ParseQueryUUID(r, "vendor_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		vendorID := uuid.Nil
		if requested != nil {
			vendorID = *requested
		}
		if vendorID, err = vendorcontext.Resolve(r, vendorID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		locationID, err := validators.ParseQueryUUID(r, "location_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		records, err := svc.ListLowStock(r.Context(), vendorID, locationID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"records": records})
	}
}

func authorizedRecord(r *http.Request, svc internalinventory.Service) (*internalinventory.RecordDTO, error) {
	productID, err := validators.ParseUUIDParam(r, "productId")
	if err != nil {
		return nil, err
	}
	locationID, err := validators.ParseUUIDParam(r, "locationId")
	if err != nil {
		return nil, err
	}
	record, err := svc.GetRecord(r.Context(), productID, locationID)
	if err != nil {
		return nil, err
	}
	if err := vendorcontext.Authorize(r, record.VendorID); err != nil {
		return nil, err
	}
	return record, nil
}
