package pricing

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/stockroom-backend/api/controllers/vendorcontext"
	"github.com/angelmondragon/stockroom-backend/api/responses"
	"github.com/angelmondragon/stockroom-backend/api/validators"
	internalpricing "github.com/angelmondragon/stockroom-backend/internal/pricing"
	"github.com/angelmondragon/stockroom-backend/pkg/logger"
)

type lookupRequest struct {
	ProductIDs []uuid.UUID `json:"product_ids" validate:"required,min=1"`
}

// Lookup resolves tiers for a batch of products. Products without an active
// assignment map to an empty list.
func Lookup(svc internalpricing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body lookupRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		tiers, err := svc.Lookup(r.Context(), body.ProductIDs)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"tiers": tiers})
	}
}

// ProductTiers resolves tiers for one product.
func ProductTiers(svc internalpricing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		tiers, err := svc.ResolveTiers(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"product_id": productID, "tiers": tiers})
	}
}

func CreateBlueprint(svc internalpricing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input internalpricing.BlueprintInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		blueprint, err := svc.CreateBlueprint(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, blueprint)
	}
}

func UpdateBlueprint(svc internalpricing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		blueprintID, err := validators.ParseUUIDParam(r, "blueprintId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var input internalpricing.BlueprintInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		blueprint, err := svc.UpdateBlueprint(r.Context(), blueprintID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, blueprint)
	}
}

func GetBlueprint(svc internalpricing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		blueprintID, err := validators.ParseUUIDParam(r, "blueprintId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		blueprint, err := svc.GetBlueprint(r.Context(), blueprintID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, blueprint)
	}
}

func ListBlueprints(svc internalpricing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		activeOnly, err := validators.ParseQueryBool(r, "active", false)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		blueprints, err := svc.ListBlueprints(r.Context(), activeOnly)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"blueprints": blueprints})
	}
}

// UpsertVendorConfig stores a vendor's prices for a blueprint's breaks.
func UpsertVendorConfig(svc internalpricing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input internalpricing.VendorConfigInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := vendorcontext.Authorize(r, input.VendorID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		cfg, err := svc.UpsertVendorConfig(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, cfg)
	}
}

// AssignProduct points a product at a blueprint, replacing any prior assignment.
func AssignProduct(svc internalpricing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input internalpricing.AssignInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := vendorcontext.Authorize(r, input.VendorID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		assignment, err := svc.AssignProduct(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, assignment)
	}
}
