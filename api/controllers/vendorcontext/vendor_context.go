package vendorcontext

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/stockroom-backend/api/middleware"
	"github.com/angelmondragon/stockroom-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockroom-backend/pkg/errors"
)

// Scope returns the vendor the caller is bound to, or nil for admins who may
// act across vendors.
func Scope(r *http.Request) (*uuid.UUID, error) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	if claims.Role == enums.ActorRoleAdmin {
		return nil, nil
	}
	if claims.VendorID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "vendor context required")
	}
	id := *claims.VendorID
	return &id, nil
}

// Authorize rejects callers who may not act for vendorID.
func Authorize(r *http.Request, vendorID uuid.UUID) error {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	if !claims.CanActForVendor(vendorID) {
		return pkgerrors.Reject(pkgerrors.CodeForbidden, pkgerrors.ReasonVendorMismatch, "caller may not act for this vendor")
	}
	return nil
}

// AuthorizeLocation rejects clerks pinned to a different register location.
func AuthorizeLocation(r *http.Request, locationID uuid.UUID) error {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}
	if !claims.CanActAtLocation(locationID) {
		return pkgerrors.Reject(pkgerrors.CodeForbidden, pkgerrors.ReasonLocationMismatch, "caller may not operate this location")
	}
	return nil
}

// Resolve fills an omitted vendor from the caller's token and then authorizes it.
func Resolve(r *http.Request, requested uuid.UUID) (uuid.UUID, error) {
	if requested == uuid.Nil {
		scope, err := Scope(r)
		if err != nil {
			return uuid.Nil, err
		}
		if scope == nil {
			return uuid.Nil, pkgerrors.Reject(pkgerrors.CodeValidation, pkgerrors.ReasonValidation, "vendor_id is required")
		}
		requested = *scope
	}
	if err := Authorize(r, requested); err != nil {
		return uuid.Nil, err
	}
	return requested, nil
}
