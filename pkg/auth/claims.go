package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/stockroom-backend/pkg/enums"
)

// AccessTokenClaims is the verified identity of an API caller. Vendor and
// location are optional bindings; admins carry neither.
type AccessTokenClaims struct {
	UserID     uuid.UUID       `json:"user_id"`
	VendorID   *uuid.UUID      `json:"vendor_id,omitempty"`
	LocationID *uuid.UUID      `json:"location_id,omitempty"`
	Role       enums.ActorRole `json:"role"`
	jwt.RegisteredClaims
}

// Validate runs after signature and registered-claim checks.
func (c *AccessTokenClaims) Validate() error {
	if c.UserID == uuid.Nil {
		return errMissingSubject
	}
	if !c.Role.IsValid() {
		return errUnknownRole
	}
	return nil
}

// CanActForVendor reports whether the caller may touch records owned by vendorID.
func (c *AccessTokenClaims) CanActForVendor(vendorID uuid.UUID) bool {
	if c == nil {
		return false
	}
	if c.Role == enums.ActorRoleAdmin {
		return true
	}
	return c.VendorID != nil && *c.VendorID == vendorID
}

// CanActAtLocation reports whether the caller may operate a register at
// locationID. Only clerk tokens are pinned to a location.
func (c *AccessTokenClaims) CanActAtLocation(locationID uuid.UUID) bool {
	if c == nil {
		return false
	}
	if c.Role != enums.ActorRoleClerk || c.LocationID == nil {
		return true
	}
	return *c.LocationID == locationID
}
