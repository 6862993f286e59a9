package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/stockroom-backend/api/middleware"
	"github.com/angelmondragon/stockroom-backend/api/responses"
	"github.com/angelmondragon/stockroom-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/stockroom-backend/pkg/errors"
	"github.com/angelmondragon/stockroom-backend/pkg/logger"
)

// Actor is the caller identity as the API sees it after token verification.
type Actor struct {
	UserID     uuid.UUID       `json:"user_id"`
	Role       enums.ActorRole `json:"role"`
	VendorID   *uuid.UUID      `json:"vendor_id,omitempty"`
	LocationID *uuid.UUID      `json:"location_id,omitempty"`
}

// Whoami lets a register or back-office client confirm which vendor and
// location its token is bound to before it opens a session.
func Whoami(logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.ClaimsFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
			return
		}
		responses.WriteSuccess(w, Actor{
			UserID:     claims.UserID,
			Role:       claims.Role,
			VendorID:   claims.VendorID,
			LocationID: claims.LocationID,
		})
	}
}
