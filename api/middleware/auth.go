package middleware

import (
	"net/http"

	"github.com/angelmondragon/stockroom-backend/api/responses"
	pkgauth "github.com/angelmondragon/stockroom-backend/pkg/auth"
	"github.com/angelmondragon/stockroom-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/stockroom-backend/pkg/errors"
	"github.com/angelmondragon/stockroom-backend/pkg/logger"
)

// Auth verifies the bearer token and seeds the request context with its
// claims. The verifier is built once; a broken JWT config fails every request.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	verifier, cfgErr := pkgauth.NewVerifier(cfg)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfgErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, cfgErr, "auth not configured"))
				return
			}
			raw := r.Header.Get("Authorization")
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}
			claims, err := verifier.Verify(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			ctx := WithClaims(r.Context(), claims)
			if logg != nil {
				var vendorID string
				if claims.VendorID != nil {
					vendorID = claims.VendorID.String()
				}
				ctx = logg.WithActor(ctx, claims.UserID.String(), vendorID, string(claims.Role))
				if claims.LocationID != nil {
					ctx = logg.WithLocationID(ctx, claims.LocationID.String())
				}
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
