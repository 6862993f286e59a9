package middleware

import (
	"context"

	"github.com/google/uuid"

	pkgauth "github.com/angelmondragon/stockroom-backend/pkg/auth"
)

type contextKey string

const (
	ctxUserID     contextKey = "user_id"
	ctxRole       contextKey = "actor_role"
	ctxVendorID   contextKey = "vendor_id"
	ctxLocationID contextKey = "location_id"
	ctxClaims     contextKey = "claims"
)

func UserIDFromContext(ctx context.Context) string {
	return stringValue(ctx, ctxUserID)
}

func RoleFromContext(ctx context.Context) string {
	return stringValue(ctx, ctxRole)
}

func VendorIDFromContext(ctx context.Context) string {
	return stringValue(ctx, ctxVendorID)
}

func LocationIDFromContext(ctx context.Context) string {
	return stringValue(ctx, ctxLocationID)
}

// ClaimsFromContext returns the verified token claims, if any.
func ClaimsFromContext(ctx context.Context) (*pkgauth.AccessTokenClaims, bool) {
	if ctx == nil {
		return nil, false
	}
	claims, ok := ctx.Value(ctxClaims).(*pkgauth.AccessTokenClaims)
	return claims, ok && claims != nil
}

// WithClaims seeds ctx with claims and the identifiers derived from them.
func WithClaims(ctx context.Context, claims *pkgauth.AccessTokenClaims) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if claims == nil {
		return ctx
	}
	ctx = context.WithValue(ctx, ctxClaims, claims)
	ctx = context.WithValue(ctx, ctxUserID, claims.UserID.String())
	ctx = context.WithValue(ctx, ctxRole, string(claims.Role))
	if claims.VendorID != nil {
		ctx = context.WithValue(ctx, ctxVendorID, claims.VendorID.String())
	}
	if claims.LocationID != nil {
		ctx = context.WithValue(ctx, ctxLocationID, claims.LocationID.String())
	}
	return ctx
}

// ActorUserID returns the caller's user id, or nil when unauthenticated.
func ActorUserID(ctx context.Context) *uuid.UUID {
	claims, ok := ClaimsFromContext(ctx)
	if !ok || claims.UserID == uuid.Nil {
		return nil
	}
	id := claims.UserID
	return &id
}

func stringValue(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}
