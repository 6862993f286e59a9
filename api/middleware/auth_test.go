package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgauth "github.com/angelmondragon/stockroom-backend/pkg/auth"
	"github.com/angelmondragon/stockroom-backend/pkg/config"
	"github.com/angelmondragon/stockroom-backend/pkg/enums"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "stockroom"}

func mintTestToken(t *testing.T, role enums.ActorRole, vendorID *uuid.UUID) string {
	t.Helper()
	token, err := pkgauth.MintAccessToken(testJWT, time.Now(), time.Hour, pkgauth.AccessTokenPayload{
		UserID:   uuid.New(),
		VendorID: vendorID,
		Role:     role,
	})
	require.NoError(t, err)
	return token
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthRejectsMissingToken(t *testing.T) {
	rec := httptest.NewRecorder()
	Auth(testJWT, nil)(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthRejectsInvalidToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer invalid")
	rec := httptest.NewRecorder()
	Auth(testJWT, nil)(okHandler()).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthSeedsClaims(t *testing.T) {
	vendorID := uuid.New()
	token := mintTestToken(t, enums.ActorRoleVendor, &vendorID)

	var role, vendor string
	var actor *uuid.UUID
	handler := Auth(testJWT, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role = RoleFromContext(r.Context())
		vendor = VendorIDFromContext(r.Context())
		actor = ActorUserID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, string(enums.ActorRoleVendor), role)
	assert.Equal(t, vendorID.String(), vendor)
	require.NotNil(t, actor)
}

func TestRequireRoleAndVendorScope(t *testing.T) {
	vendorID := uuid.New()
	tests := []struct {
		name     string
		role     enums.ActorRole
		vendorID *uuid.UUID
		want     int
	}{
		{"admin without vendor", enums.ActorRoleAdmin, nil, http.StatusOK},
		{"vendor with vendor", enums.ActorRoleVendor, &vendorID, http.StatusOK},
		{"clerk without vendor", enums.ActorRoleClerk, nil, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chain := Auth(testJWT, nil)(VendorScope(nil)(okHandler()))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", "Bearer "+mintTestToken(t, tt.role, tt.vendorID))
			rec := httptest.NewRecorder()
			chain.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}

	t.Run("admin only route", func(t *testing.T) {
		chain := Auth(testJWT, nil)(RequireRole(nil, enums.ActorRoleAdmin)(okHandler()))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+mintTestToken(t, enums.ActorRoleClerk, &vendorID))
		rec := httptest.NewRecorder()
		chain.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestAuthFailsClosedWithoutConfig(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+mintTestToken(t, enums.ActorRoleAdmin, nil))
	rec := httptest.NewRecorder()
	Auth(config.JWTConfig{}, nil)(okHandler()).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRequireRoleWithoutClaimsIsUnauthorized(t *testing.T) {
	rec := httptest.NewRecorder()
	RequireRole(nil, enums.ActorRoleAdmin)(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
