package controllers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/stockroom-backend/api/middleware"
	pkgauth "github.com/angelmondragon/stockroom-backend/pkg/auth"
	"github.com/angelmondragon/stockroom-backend/pkg/enums"
)

func TestWhoamiEchoesClaims(t *testing.T) {
	vendorID := uuid.New()
	locationID := uuid.New()
	claims := &pkgauth.AccessTokenClaims{UserID: uuid.New(), Role: enums.ActorRoleClerk, VendorID: &vendorID, LocationID: &locationID}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req = req.WithContext(middleware.WithClaims(req.Context(), claims))
	rec := httptest.NewRecorder()

	Whoami(nil)(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data Actor `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, claims.UserID, body.Data.UserID)
	assert.Equal(t, enums.ActorRoleClerk, body.Data.Role)
	require.NotNil(t, body.Data.LocationID)
	assert.Equal(t, locationID, *body.Data.LocationID)
}

func TestWhoamiWithoutClaims(t *testing.T) {
	rec := httptest.NewRecorder()
	Whoami(nil)(rec, httptest.NewRequest(http.MethodGet, "/api/v1/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
