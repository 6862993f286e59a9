package inventory

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/stockroom-backend/api/middleware"
	internalinventory "github.com/angelmondragon/stockroom-backend/internal/inventory"
	pkgauth "github.com/angelmondragon/stockroom-backend/pkg/auth"
	"github.com/angelmondragon/stockroom-backend/pkg/db/models"
	"github.com/angelmondragon/stockroom-backend/pkg/enums"
)

type stubInventory struct {
	internalinventory.Service
	record      *internalinventory.RecordDTO
	adjusted    *internalinventory.AdjustInput
	threshold   int
	lowStockFor uuid.UUID
}

func (s *stubInventory) GetRecord(_ context.Context, productID, locationID uuid.UUID) (*internalinventory.RecordDTO, error) {
	rec := *s.record
	rec.ProductID, rec.LocationID = productID, locationID
	return &rec, nil
}

func (s *stubInventory) SetLowStockThreshold(_ context.Context, productID, locationID, vendorID uuid.UUID, threshold int) (*internalinventory.RecordDTO, error) {
	s.threshold = threshold
	return &internalinventory.RecordDTO{ProductID: productID, LocationID: locationID, VendorID: vendorID, LowStockThreshold: threshold}, nil
}

func (s *stubInventory) Adjust(_ context.Context, input internalinventory.AdjustInput) (*models.StockMovement, error) {
	s.adjusted = &input
	return &models.StockMovement{ID: uuid.New(), ProductID: input.ProductID, Quantity: input.Delta, MovementType: enums.MovementTypeAdjustment}, nil
}

func (s *stubInventory) ListLowStock(_ context.Context, vendorID uuid.UUID, _ *uuid.UUID) ([]internalinventory.RecordDTO, error) {
	s.lowStockFor = vendorID
	return []internalinventory.RecordDTO{}, nil
}

func serve(method, pattern, target, body string, claims *pkgauth.AccessTokenClaims, h http.HandlerFunc) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(middleware.WithClaims(req.Context(), claims)))
		})
	})
	r.Method(method, pattern, h)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, target, strings.NewReader(body)))
	return rec
}

func clerk(vendorID uuid.UUID) *pkgauth.AccessTokenClaims {
	return &pkgauth.AccessTokenClaims{UserID: uuid.New(), Role: enums.ActorRoleClerk, VendorID: &vendorID}
}

const recordPattern = "/inventory/products/{productId}/locations/{locationId}"

func recordPath() string {
	return "/inventory/products/" + uuid.NewString() + "/locations/" + uuid.NewString()
}

func TestRecordHidesOtherVendorsRows(t *testing.T) {
	svc := &stubInventory{record: &internalinventory.RecordDTO{VendorID: uuid.New(), Quantity: 60}}

	rec := serve(http.MethodGet, recordPattern, recordPath(), "", clerk(uuid.New()), Record(svc, nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSetThresholdUsesRecordVendor(t *testing.T) {
	vendorID := uuid.New()
	svc := &stubInventory{record: &internalinventory.RecordDTO{VendorID: vendorID}}

	rec := serve(http.MethodPut, recordPattern+"/threshold", recordPath()+"/threshold", `{"low_stock_threshold":12}`, clerk(vendorID), SetThreshold(svc, nil))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 12, svc.threshold)
}

func TestAdjustStampsActor(t *testing.T) {
	vendorID := uuid.New()
	svc := &stubInventory{}
	body := `{"product_id":"` + uuid.NewString() + `","location_id":"` + uuid.NewString() + `","vendor_id":"` + vendorID.String() + `","delta":-3,"is_correction":true}`

	rec := serve(http.MethodPost, "/inventory/adjustments", "/inventory/adjustments", body, clerk(vendorID), Adjust(svc, nil))

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.NotNil(t, svc.adjusted)
	assert.Equal(t, -3, svc.adjusted.Delta)
	assert.True(t, svc.adjusted.IsCorrection)
	assert.NotNil(t, svc.adjusted.ActorUserID)
}

func TestLowStockDefaultsToTokenVendor(t *testing.T) {
	vendorID := uuid.New()
	svc := &stubInventory{}

	rec := serve(http.MethodGet, "/inventory/low-stock", "/inventory/low-stock", "", clerk(vendorID), LowStock(svc, nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, vendorID, svc.lowStockFor)
}
