package purchaseorders

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/stockroom-backend/api/middleware"
	internalpo "github.com/angelmondragon/stockroom-backend/internal/purchaseorders"
	"github.com/angelmondragon/stockroom-backend/internal/receiving"
	pkgauth "github.com/angelmondragon/stockroom-backend/pkg/auth"
	"github.com/angelmondragon/stockroom-backend/pkg/enums"
	"github.com/angelmondragon/stockroom-backend/pkg/pagination"
)

type stubReceiver struct {
	got *receiving.ReceiveInput
}

func (s *stubReceiver) Receive(_ context.Context, input receiving.ReceiveInput) (*receiving.ReceiptResult, error) {
	s.got = &input
	return &receiving.ReceiptResult{PurchaseOrderID: input.PurchaseOrderID, Status: enums.PurchaseOrderStatusReceiving}, nil
}

type stubOrders struct {
	internalpo.Service
	listFilters internalpo.ListFilters
	cancelScope *uuid.UUID
}

func (s *stubOrders) List(_ context.Context, filters internalpo.ListFilters, _ pagination.Params) (*internalpo.OrderList, error) {
	s.listFilters = filters
	return &internalpo.OrderList{}, nil
}

func (s *stubOrders) Cancel(_ context.Context, id uuid.UUID, vendorID *uuid.UUID, _ *uuid.UUID) (*internalpo.OrderDTO, error) {
	s.cancelScope = vendorID
	return &internalpo.OrderDTO{ID: id, Status: enums.PurchaseOrderStatusCancelled}, nil
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

func vendorClaims(vendorID uuid.UUID) *pkgauth.AccessTokenClaims {
	return &pkgauth.AccessTokenClaims{UserID: uuid.New(), Role: enums.ActorRoleVendor, VendorID: &vendorID}
}

func TestReceiveUsesPathOrder(t *testing.T) {
	vendorID, orderID, lineID := uuid.New(), uuid.New(), uuid.New()
	svc := &stubReceiver{}
	body := `{"vendor_id":"` + vendorID.String() + `","items":[{"line_item_id":"` + lineID.String() + `","quantity_received":40}]}`

	rec := serve(http.MethodPost, "/purchase-orders/{poId}/receipts", "/purchase-orders/"+orderID.String()+"/receipts", body, vendorClaims(vendorID), Receive(svc, nil))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NotNil(t, svc.got)
	assert.Equal(t, orderID, svc.got.PurchaseOrderID)
	assert.Equal(t, 40, svc.got.Items[0].QuantityReceived)
	assert.NotNil(t, svc.got.ActorUserID)
}

func TestReceiveRejectsOtherVendor(t *testing.T) {
	orderID := uuid.New()
	svc := &stubReceiver{}
	body := `{"vendor_id":"` + uuid.NewString() + `","items":[{"line_item_id":"` + uuid.NewString() + `","quantity_received":1}]}`

	rec := serve(http.MethodPost, "/purchase-orders/{poId}/receipts", "/purchase-orders/"+orderID.String()+"/receipts", body, vendorClaims(uuid.New()), Receive(svc, nil))

	require.Equal(t, http.StatusForbidden, rec.Code)
	var payload struct {
		Error struct {
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "VENDOR_MISMATCH", payload.Error.Details["reason"])
	assert.Equal(t, false, payload.Error.Details["applied"])
	assert.Nil(t, svc.got)
}

func TestReceiveRejectsMismatchedBodyOrder(t *testing.T) {
	vendorID := uuid.New()
	body := `{"po_id":"` + uuid.NewString() + `","vendor_id":"` + vendorID.String() + `","items":[{"line_item_id":"` + uuid.NewString() + `","quantity_received":1}]}`

	rec := serve(http.MethodPost, "/purchase-orders/{poId}/receipts", "/purchase-orders/"+uuid.NewString()+"/receipts", body, vendorClaims(vendorID), Receive(&stubReceiver{}, nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReceiveValidatesQuantities(t *testing.T) {
	vendorID := uuid.New()
	body := `{"vendor_id":"` + vendorID.String() + `","items":[{"line_item_id":"` + uuid.NewString() + `","quantity_received":0}]}`

	svc := &stubReceiver{}
	rec := serve(http.MethodPost, "/purchase-orders/{poId}/receipts", "/purchase-orders/"+uuid.NewString()+"/receipts", body, vendorClaims(vendorID), Receive(svc, nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var payload struct {
		Error struct {
			Code    string         `json:"code"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "VALIDATION_ERROR", payload.Error.Code)
	assert.Equal(t, "VALIDATION_FAILED", payload.Error.Details["reason"])
	assert.Equal(t, false, payload.Error.Details["applied"])
	assert.Equal(t, "never", payload.Error.Details["retry"])
	assert.Contains(t, payload.Error.Details["fields"], "items[0].quantity_received")
	assert.Nil(t, svc.got)
}

func TestListScopesVendorCallers(t *testing.T) {
	vendorID := uuid.New()
	svc := &stubOrders{}

	rec := serve(http.MethodGet, "/purchase-orders", "/purchase-orders?vendor_id="+uuid.NewString()+"&status=Shipped", "", vendorClaims(vendorID), List(svc, nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.listFilters.VendorID)
	assert.Equal(t, vendorID, *svc.listFilters.VendorID)
	require.NotNil(t, svc.listFilters.Status)
	assert.Equal(t, enums.PurchaseOrderStatusShipped, *svc.listFilters.Status)
}

func TestCancelAsAdminIsUnscoped(t *testing.T) {
	svc := &stubOrders{}
	admin := &pkgauth.AccessTokenClaims{UserID: uuid.New(), Role: enums.ActorRoleAdmin}

	rec := serve(http.MethodPost, "/purchase-orders/{poId}/cancel", "/purchase-orders/"+uuid.NewString()+"/cancel", "", admin, Cancel(svc, nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, svc.cancelScope)
}
