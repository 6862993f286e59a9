package routes

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/stockroom-backend/internal/pricing"
	"github.com/angelmondragon/stockroom-backend/internal/sessions"
	pkgauth "github.com/angelmondragon/stockroom-backend/pkg/auth"
	"github.com/angelmondragon/stockroom-backend/pkg/config"
	"github.com/angelmondragon/stockroom-backend/pkg/enums"
	"github.com/angelmondragon/stockroom-backend/pkg/logger"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type memoryCache struct {
	mu     sync.Mutex
	values map[string]string
	counts map[string]int64
}

func newMemoryCache() *memoryCache {
	return &memoryCache{values: map[string]string{}, counts: map[string]int64{}}
}

func (c *memoryCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.values[key]
	if !ok {
		return "", goredis.Nil
	}
	return v, nil
}

func (c *memoryCache) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.values[key]; ok {
		return false, nil
	}
	c.values[key] = fmt.Sprint(value)
	return true, nil
}

func (c *memoryCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = fmt.Sprint(value)
	return nil
}

func (c *memoryCache) IdempotencyKey(scope, id string) string {
	return "idem:" + scope + ":" + id
}

func (c *memoryCache) Del(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.values, k)
	}
	return nil
}

func (c *memoryCache) IncrWithTTL(_ context.Context, key string, _ time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[key]++
	return c.counts[key], nil
}

func (c *memoryCache) Ping(context.Context) error {
	return nil
}

type stubPricing struct {
	pricing.Service
}

func (stubPricing) ListBlueprints(context.Context, bool) ([]pricing.BlueprintDTO, error) {
	return []pricing.BlueprintDTO{}, nil
}

type stubSessions struct {
	sessions.Service
	opened int
}

func (s *stubSessions) Open(_ context.Context, input sessions.OpenInput) (*sessions.SessionDTO, error) {
	s.opened++
	return &sessions.SessionDTO{ID: uuid.New(), VendorID: input.VendorID, Status: enums.POSSessionStatusOpen}, nil
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.App.Env = "test"
	cfg.JWT = config.JWTConfig{Secret: "router-secret", Issuer: "stockroom"}
	cfg.Idempotency.TTL = time.Hour
	cfg.RateLimit.Window = time.Minute
	cfg.RateLimit.WriteLimit = 2
	return cfg
}

func newTestRouter(cfg *config.Config, svc Services) http.Handler {
	logg := logger.New(logger.Options{ServiceName: "test", Level: logger.ParseLevel("debug"), Output: io.Discard})
	return NewRouter(cfg, logg, stubPinger{}, newMemoryCache(), prometheus.NewRegistry(), svc)
}

func buildToken(t *testing.T, cfg *config.Config, role enums.ActorRole, vendorID *uuid.UUID) string {
	t.Helper()
	token, err := pkgauth.MintAccessToken(cfg.JWT, time.Now(), time.Hour, pkgauth.AccessTokenPayload{
		UserID:   uuid.New(),
		VendorID: vendorID,
		Role:     role,
	})
	require.NoError(t, err)
	return token
}

func do(router http.Handler, method, path, token, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealthRoutes(t *testing.T) {
	router := newTestRouter(testConfig(), Services{})

	assert.Equal(t, http.StatusOK, do(router, http.MethodGet, "/health/live", "", "", nil).Code)
	assert.Equal(t, http.StatusOK, do(router, http.MethodGet, "/health/ready", "", "", nil).Code)
	assert.Equal(t, http.StatusOK, do(router, http.MethodGet, "/metrics", "", "", nil).Code)
}

func TestPrivateGroupRejectsMissingJWT(t *testing.T) {
	router := newTestRouter(testConfig(), Services{})
	rec := do(router, http.MethodGet, "/api/v1/me", "", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPrivateGroupSucceedsWithJWT(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg, Services{})
	vendorID := uuid.New()

	rec := do(router, http.MethodGet, "/api/v1/me", buildToken(t, cfg, enums.ActorRoleClerk, &vendorID), "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), vendorID.String())
}

func TestVendorRoleWithoutVendorIsForbidden(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg, Services{})
	rec := do(router, http.MethodGet, "/api/v1/me", buildToken(t, cfg, enums.ActorRoleVendor, nil), "", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestAdminGroupRequiresAdminRole(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg, Services{Pricing: stubPricing{}})
	vendorID := uuid.New()

	rec := do(router, http.MethodGet, "/api/v1/admin/pricing/blueprints", buildToken(t, cfg, enums.ActorRoleVendor, &vendorID), "", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(router, http.MethodGet, "/api/v1/admin/pricing/blueprints", buildToken(t, cfg, enums.ActorRoleAdmin, nil), "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestClerkCannotCreatePurchaseOrders(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg, Services{})
	vendorID := uuid.New()

	rec := do(router, http.MethodPost, "/api/v1/purchase-orders", buildToken(t, cfg, enums.ActorRoleClerk, &vendorID), `{}`,
		map[string]string{"Idempotency-Key": "po-1"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestOpenSessionNeedsIdempotencyKeyAndReplays(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.WriteLimit = 10
	sess := &stubSessions{}
	router := newTestRouter(cfg, Services{Sessions: sess})
	vendorID := uuid.New()
	token := buildToken(t, cfg, enums.ActorRoleClerk, &vendorID)
	body := `{"location_id":"` + uuid.NewString() + `","vendor_id":"` + vendorID.String() + `"}`

	rec := do(router, http.MethodPost, "/api/v1/pos/sessions", token, body, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, sess.opened)

	headers := map[string]string{"Idempotency-Key": "open-1"}
	first := do(router, http.MethodPost, "/api/v1/pos/sessions", token, body, headers)
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())
	second := do(router, http.MethodPost, "/api/v1/pos/sessions", token, body, headers)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 1, sess.opened)
}

func TestWritesAreRateLimited(t *testing.T) {
	cfg := testConfig()
	router := newTestRouter(cfg, Services{})
	vendorID := uuid.New()
	token := buildToken(t, cfg, enums.ActorRoleClerk, &vendorID)

	var last int
	for i := 0; i < 3; i++ {
		last = do(router, http.MethodPost, "/api/v1/purchase-orders", token, `{}`,
			map[string]string{"Idempotency-Key": fmt.Sprintf("k-%d", i)}).Code
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}
