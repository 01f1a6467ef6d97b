package routes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/mapfinderz-backend/api/controllers"
	"github.com/angelmondragon/mapfinderz-backend/internal/auth"
	"github.com/angelmondragon/mapfinderz-backend/internal/checkout"
	"github.com/angelmondragon/mapfinderz-backend/internal/features"
	"github.com/angelmondragon/mapfinderz-backend/internal/orders"
	"github.com/angelmondragon/mapfinderz-backend/internal/pricing"
	"github.com/angelmondragon/mapfinderz-backend/internal/quota"
	pkgauth "github.com/angelmondragon/mapfinderz-backend/pkg/auth"
	"github.com/angelmondragon/mapfinderz-backend/pkg/config"
	"github.com/angelmondragon/mapfinderz-backend/pkg/db/models"
	"github.com/angelmondragon/mapfinderz-backend/pkg/enums"
	"github.com/angelmondragon/mapfinderz-backend/pkg/logger"
	"github.com/angelmondragon/mapfinderz-backend/pkg/metrics"
	"github.com/angelmondragon/mapfinderz-backend/pkg/pagination"
)

type stubPinger struct {
	err error
}

func (s stubPinger) Ping(context.Context) error { return s.err }

type stubAuthService struct{}

func (stubAuthService) Login(context.Context, auth.LoginRequest) (*auth.LoginResponse, error) {
	return &auth.LoginResponse{AccessToken: "token"}, nil
}

func (stubAuthService) ResolveBuyer(context.Context, string, string) (*models.User, error) {
	return &models.User{}, nil
}

func (stubAuthService) FindBuyer(_ context.Context, id uuid.UUID) (*models.User, error) {
	return &models.User{ID: id}, nil
}

type stubCatalog struct{}

func (stubCatalog) PackageTiers(context.Context) (pricing.TierSet, error) {
	return pricing.TierSet{
		Regular: []pricing.Tier{{ID: "r1", Limit: 5, PricePerUnit: decimal.NewFromInt(40), Kind: enums.TierKindRegular}},
	}, nil
}

func (stubCatalog) SurveyPrice(context.Context, enums.SurveyType, int) (*pricing.SurveyPrice, error) {
	return nil, nil
}

func (stubCatalog) ExtraFeatures(context.Context) ([]features.Feature, error) {
	return []features.Feature{{ID: "f1", Name: "Certified copy", Price: decimal.NewFromInt(50)}}, nil
}

type stubQuota struct {
	checked uuid.UUID
}

func (s *stubQuota) Check(_ context.Context, userID uuid.UUID, count int) (quota.Decision, error) {
	s.checked = userID
	return quota.Decision{CanOrder: true, WithinDailyLimit: true, Remaining: 5 - count, DailyLimit: 5}, nil
}

func (s *stubQuota) TierKind(context.Context, uuid.UUID) (enums.TierKind, error) {
	return enums.TierKindRegular, nil
}

type stubOrders struct {
	calls int
}

func (s *stubOrders) ProcessFreeOrder(context.Context, orders.Submission) (checkout.Submission, error) {
	s.calls++
	return checkout.Submission{Success: true, OrderID: "free-1"}, nil
}

func (s *stubOrders) SubmitPaidOrder(context.Context, orders.Submission) (checkout.Submission, error) {
	s.calls++
	return checkout.Submission{Success: true, OrderID: fmt.Sprintf("paid-%d", s.calls)}, nil
}

func (s *stubOrders) ListBuyerOrders(context.Context, uuid.UUID, pagination.Params) (*orders.OrderList, error) {
	return &orders.OrderList{Items: []orders.OrderDTO{}}, nil
}

type memoryStore struct {
	data     map[string]string
	counters map[string]int64
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: map[string]string{}, counters: map[string]int64{}}
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := m.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (m *memoryStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	str, _ := value.(string)
	m.data[key] = str
	return nil
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	str, _ := value.(string)
	m.data[key] = str
	return true, nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string {
	return "idem:" + scope + ":" + id
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *memoryStore) IncrByWithTTL(_ context.Context, key string, delta int64, _ time.Duration) (int64, error) {
	m.counters[key] += delta
	return m.counters[key], nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "0"},
		JWT: config.JWTConfig{
			Secret:            "secret",
			Issuer:            "issuer",
			ExpirationMinutes: 60,
		},
		RateLimit: config.RateLimitConfig{
			OrderWindow:     time.Minute,
			OrderIPLimit:    2,
			OrderEmailLimit: 2,
		},
		CORS: config.CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}},
	}
}

type testEnv struct {
	router   http.Handler
	quota    *stubQuota
	orders   *stubOrders
	registry *prometheus.Registry
}

func newTestEnv(cfg *config.Config, store Store) testEnv {
	logg := logger.New(logger.Options{ServiceName: "test-routing", Level: logger.ParseLevel("debug"), Output: io.Discard})
	registry := prometheus.NewRegistry()
	quotaStub := &stubQuota{}
	ordersStub := &stubOrders{}

	return testEnv{router: NewRouter(Dependencies{
		Config:      cfg,
		Logger:      logg,
		Gatherer:    registry,
		HTTPMetrics: metrics.NewHTTPMetrics(registry),
		Ready:       map[string]controllers.Pinger{"db": stubPinger{}},
		Auth:        stubAuthService{},
		Catalog:     stubCatalog{},
		Quota:       quotaStub,
		Orders:      ordersStub,
		Store:       store,
	}), quota: quotaStub, orders: ordersStub, registry: registry}
}

func buildToken(t *testing.T, cfg *config.Config, userID uuid.UUID) string {
	t.Helper()
	token, err := pkgauth.MintAccessToken(cfg.JWT, time.Now(), pkgauth.AccessTokenPayload{UserID: userID, Email: "buyer@example.com"})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestHealthLive(t *testing.T) {
	env := newTestEnv(testConfig(), nil)
	resp := httptest.NewRecorder()
	env.router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if resp.Header().Get("X-MapFinderz-Env") != "test" {
		t.Fatalf("expected env header, got %q", resp.Header().Get("X-MapFinderz-Env"))
	}
}

func TestHealthReadyReportsFailingDependency(t *testing.T) {
	cfg := testConfig()
	logg := logger.Nop()
	router := NewRouter(Dependencies{
		Config: cfg,
		Logger: logg,
		Ready:  map[string]controllers.Pinger{"redis": stubPinger{err: fmt.Errorf("connection refused")}},
	})

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.Code)
	}
}

func TestPackageTiersArePublic(t *testing.T) {
	env := newTestEnv(testConfig(), nil)
	resp := httptest.NewRecorder()
	env.router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/pricing/tiers", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var envelope struct {
		Data struct {
			Regular []pricing.Tier `json:"regular_tiers"`
			Pro     []pricing.Tier `json:"pro_tiers"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(envelope.Data.Regular) != 1 || envelope.Data.Pro == nil {
		t.Fatalf("unexpected tiers %+v", envelope.Data)
	}
}

func TestSurveyPriceRequiresSurveyType(t *testing.T) {
	env := newTestEnv(testConfig(), nil)
	resp := httptest.NewRecorder()
	env.router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/pricing/survey?count=2", nil))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestAuthMeReturnsSignedInBuyer(t *testing.T) {
	cfg := testConfig()
	env := newTestEnv(cfg, nil)
	buyerID := uuid.New()

	resp := httptest.NewRecorder()
	env.router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, buyerID))
	resp = httptest.NewRecorder()
	env.router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if !strings.Contains(resp.Body.String(), buyerID.String()) {
		t.Fatalf("expected buyer id in body, got %s", resp.Body.String())
	}
}

func TestQuotaValidateRequiresToken(t *testing.T) {
	env := newTestEnv(testConfig(), nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/quota/validate", strings.NewReader(`{"unit_count":1}`))
	resp := httptest.NewRecorder()
	env.router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestQuotaValidateChecksAuthenticatedBuyer(t *testing.T) {
	cfg := testConfig()
	env := newTestEnv(cfg, nil)
	buyerID := uuid.New()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/quota/validate", strings.NewReader(`{"unit_count":2}`))
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, buyerID))
	resp := httptest.NewRecorder()
	env.router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if env.quota.checked != buyerID {
		t.Fatalf("expected quota check for %s, got %s", buyerID, env.quota.checked)
	}
	var envelope struct {
		Data quota.Decision `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !envelope.Data.IsFree() || envelope.Data.Remaining != 3 {
		t.Fatalf("unexpected decision %+v", envelope.Data)
	}
}

func TestQuotaValidateRejectsNonPositiveCount(t *testing.T) {
	cfg := testConfig()
	env := newTestEnv(cfg, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/quota/validate", strings.NewReader(`{"unit_count":0}`))
	req.Header.Set("Authorization", "Bearer "+buildToken(t, cfg, uuid.New()))
	resp := httptest.NewRecorder()
	env.router.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestGuestPaidOrderIsAccepted(t *testing.T) {
	env := newTestEnv(testConfig(), nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/paid", strings.NewReader(`{"amount":"80","unit_count":2,"email":"guest@example.com","password":"secret-pass"}`))
	resp := httptest.NewRecorder()
	env.router.ServeHTTP(resp, req)

	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", resp.Code, resp.Body.String())
	}
	if env.orders.calls != 1 {
		t.Fatalf("expected one submission, got %d", env.orders.calls)
	}
}

func TestOrderSubmissionReplaysIdempotentResponse(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.OrderIPLimit = 10
	cfg.RateLimit.OrderEmailLimit = 10
	env := newTestEnv(cfg, newMemoryStore())
	body := `{"amount":"80","unit_count":2,"email":"guest@example.com","password":"secret-pass"}`

	missingKey := httptest.NewRequest(http.MethodPost, "/api/v1/orders/paid", strings.NewReader(body))
	resp := httptest.NewRecorder()
	env.router.ServeHTTP(resp, missingKey)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without idempotency key, got %d", resp.Code)
	}

	var bodies []string
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/paid", strings.NewReader(body))
		req.Header.Set("Idempotency-Key", "attempt-1")
		resp := httptest.NewRecorder()
		env.router.ServeHTTP(resp, req)
		if resp.Code != http.StatusCreated {
			t.Fatalf("attempt %d: expected 201, got %d: %s", i, resp.Code, resp.Body.String())
		}
		bodies = append(bodies, resp.Body.String())
	}

	if env.orders.calls != 1 {
		t.Fatalf("expected a single order submission, got %d", env.orders.calls)
	}
	if bodies[0] != bodies[1] {
		t.Fatalf("expected replayed body, got %q and %q", bodies[0], bodies[1])
	}
}

func TestOrderSubmissionIsRateLimited(t *testing.T) {
	env := newTestEnv(testConfig(), newMemoryStore())

	var last int
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/paid", strings.NewReader(`{"amount":"80","unit_count":2}`))
		req.Header.Set("Idempotency-Key", fmt.Sprintf("attempt-%d", i))
		resp := httptest.NewRecorder()
		env.router.ServeHTTP(resp, req)
		last = resp.Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("expected 429 on the third submission, got %d", last)
	}
}

func TestListOrdersRequiresToken(t *testing.T) {
	env := newTestEnv(testConfig(), nil)
	resp := httptest.NewRecorder()
	env.router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.Code)
	}
}

func TestMetricsEndpointExposesRouteCounters(t *testing.T) {
	env := newTestEnv(testConfig(), nil)
	env.router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/extra-features", nil))

	resp := httptest.NewRecorder()
	env.router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), `route="/api/v1/extra-features"`) {
		t.Fatalf("expected extra-features route label in metrics output")
	}
}
