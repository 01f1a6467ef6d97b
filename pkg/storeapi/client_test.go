package storeapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/mapfinderz-backend/internal/checkout"
	"github.com/angelmondragon/mapfinderz-backend/pkg/config"
	"github.com/angelmondragon/mapfinderz-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/mapfinderz-backend/pkg/errors"
	"github.com/angelmondragon/mapfinderz-backend/pkg/retry"
)

func TestClientPackageTiers(t *testing.T) {
	var capturedURL string
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		capturedURL = req.URL.String()
		if req.Method != http.MethodGet {
			t.Fatalf("unexpected method %s", req.Method)
		}
		return jsonResponse(http.StatusOK, `{"data":{"regular_tiers":[{"id":"r1","name":"Starter","limit":5,"price_per_unit":"40","package_price":"200"}],"pro_tiers":[{"id":"p1","limit":50,"price_per_unit":"0","package_price":"250"}]}}`), nil
	})

	client := newTestClient(t, rt)
	set, err := client.PackageTiers(context.Background())
	if err != nil {
		t.Fatalf("package tiers: %v", err)
	}
	if capturedURL != "http://store.test/api/v1/pricing/tiers" {
		t.Fatalf("unexpected URL %q", capturedURL)
	}
	if len(set.Regular) != 1 || set.Regular[0].Kind != enums.TierKindRegular || set.Regular[0].Limit != 5 {
		t.Fatalf("unexpected regular tiers %+v", set.Regular)
	}
	if !set.Regular[0].PricePerUnit.Equal(decimal.NewFromInt(40)) {
		t.Fatalf("unexpected unit price %s", set.Regular[0].PricePerUnit)
	}
	if len(set.Pro) != 1 || set.Pro[0].Kind != enums.TierKindPro {
		t.Fatalf("unexpected pro tiers %+v", set.Pro)
	}
	if !set.Pro[0].UnitPrice().Equal(decimal.NewFromInt(5)) {
		t.Fatalf("expected derived pro unit price 5, got %s", set.Pro[0].UnitPrice())
	}
}

func TestClientPackageTiersAcceptsFlatPackagePrice(t *testing.T) {
	rt := roundTripFunc(func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"data":{"regular_tiers":[{"id":"r1","limit":4,"price_per_unit":null,"package_price":"30"},{"id":"r2","limit":10,"package_price":"60"}]}}`), nil
	})
	set, err := newTestClient(t, rt).PackageTiers(context.Background())
	if err != nil {
		t.Fatalf("package tiers: %v", err)
	}
	if len(set.Regular) != 2 {
		t.Fatalf("unexpected regular tiers %+v", set.Regular)
	}
	if !set.Regular[0].PricePerUnit.IsZero() {
		t.Fatalf("expected zero per-unit price, got %s", set.Regular[0].PricePerUnit)
	}
	if !set.Regular[0].UnitPrice().Equal(decimal.RequireFromString("7.5")) {
		t.Fatalf("expected derived unit price 7.5, got %s", set.Regular[0].UnitPrice())
	}
	if !set.Regular[1].UnitPrice().Equal(decimal.NewFromInt(6)) {
		t.Fatalf("expected derived unit price 6, got %s", set.Regular[1].UnitPrice())
	}
}

func TestClientPackageTiersRejectsUnknownShape(t *testing.T) {
	bodies := []string{
		`{"data":{"tiers":[]}}`,
		`{"data":{"regular_tiers":[{"id":"r1","price_per_unit":"40","package_price":"200"}]}}`,
		`{"data":{"regular_tiers":[{"id":"r1","limit":5,"price_per_unit":null}]}}`,
		`{"result":{"regular_tiers":[]}}`,
	}
	for _, body := range bodies {
		body := body
		rt := roundTripFunc(func(*http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusOK, body), nil
		})
		_, err := newTestClient(t, rt).PackageTiers(context.Background())
		typed := pkgerrors.As(err)
		if typed == nil || typed.Code() != pkgerrors.CodeDependency {
			t.Fatalf("body %s: expected dependency error, got %v", body, err)
		}
	}
}

func TestClientSurveyPrice(t *testing.T) {
	var query string
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		query = req.URL.RawQuery
		if req.URL.Query().Get("survey_type") == "CS" {
			return jsonResponse(http.StatusOK, `{"data":null}`), nil
		}
		return jsonResponse(http.StatusOK, `{"data":{"survey_type":"RS","price_per_unit":"30","total_price":"90"}}`), nil
	})
	client := newTestClient(t, rt)

	price, err := client.SurveyPrice(context.Background(), enums.SurveyType("RS"), 3)
	if err != nil {
		t.Fatalf("survey price: %v", err)
	}
	if query != "count=3&survey_type=RS" {
		t.Fatalf("unexpected query %q", query)
	}
	if price == nil || !price.TotalPrice.Equal(decimal.NewFromInt(90)) {
		t.Fatalf("unexpected price %+v", price)
	}

	missing, err := client.SurveyPrice(context.Background(), enums.SurveyType("CS"), 3)
	if err != nil {
		t.Fatalf("missing survey price: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil price, got %+v", missing)
	}
}

func TestClientValidateQuota(t *testing.T) {
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		if got := req.Header.Get("Authorization"); got != "Bearer buyer-token" {
			t.Fatalf("unexpected authorization %q", got)
		}
		var body map[string]int
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body["unit_count"] != 2 {
			t.Fatalf("unexpected body %+v", body)
		}
		return jsonResponse(http.StatusOK, `{"data":{"can_order":true,"within_daily_limit":true,"remaining":3,"daily_limit":5,"tier_kind":"pro"}}`), nil
	})
	client := newTestClient(t, rt)

	if _, err := client.ValidateQuota(context.Background(), 2); pkgerrors.As(err) == nil || pkgerrors.As(err).Code() != pkgerrors.CodeUnauthorized {
		t.Fatalf("expected unauthorized without token, got %v", err)
	}

	decision, err := client.WithAccessToken("buyer-token").ValidateQuota(context.Background(), 2)
	if err != nil {
		t.Fatalf("validate quota: %v", err)
	}
	if !decision.IsFree() || decision.Remaining != 3 || decision.TierKind != enums.TierKindPro {
		t.Fatalf("unexpected decision %+v", decision)
	}
}

func TestClientValidateQuotaRejectsUnknownTierKind(t *testing.T) {
	rt := roundTripFunc(func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"data":{"can_order":true,"within_daily_limit":true,"tier_kind":"gold"}}`), nil
	})
	_, err := newTestClient(t, rt).WithAccessToken("t").ValidateQuota(context.Background(), 1)
	if !pkgerrors.HasCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestClientExtraFeaturesRequiresIDs(t *testing.T) {
	rt := roundTripFunc(func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"data":[{"name":"Certified copy","price":"50"}]}`), nil
	})
	_, err := newTestClient(t, rt).ExtraFeatures(context.Background())
	if !pkgerrors.HasCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

func TestClientSubmitRetriesWithIdempotencyKey(t *testing.T) {
	var calls int32
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		if req.URL.Path != "/api/v1/orders/paid" {
			t.Fatalf("unexpected path %q", req.URL.Path)
		}
		if got := req.Header.Get("Idempotency-Key"); got != "attempt-1" {
			t.Fatalf("unexpected idempotency key %q", got)
		}
		var payload checkout.Payload
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if payload.PackageID != "tier-1" || payload.UnitCount != 2 {
			t.Fatalf("unexpected payload %+v", payload)
		}
		if atomic.AddInt32(&calls, 1) == 1 {
			return jsonResponse(http.StatusServiceUnavailable, `{"error":{"code":"DEPENDENCY_ERROR","message":"upstream down"}}`), nil
		}
		return jsonResponse(http.StatusCreated, `{"data":{"success":true,"order_id":"ord-1","payment_redirect_url":"https://pay.test/checkout?order_id=ord-1"}}`), nil
	})

	client := newTestClient(t, rt, WithPolicy(retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}))
	sub, err := client.WithIdempotencyKey("attempt-1").SubmitPaidOrder(context.Background(), checkout.Payload{
		PackageID: "tier-1",
		Amount:    decimal.NewFromInt(200),
		UnitCount: 2,
	})
	if err != nil {
		t.Fatalf("submit paid order: %v", err)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
	if !sub.Success || sub.OrderID != "ord-1" || sub.PaymentRedirectURL == "" {
		t.Fatalf("unexpected submission %+v", sub)
	}
}

func TestClientSubmitWithoutKeyDoesNotRetry(t *testing.T) {
	var calls int32
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		atomic.AddInt32(&calls, 1)
		if req.Header.Get("Idempotency-Key") != "" {
			t.Fatalf("unexpected idempotency key")
		}
		return jsonResponse(http.StatusBadGateway, `upstream down`), nil
	})

	client := newTestClient(t, rt, WithPolicy(retry.Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}))
	_, err := client.ProcessFreeOrder(context.Background(), checkout.Payload{IsFreeOrder: true, UnitCount: 1})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected a single attempt, got %d", calls)
	}
}

func TestClientKeepsStoreErrorCode(t *testing.T) {
	rt := roundTripFunc(func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusBadRequest, `{"error":{"code":"VALIDATION_ERROR","message":"delivery address is required","details":{"field":"delivery_address"}}}`), nil
	})

	_, err := newTestClient(t, rt).SubmitPaidOrder(context.Background(), checkout.Payload{UnitCount: 1})
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if field := pkgerrors.FieldOf(err); field != "delivery_address" {
		t.Fatalf("expected delivery_address field, got %q", field)
	}
	if retry.DefaultRetryable(err) {
		t.Fatalf("validation failures must not be retried")
	}
}

func TestNewClientRequiresBaseURL(t *testing.T) {
	if _, err := NewClient(config.StoreAPIConfig{}); err == nil {
		t.Fatalf("expected error for empty base url")
	}
}

func newTestClient(t *testing.T, rt http.RoundTripper, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithHTTPClient(&http.Client{Transport: rt})}, opts...)
	client, err := NewClient(config.StoreAPIConfig{BaseURL: "http://store.test", Timeout: time.Second}, opts...)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}
