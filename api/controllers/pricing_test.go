package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/mapfinderz-backend/api/middleware"
	"github.com/angelmondragon/mapfinderz-backend/internal/pricing"
	"github.com/angelmondragon/mapfinderz-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/mapfinderz-backend/pkg/errors"
	"github.com/angelmondragon/mapfinderz-backend/pkg/logger"
)

type stubSurveySource struct {
	gotCode  enums.SurveyType
	gotCount int
	price    *pricing.SurveyPrice
}

func (s *stubSurveySource) SurveyPrice(_ context.Context, code enums.SurveyType, count int) (*pricing.SurveyPrice, error) {
	s.gotCode = code
	s.gotCount = count
	return s.price, nil
}

type stubQuoter struct {
	got pricing.Request
	err error
}

func (s *stubQuoter) Quote(_ context.Context, req pricing.Request) (pricing.Quote, error) {
	s.got = req
	if s.err != nil {
		return pricing.Quote{}, s.err
	}
	return pricing.Quote{Model: enums.PricingModelTier, Total: decimal.NewFromInt(80), UnitPrice: decimal.NewFromInt(40)}, nil
}

type stubKinds struct {
	kind enums.TierKind
}

func (s stubKinds) TierKind(context.Context, uuid.UUID) (enums.TierKind, error) {
	return s.kind, nil
}

func discardLogger() *logger.Logger {
	return logger.Nop()
}

func TestSurveyPriceUppercasesCode(t *testing.T) {
	src := &stubSurveySource{price: &pricing.SurveyPrice{SurveyType: "RS", PricePerUnit: decimal.NewFromInt(30), TotalPrice: decimal.NewFromInt(90)}}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/pricing/survey?survey_type=rs&count=3", nil)
	resp := httptest.NewRecorder()

	SurveyPrice(src, discardLogger()).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if src.gotCode != "RS" || src.gotCount != 3 {
		t.Fatalf("unexpected lookup %s/%d", src.gotCode, src.gotCount)
	}
}

func TestSurveyPriceWritesNullWhenMissing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/pricing/survey?survey_type=CS", nil)
	resp := httptest.NewRecorder()

	SurveyPrice(&stubSurveySource{}, discardLogger()).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if strings.TrimSpace(resp.Body.String()) != `{"data":null}` {
		t.Fatalf("unexpected body %s", resp.Body.String())
	}
}

func TestQuoteUsesBuyerTierKind(t *testing.T) {
	quoter := &stubQuoter{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/pricing/quote", strings.NewReader(`{"unit_count":2,"survey_type":"RS"}`))
	req = req.WithContext(middleware.WithUserID(req.Context(), uuid.NewString()))
	resp := httptest.NewRecorder()

	Quote(quoter, stubKinds{kind: enums.TierKindPro}, discardLogger()).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if quoter.got.Count != 2 || quoter.got.SurveyType != "RS" || quoter.got.TierKind != enums.TierKindPro {
		t.Fatalf("unexpected request %+v", quoter.got)
	}

	var envelope struct {
		Data pricing.Quote `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !envelope.Data.Total.Equal(decimal.NewFromInt(80)) {
		t.Fatalf("unexpected total %s", envelope.Data.Total)
	}
}

func TestQuoteGuestGetsDefaultTierKind(t *testing.T) {
	quoter := &stubQuoter{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/pricing/quote", strings.NewReader(`{"unit_count":1}`))
	resp := httptest.NewRecorder()

	Quote(quoter, stubKinds{kind: enums.TierKindPro}, discardLogger()).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if quoter.got.TierKind != "" {
		t.Fatalf("expected resolver default tier kind, got %q", quoter.got.TierKind)
	}
}

func TestQuoteRejectsZeroUnits(t *testing.T) {
	quoter := &stubQuoter{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/pricing/quote", strings.NewReader(`{"unit_count":0}`))
	resp := httptest.NewRecorder()

	Quote(quoter, nil, discardLogger()).ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.Code)
	}
}

func TestQuoteSurfacesUnavailablePricing(t *testing.T) {
	quoter := &stubQuoter{err: pkgerrors.New(pkgerrors.CodeDependency, "pricing unavailable")}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/pricing/quote", strings.NewReader(`{"unit_count":3}`))
	resp := httptest.NewRecorder()

	Quote(quoter, nil, discardLogger()).ServeHTTP(resp, req)

	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.Code)
	}
}
