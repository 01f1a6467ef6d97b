// Package storeapi is the typed HTTP client a checkout session uses to reach
// the map store's pricing, quota, feature and order endpoints.
package storeapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/angelmondragon/mapfinderz-backend/internal/checkout"
	"github.com/angelmondragon/mapfinderz-backend/internal/features"
	"github.com/angelmondragon/mapfinderz-backend/internal/pricing"
	"github.com/angelmondragon/mapfinderz-backend/internal/quota"
	"github.com/angelmondragon/mapfinderz-backend/pkg/config"
	"github.com/angelmondragon/mapfinderz-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/mapfinderz-backend/pkg/errors"
	"github.com/angelmondragon/mapfinderz-backend/pkg/retry"
)

const (
	pathTiers          = "/api/v1/pricing/tiers"
	pathSurvey         = "/api/v1/pricing/survey"
	pathQuotaValidate  = "/api/v1/quota/validate"
	pathExtraFeatures  = "/api/v1/extra-features"
	pathFreeOrder      = "/api/v1/orders/free"
	pathPaidOrder      = "/api/v1/orders/paid"
	headerIdempotency  = "Idempotency-Key"
	responseReadLimit  = 1 << 20
	errorBodyReadLimit = 1024
)

var (
	_ pricing.TierSource    = (*Client)(nil)
	_ pricing.SurveySource  = (*Client)(nil)
	_ quota.Source          = (*Client)(nil)
	_ checkout.OrderGateway = (*Client)(nil)
)

// Client calls the store API. Copies returned by WithAccessToken and
// WithIdempotencyKey share the transport.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	policy         retry.Policy
	accessToken    string
	idempotencyKey string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the configured base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		trimmed := strings.TrimSpace(baseURL)
		if trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

// WithPolicy sets the retry policy applied to every call.
func WithPolicy(policy retry.Policy) Option {
	return func(c *Client) {
		c.policy = policy
	}
}

// NewClient builds a client from configuration.
func NewClient(cfg config.StoreAPIConfig, opts ...Option) (*Client, error) {
	client := &Client{
		baseURL:    strings.TrimSpace(cfg.BaseURL),
		httpClient: &http.Client{Timeout: cfg.Timeout},
		policy:     retry.NoRetry(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	if client.baseURL == "" {
		return nil, fmt.Errorf("store api base url is required")
	}
	if _, err := url.Parse(client.baseURL); err != nil {
		return nil, fmt.Errorf("parse store api base url: %w", err)
	}
	return client, nil
}

// WithAccessToken returns a copy that authenticates as the given buyer.
func (c *Client) WithAccessToken(token string) *Client {
	cp := *c
	cp.accessToken = strings.TrimSpace(token)
	return &cp
}

// WithIdempotencyKey returns a copy that sends key on order submissions.
// A checkout attempt id keeps retried submissions from creating two orders.
func (c *Client) WithIdempotencyKey(key string) *Client {
	cp := *c
	cp.idempotencyKey = strings.TrimSpace(key)
	return &cp
}

// PackageTiers fetches the regular and pro tier lists.
func (c *Client) PackageTiers(ctx context.Context) (pricing.TierSet, error) {
	var resp struct {
		Regular *[]wireTier `json:"regular_tiers"`
		Pro     *[]wireTier `json:"pro_tiers"`
	}
	if err := c.call(ctx, http.MethodGet, pathTiers, nil, &resp); err != nil {
		return pricing.TierSet{}, err
	}
	if resp.Regular == nil && resp.Pro == nil {
		return pricing.TierSet{}, unexpectedShape("package tiers")
	}

	set := pricing.TierSet{}
	var err error
	if resp.Regular != nil {
		if set.Regular, err = mapTiers(*resp.Regular, enums.TierKindRegular); err != nil {
			return pricing.TierSet{}, err
		}
	}
	if resp.Pro != nil {
		if set.Pro, err = mapTiers(*resp.Pro, enums.TierKindPro); err != nil {
			return pricing.TierSet{}, err
		}
	}
	return set, nil
}

// SurveyPrice fetches the price row for a survey code. A null body means no
// price is configured.
func (c *Client) SurveyPrice(ctx context.Context, code enums.SurveyType, count int) (*pricing.SurveyPrice, error) {
	query := url.Values{}
	query.Set("survey_type", string(code))
	query.Set("count", strconv.Itoa(count))

	var resp *pricing.SurveyPrice
	if err := c.call(ctx, http.MethodGet, pathSurvey+"?"+query.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, nil
	}
	if strings.TrimSpace(string(resp.SurveyType)) == "" {
		return nil, unexpectedShape("survey price")
	}
	return resp, nil
}

// ValidateQuota asks the store how the buyer's daily allowance applies to count.
func (c *Client) ValidateQuota(ctx context.Context, count int) (quota.Decision, error) {
	if c != nil && c.accessToken == "" {
		return quota.Decision{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "quota validation requires an access token")
	}
	body := map[string]int{"unit_count": count}

	var resp *quota.Decision
	if err := c.call(ctx, http.MethodPost, pathQuotaValidate, body, &resp); err != nil {
		return quota.Decision{}, err
	}
	if resp == nil {
		return quota.Decision{}, unexpectedShape("quota decision")
	}
	if resp.TierKind != "" && !resp.TierKind.IsValid() {
		return quota.Decision{}, unexpectedShape("quota decision")
	}
	return *resp, nil
}

// ExtraFeatures fetches the feature catalog.
func (c *Client) ExtraFeatures(ctx context.Context) ([]features.Feature, error) {
	var resp *[]features.Feature
	if err := c.call(ctx, http.MethodGet, pathExtraFeatures, nil, &resp); err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, unexpectedShape("extra features")
	}
	for _, f := range *resp {
		if strings.TrimSpace(f.ID) == "" {
			return nil, unexpectedShape("extra features")
		}
	}
	return *resp, nil
}

// ProcessFreeOrder submits a quota-covered order.
func (c *Client) ProcessFreeOrder(ctx context.Context, payload checkout.Payload) (checkout.Submission, error) {
	return c.submit(ctx, pathFreeOrder, payload)
}

// SubmitPaidOrder submits a priced order.
func (c *Client) SubmitPaidOrder(ctx context.Context, payload checkout.Payload) (checkout.Submission, error) {
	return c.submit(ctx, pathPaidOrder, payload)
}

// submit only retries when an idempotency key makes the replay safe.
func (c *Client) submit(ctx context.Context, path string, payload checkout.Payload) (checkout.Submission, error) {
	if c == nil {
		return checkout.Submission{}, pkgerrors.New(pkgerrors.CodeDependency, "store api client not configured")
	}
	policy := c.policy
	if c.idempotencyKey == "" {
		policy = retry.NoRetry()
	}

	var resp *checkout.Submission
	if err := c.do(ctx, policy, http.MethodPost, path, c.idempotencyKey, payload, &resp); err != nil {
		return checkout.Submission{}, err
	}
	if resp == nil {
		return checkout.Submission{}, unexpectedShape("order submission")
	}
	return *resp, nil
}

type wireTier struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Limit        *int            `json:"limit"`
	PricePerUnit json.RawMessage `json:"price_per_unit"`
	PackagePrice json.RawMessage `json:"package_price"`
}

func mapTiers(rows []wireTier, kind enums.TierKind) ([]pricing.Tier, error) {
	tiers := make([]pricing.Tier, 0, len(rows))
	for _, row := range rows {
		if row.Limit == nil {
			return nil, unexpectedShape("package tiers")
		}
		tier := pricing.Tier{
			ID:    row.ID,
			Name:  row.Name,
			Limit: *row.Limit,
			Kind:  kind,
		}
		if absent(row.PricePerUnit) && absent(row.PackagePrice) {
			return nil, unexpectedShape("package tiers")
		}
		if err := decodeDecimal(row.PricePerUnit, &tier.PricePerUnit); err != nil {
			return nil, err
		}
		if err := decodeDecimal(row.PackagePrice, &tier.PackagePrice); err != nil {
			return nil, err
		}
		tiers = append(tiers, tier)
	}
	return tiers, nil
}

func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	if c == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "store api client not configured")
	}
	return c.do(ctx, c.policy, method, path, "", body, out)
}

func (c *Client) do(ctx context.Context, policy retry.Policy, method, path, idempotencyKey string, body, out any) error {

	var payload []byte
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal store api request")
		}
		payload = encoded
	}

	return policy.Do(ctx, func(ctx context.Context) error {
		return c.roundTrip(ctx, method, path, idempotencyKey, payload, out)
	})
}

func (c *Client) roundTrip(ctx context.Context, method, path, idempotencyKey string, payload []byte, out any) error {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.buildURL(path), reader)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build store api request")
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}
	if idempotencyKey != "" {
		req.Header.Set(headerIdempotency, idempotencyKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute store api request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return decodeFailure(resp)
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, responseReadLimit)).Decode(&envelope); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode store api response")
	}
	if len(envelope.Data) == 0 {
		return unexpectedShape(path)
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode store api response data")
	}
	return nil
}

// decodeFailure keeps the store's error code when the body carries one so
// callers can tell validation failures from outages.
func decodeFailure(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyReadLimit))
	statusErr := &retry.HTTPStatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}

	var envelope struct {
		Error *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
			Details any    `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil || envelope.Error == nil || envelope.Error.Code == "" {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, statusErr, "store api request failed")
	}

	code := pkgerrors.Code(envelope.Error.Code)
	if !pkgerrors.IsKnownCode(code) || code == pkgerrors.CodeInternal {
		code = pkgerrors.CodeDependency
	}
	message := envelope.Error.Message
	if message == "" {
		message = "store api request failed"
	}
	typed := pkgerrors.Wrap(code, statusErr, message)
	if envelope.Error.Details != nil {
		typed.WithDetails(envelope.Error.Details)
	}
	return typed
}

// decodeDecimal leaves dst at zero when the field is absent or null.
func decodeDecimal(raw json.RawMessage, dst interface{ UnmarshalJSON([]byte) error }) error {
	if absent(raw) {
		return nil
	}
	if err := dst.UnmarshalJSON(raw); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode tier price")
	}
	return nil
}

func absent(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || string(trimmed) == "null"
}

func unexpectedShape(what string) error {
	return pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("unexpected %s response shape", what))
}

func (c *Client) buildURL(path string) string {
	trimmed := strings.TrimRight(c.baseURL, "/")
	path = strings.TrimLeft(path, "/")
	return fmt.Sprintf("%s/%s", trimmed, path)
}
