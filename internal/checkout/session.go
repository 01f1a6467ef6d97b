package checkout

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/mapfinderz-backend/internal/features"
	"github.com/angelmondragon/mapfinderz-backend/internal/pricing"
	"github.com/angelmondragon/mapfinderz-backend/internal/quota"
	"github.com/angelmondragon/mapfinderz-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/mapfinderz-backend/pkg/errors"
	"github.com/angelmondragon/mapfinderz-backend/pkg/logger"
	"github.com/angelmondragon/mapfinderz-backend/pkg/metrics"
)

// Pricer resolves the base price of a selection.
type Pricer interface {
	Quote(ctx context.Context, req pricing.Request) (pricing.Quote, error)
}

// QuotaChecker fetches and caches quota decisions.
type QuotaChecker interface {
	Validate(ctx context.Context, count int, fingerprint string) (quota.Decision, error)
	Current(fingerprint string) (quota.Decision, bool)
	Invalidate()
}

// OrderGateway submits assembled payloads to the order authority.
type OrderGateway interface {
	ProcessFreeOrder(ctx context.Context, payload Payload) (Submission, error)
	SubmitPaidOrder(ctx context.Context, payload Payload) (Submission, error)
}

// Submission is the order authority's answer.
type Submission struct {
	Success            bool   `json:"success"`
	OrderID            string `json:"order_id"`
	PaymentRedirectURL string `json:"payment_redirect_url,omitempty"`
}

// SessionParams wires a checkout session.
type SessionParams struct {
	Pricer    Pricer
	Quota     QuotaChecker
	Gateway   OrderGateway
	Features  *features.Engine
	Logger    *logger.Logger
	Metrics   *metrics.CheckoutMetrics
	Debug     bool
	AttemptID string
}

// Session drives a single checkout attempt.
type Session struct {
	pricer  Pricer
	quota   QuotaChecker
	gateway OrderGateway
	engine  *features.Engine
	logg    *logger.Logger
	metrics *metrics.CheckoutMetrics
	debug   bool

	inFlight atomic.Bool

	mu    sync.Mutex
	state State
	sent  *Payload
}

// NewSession validates the collaborators and starts an empty file order.
func NewSession(params SessionParams) (*Session, error) {
	if params.Pricer == nil {
		return nil, fmt.Errorf("pricer required")
	}
	if params.Quota == nil {
		return nil, fmt.Errorf("quota checker required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("order gateway required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	engine := params.Features
	if engine == nil {
		var err error
		if engine, err = features.NewEngine(nil); err != nil {
			return nil, err
		}
	}
	attemptID := strings.TrimSpace(params.AttemptID)
	if attemptID == "" {
		attemptID = uuid.NewString()
	}
	return &Session{
		pricer:  params.Pricer,
		quota:   params.Quota,
		gateway: params.Gateway,
		engine:  engine,
		logg:    params.Logger,
		metrics: params.Metrics,
		debug:   params.Debug,
		state: State{
			AttemptID: attemptID,
			Kind:      enums.OrderKindFile,
		},
	}, nil
}

// Features exposes the extra-feature engine of this checkout.
func (s *Session) Features() *features.Engine {
	return s.engine
}

// SetUnits replaces the file selection.
func (s *Session) SetUnits(units []Unit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Kind = enums.OrderKindFile
	s.state.Units = append([]Unit(nil), units...)
	s.state.SearchUnitCount = 0
}

// SetSearchResult switches to a search order priced by count.
func (s *Session) SetSearchResult(unit Unit, count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Kind = enums.OrderKindSearch
	s.state.Units = []Unit{unit}
	s.state.SearchUnitCount = count
}

// SetSurveyType sets the raw survey/khatian type used for survey pricing.
func (s *Session) SetSurveyType(raw string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.SurveyType = strings.TrimSpace(raw)
}

// SetIdentity records who is buying.
func (s *Session) SetIdentity(identity Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Identity = identity
}

// SetNote stores the buyer's free-form note.
func (s *Session) SetNote(note string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Note = note
}

// State returns a copy of the checkout state with the current feature selection.
func (s *Session) State() State {
	s.mu.Lock()
	state := s.state.clone()
	s.mu.Unlock()
	state.Features = s.engine.Snapshot()
	return state
}

// Sent returns the frozen payload once an order was accepted.
func (s *Session) Sent() (Payload, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sent == nil {
		return Payload{}, false
	}
	return *s.sent, true
}

// ValidateQuota fetches a fresh quota decision for the current selection.
// On failure the checkout continues as a paid order and the error is returned
// for display.
func (s *Session) ValidateQuota(ctx context.Context) (quota.Decision, error) {
	state := s.State()
	fingerprint := state.Fingerprint()

	decision, err := s.quota.Validate(ctx, state.UnitCount(), fingerprint)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Fingerprint() != fingerprint {
		return decision, err
	}
	s.state.Quota = decision
	s.state.QuotaFingerprint = fingerprint
	if decision.TierKind.IsValid() {
		s.state.TierKind = decision.TierKind
	}
	return decision, err
}

// Price resolves the base price and returns the current breakdown.
func (s *Session) Price(ctx context.Context) (Breakdown, error) {
	state := s.State()
	key := state.PricingKey()

	quote, err := s.pricer.Quote(ctx, pricing.Request{
		Count:      state.UnitCount(),
		SurveyType: state.SurveyType,
		TierKind:   state.TierKind,
	})

	s.mu.Lock()
	if s.state.PricingKey() == key {
		s.state.Quote = quote
		s.state.QuoteFingerprint = key
	}
	s.mu.Unlock()

	return Aggregate(s.State().AggregateInput()), err
}

// Submit assembles the payload once and routes it to the free or paid
// endpoint. Concurrent calls are rejected while one is in flight.
func (s *Session) Submit(ctx context.Context) (Submission, error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		return Submission{}, pkgerrors.New(pkgerrors.CodeConflict, "submission already in flight")
	}
	defer s.inFlight.Store(false)

	if _, sent := s.Sent(); sent {
		return Submission{}, pkgerrors.New(pkgerrors.CodeConflict, "order already submitted")
	}

	state := s.State()
	ctx = s.logg.WithCheckout(ctx, state.AttemptID, state.UnitCount())

	if err := s.refreshQuota(ctx, state.Fingerprint()); err != nil {
		s.logg.Warn(ctx, "quota re-check failed, submitting as paid order")
	}

	state = s.State()
	if state.QuoteFingerprint != state.PricingKey() || !state.Quote.Available() {
		if _, err := s.Price(ctx); err != nil {
			return Submission{}, err
		}
		state = s.State()
	}

	payload, err := Assemble(state, Aggregate(state.AggregateInput()))
	if err != nil {
		return Submission{}, err
	}
	if err := payload.Validate(); err != nil {
		if s.debug {
			panic(fmt.Sprintf("inconsistent checkout payload: %v", err))
		}
		s.logg.Error(ctx, "assembled payload is inconsistent", err)
		return Submission{}, err
	}

	kind := "paid"
	send := s.gateway.SubmitPaidOrder
	if payload.IsFreeOrder {
		kind = "free"
		send = s.gateway.ProcessFreeOrder
	}

	start := time.Now()
	result, err := send(ctx, payload)
	if err == nil && !result.Success {
		err = pkgerrors.New(pkgerrors.CodeDependency, "order was not accepted")
	}
	s.metrics.ObserveSubmission(kind, err == nil, time.Since(start))
	if err != nil {
		if payload.IsFreeOrder {
			s.dropQuotaDecision()
		}
		s.logg.Error(s.logg.WithField(ctx, "order_kind", kind), "order submission failed", err)
		return Submission{}, err
	}

	s.mu.Lock()
	frozen := payload
	s.sent = &frozen
	s.mu.Unlock()

	s.logg.Info(s.logg.WithOrderID(ctx, result.OrderID), "order submitted")
	return result, nil
}

// refreshQuota reuses a decision cached for fingerprint or fetches a new one.
func (s *Session) refreshQuota(ctx context.Context, fingerprint string) error {
	if decision, ok := s.quota.Current(fingerprint); ok {
		s.mu.Lock()
		if s.state.Fingerprint() == fingerprint {
			s.state.Quota = decision
			s.state.QuotaFingerprint = fingerprint
			if decision.TierKind.IsValid() {
				s.state.TierKind = decision.TierKind
			}
		}
		s.mu.Unlock()
		return nil
	}
	_, err := s.ValidateQuota(ctx)
	return err
}

// dropQuotaDecision forgets the captured decision so the next submission asks
// the authority again instead of retrying a rejected free order.
func (s *Session) dropQuotaDecision() {
	s.quota.Invalidate()
	s.mu.Lock()
	s.state.Quota = quota.NotFree()
	s.state.QuotaFingerprint = ""
	s.mu.Unlock()
}
