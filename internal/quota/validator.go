package quota

import (
	"context"
	"fmt"
	"sync"

	pkgerrors "github.com/angelmondragon/mapfinderz-backend/pkg/errors"
	"github.com/angelmondragon/mapfinderz-backend/pkg/logger"
	"github.com/angelmondragon/mapfinderz-backend/pkg/metrics"
)

// Source asks the quota authority for a decision.
type Source interface {
	ValidateQuota(ctx context.Context, count int) (Decision, error)
}

type cachedDecision struct {
	decision    Decision
	fingerprint string
}

// Validator fetches quota decisions and remembers the last one together with
// the selection it was computed for.
type Validator struct {
	source  Source
	logg    *logger.Logger
	metrics *metrics.CheckoutMetrics

	mu     sync.Mutex
	cached *cachedDecision
}

// NewValidator builds a client-side validator.
func NewValidator(source Source, logg *logger.Logger, m *metrics.CheckoutMetrics) (*Validator, error) {
	if source == nil {
		return nil, fmt.Errorf("quota source required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Validator{source: source, logg: logg, metrics: m}, nil
}

// Validate fetches a fresh decision for count. On failure the order is
// treated as paid: the returned decision is NotFree and the error is returned
// for display only.
func (v *Validator) Validate(ctx context.Context, count int, fingerprint string) (Decision, error) {
	ctx = v.logg.WithFields(ctx, map[string]any{"unit_count": count, "selection": fingerprint})

	decision, err := v.source.ValidateQuota(ctx, count)
	if err != nil {
		v.Invalidate()
		v.metrics.IncQuotaDecision("error")
		v.logg.Warn(ctx, "quota check failed, continuing as paid order")
		if pkgerrors.As(err) == nil {
			err = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "quota check failed")
		}
		return NotFree(), err
	}

	outcome := "paid"
	if decision.IsFree() {
		outcome = "free"
	}
	v.metrics.IncQuotaDecision(outcome)

	v.mu.Lock()
	v.cached = &cachedDecision{decision: decision, fingerprint: fingerprint}
	v.mu.Unlock()
	return decision, nil
}

// Current returns the cached decision when it was computed for fingerprint.
func (v *Validator) Current(fingerprint string) (Decision, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.cached == nil || v.cached.fingerprint != fingerprint {
		return NotFree(), false
	}
	return v.cached.decision, true
}

// Invalidate drops the cached decision.
func (v *Validator) Invalidate() {
	v.mu.Lock()
	v.cached = nil
	v.mu.Unlock()
}
