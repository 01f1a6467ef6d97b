package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/mapfinderz-backend/pkg/config"
	"github.com/angelmondragon/mapfinderz-backend/pkg/db/models"
	"github.com/angelmondragon/mapfinderz-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/mapfinderz-backend/pkg/errors"
	"github.com/angelmondragon/mapfinderz-backend/pkg/logger"
	"github.com/angelmondragon/mapfinderz-backend/pkg/metrics"
	"github.com/angelmondragon/mapfinderz-backend/pkg/redis"
)

const dayLayout = "2006-01-02"

// Authority owns the shared daily counter. Only Consume and Release mutate it.
type Authority struct {
	counter      redis.QuotaCounter
	entitlements EntitlementRepository
	loc          *time.Location
	ttl          time.Duration
	defaultUnits int
	defaultKind  enums.TierKind
	logg         *logger.Logger
	metrics      *metrics.CheckoutMetrics
	now          func() time.Time
}

// AuthorityParams wires the authority collaborators.
type AuthorityParams struct {
	Counter         redis.QuotaCounter
	Entitlements    EntitlementRepository
	Config          config.QuotaConfig
	DefaultTierKind enums.TierKind
	Logger          *logger.Logger
	Metrics         *metrics.CheckoutMetrics
	Now             func() time.Time
}

// NewAuthority builds the server-side quota authority.
func NewAuthority(params AuthorityParams) (*Authority, error) {
	if params.Counter == nil {
		return nil, fmt.Errorf("quota counter required")
	}
	if params.Entitlements == nil {
		return nil, fmt.Errorf("entitlement repository required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	kind := params.DefaultTierKind
	if !kind.IsValid() {
		kind = enums.TierKindRegular
	}
	return &Authority{
		counter:      params.Counter,
		entitlements: params.Entitlements,
		loc:          params.Config.Location(),
		ttl:          params.Config.CounterTTL,
		defaultUnits: params.Config.DefaultDailyUnits,
		defaultKind:  kind,
		logg:         params.Logger,
		metrics:      params.Metrics,
		now:          now,
	}, nil
}

type allowance struct {
	canOrder    bool
	dailyLimit  int
	packageName string
	kind        enums.TierKind
}

// Check reports whether count more units would be free today. It does not
// touch the counter.
func (a *Authority) Check(ctx context.Context, userID uuid.UUID, count int) (Decision, error) {
	if count <= 0 {
		return NotFree(), pkgerrors.ValidationField("unit_count", "unit count must be positive")
	}
	allow, err := a.allowanceFor(ctx, userID)
	if err != nil {
		return NotFree(), err
	}
	used, err := a.counter.GetInt(ctx, a.key(userID))
	if err != nil {
		return NotFree(), pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read quota counter")
	}
	decision := a.decide(allow, int(used), count)
	a.record(ctx, userID, decision)
	return decision, nil
}

// Consume reserves count units of today's allowance. The increment is rolled
// back when it would exceed the limit.
func (a *Authority) Consume(ctx context.Context, userID uuid.UUID, count int) (Decision, error) {
	decision, err := a.Check(ctx, userID, count)
	if err != nil {
		return decision, err
	}
	if !decision.CanOrder {
		return decision, pkgerrors.New(pkgerrors.CodeStateConflict, "no active free-order entitlement")
	}
	if !decision.WithinDailyLimit {
		return decision, pkgerrors.New(pkgerrors.CodeStateConflict, "daily quota exhausted")
	}

	key := a.key(userID)
	used, err := a.counter.IncrByWithTTL(ctx, key, int64(count), a.ttl)
	if err != nil {
		return NotFree(), pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment quota counter")
	}
	if int(used) > decision.DailyLimit {
		if _, rbErr := a.counter.DecrBy(ctx, key, int64(count)); rbErr != nil {
			a.logg.Error(a.logg.WithUserID(ctx, userID.String()), "failed to roll back quota increment", rbErr)
		}
		return NotFree(), pkgerrors.New(pkgerrors.CodeStateConflict, "daily quota exhausted")
	}

	decision.Remaining = decision.DailyLimit - int(used)
	return decision, nil
}

// Release returns count units to today's allowance after a failed free order.
func (a *Authority) Release(ctx context.Context, userID uuid.UUID, count int) error {
	if count <= 0 {
		return nil
	}
	remaining, err := a.counter.DecrBy(ctx, a.key(userID), int64(count))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release quota counter")
	}
	if remaining < 0 {
		a.logg.Warn(a.logg.WithUserID(ctx, userID.String()), "quota counter released below zero")
	}
	return nil
}

// TierKind returns the package list kind that applies to the buyer.
func (a *Authority) TierKind(ctx context.Context, userID uuid.UUID) (enums.TierKind, error) {
	allow, err := a.allowanceFor(ctx, userID)
	if err != nil {
		return a.defaultKind, err
	}
	return allow.kind, nil
}

func (a *Authority) allowanceFor(ctx context.Context, userID uuid.UUID) (allowance, error) {
	if userID == uuid.Nil {
		return allowance{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "buyer identity required")
	}
	ent, err := a.entitlements.FindByUser(ctx, userID)
	if err != nil {
		return allowance{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load entitlement")
	}
	return a.allowanceFromEntitlement(ent), nil
}

func (a *Authority) allowanceFromEntitlement(ent *models.BuyerEntitlement) allowance {
	if ent == nil || !ent.ActiveAt(a.now()) {
		return allowance{
			canOrder:   a.defaultUnits > 0,
			dailyLimit: a.defaultUnits,
			kind:       a.defaultKind,
		}
	}
	kind := ent.Kind
	if !kind.IsValid() {
		kind = a.defaultKind
	}
	return allowance{
		canOrder:    ent.DailyFreeUnits > 0,
		dailyLimit:  ent.DailyFreeUnits,
		packageName: ent.PackageName,
		kind:        kind,
	}
}

func (a *Authority) decide(allow allowance, used, count int) Decision {
	remaining := allow.dailyLimit - used
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		CanOrder:         allow.canOrder,
		WithinDailyLimit: allow.canOrder && used+count <= allow.dailyLimit,
		Remaining:        remaining,
		DailyLimit:       allow.dailyLimit,
		PackageName:      allow.packageName,
		TierKind:         allow.kind,
	}
}

func (a *Authority) record(ctx context.Context, userID uuid.UUID, decision Decision) {
	outcome := "paid"
	if decision.IsFree() {
		outcome = "free"
	}
	a.metrics.IncQuotaDecision(outcome)
	a.logg.Debug(a.logg.WithFields(ctx, map[string]any{
		"user_id":     userID.String(),
		"remaining":   decision.Remaining,
		"daily_limit": decision.DailyLimit,
		"outcome":     outcome,
	}), "quota decision")
}

func (a *Authority) key(userID uuid.UUID) string {
	return a.counter.QuotaKey(userID.String(), a.now().In(a.loc).Format(dayLayout))
}
