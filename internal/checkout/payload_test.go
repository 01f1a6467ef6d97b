package checkout

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/mapfinderz-backend/internal/features"
	"github.com/angelmondragon/mapfinderz-backend/internal/pricing"
	"github.com/angelmondragon/mapfinderz-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/mapfinderz-backend/pkg/errors"
)

func pricedState(t *testing.T, e *features.Engine) State {
	t.Helper()
	state := State{
		Kind:     enums.OrderKindFile,
		Units:    []Unit{{ID: "u1", Name: "Plot 101"}, {ID: "u2", Name: "Plot 102"}},
		Identity: Identity{Authenticated: true, UserID: "user-1"},
		Note:     "  urgent  ",
		Quote: pricing.Quote{
			Model:     enums.PricingModelTier,
			Total:     dec(200),
			UnitPrice: dec(100),
			PackageID: "tier-1",
		},
		Features: e.Snapshot(),
	}
	state.QuoteFingerprint = state.PricingKey()
	return state
}

func TestAssembleRequiresGuestCredentials(t *testing.T) {
	state := pricedState(t, newTestEngine(t))
	state.Identity = Identity{}

	_, err := Assemble(state, Aggregate(state.AggregateInput()))
	require.Error(t, err)
	assert.Equal(t, "email", pkgerrors.FieldOf(err))

	state.Identity.Email = "buyer@example.com"
	_, err = Assemble(state, Aggregate(state.AggregateInput()))
	require.Error(t, err)
	assert.Equal(t, "password", pkgerrors.FieldOf(err))

	state.Identity.Password = "secret-pass"
	payload, err := Assemble(state, Aggregate(state.AggregateInput()))
	require.NoError(t, err)
	assert.Equal(t, "buyer@example.com", payload.Email)
	assert.Equal(t, "secret-pass", payload.Password)
}

func TestAssembleRequiresDeliveryInfoForAdditionals(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.Toggle("print")
	require.NoError(t, err)
	_, err = e.ToggleAdditional("print", "lamination")
	require.NoError(t, err)

	state := pricedState(t, e)
	_, err = Assemble(state, Aggregate(state.AggregateInput()))
	require.Error(t, err)
	assert.Equal(t, features.FieldDeliveryAddress, pkgerrors.FieldOf(err))
	assert.Contains(t, err.Error(), "delivery address required")

	e.SetDeliveryInfo("House 4, Road 2, Dhanmondi", "")
	state.Features = e.Snapshot()
	_, err = Assemble(state, Aggregate(state.AggregateInput()))
	require.Error(t, err)
	assert.Equal(t, features.FieldMobileNumber, pkgerrors.FieldOf(err))

	e.SetDeliveryInfo("House 4, Road 2, Dhanmondi", "01711000000")
	state.Features = e.Snapshot()
	payload, err := Assemble(state, Aggregate(state.AggregateInput()))
	require.NoError(t, err)
	assert.Equal(t, "House 4, Road 2, Dhanmondi", payload.DeliveryAddress)
	assert.Equal(t, "01711000000", payload.MobileNumber)
	assert.Equal(t, []string{"access", "print", "delivery", "lamination"}, payload.ExtraFeatureIDs)
}

func TestAssembleOmitsDeliveryInfoWhenNotRequired(t *testing.T) {
	e := newTestEngine(t)
	e.SetDeliveryInfo("House 4", "01711000000")

	state := pricedState(t, e)
	payload, err := Assemble(state, Aggregate(state.AggregateInput()))
	require.NoError(t, err)

	assert.Empty(t, payload.DeliveryAddress)
	assert.Empty(t, payload.MobileNumber)
	assert.Empty(t, payload.Email)
	assert.Equal(t, "urgent", payload.Note)
	assert.Equal(t, "tier-1", payload.PackageID)
	assert.True(t, payload.Amount.Equal(dec(200)))
	assert.Equal(t, []string{"Plot 101", "Plot 102"}, payload.UnitNames)
	assert.Equal(t, 2, payload.UnitCount)
	assert.Equal(t, enums.OrderKindFile, payload.OrderKind)
}

func TestAssembleBlocksZeroTotalPaidOrder(t *testing.T) {
	state := pricedState(t, newTestEngine(t))
	state.QuoteFingerprint = "stale"

	_, err := Assemble(state, Aggregate(state.AggregateInput()))
	require.Error(t, err)
	assert.Equal(t, "amount", pkgerrors.FieldOf(err))
}

func TestAssembleFreeOrderSendsZeroAmount(t *testing.T) {
	state := pricedState(t, newTestEngine(t))
	state.Quota.CanOrder = true
	state.Quota.WithinDailyLimit = true
	state.QuotaFingerprint = state.Fingerprint()

	payload, err := Assemble(state, Aggregate(state.AggregateInput()))
	require.NoError(t, err)
	assert.True(t, payload.IsFreeOrder)
	assert.True(t, payload.Amount.IsZero())
	require.NoError(t, payload.Validate())
}

func TestAssembleRequiresPackage(t *testing.T) {
	state := pricedState(t, newTestEngine(t))
	state.Quote.PackageID = " "

	_, err := Assemble(state, Aggregate(state.AggregateInput()))
	require.Error(t, err)
	assert.Equal(t, "package_id", pkgerrors.FieldOf(err))
}

func TestAssembleBlockedOnlyByListedConditions(t *testing.T) {
	cases := []struct {
		name    string
		guest   bool
		creds   bool
		addOn   bool
		info    bool
		free    bool
		priced  bool
		blocked bool
	}{
		{name: "authenticated paid", priced: true},
		{name: "guest with credentials", guest: true, creds: true, priced: true},
		{name: "guest without credentials", guest: true, priced: true, blocked: true},
		{name: "additional without info", addOn: true, priced: true, blocked: true},
		{name: "additional with info", addOn: true, info: true, priced: true},
		{name: "paid at zero", blocked: true},
		{name: "free at zero", free: true},
		{name: "free with additional and info", free: true, addOn: true, info: true},
		{name: "free with additional without info", free: true, addOn: true, blocked: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newTestEngine(t)
			if tc.addOn {
				_, err := e.Toggle("print")
				require.NoError(t, err)
			}
			if tc.info {
				e.SetDeliveryInfo("House 4", "01711000000")
			}
			state := pricedState(t, e)
			if tc.guest {
				state.Identity = Identity{}
				if tc.creds {
					state.Identity = Identity{Email: "guest@example.com", Password: "pw"}
				}
			}
			if !tc.priced {
				state.Quote.Total = decimal.Zero
			}
			if tc.free {
				state.Quota.CanOrder = true
				state.Quota.WithinDailyLimit = true
				state.QuotaFingerprint = state.Fingerprint()
			}

			_, err := Assemble(state, Aggregate(state.AggregateInput()))
			assert.Equal(t, tc.blocked, err != nil, "err = %v", err)
		})
	}
}

func TestPayloadNormalize(t *testing.T) {
	p := Payload{
		PackageID:       " tier-1 ",
		Email:           " Buyer@Example.COM ",
		UnitNames:       []string{" Plot 1 "},
		ExtraFeatureIDs: []string{"access", " ", ""},
		DeliveryAddress: "  House 4 ",
	}.Normalize()

	assert.Equal(t, "tier-1", p.PackageID)
	assert.Equal(t, "buyer@example.com", p.Email)
	assert.Equal(t, []string{"Plot 1"}, p.UnitNames)
	assert.Equal(t, []string{"access"}, p.ExtraFeatureIDs)
	assert.Equal(t, "House 4", p.DeliveryAddress)
	assert.Equal(t, enums.OrderKindFile, p.OrderKind)
}

func TestPayloadValidate(t *testing.T) {
	valid := Payload{
		PackageID: "tier-1",
		Amount:    dec(100),
		UnitNames: []string{"Plot 1"},
		UnitCount: 1,
		OrderKind: enums.OrderKindFile,
	}
	require.NoError(t, valid.Validate())

	negative := valid
	negative.Amount = dec(-1)
	assert.Equal(t, "amount", pkgerrors.FieldOf(negative.Validate()))

	freeWithAmount := valid
	freeWithAmount.IsFreeOrder = true
	err := freeWithAmount.Validate()
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeInternal, pkgerrors.As(err).Code())

	mismatch := valid
	mismatch.UnitCount = 2
	assert.Equal(t, "unit_count", pkgerrors.FieldOf(mismatch.Validate()))

	search := valid
	search.OrderKind = enums.OrderKindSearch
	search.UnitCount = 12
	require.NoError(t, search.Validate())

	search.UnitCount = 0
	assert.Equal(t, "unit_count", pkgerrors.FieldOf(search.Validate()))

	unknown := valid
	unknown.OrderKind = "bundle"
	assert.Equal(t, "order_kind", pkgerrors.FieldOf(unknown.Validate()))
}
