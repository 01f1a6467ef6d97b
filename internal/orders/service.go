package orders

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/angelmondragon/mapfinderz-backend/internal/checkout"
	"github.com/angelmondragon/mapfinderz-backend/internal/features"
	"github.com/angelmondragon/mapfinderz-backend/internal/pricing"
	"github.com/angelmondragon/mapfinderz-backend/internal/quota"
	"github.com/angelmondragon/mapfinderz-backend/pkg/config"
	"github.com/angelmondragon/mapfinderz-backend/pkg/db/models"
	dbtypes "github.com/angelmondragon/mapfinderz-backend/pkg/db/types"
	"github.com/angelmondragon/mapfinderz-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/mapfinderz-backend/pkg/errors"
	"github.com/angelmondragon/mapfinderz-backend/pkg/logger"
	"github.com/angelmondragon/mapfinderz-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type buyerResolver interface {
	ResolveBuyer(ctx context.Context, email, password string) (*models.User, error)
	FindBuyer(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type quotaAuthority interface {
	Consume(ctx context.Context, userID uuid.UUID, count int) (quota.Decision, error)
	Release(ctx context.Context, userID uuid.UUID, count int) error
	TierKind(ctx context.Context, userID uuid.UUID) (enums.TierKind, error)
}

type pricer interface {
	Quote(ctx context.Context, req pricing.Request) (pricing.Quote, error)
}

type featureSource interface {
	ExtraFeatures(ctx context.Context) ([]features.Feature, error)
}

// Submission is an order payload together with the authenticated buyer, if any.
type Submission struct {
	UserID  uuid.UUID
	Payload checkout.Payload
}

// Service accepts checkout submissions from buyers.
type Service interface {
	ProcessFreeOrder(ctx context.Context, in Submission) (checkout.Submission, error)
	SubmitPaidOrder(ctx context.Context, in Submission) (checkout.Submission, error)
	ListBuyerOrders(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderList, error)
}

// ServiceParams bundles the order service dependencies.
type ServiceParams struct {
	Repo     Repository
	Tx       txRunner
	Buyers   buyerResolver
	Quota    quotaAuthority
	Pricer   pricer
	Features featureSource
	Payment  config.PaymentConfig
	Logger   *logger.Logger
}

type service struct {
	repo     Repository
	tx       txRunner
	buyers   buyerResolver
	quota    quotaAuthority
	pricer   pricer
	features featureSource
	payment  config.PaymentConfig
	logg     *logger.Logger
}

// NewService validates and wires the order service.
func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Repo == nil:
		return nil, fmt.Errorf("orders repository required")
	case params.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case params.Buyers == nil:
		return nil, fmt.Errorf("buyer resolver required")
	case params.Quota == nil:
		return nil, fmt.Errorf("quota authority required")
	case params.Pricer == nil:
		return nil, fmt.Errorf("pricer required")
	case params.Features == nil:
		return nil, fmt.Errorf("feature source required")
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:     params.Repo,
		tx:       params.Tx,
		buyers:   params.Buyers,
		quota:    params.Quota,
		pricer:   params.Pricer,
		features: params.Features,
		payment:  params.Payment,
		logg:     params.Logger,
	}, nil
}

// ProcessFreeOrder consumes the buyer's daily quota and records a completed
// zero-amount order. The quota is released when the order cannot be stored.
func (s *service) ProcessFreeOrder(ctx context.Context, in Submission) (checkout.Submission, error) {
	payload, err := prepare(in.Payload)
	if err != nil {
		return checkout.Submission{}, err
	}
	if !payload.IsFreeOrder || !payload.Amount.IsZero() {
		return checkout.Submission{}, pkgerrors.ValidationField("is_free_order", "free orders must be flagged free with a zero amount")
	}

	user, err := s.resolveBuyer(ctx, in.UserID, payload)
	if err != nil {
		return checkout.Submission{}, err
	}
	ctx = s.logg.WithUserID(ctx, user.ID.String())

	if _, err := s.restoreFeatures(ctx, payload); err != nil {
		return checkout.Submission{}, err
	}

	if _, err := s.quota.Consume(ctx, user.ID, payload.UnitCount); err != nil {
		s.logg.Warn(ctx, "free order rejected by quota authority")
		return checkout.Submission{}, err
	}

	order, err := newOrder(user.ID, payload, enums.OrderStatusCompleted)
	if err == nil {
		err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			_, createErr := s.repo.WithTx(tx).Create(ctx, order)
			return createErr
		})
	}
	if err != nil {
		if relErr := s.quota.Release(ctx, user.ID, payload.UnitCount); relErr != nil {
			s.logg.Error(ctx, "failed to release quota after free order failure", relErr)
		}
		if pkgerrors.As(err) != nil {
			return checkout.Submission{}, err
		}
		return checkout.Submission{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create free order")
	}

	s.logg.Info(s.logg.WithOrderID(ctx, order.ID.String()), "free order created")
	return checkout.Submission{Success: true, OrderID: order.ID.String()}, nil
}

// SubmitPaidOrder re-prices the payload and records an order awaiting
// payment. A payload whose amount or package no longer matches is rejected.
func (s *service) SubmitPaidOrder(ctx context.Context, in Submission) (checkout.Submission, error) {
	payload, err := prepare(in.Payload)
	if err != nil {
		return checkout.Submission{}, err
	}
	if payload.IsFreeOrder {
		return checkout.Submission{}, pkgerrors.ValidationField("is_free_order", "free orders must use the free order endpoint")
	}

	user, err := s.resolveBuyer(ctx, in.UserID, payload)
	if err != nil {
		return checkout.Submission{}, err
	}
	ctx = s.logg.WithUserID(ctx, user.ID.String())

	snap, err := s.restoreFeatures(ctx, payload)
	if err != nil {
		return checkout.Submission{}, err
	}

	// Guests could not fetch a quota decision, so they were quoted from the
	// default tier list; an empty kind makes the resolver use it too.
	var kind enums.TierKind
	if in.UserID != uuid.Nil {
		if kind, err = s.quota.TierKind(ctx, user.ID); err != nil {
			s.logg.Warn(ctx, "tier kind unavailable, pricing with default list")
		}
	}
	quote, err := s.pricer.Quote(ctx, pricing.Request{
		Count:      payload.UnitCount,
		SurveyType: payload.SurveyType,
		TierKind:   kind,
	})
	if err != nil {
		return checkout.Submission{}, err
	}

	breakdown := checkout.Aggregate(checkout.AggregateInput{
		BaseTotal: quote.Total,
		Count:     payload.UnitCount,
		Features:  snap,
	})
	if !breakdown.FinalTotal.Equal(payload.Amount) || quote.PackageID != payload.PackageID {
		return checkout.Submission{}, pkgerrors.New(pkgerrors.CodeConflict, "price changed").WithDetails(map[string]any{
			"amount":     breakdown.FinalTotal.String(),
			"package_id": quote.PackageID,
		})
	}
	if !breakdown.FinalTotal.IsPositive() {
		return checkout.Submission{}, pkgerrors.ValidationField("amount", "paid order total must be greater than zero")
	}

	order, err := newOrder(user.ID, payload, enums.OrderStatusPendingPayment)
	if err != nil {
		return checkout.Submission{}, err
	}
	redirect, err := s.redirectURL(order.ID)
	if err != nil {
		return checkout.Submission{}, err
	}
	order.PaymentRedirectURL = &redirect

	if err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		_, createErr := s.repo.WithTx(tx).Create(ctx, order)
		return createErr
	}); err != nil {
		return checkout.Submission{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create paid order")
	}

	s.logg.Info(s.logg.WithOrderID(ctx, order.ID.String()), "paid order created")
	return checkout.Submission{
		Success:            true,
		OrderID:            order.ID.String(),
		PaymentRedirectURL: redirect,
	}, nil
}

func (s *service) ListBuyerOrders(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderList, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authentication required")
	}
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return nil, pkgerrors.ValidationField("cursor", "invalid cursor")
	}
	rows, next, err := s.repo.ListByUser(ctx, userID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list orders")
	}
	list := &OrderList{Items: make([]OrderDTO, 0, len(rows)), NextCursor: next}
	for _, row := range rows {
		list.Items = append(list.Items, FromModel(row))
	}
	return list, nil
}

func (s *service) resolveBuyer(ctx context.Context, userID uuid.UUID, payload checkout.Payload) (*models.User, error) {
	if userID != uuid.Nil {
		return s.buyers.FindBuyer(ctx, userID)
	}
	return s.buyers.ResolveBuyer(ctx, payload.Email, payload.Password)
}

func (s *service) restoreFeatures(ctx context.Context, payload checkout.Payload) (features.Snapshot, error) {
	catalog, err := s.features.ExtraFeatures(ctx)
	if err != nil {
		return features.Snapshot{}, err
	}
	snap, err := features.Restore(catalog, payload.ExtraFeatureIDs, payload.DeliveryAddress, payload.MobileNumber)
	if err != nil {
		return features.Snapshot{}, err
	}
	if err := snap.DeliveryError(); err != nil {
		return features.Snapshot{}, err
	}
	return snap, nil
}

func (s *service) redirectURL(orderID uuid.UUID) (string, error) {
	base, err := url.Parse(strings.TrimSpace(s.payment.RedirectBaseURL))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return "", pkgerrors.New(pkgerrors.CodeInternal, "payment redirect url misconfigured")
	}
	q := base.Query()
	q.Set("order_id", orderID.String())
	base.RawQuery = q.Encode()
	return base.String(), nil
}

func prepare(payload checkout.Payload) (checkout.Payload, error) {
	payload = payload.Normalize()
	if err := payload.Validate(); err != nil {
		return checkout.Payload{}, err
	}
	if payload.PackageID == "" {
		return checkout.Payload{}, pkgerrors.ValidationField("package_id", "package required")
	}
	return payload, nil
}

func newOrder(userID uuid.UUID, payload checkout.Payload, status enums.OrderStatus) (*models.MapOrder, error) {
	featureIDs := make(dbtypes.UUIDArray, 0, len(payload.ExtraFeatureIDs))
	for _, raw := range payload.ExtraFeatureIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, pkgerrors.ValidationField("extra_feature_ids", "invalid extra feature id "+raw)
		}
		featureIDs = append(featureIDs, id)
	}

	packageID := payload.PackageID
	return &models.MapOrder{
		ID:              uuid.New(),
		UserID:          userID,
		Kind:            payload.OrderKind,
		Status:          status,
		PackageID:       &packageID,
		Amount:          payload.Amount,
		IsFree:          payload.IsFreeOrder,
		UnitCount:       payload.UnitCount,
		UnitNames:       pq.StringArray(payload.UnitNames),
		ExtraFeatureIDs: featureIDs,
		SurveyType:      optional(payload.SurveyType),
		Note:            optional(payload.Note),
		DeliveryAddress: optional(payload.DeliveryAddress),
		MobileNumber:    optional(payload.MobileNumber),
	}, nil
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
