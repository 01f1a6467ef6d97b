package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/mapfinderz-backend/internal/checkout"
	"github.com/angelmondragon/mapfinderz-backend/internal/features"
	"github.com/angelmondragon/mapfinderz-backend/internal/pricing"
	"github.com/angelmondragon/mapfinderz-backend/internal/quota"
	"github.com/angelmondragon/mapfinderz-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/mapfinderz-backend/pkg/errors"
	"github.com/angelmondragon/mapfinderz-backend/pkg/logger"
	"github.com/angelmondragon/mapfinderz-backend/pkg/storeapi"
)

type options struct {
	Units       string
	SearchCount int
	SurveyType  string
	Features    string
	Additionals string
	SkipPrimary bool
	Address     string
	Phone       string
	Note        string
	Token       string
	Email       string
	Password    string
	AttemptID   string
	Submit      bool
}

type report struct {
	AttemptID  string               `json:"attempt_id"`
	Quote      pricing.Quote        `json:"quote"`
	Quota      *quota.Decision      `json:"quota,omitempty"`
	QuotaError string               `json:"quota_error,omitempty"`
	Breakdown  checkout.Breakdown   `json:"breakdown"`
	Submission *checkout.Submission `json:"submission,omitempty"`
	Payload    *checkout.Payload    `json:"payload,omitempty"`
}

// run prices one checkout against the store API and optionally submits it.
func run(ctx context.Context, client *storeapi.Client, cfg *config.ClientConfig, opts options, out io.Writer, logg *logger.Logger) error {
	units := splitList(opts.Units)
	if len(units) == 0 {
		return pkgerrors.ValidationField("units", "at least one unit is required")
	}

	if token := strings.TrimSpace(opts.Token); token != "" {
		client = client.WithAccessToken(token)
	}

	catalog, err := client.ExtraFeatures(ctx)
	if err != nil {
		return err
	}
	engine, err := features.NewEngine(catalog)
	if err != nil {
		return err
	}

	resolver, err := pricing.NewResolver(client, client, cfg.Pricing, logg, nil)
	if err != nil {
		return err
	}
	validator, err := quota.NewValidator(client, logg, nil)
	if err != nil {
		return err
	}

	attemptID := strings.TrimSpace(opts.AttemptID)
	if attemptID == "" {
		attemptID = uuid.NewString()
	}
	session, err := checkout.NewSession(checkout.SessionParams{
		Pricer:    resolver,
		Quota:     validator,
		Gateway:   client.WithIdempotencyKey(attemptID),
		Features:  engine,
		Logger:    logg,
		Debug:     cfg.Debug,
		AttemptID: attemptID,
	})
	if err != nil {
		return err
	}

	if opts.SearchCount > 0 {
		session.SetSearchResult(checkout.Unit{ID: units[0], Name: units[0]}, opts.SearchCount)
	} else {
		selected := make([]checkout.Unit, 0, len(units))
		for _, name := range units {
			selected = append(selected, checkout.Unit{ID: name, Name: name})
		}
		session.SetUnits(selected)
	}
	session.SetSurveyType(opts.SurveyType)
	session.SetNote(opts.Note)
	session.SetIdentity(checkout.Identity{
		Authenticated: strings.TrimSpace(opts.Token) != "",
		Email:         opts.Email,
		Password:      opts.Password,
	})

	if err := applyFeatures(engine, opts); err != nil {
		return err
	}

	rep := report{AttemptID: attemptID}
	if strings.TrimSpace(opts.Token) != "" {
		decision, quotaErr := session.ValidateQuota(ctx)
		rep.Quota = &decision
		if quotaErr != nil {
			rep.QuotaError = quotaErr.Error()
		}
	}

	breakdown, err := session.Price(ctx)
	if err != nil {
		return err
	}
	rep.Breakdown = breakdown
	rep.Quote = session.State().Quote

	if opts.Submit {
		sub, err := session.Submit(ctx)
		if err != nil {
			return err
		}
		rep.Submission = &sub
		if payload, ok := session.Sent(); ok {
			rep.Payload = &payload
		}
	}

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(rep)
}

// applyFeatures selects features and additionals, then confirms every open
// configuration step. Confirmation errors are collected so the buyer sees
// every missing field at once.
func applyFeatures(engine *features.Engine, opts options) error {
	if opts.SkipPrimary {
		if err := engine.SetPrimarySelected(false); err != nil && !errors.Is(err, features.ErrUnknownFeature) {
			return err
		}
	}

	selected := map[string]bool{}
	for _, id := range splitList(opts.Features) {
		if _, err := engine.Toggle(id); err != nil {
			return fmt.Errorf("select feature %s: %w", id, err)
		}
		selected[id] = true
	}

	pairs, err := parseAdditionals(opts.Additionals)
	if err != nil {
		return err
	}
	for _, pair := range pairs {
		if !selected[pair[0]] {
			if _, err := engine.Toggle(pair[0]); err != nil {
				return fmt.Errorf("select feature %s: %w", pair[0], err)
			}
			selected[pair[0]] = true
		}
		if _, err := engine.ToggleAdditional(pair[0], pair[1]); err != nil {
			return fmt.Errorf("select additional %s of %s: %w", pair[1], pair[0], err)
		}
	}

	engine.SetDeliveryInfo(opts.Address, opts.Phone)

	var errs error
	for id := range selected {
		if _, err := engine.Confirm(id); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}

func parseAdditionals(raw string) ([][2]string, error) {
	items := splitList(raw)
	pairs := make([][2]string, 0, len(items))
	for _, item := range items {
		featureID, additionalID, ok := strings.Cut(item, ":")
		featureID = strings.TrimSpace(featureID)
		additionalID = strings.TrimSpace(additionalID)
		if !ok || featureID == "" || additionalID == "" {
			return nil, pkgerrors.ValidationField("additionals", fmt.Sprintf("expected feature:additional, got %q", item))
		}
		pairs = append(pairs, [2]string{featureID, additionalID})
	}
	return pairs, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
