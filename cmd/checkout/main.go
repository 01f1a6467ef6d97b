package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/mapfinderz-backend/pkg/config"
	"github.com/angelmondragon/mapfinderz-backend/pkg/logger"
	"github.com/angelmondragon/mapfinderz-backend/pkg/retry"
	"github.com/angelmondragon/mapfinderz-backend/pkg/storeapi"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "checkout", Output: os.Stderr})

	_ = godotenv.Load()

	opts := options{}
	flag.StringVar(&opts.Units, "units", "", "comma separated unit names")
	flag.IntVar(&opts.SearchCount, "search-count", 0, "price a search order for this many units")
	flag.StringVar(&opts.SurveyType, "survey", "", "survey or khatian type, e.g. RS")
	flag.StringVar(&opts.Features, "features", "", "comma separated extra feature ids to select")
	flag.StringVar(&opts.Additionals, "additionals", "", "comma separated feature:additional pairs")
	flag.BoolVar(&opts.SkipPrimary, "skip-primary", false, "deselect the primary feature")
	flag.StringVar(&opts.Address, "address", "", "delivery address")
	flag.StringVar(&opts.Phone, "phone", "", "delivery mobile number")
	flag.StringVar(&opts.Note, "note", "", "order note")
	flag.StringVar(&opts.Token, "token", "", "buyer access token")
	flag.StringVar(&opts.Email, "email", "", "guest email")
	flag.StringVar(&opts.Password, "password", "", "guest password")
	flag.StringVar(&opts.AttemptID, "attempt", "", "checkout attempt id, reused as the idempotency key")
	flag.BoolVar(&opts.Submit, "submit", false, "submit the order instead of printing the quote")
	flag.Parse()

	cfg, err := config.LoadClient()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "checkout",
		Level:       logger.ParseLevel(cfg.LogLevel),
		Format:      cfg.LogFormat,
		Output:      os.Stderr,
	})

	client, err := storeapi.NewClient(cfg.StoreAPI, storeapi.WithPolicy(retry.NewPolicy(cfg.Retry)))
	if err != nil {
		logg.Error(context.Background(), "failed to build store api client", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, client, cfg, opts, os.Stdout, logg); err != nil {
		logg.Error(ctx, "checkout failed", err)
		os.Exit(1)
	}
}
