// Command seeder loads products and vouchers into the document store.
package main

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/noah-isme/shopmate/internal/app"
	"github.com/noah-isme/shopmate/internal/catalog"
	"github.com/noah-isme/shopmate/internal/config"
	"github.com/noah-isme/shopmate/internal/docstore"
	"github.com/noah-isme/shopmate/internal/obs"
	"github.com/noah-isme/shopmate/internal/voucher"
)

//go:embed seed.json
var defaultSeed []byte

type seedFile struct {
	Products []catalog.Product `json:"products"`
	Vouchers []voucher.Voucher `json:"vouchers"`
}

type options struct {
	file     string
	products bool
	vouchers bool
}

func main() {
	var opts options
	flags := pflag.NewFlagSet("seeder", pflag.ExitOnError)
	flags.StringVarP(&opts.file, "file", "f", "", "seed file (defaults to the embedded seed.json)")
	flags.BoolVar(&opts.products, "products", true, "seed products")
	flags.BoolVar(&opts.vouchers, "vouchers", true, "seed vouchers")
	_ = flags.Parse(os.Args[1:])

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := obs.NewLogger(cfg.Obs.LogFormat, cfg.Obs.LogLevel).With().Str("component", "seeder").Logger()

	seed, err := readSeed(opts.file)
	if err != nil {
		logger.Fatal().Err(err).Msg("read seed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	deps, err := app.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open dependencies")
	}
	defer func() { _ = deps.Close() }()

	products, err := catalog.NewService(catalog.ServiceConfig{
		Store:  deps.Store,
		Cache:  catalog.NewCache(deps.Redis, cfg.CatalogCacheTTL),
		Logger: logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise catalog")
	}
	res, err := run(ctx, opts, seed, products, deps.Store, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("seed")
	}
	logger.Info().Int("products", res.products).Int("vouchers", res.vouchers).Int("skipped_vouchers", res.skipped).Msg("seeding completed")
}

type result struct {
	products int
	vouchers int
	skipped  int
}

func readSeed(path string) (seedFile, error) {
	raw := defaultSeed
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return seedFile{}, err
		}
		raw = b
	}
	var seed seedFile
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&seed); err != nil {
		return seedFile{}, fmt.Errorf("decode seed: %w", err)
	}
	return seed, nil
}

// run writes the seed. Products are upserted by id; vouchers whose code already exists are skipped.
func run(ctx context.Context, opts options, seed seedFile, products *catalog.Service, store docstore.Store, logger zerolog.Logger) (result, error) {
	var res result
	if opts.products {
		for _, p := range seed.Products {
			if err := products.Put(ctx, p); err != nil {
				return res, fmt.Errorf("product %s: %w", p.ID, err)
			}
			res.products++
		}
	}
	if opts.vouchers {
		vouchers := &voucher.Service{Store: store, Logger: logger}
		for _, v := range seed.Vouchers {
			_, err := vouchers.Create(ctx, v)
			switch {
			case errors.Is(err, voucher.ErrDuplicateCode), errors.Is(err, voucher.ErrDuplicateID):
				logger.Info().Str("code", v.Code).Msg("voucher_exists")
				res.skipped++
			case err != nil:
				return res, fmt.Errorf("voucher %s: %w", v.Code, err)
			default:
				res.vouchers++
			}
		}
	}
	return res, nil
}
