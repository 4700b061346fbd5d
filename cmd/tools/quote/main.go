// Command quote prices carts and lists snapshots from the command line using
// the same configuration as the API server.
package main

import (
	"context"
	"os"

	"github.com/rs/zerolog"

	"github.com/noah-isme/nft-checkout/internal/app"
	"github.com/noah-isme/nft-checkout/internal/config"
	"github.com/noah-isme/nft-checkout/internal/obs"
)

func main() {
	load := func(ctx context.Context) (*app.Dependencies, error) {
		cfg, err := config.Load()
		if err != nil {
			return nil, err
		}
		logger := obs.NewLoggerTo(os.Stderr, "console", cfg.Obs.LogLevel)
		return app.New(ctx, cfg, logger, app.Options{})
	}
	if err := newRootCmd(load).ExecuteContext(context.Background()); err != nil {
		logger := zerolog.New(os.Stderr)
		logger.Error().Err(err).Msg("quote failed")
		os.Exit(1)
	}
}
