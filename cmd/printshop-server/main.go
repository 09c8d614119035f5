// Copyright 2026 The Fancy T-Shirts Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/bakhtin/ctf-tshirt/lib/clock"
	"github.com/bakhtin/ctf-tshirt/lib/config"
	"github.com/bakhtin/ctf-tshirt/lib/logging"
	"github.com/bakhtin/ctf-tshirt/lib/process"
	"github.com/bakhtin/ctf-tshirt/lib/render"
	"github.com/bakhtin/ctf-tshirt/lib/sealed"
	"github.com/bakhtin/ctf-tshirt/lib/session"
	"github.com/bakhtin/ctf-tshirt/lib/shopserver"
	"github.com/bakhtin/ctf-tshirt/lib/shopstore"
	"github.com/bakhtin/ctf-tshirt/lib/version"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		process.Fatal(err)
	}
}

type options struct {
	configPath  string
	listen      string
	showVersion bool
}

func parseFlags(args []string, usage io.Writer) (*options, error) {
	var opts options
	flagSet := pflag.NewFlagSet("printshop-server", pflag.ContinueOnError)
	flagSet.SetOutput(usage)
	flagSet.StringVar(&opts.configPath, "config", "", "path to printshop.yaml (default: $"+config.EnvironmentVariable+")")
	flagSet.StringVar(&opts.listen, "listen", "", "listen address host:port, overriding listen.address")
	flagSet.BoolVar(&opts.showVersion, "version", false, "print version information and exit")
	flagSet.Usage = func() {
		fmt.Fprintf(usage, "Fancy T-Shirts print shop server.\n\nUsage:\n  printshop-server [flags]\n\nFlags:\n%s", flagSet.FlagUsages())
	}

	if err := flagSet.Parse(args); err != nil {
		return nil, err
	}
	if flagSet.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", flagSet.Args())
	}
	return &opts, nil
}

// loadConfig resolves, overrides and validates the configuration.
func loadConfig(opts *options) (*config.Config, error) {
	cfg, err := config.Resolve(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.listen != "" {
		cfg.Listen.Address = opts.listen
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func run(args []string) error {
	opts, err := parseFlags(args, os.Stderr)
	if errors.Is(err, pflag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}
	if opts.showVersion {
		version.Print("printshop-server")
		return nil
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logger := logging.NewLogger(level)
	slog.SetDefault(logger)

	startupAttributes := []any{"version", version.Info(), "environment", string(cfg.Environment)}
	if digest, _, err := version.SelfDigest(); err == nil {
		startupAttributes = append(startupAttributes, "binary_digest", digest)
	}
	logger.Info("printshop starting", startupAttributes...)

	shop, err := openShop(cfg, logger)
	if err != nil {
		return err
	}
	defer shop.Close()

	ctx, stop := process.SignalContext(context.Background())
	defer stop()

	return shop.server.ListenAndServe(ctx, cfg.Listen.Address)
}

// shop owns everything the server needs that must be closed.
type shop struct {
	keypair *sealed.Keypair
	store   *shopstore.Store
	server  *shopserver.Server
}

// openShop builds the store, renderer and server from cfg. On error
// everything opened so far is closed.
func openShop(cfg *config.Config, logger *slog.Logger) (_ *shop, err error) {
	if err := cfg.EnsurePaths(); err != nil {
		return nil, err
	}

	result := &shop{}
	defer func() {
		if err != nil {
			result.Close()
		}
	}()

	result.keypair, err = sealed.LoadKeypair(cfg.Paths.Identity)
	if err != nil {
		return nil, fmt.Errorf("loading identity (create one with printshop-provision --generate-identity): %w", err)
	}

	result.store, err = shopstore.Open(shopstore.Config{
		Path:    cfg.Paths.Database,
		Keypair: result.keypair,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}

	renderer, err := render.NewImageRenderer(render.Config{
		TemplateDir: cfg.Paths.Templates,
		OutputDir:   cfg.Paths.Artifacts,
		FontPath:    cfg.Paths.Font,
		FontSize:    cfg.Render.FontSize,
		Concurrency: cfg.Render.Concurrency,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}
	if missing := render.MissingTemplates(cfg.Paths.Templates); len(missing) > 0 {
		logger.Warn("shirt templates missing; orders in these colors will fail to render",
			"directory", cfg.Paths.Templates,
			"missing", missing,
		)
	}

	result.server, err = shopserver.New(shopserver.Config{
		Store:    result.store,
		Renderer: renderer,
		Clock:    clock.Real(),
		Conn: session.ConnConfig{
			IdleTimeout:   cfg.Session.IdleTimeout,
			MaxLineLength: cfg.Session.MaxLineLength,
		},
		CouponAttempts: cfg.Session.CouponAttempts,
		Logger:         logger,
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Close releases the store and the private key.
func (s *shop) Close() {
	if s.store != nil {
		s.store.Close()
	}
	if s.keypair != nil {
		s.keypair.Close()
	}
}
