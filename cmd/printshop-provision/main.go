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
	"time"

	"github.com/spf13/pflag"

	"github.com/bakhtin/ctf-tshirt/lib/config"
	"github.com/bakhtin/ctf-tshirt/lib/logging"
	"github.com/bakhtin/ctf-tshirt/lib/process"
	"github.com/bakhtin/ctf-tshirt/lib/provision"
	"github.com/bakhtin/ctf-tshirt/lib/render"
	"github.com/bakhtin/ctf-tshirt/lib/sealed"
	"github.com/bakhtin/ctf-tshirt/lib/secret"
	"github.com/bakhtin/ctf-tshirt/lib/shopstore"
	"github.com/bakhtin/ctf-tshirt/lib/version"
)

func main() {
	t := &tool{
		stdout:     os.Stdout,
		usage:      os.Stderr,
		logger:     logging.NewLogger(slog.LevelInfo),
		readSecret: secret.ReadInteractive,
		now:        time.Now,
	}
	if err := t.run(context.Background(), os.Args[1:]); err != nil {
		process.Fatal(err)
	}
}

// tool carries the process I/O so tests can substitute it.
type tool struct {
	stdout     io.Writer
	usage      io.Writer
	logger     *slog.Logger
	readSecret func(prompt string) (*secret.Buffer, error)
	now        func() time.Time
}

type options struct {
	configPath       string
	generateIdentity bool
	writeTemplates   bool
	force            bool
	file             string
	order            int64
	code             string
	showVersion      bool
}

func (t *tool) parseFlags(args []string) (*options, error) {
	var opts options
	flagSet := pflag.NewFlagSet("printshop-provision", pflag.ContinueOnError)
	flagSet.SetOutput(t.usage)
	flagSet.StringVar(&opts.configPath, "config", "", "path to printshop.yaml (default: $"+config.EnvironmentVariable+")")
	flagSet.BoolVar(&opts.generateIdentity, "generate-identity", false, "create the age identity at paths.identity")
	flagSet.BoolVar(&opts.writeTemplates, "write-templates", false, "write plain shirt templates into paths.templates")
	flagSet.BoolVar(&opts.force, "force", false, "with --write-templates, overwrite existing templates")
	flagSet.StringVar(&opts.file, "file", "", "provision every coupon in a JSONC file")
	flagSet.Int64Var(&opts.order, "order", 0, "order id to provision a coupon for (with --code)")
	flagSet.StringVar(&opts.code, "code", "", "coupon code for --order")
	flagSet.BoolVar(&opts.showVersion, "version", false, "print version information and exit")
	flagSet.Usage = func() {
		fmt.Fprintf(t.usage, "Fancy T-Shirts print shop provisioning.\n\nUsage:\n"+
			"  printshop-provision --generate-identity\n"+
			"  printshop-provision --write-templates [--force]\n"+
			"  printshop-provision --file coupons.jsonc\n"+
			"  printshop-provision --order N --code CODE\n\nFlags:\n%s", flagSet.FlagUsages())
	}

	if err := flagSet.Parse(args); err != nil {
		return nil, err
	}
	if flagSet.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", flagSet.Args())
	}
	if opts.showVersion {
		return &opts, nil
	}

	actions := 0
	for _, selected := range []bool{opts.generateIdentity, opts.writeTemplates, opts.file != "", opts.order != 0 || opts.code != ""} {
		if selected {
			actions++
		}
	}
	if actions != 1 {
		return nil, fmt.Errorf("choose exactly one of --generate-identity, --write-templates, --file, or --order with --code")
	}
	if opts.force && !opts.writeTemplates {
		return nil, fmt.Errorf("--force only applies to --write-templates")
	}
	if (opts.order != 0 || opts.code != "") && (opts.order <= 0 || opts.code == "") {
		return nil, fmt.Errorf("--order must be a positive order id and --code is required with it")
	}
	return &opts, nil
}

func (t *tool) run(ctx context.Context, args []string) error {
	opts, err := t.parseFlags(args)
	if errors.Is(err, pflag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}
	if opts.showVersion {
		fmt.Fprintf(t.stdout, "printshop-provision %s\n", version.Info())
		return nil
	}

	cfg, err := config.Resolve(opts.configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := cfg.EnsurePaths(); err != nil {
		return err
	}

	switch {
	case opts.generateIdentity:
		return t.generateIdentity(cfg)
	case opts.writeTemplates:
		return t.writeTemplates(cfg, opts.force)
	case opts.file != "":
		return t.provisionFile(ctx, cfg, opts.file)
	default:
		return t.provisionOne(ctx, cfg, shopstore.OrderID(opts.order), opts.code)
	}
}

func (t *tool) generateIdentity(cfg *config.Config) error {
	keypair, err := sealed.GenerateKeypair()
	if err != nil {
		return err
	}
	defer keypair.Close()

	if err := sealed.WriteIdentityFile(cfg.Paths.Identity, keypair, t.now()); err != nil {
		return err
	}
	t.logger.Info("identity created", "path", cfg.Paths.Identity)
	fmt.Fprintf(t.stdout, "Public key: %s\n", keypair.PublicKey)
	return nil
}

func (t *tool) writeTemplates(cfg *config.Config, force bool) error {
	written, err := render.WriteTemplates(cfg.Paths.Templates, force)
	if err != nil {
		return err
	}
	for _, path := range written {
		fmt.Fprintln(t.stdout, path)
	}
	t.logger.Info("templates written", "directory", cfg.Paths.Templates, "count", len(written))
	return nil
}

func (t *tool) provisionFile(ctx context.Context, cfg *config.Config, path string) error {
	file, err := provision.ReadFile(path)
	if err != nil {
		return err
	}
	// Validate before touching the identity or the database.
	if err := file.Validate(); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	return t.withStore(cfg, func(store *shopstore.Store) error {
		count, err := provision.Apply(ctx, store, file)
		if err != nil {
			return err
		}
		fmt.Fprintf(t.stdout, "Provisioned %d coupons\n", count)
		return nil
	})
}

func (t *tool) provisionOne(ctx context.Context, cfg *config.Config, order shopstore.OrderID, code string) error {
	payload, err := t.readSecret(fmt.Sprintf("Secret for order %d: ", order))
	if err != nil {
		return err
	}
	defer payload.Close()

	return t.withStore(cfg, func(store *shopstore.Store) error {
		err := store.ProvisionCoupon(ctx, shopstore.Coupon{
			OrderID: order,
			Code:    code,
			Secret:  payload.Bytes(),
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(t.stdout, "Provisioned coupon for order %d\n", order)
		return nil
	})
}

// withStore opens the identity and the store for the duration of fn.
func (t *tool) withStore(cfg *config.Config, fn func(*shopstore.Store) error) error {
	keypair, err := sealed.LoadKeypair(cfg.Paths.Identity)
	if err != nil {
		return fmt.Errorf("loading identity (create one with --generate-identity): %w", err)
	}
	defer keypair.Close()

	store, err := shopstore.Open(shopstore.Config{
		Path:    cfg.Paths.Database,
		Keypair: keypair,
		Logger:  t.logger,
	})
	if err != nil {
		return err
	}
	defer store.Close()

	return fn(store)
}
