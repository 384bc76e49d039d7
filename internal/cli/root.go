// Package cli implements renthausctl, the operator command line.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"renthaus/internal/calendar"
	"renthaus/internal/config"
	"renthaus/internal/database"
	"renthaus/internal/docstore"
	"renthaus/internal/domain"
	"renthaus/internal/logging"

	"github.com/spf13/cobra"
)

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// Env is what commands run against.
type Env struct {
	Config   *config.Config
	Store    domain.Store
	Location *time.Location
}

// Opener builds the Env for a run.
type Opener func(ctx context.Context, opts *RootOptions) (*Env, error)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Format     string // "json" | "text"

	open Opener
	env  *Env
}

func NewRootCommand() *cobra.Command {
	return newRootCommand(OpenFromConfig)
}

func newRootCommand(open Opener) *cobra.Command {
	opts := &RootOptions{open: open}

	cmd := &cobra.Command{
		Use:           "renthausctl",
		Short:         "RentHaus operations",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			env, err := opts.open(cmd.Context(), opts)
			if err != nil {
				return err
			}
			opts.env = env
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if opts.env == nil || opts.env.Store == nil {
				return nil
			}
			return opts.env.Store.Close()
		},
	}

	defaultConfig := os.Getenv("CONFIG_PATH")
	if defaultConfig == "" {
		defaultConfig = "configs/config.yaml"
	}
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", defaultConfig, "path to config.yaml")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewPayoutsCommand(opts))
	cmd.AddCommand(NewOutboxCommand(opts))
	cmd.AddCommand(NewTokenCommand(opts))
	cmd.AddCommand(NewUserCommand(opts))
	cmd.AddCommand(NewVendorCommand(opts))
	cmd.AddCommand(NewProductCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// OpenFromConfig loads the config file and opens the configured store.
func OpenFromConfig(ctx context.Context, opts *RootOptions) (*Env, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, _, err := logging.New(config.LoggingConfig{Level: "warn", Output: "stderr"}, cfg.App)
	if err != nil {
		return nil, err
	}
	loc, err := calendar.LoadLocation(cfg.Orders.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Orders.Timezone, err)
	}

	var store domain.Store
	switch cfg.Database.Driver {
	case "postgres":
		store, err = database.NewPostgres(cfg.Database.Postgres.DSN, 2, logger)
	case "firestore":
		app, aerr := docstore.NewApp(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
		if aerr != nil {
			return nil, aerr
		}
		store, err = docstore.New(ctx, app, logger)
	default:
		store, err = database.NewDB(cfg.Database.Path, logger)
	}
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return &Env{Config: cfg, Store: store, Location: loc}, nil
}

func (o *RootOptions) printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (o *RootOptions) jsonOutput() bool {
	return o.Format == "json"
}

var errMissingEnv = errors.New("command environment is not initialised")

func (o *RootOptions) environment() (*Env, error) {
	if o.env == nil {
		return nil, errMissingEnv
	}
	return o.env, nil
}
