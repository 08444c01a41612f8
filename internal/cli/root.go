// Package cli implements the recora operator commands.
package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/recora/recora/internal/access"
	"github.com/recora/recora/internal/config"
	"github.com/recora/recora/internal/query"
	"github.com/recora/recora/internal/registry"
	"github.com/recora/recora/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Verbose    bool
	Format     string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the recora CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "recora",
		Short: "recora - clinical resource repository",
		Long:  "A versioned, access-filtered repository for typed clinical resources.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			// Missing .env is fine; explicit env wins either way.
			_ = godotenv.Load()
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to YAML config file")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewLoadCommand(opts))
	cmd.AddCommand(NewSearchCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))

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

// env bundles the wired repository for one command invocation.
type env struct {
	cfg      config.Config
	log      zerolog.Logger
	store    *store.Store
	compiler *query.Compiler
	identity access.StaticIdentity
}

// setup loads configuration and wires registry, access filter,
// compiler and store. The CLI acts as the local service identity of
// the configured organization.
func setup(opts *RootOptions) (*env, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	level := zerolog.InfoLevel
	if opts.Verbose {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()

	reg := registry.Default()
	filter := access.NewFilter(access.StaticAffiliations(cfg.Affiliations))
	compiler := query.NewCompiler(reg, filter, cfg.DefaultPageSize, cfg.MaxPageSize, log)

	st, err := store.Open(cfg.DatabasePath, reg, compiler, log)
	if err != nil {
		return nil, err
	}

	return &env{
		cfg:      cfg,
		log:      log,
		store:    st,
		compiler: compiler,
		identity: access.LocalService(cfg.LocalOrganization),
	}, nil
}

func (e *env) close() {
	if err := e.store.Close(); err != nil {
		e.log.Warn().Err(err).Msg("closing store")
	}
}
