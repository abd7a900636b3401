package main

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/mcdev12/rankparty/go/internal/dbconfig"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	dsn     string
	verbose bool
}

// connect opens a pool on the configured DSN. The returned *sql.DB shares
// the pool for code written against database/sql.
func (c *Config) connect(ctx context.Context) (*pgxpool.Pool, *sql.DB, error) {
	pool, err := pgxpool.New(ctx, c.dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, stdlib.OpenDBFromPool(pool), nil
}

// bindFlags lets RANKCTL_* environment variables fill any flag the user did
// not set on the command line.
func bindFlags(fs *pflag.FlagSet) {
	v := viper.New()
	v.SetEnvPrefix("RANKCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})
}

func newRootCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "rankctl",
		Short:   "Operate a rankparty deployment.",
		Version: releaseVersion,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			bindFlags(cmd.Flags())
			if cfg.verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			} else {
				zerolog.SetGlobalLevel(zerolog.InfoLevel)
			}
		},
	}

	fs := cmd.PersistentFlags()
	fs.StringVar(&cfg.dsn, "dsn", dbconfig.NewConfigFromEnv().DSN(), "Postgres connection URL (env: RANKCTL_DSN)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: RANKCTL_VERBOSE)")

	cmd.AddCommand(
		newSchemaCmd(cfg),
		newHashSecretCmd(),
		newTemplatesCmd(),
		newRoomsCmd(cfg),
		newClearPairingsCmd(cfg),
		newOutboxCmd(cfg),
	)

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("rankctl v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
