// Package runtime carries the connection and engine settings shared by every
// rentals subcommand.
package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zenGate-Global/palmyra-rentals/apps/internal/engine"
	platformlogging "github.com/zenGate-Global/palmyra-rentals/platform/go/logging"
)

// Options holds the persistent flags. Defaults come from the environment so
// DATABASE_URL and friends work without flags.
type Options struct {
	engine.Config

	LogLevel  string `env:"LOG_LEVEL" envDefault:"warn"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"`

	// InMemory lets commands run without DATABASE_URL. Only tests set it.
	InMemory bool

	envErr error
}

// FromEnv loads Options from the environment. A parse error is kept and
// reported by Open so that --help still works with a broken environment.
func FromEnv() *Options {
	o := &Options{}
	o.envErr = env.Parse(o)
	return o
}

// Bind registers the persistent flags on c.
func (o *Options) Bind(c *cobra.Command) {
	f := c.PersistentFlags()
	f.StringVar(&o.DatabaseURL, "database-url", o.DatabaseURL, "PostgreSQL connection string (env DATABASE_URL)")
	f.StringVar(&o.DatabaseSchema, "schema", o.DatabaseSchema, "Schema holding the rentals tables (env DATABASE_SCHEMA)")
	f.StringVar(&o.DefaultCurrency, "currency", o.DefaultCurrency, "Default currency code (env DEFAULT_CURRENCY)")
	f.IntVar(&o.GracePeriodDays, "grace-days", o.GracePeriodDays, "Days after the due date before an obligation turns late (env GRACE_PERIOD_DAYS)")
	f.StringVar(&o.LogLevel, "log-level", o.LogLevel, "Log level written to stderr (env LOG_LEVEL)")
	f.StringVar(&o.LogFormat, "log-format", o.LogFormat, "Log encoding, console or json (env LOG_FORMAT)")
}

// Open builds the engine and a stderr logger for one command run.
func (o *Options) Open(ctx context.Context, errOut io.Writer) (*engine.Engine, *zap.Logger, error) {
	if o.envErr != nil {
		return nil, nil, fmt.Errorf("load environment: %w", o.envErr)
	}
	if strings.TrimSpace(o.DatabaseURL) == "" && !o.InMemory {
		return nil, nil, errors.New("database url is required (--database-url or DATABASE_URL)")
	}
	if errOut == nil {
		errOut = os.Stderr
	}

	logger, err := platformlogging.NewLogger(platformlogging.Config{
		Component: "rentals-cli",
		Level:     o.LogLevel,
		Encoding:  o.LogFormat,
		Output:    errOut,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("init zap logger: %w", err)
	}

	eng, err := engine.Open(ctx, o.Config, logger)
	if err != nil {
		return nil, nil, err
	}
	return eng, logger, nil
}

// PrintJSON writes v as indented JSON.
func PrintJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
