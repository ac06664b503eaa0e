package resources

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

var defaults = map[string]any{
	"CONFIG_FILE":                 ".env",
	"APP_ENV":                     "local",
	"LOG_LEVEL":                   "info",
	"HTTP_HOST":                   "localhost",
	"HTTP_PORT":                   "8080",
	"DEBUG_HOST":                  "localhost",
	"DEBUG_PORT":                  "6060",
	"DB_HOST":                     "localhost",
	"DB_PORT":                     "5432",
	"DB_NAME":                     "events",
	"DB_USER":                     "postgres",
	"DB_PASSWORD":                 "postgres",
	"DB_SSLMODE":                  "disable",
	"DB_MAX_CONNS":                10,
	"OTEL_ENABLED":                true,
	"OTEL_EXPORTER_OTLP_ENDPOINT": "localhost:4317",
}

// LoadConfig layers defaults, an optional env file and the process environment into viper,
// then sets up the global logger. The returned context carries that logger.
func LoadConfig(ctx context.Context, name string, version string) context.Context {
	for key, value := range defaults {
		viper.SetDefault(key, value)
	}

	viper.AutomaticEnv()

	viper.SetConfigFile(viper.GetString("CONFIG_FILE"))
	viper.SetConfigType("env")
	err := viper.ReadInConfig()

	ConfigureLogger(os.Stdout, name, version, viper.GetString("APP_ENV"), viper.GetString("LOG_LEVEL"))

	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Str("stage", "startup").Str("component", "config").Msg("unable to read config file")
	}

	return log.Logger.WithContext(ctx)
}

// ConfigureLogger replaces the global zerolog logger. Local environments get human readable output.
func ConfigureLogger(out io.Writer, name string, version string, env string, level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(lvl)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	writer := out
	if env == "local" {
		writer = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	log.Logger = zerolog.New(writer).With().
		Timestamp().
		Str("service", name).
		Str("version", version).
		Str("env", env).
		Logger()

	zerolog.DefaultContextLogger = &log.Logger
}
