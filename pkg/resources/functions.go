package resources

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"

	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// CreateTelemetry installs the global tracer, meter and logger providers, all exporting over OTLP/gRPC.
// With OTEL_ENABLED=false the no-op globals are left in place.
func CreateTelemetry(ctx context.Context, name string, version string) (StopFn, error) {
	noop := func(context.Context) error { return nil }

	if !viper.GetBool("OTEL_ENABLED") {
		log.Ctx(ctx).Info().Str("stage", "startup").Str("component", "telemetry").Msg("telemetry disabled")
		return noop, nil
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	res := resource.NewSchemaless(
		attribute.String("service.name", name),
		attribute.String("service.version", version),
		attribute.String("deployment.environment", viper.GetString("APP_ENV")),
	)
	endpoint := viper.GetString("OTEL_EXPORTER_OTLP_ENDPOINT")

	tp, err := newTracerProvider(ctx, endpoint, res)
	if err != nil {
		return noop, fmt.Errorf("failed to create tracer provider: %w", err)
	}
	otel.SetTracerProvider(tp)

	mp, err := newMeterProvider(ctx, endpoint, res)
	if err != nil {
		return tp.Shutdown, fmt.Errorf("failed to create meter provider: %w", err)
	}
	otel.SetMeterProvider(mp)

	lp, err := newLoggerProvider(ctx, endpoint, res)
	if err != nil {
		return func(ctx context.Context) error {
			return errors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx))
		}, fmt.Errorf("failed to create logger provider: %w", err)
	}
	global.SetLoggerProvider(lp)

	err = runtime.Start(runtime.WithMeterProvider(mp))
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("stage", "startup").Str("component", "telemetry").Msg("unable to start runtime metrics")
	}

	return func(ctx context.Context) error {
		return errors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx), lp.Shutdown(ctx))
	}, nil
}

func newTracerProvider(ctx context.Context, endpoint string, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	exp, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create the OTLP trace exporter: %w", err)
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	), nil
}

func newMeterProvider(ctx context.Context, endpoint string, res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	exp, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(endpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create the OTLP metric exporter: %w", err)
	}

	return sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp)),
		sdkmetric.WithResource(res),
	), nil
}

func newLoggerProvider(ctx context.Context, endpoint string, res *resource.Resource) (*sdklog.LoggerProvider, error) {
	exp, err := otlploggrpc.New(ctx,
		otlploggrpc.WithEndpoint(endpoint),
		otlploggrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create the OTLP log exporter: %w", err)
	}

	return sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exp)),
		sdklog.WithResource(res),
	), nil
}

// DatabaseURL builds the connection string from the DB_* settings.
func DatabaseURL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(viper.GetString("DB_USER"), viper.GetString("DB_PASSWORD")),
		Host:     net.JoinHostPort(viper.GetString("DB_HOST"), viper.GetString("DB_PORT")),
		Path:     "/" + viper.GetString("DB_NAME"),
		RawQuery: url.Values{"sslmode": []string{viper.GetString("DB_SSLMODE")}}.Encode(),
	}

	return u.String()
}

func CreateDatabaseConnectionPool(ctx context.Context) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(DatabaseURL())
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg(fmt.Sprintf("Unable to parse database connection string: %v", err))
		return nil, fmt.Errorf("failed to parse database connection string: %w", err)
	}

	maxConns := viper.GetInt32("DB_MAX_CONNS")
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	// Raw date strings written by the create fallback are read in this zone.
	cfg.ConnConfig.RuntimeParams["timezone"] = "UTC"
	cfg.ConnConfig.Tracer = otelpgx.NewTracer()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg(fmt.Sprintf("Unable to connect to database: %v", err))
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	err = pool.Ping(ctx)
	if err != nil {
		pool.Close()
		log.Ctx(ctx).Error().Err(err).Msg(fmt.Sprintf("Unable to ping to database: %v", err))

		return nil, fmt.Errorf("failed to ping to database: %w", err)
	}

	err = otelpgx.RecordStats(pool)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("unable to record database pool stats")
	}

	return pool, nil
}
