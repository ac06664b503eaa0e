package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/qmdx00/lifecycle"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"event-service/core"
	"event-service/pkg/resources"
	"event-service/pkg/servers"
)

const stopTimeout = 15 * time.Second

func main() {
	var err error

	name, version := "event-service", "1.0"

	// 1. Config (Logger base included)
	ctx := resources.LoadConfig(context.Background(), name, version)
	startupLogger := log.Ctx(ctx).With().Str("stage", "startup").Str("component", "main").Logger()
	shutdownLogger := log.Ctx(ctx).With().Str("stage", "shut down").Str("component", "main").Logger()

	startupLogger.Info().Msg("application starting up")
	defer shutdownLogger.Info().Msg("application stopped")

	// 2. Telemetry (traces/metrics/logs)
	stopTelemetryFn, err := resources.CreateTelemetry(ctx, name, version)
	if err != nil {
		shutdownLogger.Fatal().Err(err).Msg(fmt.Sprintf("unable to setup otel telemetry: %v", err))
	}

	// 3. Bridge zerolog -> OTel Logs (still prints to stdout; additionally exports via OTLP to the collector)
	log.Logger = log.Logger.Hook(resources.NewZerologHook(name, version))
	ctx = log.Logger.WithContext(ctx)

	// 4. Core resources
	pool, err := resources.CreateDatabaseConnectionPool(ctx)
	if err != nil {
		shutdownLogger.Fatal().Err(err).Msg(fmt.Sprintf("unable to create database connection pool: %v", err))
	}

	err = core.ApplySchema(ctx, pool)
	if err != nil {
		pool.Close()
		shutdownLogger.Fatal().Err(err).Msg(fmt.Sprintf("unable to apply database schema: %v", err))
	}

	// 5. Wiring
	repo := core.NewRepository(pool)
	handlers := core.NewHandlers(repo)

	// 6. Daemons/servers setup

	gin.SetMode(gin.ReleaseMode)

	restHandler := gin.New()
	restHandler.Use(gin.Recovery())
	restHandler.Use(otelgin.Middleware(name))
	restHandler.Use(resources.RequestLogger())
	restHandler.Use(resources.NewHTTPMetrics(name).Middleware())

	core.RegisterRoutes(restHandler.Group("/api"), handlers)

	debugHandler := http.NewServeMux()
	debugHandler.HandleFunc("/debug/pprof/", pprof.Index)
	debugHandler.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	debugHandler.HandleFunc("/debug/pprof/profile", pprof.Profile)
	debugHandler.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	debugHandler.HandleFunc("/debug/pprof/trace", pprof.Trace)

	// 7. Daemons/servers lifecycle

	var app servers.Application = lifecycle.NewApp(
		lifecycle.WithName(name),
		lifecycle.WithVersion(version),
		lifecycle.WithStopTimeout(stopTimeout),
	)

	stopTelemetry := resources.CloseFn(func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
		defer cancel()

		stopErr := stopTelemetryFn(stopCtx)
		if stopErr != nil {
			shutdownLogger.Error().Err(stopErr).Msg("unable to stop otel telemetry")
		}
	})

	app.Attach(servers.BuildBaseServer())

	debugServer := servers.NewServer(viper.GetString("DEBUG_HOST"), viper.GetString("DEBUG_PORT"), debugHandler)
	app.Attach(servers.BuildHttpServer("debug-server", debugServer))

	restServer := servers.NewServer(viper.GetString("HTTP_HOST"), viper.GetString("HTTP_PORT"), restHandler)
	app.Attach(servers.BuildHttpServer("rest-server", restServer))

	startupLogger.Info().Msg("application running")

	// 8. Run until SIGINT/SIGTERM; the pool and then telemetry are released once every server has drained
	err = servers.RunApplication(app, stopTelemetry, pool)
	if err != nil {
		shutdownLogger.Error().Err(err).Msg("runtime error")
	}
}
