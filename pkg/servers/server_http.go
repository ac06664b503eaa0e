package servers

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/qmdx00/lifecycle"
	"github.com/rs/zerolog/log"
)

const readHeaderTimeout = 10 * time.Second

type httpServer struct {
	ctx       context.Context //nolint:containedctx
	name      string
	internal  *http.Server
	drained   chan struct{}
	drainOnce sync.Once
}

// NewServer builds an http.Server listening on host:port.
func NewServer(host string, port string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              net.JoinHostPort(host, port),
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

func BuildHttpServer(name string, server *http.Server) (string, Server) {
	return name, NewHttpServer(name, server)
}

func NewHttpServer(name string, server *http.Server) lifecycle.Server {
	return &httpServer{
		name:     name,
		internal: server,
		drained:  make(chan struct{}),
	}
}

func (server *httpServer) Run(ctx context.Context) error {
	log.Ctx(ctx).Info().Str("stage", "startup").Str("component", server.name).Str("addr", server.internal.Addr).Msg("starting up")

	server.ctx = ctx

	err := server.internal.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Ctx(ctx).Error().Str("stage", "startup").Str("component", server.name).Err(err).Msg("failed to listen or serve")
		return ErrServerFailedToStart(server.name, err)
	}

	// ListenAndServe returns as soon as Shutdown starts; in-flight requests are still running.
	<-server.drained

	return nil
}

func (server *httpServer) Stop(ctx context.Context) error {
	log.Ctx(ctx).Info().Str("stage", "shut down").Str("component", server.name).Msg("stopping")
	defer log.Ctx(ctx).Info().Str("stage", "shut down").Str("component", server.name).Msg("stopped")

	err := server.internal.Shutdown(ctx)
	server.drainOnce.Do(func() { close(server.drained) })

	if err != nil {
		log.Ctx(ctx).Error().Str("stage", "shut down").Str("component", server.name).Err(err).Msg("failed to stop")
		return ErrServerFailedToStop(server.name, err)
	}

	return nil
}
