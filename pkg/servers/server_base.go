package servers

import (
	"context"
	"sync"

	"github.com/qmdx00/lifecycle"
	"github.com/rs/zerolog/log"
)

// baseServer does no work of its own: it keeps the application up until stopped.
type baseServer struct {
	ctx          context.Context //nolint:containedctx
	name         string
	closeChannel chan struct{}
	closeOnce    sync.Once
}

func BuildBaseServer() (string, Server) {
	return "base-server", NewBaseServer()
}

func NewBaseServer() lifecycle.Server {
	return &baseServer{
		name:         "base-server",
		closeChannel: make(chan struct{}),
	}
}

func (server *baseServer) Run(ctx context.Context) error {
	log.Ctx(ctx).Info().Str("stage", "startup").Str("component", server.name).Msg("starting up")

	server.ctx = ctx
	<-server.closeChannel

	return nil
}

func (server *baseServer) Stop(ctx context.Context) error {
	server.closeOnce.Do(func() {
		log.Ctx(ctx).Info().Str("stage", "shut down").Str("component", server.name).Msg("stopping")
		defer log.Ctx(ctx).Info().Str("stage", "shut down").Str("component", server.name).Msg("stopped")

		close(server.closeChannel)
	})

	return nil
}
