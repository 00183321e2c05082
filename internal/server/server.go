package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"pkt.systems/pslog"
)

// DefaultReadHeaderTimeout bounds slow-header clients when the caller
// does not set a limit of their own.
const DefaultReadHeaderTimeout = 10 * time.Second

// Config carries the tunables for the viewer HTTP server.
type Config struct {
	Logger pslog.Logger

	ReadHeaderTimeout time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
}

func (c Config) withDefaults() Config {
	if c.Logger == nil {
		c.Logger = pslog.LoggerFromEnv()
	}
	if c.ReadHeaderTimeout == 0 {
		c.ReadHeaderTimeout = DefaultReadHeaderTimeout
	}
	return c
}

// Server is the serving surface the viewer endpoint needs. Read and
// write timeouts stay unset on the underlying server so hijacked
// websocket connections live as long as the session does.
type Server interface {
	Serve(l net.Listener) error
	Shutdown(ctx context.Context) error
}

// NewServer builds a Server around handler with cfg's limits applied.
func NewServer(cfg Config, handler http.Handler) Server {
	cfg = cfg.withDefaults()
	return &httpServer{inner: &http.Server{
		Handler:           handler,
		ErrorLog:          pslog.LogLogger(cfg.Logger),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}}
}

type httpServer struct {
	inner *http.Server
}

func (s *httpServer) Serve(l net.Listener) error { return s.inner.Serve(l) }

func (s *httpServer) Shutdown(ctx context.Context) error { return s.inner.Shutdown(ctx) }
