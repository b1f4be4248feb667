package server

import (
	"net"
	"os"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/agilira/memcrs-go/pkg/recorder"
)

// Config holds the operator-controlled listener-level settings that bear
// on the connection layer.
type Config struct {
	ListenAddress string
	Port          int
	// BacklogLimit is carried for operator visibility; Go's net.Listen
	// does not expose the accept backlog, so the kernel default applies.
	BacklogLimit   int
	RxTimeout      time.Duration
	ItemMemLimit   uint32
	MaxConnections int32
}

// Observer receives one sample per completed command: its name, "ok" or
// "error", and the handler latency in seconds. Nil disables observation.
type Observer func(command, outcome string, seconds float64)

// Server accepts connections and spawns one goroutine per connection.
type Server struct {
	cfg       Config
	handler   *Handler
	recorder  *recorder.MasterRecorder
	log       zerolog.Logger
	observe   Observer
	currConns atomic.Int32
}

// New builds a Server.
func New(cfg Config, handler *Handler, rec *recorder.MasterRecorder, log zerolog.Logger) *Server {
	if cfg.RxTimeout == 0 {
		cfg.RxTimeout = 60 * time.Second
	}
	if cfg.MaxConnections == 0 {
		cfg.MaxConnections = 1024
	}
	return &Server{cfg: cfg, handler: handler, recorder: rec, log: log}
}

// WithObserver attaches a per-command metrics callback and returns s for
// chaining.
func (s *Server) WithObserver(obs Observer) *Server {
	s.observe = obs
	return s
}

// ListenAndServe binds the configured address and blocks accepting
// connections. addr starting with "/" is treated as a Unix socket path.
func (s *Server) ListenAndServe(addr string) error {
	network := "tcp"
	if len(addr) > 0 && addr[0] == '/' {
		network = "unix"
		os.Remove(addr)
	}

	ln, err := net.Listen(network, addr)
	if err != nil {
		return err
	}
	defer ln.Close()

	s.log.Info().Str("network", network).Str("addr", addr).Int32("max_connections", s.cfg.MaxConnections).Msg("listening")

	for {
		nc, err := ln.Accept()
		if err != nil {
			s.log.Error().Err(err).Msg("accept error")
			continue
		}
		if s.currConns.Load() >= s.cfg.MaxConnections {
			s.log.Warn().Str("remote", nc.RemoteAddr().String()).Msg("connection limit reached, rejecting")
			nc.Close()
			continue
		}
		s.currConns.Add(1)
		go s.serve(nc)
	}
}

func (s *Server) serve(nc net.Conn) {
	defer s.currConns.Add(-1)
	connID := s.recorder.NextConnectionID()
	rec := s.recorder.NewConnRecorder(connID)
	conn := newConn(nc, s.handler, rec, s.cfg.RxTimeout, s.cfg.ItemMemLimit, s.log, s.observe)
	conn.Serve()
}

// CurrentConnections reports the live connection count.
func (s *Server) CurrentConnections() int {
	return int(s.currConns.Load())
}
