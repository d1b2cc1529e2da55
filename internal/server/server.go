// Package server accepts client connections and runs the per-connection
// request loop: read a frame, decode it into a command, execute it
// against the store, write the reply.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/walrusdb/walrus/internal/command"
	"github.com/walrusdb/walrus/internal/proto"
	"github.com/walrusdb/walrus/internal/store"
	"github.com/walrusdb/walrus/internal/telemetry/metric"
)

// DefaultMaxConnections caps the number of simultaneously served
// connections when no limit is configured.
const DefaultMaxConnections = 1000

// acceptRetryCeiling bounds the accept retry backoff. Once a single
// backoff interval would exceed it, the accept loop gives up.
const acceptRetryCeiling = 64 * time.Second

// Server serves the wire protocol on a listener.
type Server struct {
	db      *store.Store
	logger  *slog.Logger
	metrics *metric.Metrics

	// permits caps concurrent connections. A permit is held from before
	// accept until the handler goroutine finishes, including on error.
	permits *semaphore.Weighted

	// ratePerIP is the per-IP command rate limit; zero disables limiting.
	ratePerIP int
	limiterMu sync.Mutex
	limiters  map[string]*rate.Limiter

	readBufferSize int

	ln      net.Listener
	running atomic.Bool
	wg      sync.WaitGroup
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics attaches metric collectors.
func WithMetrics(m *metric.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithMaxConnections sets the connection permit pool size.
func WithMaxConnections(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.permits = semaphore.NewWeighted(int64(n))
		}
	}
}

// WithRateLimit sets the per-IP command rate limit in commands per
// second. Zero disables limiting.
func WithRateLimit(perSecond int) Option {
	return func(s *Server) { s.ratePerIP = perSecond }
}

// WithReadBufferSize sets the per-connection receive buffer capacity.
func WithReadBufferSize(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.readBufferSize = n
		}
	}
}

// New creates a server executing commands against db.
func New(db *store.Store, opts ...Option) *Server {
	s := &Server{
		db:             db,
		logger:         slog.Default(),
		permits:        semaphore.NewWeighted(DefaultMaxConnections),
		limiters:       make(map[string]*rate.Limiter),
		readBufferSize: proto.DefaultReadBufferSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Serve accepts connections on ln until Shutdown is called or the accept
// retry budget is exhausted. Each accepted connection is served on its
// own goroutine.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.ln = ln
	s.running.Store(true)
	s.logger.Info("accepting connections", "addr", ln.Addr().String())

	for {
		// Hold a permit before accepting so the connection count never
		// exceeds the pool size.
		if err := s.permits.Acquire(ctx, 1); err != nil {
			return err
		}

		nc, err := s.accept(ctx)
		if err != nil {
			s.permits.Release(1)
			if !s.running.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}

		connID := ulid.Make().String()
		if s.metrics != nil {
			s.metrics.ConnectionsTotal.Inc()
			s.metrics.ConnectionsActive.Inc()
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.permits.Release(1)
			s.serveConn(nc, connID)
		}()
	}
}

// accept waits for an inbound connection, retrying failures with
// exponential backoff (1s, 2s, 4s, ... capped). After the backoff budget
// is exhausted the last error is returned.
func (s *Server) accept(ctx context.Context) (net.Conn, error) {
	backoff := time.Second

	for {
		nc, err := s.ln.Accept()
		if err == nil {
			return nc, nil
		}
		if !s.running.Load() || errors.Is(err, net.ErrClosed) {
			return nil, err
		}
		if backoff > acceptRetryCeiling {
			return nil, err
		}

		s.logger.Warn("accept failed, backing off",
			"error", err,
			"backoff", backoff.String())

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		backoff *= 2
	}
}

// Shutdown stops accepting and waits for in-flight connection handlers,
// bounded by ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	s.running.Store(false)

	if s.ln != nil {
		if err := s.ln.Close(); err != nil {
			return err
		}
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// serveConn runs the request loop for one connection: read a frame,
// decode, execute, reply, repeat. The first protocol error ends the
// connection; the stream position cannot be trusted after a malformed
// frame.
func (s *Server) serveConn(nc net.Conn, connID string) {
	logger := s.logger.With("conn", connID, "remote", nc.RemoteAddr().String())
	conn := proto.NewConn(nc, proto.WithReadBufferSize(s.readBufferSize))
	defer conn.Close()
	defer func() {
		if s.metrics != nil {
			s.metrics.ConnectionsActive.Dec()
		}
	}()

	limiter := s.limiterFor(nc.RemoteAddr())

	for {
		frame, err := conn.ReadFrame()
		if err != nil {
			logger.Debug("connection closed", "error", err)
			return
		}
		if frame == nil {
			// Peer closed cleanly at a frame boundary.
			return
		}

		if limiter != nil && !limiter.Allow() {
			if err := conn.WriteFrame(proto.Error("rate limit exceeded")); err != nil {
				return
			}
			continue
		}

		cmd, err := command.FromFrame(frame)
		if err != nil {
			logger.Debug("malformed command", "error", err)
			return
		}

		if s.metrics != nil {
			s.metrics.CommandsTotal.WithLabelValues(cmd.Name()).Inc()
		}

		if err := cmd.Execute(s.db, conn); err != nil {
			logger.Debug("command failed", "command", cmd.Name(), "error", err)
			return
		}
	}
}

// limiterFor returns the rate limiter for the peer's IP, or nil when
// limiting is disabled.
func (s *Server) limiterFor(addr net.Addr) *rate.Limiter {
	if s.ratePerIP <= 0 {
		return nil
	}

	ip := addr.String()
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}

	s.limiterMu.Lock()
	defer s.limiterMu.Unlock()
	limiter, ok := s.limiters[ip]
	if !ok {
		limiter = rate.NewLimiter(rate.Limit(s.ratePerIP), s.ratePerIP)
		s.limiters[ip] = limiter
	}
	return limiter
}
