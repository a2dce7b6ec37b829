//go:build linux

package server

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"time"

	"github.com/WillKirkmanM/staticcache/internal/cache"
	"github.com/WillKirkmanM/staticcache/internal/config"
	"github.com/WillKirkmanM/staticcache/internal/fsstore"
	"github.com/WillKirkmanM/staticcache/internal/logging"
	"github.com/WillKirkmanM/staticcache/internal/metrics"
	"github.com/WillKirkmanM/staticcache/internal/middleware"
	"github.com/WillKirkmanM/staticcache/internal/mount"
	"github.com/WillKirkmanM/staticcache/internal/workerpool"
)

// Server wires the acceptor, worker pool, response cache and mount
// selector into a running static-content server, and runs a background
// mount liveness loop the way the teacher's Server ran backend health
// checks.
type Server struct {
	config  *config.Config
	cache   *cache.Cache
	mounts  mount.Selector
	workers *workerpool.Pool
	limiter *middleware.ConnectionLimiter
	logger  *logging.Logger
	metrics *metrics.Metrics

	acceptor *acceptor
	handler  *Handler
}

// NewServer builds every component described by cfg, wiring the mount
// selection algorithm, connection limiter, frame-pool-backed cache and
// worker pool before constructing the acceptor and handler that depend
// on them.
func NewServer(cfg *config.Config, logger *logging.Logger, m *metrics.Metrics) (*Server, error) {
	selector, err := mount.NewSelector(cfg.Storage.Algorithm, cfg.Storage.Mounts)
	if err != nil {
		return nil, fmt.Errorf("failed to create mount selector: %w", err)
	}

	c := cache.NewCache(cfg.Cache.FrameCount, cfg.Cache.FrameBytes, cfg.Cache.K)
	limiter := middleware.NewConnectionLimiter(cfg.RateLimit)

	workerCount := cfg.Workers.Count
	if workerCount <= 0 {
		workerCount = 2 * runtime.NumCPU()
	}
	workers := workerpool.New(workerCount)

	s := &Server{
		config:  cfg,
		cache:   c,
		mounts:  selector,
		workers: workers,
		limiter: limiter,
		logger:  logger,
		metrics: m,
	}

	acc, err := newAcceptor(cfg.Server.Port, logger, limiter, m, s.onReadable)
	if err != nil {
		return nil, fmt.Errorf("failed to create acceptor: %w", err)
	}
	s.acceptor = acc
	s.handler = NewHandler(c, selector, logger, m, cfg.Server.MaxRequestSize, acc.rearm, s.closeConn)

	return s, nil
}

// onReadable submits a handler task to the worker pool for a connection
// the acceptor reported as readable, and reflects the new queue depth.
func (s *Server) onReadable(fd int, remoteAddr string) {
	s.workers.Submit(func() {
		s.handler.Handle(fd, remoteAddr)
	})
	s.metrics.SetWorkerQueueDepth(s.workers.QueueDepth())
}

// closeConn deregisters and closes fd, and reflects the drop in the
// active-connection gauge.
func (s *Server) closeConn(fd int) {
	s.acceptor.closeFD(fd)
	s.metrics.DecrementConnections()
}

// Start runs the epoll event loop and the background mount health check
// loop, blocking until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	go s.acceptor.run()

	if s.config.Health.Enabled {
		go s.startHealthChecks(ctx)
	}

	<-ctx.Done()
	return ctx.Err()
}

// Shutdown stops accepting new connections and drains the worker pool,
// waiting for in-flight handler tasks to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	s.acceptor.stop()

	done := make(chan struct{})
	go func() {
		s.workers.Shutdown()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// startHealthChecks periodically probes every mount's sentinel file,
// mirroring the teacher's ticker-driven startHealthChecks/
// performHealthChecks shape with an on-disk stat in place of an HTTP GET.
func (s *Server) startHealthChecks(ctx context.Context) {
	ticker := time.NewTicker(s.config.Health.Interval)
	defer ticker.Stop()

	s.performHealthChecks()

	for {
		select {
		case <-ticker.C:
			s.performHealthChecks()
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) performHealthChecks() {
	for _, m := range s.mounts.GetMounts() {
		go func(m mount.Mount) {
			healthy := fsstore.Exists(filepath.Join(m.GetPath(), s.config.Health.SentinelFile))
			m.SetHealthy(healthy)
			s.mounts.UpdateMountHealth(m.GetPath(), healthy)
			s.metrics.UpdateMountHealth(m.GetPath(), healthy)
		}(m)
	}
}
