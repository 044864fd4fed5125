// Package sweeper periodically evicts transfer tokens that outlived their TTL
// in stores that do not expire keys on their own.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dmitrymomot/handoff/core/logger"
	"github.com/dmitrymomot/handoff/internal/kv"
)

const (
	DefaultInterval        = 60 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
)

var (
	ErrNilStore        = errors.New("sweeper: store is required")
	ErrNoPrefixes      = errors.New("sweeper: no key prefixes configured")
	ErrAlreadyStarted  = errors.New("sweeper: already started")
	ErrNotStarted      = errors.New("sweeper: not started")
	ErrShutdownTimeout = errors.New("sweeper: shutdown timeout exceeded")
)

// Sweeper scans the configured prefixes on a ticker.
type Sweeper struct {
	store           kv.Store
	prefixes        []string
	interval        time.Duration
	shutdownTimeout time.Duration
	logger          *slog.Logger
	observer        func(int, error)

	mu      sync.Mutex
	cancel  context.CancelFunc
	running atomic.Bool
	wg      sync.WaitGroup

	sweeps  atomic.Int64
	evicted atomic.Int64
	failed  atomic.Int64
	lastRun atomic.Int64
}

// Stats is a snapshot of sweeper counters.
type Stats struct {
	Sweeps    int64
	Evicted   int64
	Failures  int64
	LastRun   time.Time
	IsRunning bool
}

// New creates a Sweeper over store.
func New(store kv.Store, opts ...Option) (*Sweeper, error) {
	if store == nil {
		return nil, ErrNilStore
	}

	o := &options{
		interval:        DefaultInterval,
		shutdownTimeout: DefaultShutdownTimeout,
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(o)
	}
	if len(o.prefixes) == 0 {
		return nil, ErrNoPrefixes
	}

	return &Sweeper{
		store:           store,
		prefixes:        o.prefixes,
		interval:        o.interval,
		shutdownTimeout: o.shutdownTimeout,
		logger:          o.logger,
		observer:        o.observer,
	}, nil
}

// NewFromConfig creates a Sweeper from cfg. Options override config values.
func NewFromConfig(cfg Config, store kv.Store, opts ...Option) (*Sweeper, error) {
	allOpts := append([]Option{
		WithInterval(cfg.Interval),
		WithShutdownTimeout(cfg.ShutdownTimeout),
	}, opts...)
	return New(store, allOpts...)
}

// Start runs sweeps until ctx is canceled or Stop is called. It blocks.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.running.Store(true)
	defer s.running.Store(false)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.InfoContext(ctx, "sweeper started",
		logger.Component("sweeper"),
		slog.Duration("interval", s.interval),
		slog.Any("prefixes", s.prefixes))

	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(context.WithoutCancel(ctx), "sweeper stopping", logger.Component("sweeper"))
			return ctx.Err()
		case <-ticker.C:
			s.sweepWithWait(ctx)
		}
	}
}

// Stop cancels the loop and waits for an in-flight sweep.
func (s *Sweeper) Stop() error {
	s.mu.Lock()
	if s.cancel == nil {
		s.mu.Unlock()
		return ErrNotStarted
	}
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("sweeper stopped", logger.Component("sweeper"))
		return nil
	case <-time.After(s.shutdownTimeout):
		s.logger.Warn("sweeper shutdown timeout exceeded",
			logger.Component("sweeper"), slog.Duration("timeout", s.shutdownTimeout))
		return fmt.Errorf("%w after %s", ErrShutdownTimeout, s.shutdownTimeout)
	}
}

// Run returns a function for errgroup.Go.
func (s *Sweeper) Run(ctx context.Context) func() error {
	return func() error {
		errCh := make(chan error, 1)
		go func() {
			errCh <- s.Start(ctx)
		}()

		select {
		case <-ctx.Done():
			_ = s.Stop()
			<-errCh
			return nil
		case err := <-errCh:
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
	}
}

// SweepOnce runs a single sweep and returns the number of evicted entries.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	start := time.Now()
	total := 0

	for _, prefix := range s.prefixes {
		n, err := s.sweepPrefix(ctx, prefix)
		total += n
		if err != nil {
			s.record(total, err)
			s.logger.WarnContext(ctx, "sweep skipped",
				logger.Component("sweeper"),
				slog.String("prefix", prefix),
				logger.Error(err))
			return total, err
		}
	}

	if p, ok := s.store.(kv.ExpiredPurger); ok {
		n, err := p.PurgeExpired(ctx)
		if err != nil {
			s.logger.WarnContext(ctx, "purge of expired entries failed",
				logger.Component("sweeper"), logger.Error(err))
		}
		total += n
	}

	s.record(total, nil)
	if total > 0 {
		s.logger.InfoContext(ctx, "sweep finished",
			logger.Component("sweeper"),
			logger.Count("evicted", total),
			logger.Duration(time.Since(start)))
	}
	return total, nil
}

// Stats returns current counters.
func (s *Sweeper) Stats() Stats {
	st := Stats{
		Sweeps:    s.sweeps.Load(),
		Evicted:   s.evicted.Load(),
		Failures:  s.failed.Load(),
		IsRunning: s.running.Load(),
	}
	if ts := s.lastRun.Load(); ts > 0 {
		st.LastRun = time.Unix(0, ts)
	}
	return st
}

// sweepWithWait tracks the sweep so Stop can wait for it. The sweep itself
// runs detached from ctx so shutdown does not cut it mid-key.
func (s *Sweeper) sweepWithWait(ctx context.Context) {
	s.mu.Lock()
	if s.cancel == nil {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	_, _ = s.SweepOnce(context.WithoutCancel(ctx))
}

func (s *Sweeper) sweepPrefix(ctx context.Context, prefix string) (int, error) {
	evicted := 0
	err := s.store.Scan(ctx, prefix, func(key string) error {
		ttl, err := s.store.TTL(ctx, key)
		switch {
		case errors.Is(err, kv.ErrNotFound):
			return nil
		case err != nil:
			return err
		case ttl > 0:
			return nil
		}

		// No expiry or already due: either way the entry can never be valid.
		ok, err := s.store.Delete(ctx, key)
		if err != nil {
			return err
		}
		if ok {
			evicted++
		}
		return nil
	})
	return evicted, err
}

func (s *Sweeper) record(evicted int, err error) {
	s.sweeps.Add(1)
	s.evicted.Add(int64(evicted))
	s.lastRun.Store(time.Now().UnixNano())
	if err != nil {
		s.failed.Add(1)
	}
	if s.observer != nil {
		s.observer(evicted, err)
	}
}
