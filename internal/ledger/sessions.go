package ledger

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/ledgerpos/ledgerpos/internal/entitystore"
)

// Session limits used when SessionsConfig leaves them unset.
const (
	DefaultMaxSessions    = 256
	DefaultSessionIdleTTL = 15 * time.Minute
)

// ErrSessionsClosed is returned once Close has been called.
var ErrSessionsClosed = errors.New("ledger: sessions closed")

// SessionsConfig bounds how many stores are held open and for how long.
type SessionsConfig struct {
	Service ServiceConfig
	// MaxSessions caps open stores; the least recently used one is closed
	// to make room.
	MaxSessions int
	// IdleTTL closes stores that have not been used for this long.
	IdleTTL time.Duration
}

type session struct {
	svc      *Service
	cancel   context.CancelFunc
	lastUsed atomic.Int64
}

func (s *session) touch(now time.Time) {
	s.lastUsed.Store(now.UnixNano())
}

// Sessions owns one Service and Mirror per store. Sessions are created on
// first use and closed when idle, when evicted for a newer store or on Close.
type Sessions struct {
	store  entitystore.Store
	logger *slog.Logger
	cfg    ServiceConfig
	ttl    time.Duration
	now    func() time.Time

	group singleflight.Group

	mu     sync.Mutex
	open   *lru.Cache[string, *session]
	closed bool

	runCtx context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSessions builds Sessions and starts the idle sweeper.
func NewSessions(store entitystore.Store, logger *slog.Logger, cfg SessionsConfig) *Sessions {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxSessions < 1 {
		cfg.MaxSessions = DefaultMaxSessions
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultSessionIdleTTL
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Sessions{
		store:  store,
		logger: logger,
		cfg:    cfg.Service,
		ttl:    cfg.IdleTTL,
		now:    time.Now,
		runCtx: ctx,
		cancel: cancel,
	}
	// Only fails for a non-positive size.
	s.open, _ = lru.NewWithEvict(cfg.MaxSessions, func(storeID string, sess *session) {
		sess.cancel()
		logger.Info("store session closed", slog.String("store_id", storeID))
	})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.sweep(ctx)
	}()
	return s
}

// Get returns the service of storeID, loading its mirror on first use.
// Concurrent first calls share one load.
func (s *Sessions) Get(ctx context.Context, storeID string) (*Service, error) {
	if storeID == "" {
		return nil, errors.New("ledger: store id required")
	}
	s.mu.Lock()
	closed := s.closed
	sess, ok := s.open.Get(storeID)
	s.mu.Unlock()
	if closed {
		return nil, ErrSessionsClosed
	}
	if ok {
		sess.touch(s.now())
		return sess.svc, nil
	}

	resultChan := s.group.DoChan(storeID, func() (interface{}, error) {
		return s.openSession(storeID)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-resultChan:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Service), nil
	}
}

func (s *Sessions) openSession(storeID string) (*Service, error) {
	s.mu.Lock()
	sess, ok := s.open.Get(storeID)
	s.mu.Unlock()
	if ok {
		sess.touch(s.now())
		return sess.svc, nil
	}

	logger := s.logger.With(slog.String("store_id", storeID))
	mirror := NewMirror(s.store, storeID, s.logger)
	if err := mirror.Refresh(s.runCtx); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(s.runCtx)
	sess = &session{svc: NewService(s.store, mirror, s.logger, s.cfg), cancel: cancel}
	sess.touch(s.now())

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		cancel()
		return nil, ErrSessionsClosed
	}
	s.wg.Add(1)
	s.open.Add(storeID, sess)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		err := mirror.Run(ctx)
		if err == nil || errors.Is(err, context.Canceled) {
			return
		}
		logger.Error("mirror stopped", slog.Any("error", err))
		s.mu.Lock()
		if current, ok := s.open.Peek(storeID); ok && current == sess {
			s.open.Remove(storeID)
		}
		s.mu.Unlock()
	}()
	logger.Info("store session opened")
	return sess.svc, nil
}

func (s *Sessions) sweep(ctx context.Context) {
	interval := s.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.closeIdle()
		}
	}
}

// closeIdle closes every session unused for longer than the idle TTL.
func (s *Sessions) closeIdle() int {
	cutoff := s.now().Add(-s.ttl).UnixNano()
	s.mu.Lock()
	defer s.mu.Unlock()
	closed := 0
	for _, storeID := range s.open.Keys() {
		if sess, ok := s.open.Peek(storeID); ok && sess.lastUsed.Load() < cutoff {
			s.open.Remove(storeID)
			closed++
		}
	}
	return closed
}

// Len reports how many stores are open.
func (s *Sessions) Len() int {
	return s.open.Len()
}

// ApplyCommitted forwards documents committed outside a Service to the
// mirror of storeID, if a session is open.
func (s *Sessions) ApplyCommitted(storeID string, docs []entitystore.Document) {
	s.mu.Lock()
	sess, ok := s.open.Peek(storeID)
	s.mu.Unlock()
	if ok {
		sess.svc.mirror.ApplyCommitted(docs)
	}
}

// Close stops every mirror loop and waits for them to exit.
func (s *Sessions) Close() {
	s.mu.Lock()
	s.closed = true
	s.open.Purge()
	s.mu.Unlock()
	s.cancel()
	s.wg.Wait()
}
