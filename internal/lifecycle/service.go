package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"queuebot/internal/eventbus"
	"queuebot/internal/store"
	logx "queuebot/pkg/logx"
)

// Service owns the in-memory timer registry and the reconciliation sweep.
type Service struct {
	cfg Config
	st  *store.Store
	bc  Broadcaster
	bus eventbus.Bus
	log logx.Logger

	// now is replaceable in tests.
	now func() time.Time

	mu        sync.Mutex
	timers    map[timerKey]*time.Timer
	fireLocks map[int64]*sync.Mutex
	c         *cron.Cron
	ctx       context.Context
	cancel    context.CancelFunc
}

func New(cfg Config, st *store.Store, bc Broadcaster, bus eventbus.Bus, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:       cfg.withDefaults(),
		st:        st,
		bc:        bc,
		bus:       bus,
		log:       log,
		now:       time.Now,
		timers:    map[timerKey]*time.Timer{},
		fireLocks: map[int64]*sync.Mutex{},
	}
}

// Start reconciles once against the store, then begins the periodic sweep.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.c != nil {
		s.mu.Unlock()
		return nil
	}
	s.ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	s.c = cron.New()
	s.c.Schedule(cron.Every(s.cfg.SweepInterval), cron.FuncJob(s.sweep))
	s.mu.Unlock()

	if err := s.Reconcile(ctx); err != nil {
		return fmt.Errorf("initial reconcile: %w", err)
	}

	s.mu.Lock()
	s.c.Start()
	s.mu.Unlock()
	s.log.Info("service started", logx.Duration("sweep_interval", s.cfg.SweepInterval))
	return nil
}

// Stop halts the sweep and discards all pending timers. Queue rows keep the
// truth, so the next Start picks everything back up.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	s.c = nil
	if s.cancel != nil {
		s.cancel()
	}
	for k, t := range s.timers {
		t.Stop()
		delete(s.timers, k)
	}
	s.mu.Unlock()

	if c != nil {
		select {
		case <-c.Stop().Done():
		case <-ctx.Done():
		}
	}
	s.log.Info("service stopped")
}

// ScheduleOnCreate arms timers for a freshly created queue. Dates are
// validated to be in the future at creation time, but an overdue event is
// still fired inline rather than dropped.
func (s *Service) ScheduleOnCreate(ctx context.Context, q store.Queue) error {
	return s.scheduleQueue(ctx, q)
}

// Reconcile rebuilds the timer registry from the store. Overdue events fire
// inline in notify, open, close order per queue; future ones get timers.
// Archived queues need nothing.
func (s *Service) Reconcile(ctx context.Context) error {
	queues, err := s.st.ListUnarchived(ctx)
	if err != nil {
		return err
	}
	var firstErr error
	for _, q := range queues {
		if err := s.scheduleQueue(ctx, q); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *Service) scheduleQueue(ctx context.Context, q store.Queue) error {
	now := s.now()

	fire := func(kind EventKind) error {
		if err := s.Fire(ctx, q.ID, kind); err != nil {
			return err
		}
		// Re-read so the next eligibility check sees the applied transition.
		fresh, err := s.st.GetQueue(ctx, q.ID)
		if err != nil {
			return err
		}
		q = fresh
		return nil
	}

	if !q.NotificationSent && q.Status != store.StatusArchived {
		if q.NotifyAt.After(now) {
			s.arm(q.ID, EventNotify, q.NotifyAt.Sub(now))
		} else if err := fire(EventNotify); err != nil {
			return err
		}
	}
	if q.Status == store.StatusPlanned {
		if q.StartAt.After(now) {
			s.arm(q.ID, EventOpen, q.StartAt.Sub(now))
		} else if err := fire(EventOpen); err != nil {
			return err
		}
	}
	if q.Status != store.StatusArchived {
		if q.EndAt.After(now) {
			s.arm(q.ID, EventClose, q.EndAt.Sub(now))
		} else if err := fire(EventClose); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) arm(queueID int64, kind EventKind, delay time.Duration) {
	key := timerKey{queueID: queueID, kind: kind}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.timers[key]; ok {
		return
	}
	s.timers[key] = time.AfterFunc(delay, func() { s.timerFired(key) })
	s.log.Debug("timer armed",
		logx.Int64("queue_id", queueID),
		logx.String("event", string(kind)),
		logx.Duration("in", delay))
}

func (s *Service) timerFired(key timerKey) {
	s.mu.Lock()
	delete(s.timers, key)
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}

	q, err := s.st.GetQueue(ctx, key.queueID)
	if errors.Is(err, store.ErrNotFound) {
		return
	}
	if err != nil {
		s.fireFailed(key.queueID, key.kind, err)
		return
	}

	// Timers landing on the same instant run in independent goroutines, so
	// each one fires every earlier kind that is also due before its own.
	// The guarded updates make the overlapping fires no-ops.
	for _, kind := range kindsThrough(key.kind) {
		if deadline(q, kind).After(s.now()) {
			continue
		}
		if err := s.Fire(ctx, key.queueID, kind); err != nil {
			s.fireFailed(key.queueID, kind, err)
			return
		}
	}
}

func (s *Service) fireFailed(queueID int64, kind EventKind, err error) {
	// The sweep will retry; the guarded update keeps retries safe.
	s.log.Warn("fire failed, leaving for sweep",
		logx.Int64("queue_id", queueID),
		logx.String("event", string(kind)),
		logx.Err(err))
}

// kindsThrough lists the lifecycle kinds up to and including k, in the
// notify, open, close order transitions must apply in.
func kindsThrough(k EventKind) []EventKind {
	switch k {
	case EventNotify:
		return []EventKind{EventNotify}
	case EventOpen:
		return []EventKind{EventNotify, EventOpen}
	default:
		return []EventKind{EventNotify, EventOpen, EventClose}
	}
}

func deadline(q store.Queue, k EventKind) time.Time {
	switch k {
	case EventNotify:
		return q.NotifyAt
	case EventOpen:
		return q.StartAt
	default:
		return q.EndAt
	}
}

// Fire applies one transition. It is safe to call for events that already
// happened: the guarded store update reports no rows changed and Fire
// becomes a no-op. The broadcast is enqueued before the update is applied,
// so a crash in between re-broadcasts on the next reconcile instead of
// losing the transition.
func (s *Service) Fire(ctx context.Context, queueID int64, kind EventKind) error {
	// Serialize fires per queue so the read-check-broadcast-update sequence
	// of concurrent timers cannot interleave.
	lock := s.queueLock(queueID)
	lock.Lock()
	defer lock.Unlock()

	q, err := s.st.GetQueue(ctx, queueID)
	if errors.Is(err, store.ErrNotFound) {
		s.log.Debug("fire for missing queue", logx.Int64("queue_id", queueID))
		return nil
	}
	if err != nil {
		return err
	}

	switch kind {
	case EventNotify:
		if q.NotificationSent || q.Status == store.StatusArchived {
			return nil
		}
		s.broadcast(ctx, notifyText(q, s.cfg.Location), nil)
		ok, err := s.st.MarkNotified(ctx, queueID)
		if err != nil {
			return err
		}
		s.finish(q, kind, ok, "queue.notified")

	case EventOpen:
		if q.Status != store.StatusPlanned {
			return nil
		}
		s.broadcast(ctx, openText(q, s.cfg.Location), openMarkup(q))
		ok, err := s.st.OpenQueue(ctx, queueID)
		if err != nil {
			return err
		}
		s.finish(q, kind, ok, "queue.opened")

	case EventClose:
		if q.Status != store.StatusActive {
			return nil
		}
		s.broadcast(ctx, closeText(q), nil)
		ok, err := s.st.CloseQueue(ctx, queueID)
		if err != nil {
			return err
		}
		s.finish(q, kind, ok, "queue.closed")

	default:
		return fmt.Errorf("unknown event kind %q", kind)
	}
	return nil
}

func (s *Service) finish(q store.Queue, kind EventKind, applied bool, busType string) {
	if !applied {
		// Another fire won the race; its broadcast already went out too.
		s.log.Debug("transition already applied",
			logx.Int64("queue_id", q.ID), logx.String("event", string(kind)))
		return
	}
	s.log.Info("queue transition",
		logx.Int64("queue_id", q.ID),
		logx.String("queue", q.Name),
		logx.String("event", string(kind)))
	if s.bus != nil {
		s.bus.Publish(eventbus.Event{Type: busType, Time: s.now(), Data: q.ID})
	}
}

func (s *Service) broadcast(ctx context.Context, text string, markup any) {
	if s.bc == nil {
		return
	}
	if err := s.bc.Broadcast(ctx, text, markup); err != nil {
		s.log.Warn("broadcast enqueue failed", logx.Err(err))
	}
}

func (s *Service) sweep() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}
	if err := s.Reconcile(ctx); err != nil {
		s.log.Warn("sweep reconcile failed", logx.Err(err))
	}
}

func (s *Service) queueLock(id int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.fireLocks[id]
	if !ok {
		m = &sync.Mutex{}
		s.fireLocks[id] = m
	}
	return m
}

// PendingTimers reports how many timers are currently armed.
func (s *Service) PendingTimers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}
