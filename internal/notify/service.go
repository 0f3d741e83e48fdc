package notify

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"

	rtsup "queuebot/internal/runtime/supervisor"
	kit "queuebot/internal/transport"
	logx "queuebot/pkg/logx"
)

var (
	ErrQueueFull = errors.New("notify: queue full")
	ErrStopped   = errors.New("notify: stopped")
)

// RecipientSource yields the user ids a Broadcast fans out to. Recipients are
// re-read at enqueue time so restarts never depend on an in-memory list.
type RecipientSource interface {
	ListUserIDs(ctx context.Context) ([]int64, error)
}

type job struct {
	userID int64
	text   string
	markup any
}

// Service is an async delivery pipeline: bounded queue + worker pool +
// rate limit + bounded retry. Delivery is at-least-once; a dropped job is
// logged, never silently lost.
//
// It is safe for concurrent use.
type Service struct {
	mu sync.Mutex

	log        logx.Logger
	adapter    kit.Adapter
	recipients RecipientSource

	cfg     Config
	limiter *rate.Limiter

	accepting bool
	queue     chan job
	sup       *rtsup.Supervisor
}

func New(cfg Config, adapter kit.Adapter, recipients RecipientSource, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	cfg = cfg.withDefaults()
	return &Service{
		log:        log,
		adapter:    adapter,
		recipients: recipients,
		cfg:        cfg,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
	}
}

// Apply updates the rate limit at runtime. Worker/queue sizing is boot-time only.
func (s *Service) Apply(cfg Config) {
	cfg = cfg.withDefaults()
	s.mu.Lock()
	s.cfg.RatePerSec = cfg.RatePerSec
	s.cfg.RetryMax = cfg.RetryMax
	s.cfg.RetryBase = cfg.RetryBase
	s.cfg.RetryMaxDelay = cfg.RetryMaxDelay
	s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
	s.mu.Unlock()
}

// Start is idempotent.
func (s *Service) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	if s.queue != nil {
		s.mu.Unlock()
		return
	}
	s.queue = make(chan job, s.cfg.QueueSize)
	s.accepting = true
	workers := s.cfg.Workers

	s.sup = rtsup.New(ctx,
		rtsup.WithLogger(s.log),
		// delivery failures should not take down the whole app
		rtsup.WithCancelOnError(false),
	)
	sup := s.sup
	q := s.queue
	s.mu.Unlock()

	for i := 0; i < workers; i++ {
		name := fmt.Sprintf("worker.%d", i)
		sup.Go0(name, func(c context.Context) {
			s.workerLoop(c, q)
		})
	}
	s.log.Info("notify pipeline started", logx.Int("workers", workers))
}

// Stop stops intake and waits for in-flight deliveries best-effort until ctx
// deadline.
func (s *Service) Stop(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	sup := s.sup
	s.sup = nil
	s.accepting = false
	q := s.queue
	s.queue = nil
	s.mu.Unlock()

	if sup == nil {
		return
	}
	if q != nil {
		close(q)
	}
	_ = sup.Wait(ctx)
	sup.Cancel()
	s.log.Info("notify pipeline stopped")
}

// Send enqueues one message for the given user.
func (s *Service) Send(userID int64, text string, markup any) error {
	return s.enqueue(job{userID: userID, text: text, markup: markup})
}

// Broadcast fans the message out to every registered user (one job each).
func (s *Service) Broadcast(ctx context.Context, text string, markup any) error {
	ids, err := s.recipients.ListUserIDs(ctx)
	if err != nil {
		return fmt.Errorf("notify: list recipients: %w", err)
	}
	var firstErr error
	for _, id := range ids {
		if err := s.enqueue(job{userID: id, text: text, markup: markup}); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			s.log.Warn("broadcast enqueue failed", logx.Int64("user_id", id), logx.Err(err))
		}
	}
	return firstErr
}

func (s *Service) enqueue(j job) error {
	s.mu.Lock()
	accepting := s.accepting
	q := s.queue
	s.mu.Unlock()
	if !accepting || q == nil {
		return ErrStopped
	}
	select {
	case q <- j:
		return nil
	default:
		return ErrQueueFull
	}
}

func (s *Service) workerLoop(ctx context.Context, q <-chan job) {
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-q:
			if !ok {
				return
			}
			s.deliver(ctx, j)
		}
	}
}

func (s *Service) deliver(ctx context.Context, j job) {
	s.mu.Lock()
	lim := s.limiter
	retryMax := s.cfg.RetryMax
	base := s.cfg.RetryBase
	maxDelay := s.cfg.RetryMaxDelay
	s.mu.Unlock()

	opt := &kit.SendOptions{ParseMode: "HTML", DisablePreview: true}
	if j.markup != nil {
		opt.ReplyMarkupAdapter = j.markup
	}
	to := kit.ChatTarget{ChatID: j.userID}

	var lastErr error
	for attempt := 0; attempt <= retryMax; attempt++ {
		if err := lim.Wait(ctx); err != nil {
			return
		}
		_, err := s.adapter.SendText(ctx, to, j.text, opt)
		if err == nil {
			return
		}
		lastErr = err

		if attempt == retryMax {
			break
		}
		// jittered exponential backoff
		delay := backoff(base, maxDelay, attempt)
		delay += time.Duration(rand.Int63n(int64(delay)/2 + 1))
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
	s.log.Warn("delivery failed, giving up",
		logx.Int64("user_id", j.userID),
		logx.Int("attempts", retryMax+1),
		logx.Err(lastErr))
}

// backoff doubles base per attempt, saturating at max. Saturation also
// guards the shift against overflowing for large attempt counts.
func backoff(base, max time.Duration, attempt int) time.Duration {
	d := base
	for i := 0; i < attempt; i++ {
		d <<= 1
		if d >= max || d <= 0 {
			return max
		}
	}
	if d > max {
		d = max
	}
	return d
}
