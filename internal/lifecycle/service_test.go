package lifecycle

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"queuebot/internal/store"
	logx "queuebot/pkg/logx"
)

type captureBroadcaster struct {
	mu   sync.Mutex
	msgs []string
}

func (c *captureBroadcaster) Broadcast(_ context.Context, text string, _ any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, text)
	return nil
}

func (c *captureBroadcaster) texts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.msgs))
	copy(out, c.msgs)
	return out
}

func newTestService(t *testing.T, now time.Time) (*Service, *store.Store, *captureBroadcaster) {
	t.Helper()
	st, err := store.Open(store.Config{Path: filepath.Join(t.TempDir(), "bot.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	bc := &captureBroadcaster{}
	svc := New(Config{}, st, bc, nil, logx.Nop())
	svc.now = func() time.Time { return now }
	return svc, st, bc
}

func mustCreateQueue(t *testing.T, st *store.Store, name string, start, end, notify time.Time) store.Queue {
	t.Helper()
	q, err := st.CreateQueue(context.Background(), name, start, end, notify)
	if err != nil {
		t.Fatalf("create queue: %v", err)
	}
	return q
}

func TestReconcileFiresOverdueInOrder(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, st, bc := newTestService(t, now)

	// Everything is in the past: the queue must ride through all three
	// transitions during a single reconcile.
	q := mustCreateQueue(t, st, "morning",
		now.Add(-2*time.Hour), now.Add(-1*time.Hour), now.Add(-3*time.Hour))

	if err := svc.Reconcile(context.Background()); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	got, err := st.GetQueue(context.Background(), q.ID)
	if err != nil {
		t.Fatalf("get queue: %v", err)
	}
	if got.Status != store.StatusArchived {
		t.Fatalf("status = %q, want archived", got.Status)
	}
	if !got.NotificationSent {
		t.Fatal("notification_sent not set")
	}

	msgs := bc.texts()
	if len(msgs) != 3 {
		t.Fatalf("broadcasts = %d, want 3: %q", len(msgs), msgs)
	}
	for i, want := range []string{"opens soon", "is open", "is closed"} {
		if !strings.Contains(msgs[i], want) {
			t.Errorf("broadcast[%d] = %q, want substring %q", i, msgs[i], want)
		}
	}
	if n := svc.PendingTimers(); n != 0 {
		t.Fatalf("pending timers = %d, want 0", n)
	}
}

func TestReconcileArmsFutureTimers(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, st, bc := newTestService(t, now)

	q := mustCreateQueue(t, st, "evening",
		now.Add(time.Hour), now.Add(2*time.Hour), now.Add(30*time.Minute))

	if err := svc.Reconcile(context.Background()); err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if n := svc.PendingTimers(); n != 3 {
		t.Fatalf("pending timers = %d, want 3", n)
	}
	if msgs := bc.texts(); len(msgs) != 0 {
		t.Fatalf("unexpected broadcasts: %q", msgs)
	}

	// A second reconcile must not double-arm.
	if err := svc.Reconcile(context.Background()); err != nil {
		t.Fatalf("second reconcile: %v", err)
	}
	if n := svc.PendingTimers(); n != 3 {
		t.Fatalf("pending timers after rerun = %d, want 3", n)
	}

	got, err := st.GetQueue(context.Background(), q.ID)
	if err != nil {
		t.Fatalf("get queue: %v", err)
	}
	if got.Status != store.StatusPlanned {
		t.Fatalf("status = %q, want planned", got.Status)
	}
}

func TestReconcilePartiallyOverdue(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, st, bc := newTestService(t, now)

	// Notify and start are past, end is future: the queue must come up
	// active with exactly one close timer armed.
	q := mustCreateQueue(t, st, "afternoon",
		now.Add(-10*time.Minute), now.Add(time.Hour), now.Add(-20*time.Minute))

	if err := svc.Reconcile(context.Background()); err != nil {
		t.Fatalf("reconcile: %v", err)
	}

	got, err := st.GetQueue(context.Background(), q.ID)
	if err != nil {
		t.Fatalf("get queue: %v", err)
	}
	if got.Status != store.StatusActive {
		t.Fatalf("status = %q, want active", got.Status)
	}
	if !got.NotificationSent {
		t.Fatal("notification_sent not set")
	}
	if n := svc.PendingTimers(); n != 1 {
		t.Fatalf("pending timers = %d, want 1 (close)", n)
	}
	if msgs := bc.texts(); len(msgs) != 2 {
		t.Fatalf("broadcasts = %d, want 2: %q", len(msgs), msgs)
	}
}

func TestFireIsIdempotent(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, st, bc := newTestService(t, now)
	ctx := context.Background()

	q := mustCreateQueue(t, st, "once",
		now.Add(time.Hour), now.Add(2*time.Hour), now.Add(30*time.Minute))

	for i := 0; i < 3; i++ {
		if err := svc.Fire(ctx, q.ID, EventNotify); err != nil {
			t.Fatalf("fire notify #%d: %v", i, err)
		}
	}
	if msgs := bc.texts(); len(msgs) != 1 {
		t.Fatalf("notify broadcasts = %d, want 1", len(msgs))
	}

	for i := 0; i < 3; i++ {
		if err := svc.Fire(ctx, q.ID, EventOpen); err != nil {
			t.Fatalf("fire open #%d: %v", i, err)
		}
	}
	got, err := st.GetQueue(ctx, q.ID)
	if err != nil {
		t.Fatalf("get queue: %v", err)
	}
	if got.Status != store.StatusActive {
		t.Fatalf("status = %q, want active", got.Status)
	}
	if msgs := bc.texts(); len(msgs) != 2 {
		t.Fatalf("broadcasts = %d, want 2: %q", len(msgs), bc.texts())
	}
}

func TestFireCloseSkipsPlanned(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, st, bc := newTestService(t, now)
	ctx := context.Background()

	q := mustCreateQueue(t, st, "early",
		now.Add(time.Hour), now.Add(2*time.Hour), now.Add(30*time.Minute))

	if err := svc.Fire(ctx, q.ID, EventClose); err != nil {
		t.Fatalf("fire close: %v", err)
	}
	got, err := st.GetQueue(ctx, q.ID)
	if err != nil {
		t.Fatalf("get queue: %v", err)
	}
	if got.Status != store.StatusPlanned {
		t.Fatalf("status = %q, want planned", got.Status)
	}
	if msgs := bc.texts(); len(msgs) != 0 {
		t.Fatalf("unexpected broadcasts: %q", msgs)
	}
}

func TestLateOpenTimerNotifiesFirst(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, st, bc := newTestService(t, now)
	svc.ctx = context.Background()

	// Notify and start land on the same instant: whichever timer goroutine
	// runs first, the notification must still precede the open broadcast.
	q := mustCreateQueue(t, st, "simultaneous",
		now.Add(-time.Second), now.Add(time.Hour), now.Add(-time.Second))

	svc.timerFired(timerKey{queueID: q.ID, kind: EventOpen})

	msgs := bc.texts()
	if len(msgs) != 2 {
		t.Fatalf("broadcasts = %d, want 2: %q", len(msgs), msgs)
	}
	if !strings.Contains(msgs[0], "opens soon") || !strings.Contains(msgs[1], "is open") {
		t.Fatalf("broadcasts out of order: %q", msgs)
	}

	got, err := st.GetQueue(context.Background(), q.ID)
	if err != nil {
		t.Fatalf("get queue: %v", err)
	}
	if got.Status != store.StatusActive {
		t.Fatalf("status = %q, want active", got.Status)
	}
	if !got.NotificationSent {
		t.Fatal("notification_sent not set")
	}

	// The not-yet-due close deadline must not fire from the chain.
	svc.timerFired(timerKey{queueID: q.ID, kind: EventClose})
	if msgs := bc.texts(); len(msgs) != 2 {
		t.Fatalf("close fired early: %q", msgs)
	}
}

func TestFireMissingQueue(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, _, _ := newTestService(t, now)

	if err := svc.Fire(context.Background(), 404, EventOpen); err != nil {
		t.Fatalf("fire on missing queue: %v", err)
	}
}

func TestLifecycleGatesJoin(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, st, _ := newTestService(t, now)
	ctx := context.Background()

	q := mustCreateQueue(t, st, "gated",
		now.Add(time.Hour), now.Add(2*time.Hour), now.Add(30*time.Minute))
	if err := st.CreateUser(ctx, store.User{ID: 7, Name: "Ada", Surname: "Lovelace"}); err != nil {
		t.Fatalf("create user: %v", err)
	}

	if _, err := st.JoinQueue(ctx, 7, q.ID); !errors.Is(err, store.ErrNotOpen) {
		t.Fatalf("join planned queue: err = %v, want ErrNotOpen", err)
	}

	if err := svc.Fire(ctx, q.ID, EventOpen); err != nil {
		t.Fatalf("fire open: %v", err)
	}
	pos, err := st.JoinQueue(ctx, 7, q.ID)
	if err != nil {
		t.Fatalf("join active queue: %v", err)
	}
	if pos != 1 {
		t.Fatalf("position = %d, want 1", pos)
	}

	if err := svc.Fire(ctx, q.ID, EventClose); err != nil {
		t.Fatalf("fire close: %v", err)
	}
	if _, err := st.JoinQueue(ctx, 7, q.ID); !errors.Is(err, store.ErrNotOpen) {
		t.Fatalf("join archived queue: err = %v, want ErrNotOpen", err)
	}
}
