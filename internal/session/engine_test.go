package session

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"queuebot/internal/store"
	"queuebot/internal/timefmt"
	logx "queuebot/pkg/logx"
)

const superAdminID int64 = 99

type fakeScheduler struct {
	mu     sync.Mutex
	queues []store.Queue
}

func (f *fakeScheduler) ScheduleOnCreate(_ context.Context, q store.Queue) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queues = append(f.queues, q)
	return nil
}

func newTestEngine(t *testing.T, now time.Time) (*Engine, *store.Store, *fakeScheduler) {
	t.Helper()
	st, err := store.Open(store.Config{Path: filepath.Join(t.TempDir(), "bot.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	sched := &fakeScheduler{}
	e := New(Config{
		SuperAdminID:    superAdminID,
		MinOpenDuration: 10 * time.Minute,
		MinNotifyLead:   5 * time.Minute,
		PageSize:        2,
		Location:        time.UTC,
	}, st, sched, logx.Nop())
	e.now = func() time.Time { return now }
	return e, st, sched
}

func text(userID int64, s string) Event {
	return Event{UserID: userID, ChatID: userID, Text: s}
}

func callback(userID int64, scope, action, payload string) Event {
	return Event{UserID: userID, ChatID: userID, Callback: &Callback{Scope: scope, Action: action, Payload: payload}}
}

func dispatch(t *testing.T, e *Engine, ev Event) Result {
	t.Helper()
	res, err := e.Dispatch(context.Background(), ev)
	if err != nil {
		t.Fatalf("dispatch %+v: %v", ev, err)
	}
	return res
}

func wantState(t *testing.T, st *store.Store, userID int64, want State) {
	t.Helper()
	sess, ok, err := st.GetSession(context.Background(), userID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if !ok {
		// No row means the user is resting on the menu.
		if want != StateMenu {
			t.Fatalf("no session for user %d, want %q", userID, want)
		}
		return
	}
	if State(sess.State) != want {
		t.Fatalf("state = %q, want %q", sess.State, want)
	}
}

func wantButton(t *testing.T, res Result, label string) {
	t.Helper()
	for _, r := range res.Replies {
		if r.Markup == nil {
			continue
		}
		for _, row := range r.Markup.InlineKeyboard {
			for _, btn := range row {
				if btn.Text == label {
					return
				}
			}
		}
	}
	t.Fatalf("no reply carries a %q button", label)
}

func wantReplyContains(t *testing.T, res Result, substr string) {
	t.Helper()
	for _, r := range res.Replies {
		if strings.Contains(r.Text, substr) {
			return
		}
	}
	t.Fatalf("no reply contains %q; got %d replies: %+v", substr, len(res.Replies), res.Replies)
}

func register(t *testing.T, e *Engine, userID int64, name, surname string) {
	t.Helper()
	dispatch(t, e, text(userID, "/start"))
	dispatch(t, e, text(userID, name))
	dispatch(t, e, text(userID, surname))
}

func TestRegistrationFlow(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	e, st, _ := newTestEngine(t, now)

	res := dispatch(t, e, text(7, "/start"))
	wantReplyContains(t, res, "first name")
	wantState(t, st, 7, StateRegName)

	res = dispatch(t, e, text(7, "  Ada  "))
	wantReplyContains(t, res, "surname")
	wantState(t, st, 7, StateRegSurname)

	res = dispatch(t, e, text(7, "Lovelace"))
	wantReplyContains(t, res, "registered")
	wantState(t, st, 7, StateMenu)

	u, err := st.GetUser(context.Background(), 7)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if u.Name != "Ada" || u.Surname != "Lovelace" {
		t.Fatalf("user = %q %q, want Ada Lovelace", u.Name, u.Surname)
	}
	if u.IsAdmin {
		t.Fatal("ordinary user must not be admin")
	}
}

func TestRegistrationDuplicateNameRestarts(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	e, st, _ := newTestEngine(t, now)
	register(t, e, 1, "Ada", "Lovelace")

	dispatch(t, e, text(2, "/start"))
	dispatch(t, e, text(2, "Ada"))
	res := dispatch(t, e, text(2, "Lovelace"))
	wantReplyContains(t, res, "already registered")
	wantState(t, st, 2, StateRegName)

	// A differently-cased surname is a different person.
	dispatch(t, e, text(2, "Ada"))
	res = dispatch(t, e, text(2, "lovelace"))
	wantReplyContains(t, res, "registered")
	wantState(t, st, 2, StateMenu)
}

func TestSuperAdminRegistersAsAdmin(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	e, st, _ := newTestEngine(t, now)
	register(t, e, superAdminID, "Grace", "Hopper")

	u, err := st.GetUser(context.Background(), superAdminID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if !u.IsAdmin {
		t.Fatal("super admin must register as admin")
	}
}

func TestNonAdminCannotCreate(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	e, st, _ := newTestEngine(t, now)
	register(t, e, 5, "Joan", "Clarke")

	res := dispatch(t, e, callback(5, "menu", "create", ""))
	if !strings.Contains(res.Ack, "admins") {
		t.Fatalf("ack = %q, want admin denial", res.Ack)
	}
	wantState(t, st, 5, StateMenu)
}

func TestCreationFlowValidations(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	e, st, sched := newTestEngine(t, now)
	register(t, e, superAdminID, "Grace", "Hopper")

	dispatch(t, e, callback(superAdminID, "menu", "create", ""))
	wantState(t, st, superAdminID, StateAddName)

	dispatch(t, e, text(superAdminID, "Standup"))
	wantState(t, st, superAdminID, StateAddStart)

	// Unparseable and past start times re-ask the same question.
	res := dispatch(t, e, text(superAdminID, "tomorrow-ish"))
	wantReplyContains(t, res, "could not read")
	wantState(t, st, superAdminID, StateAddStart)

	res = dispatch(t, e, text(superAdminID, timefmt.Format(now.Add(-time.Hour), time.UTC)))
	wantReplyContains(t, res, "past")
	wantState(t, st, superAdminID, StateAddStart)

	start := now.Add(time.Hour)
	dispatch(t, e, text(superAdminID, timefmt.Format(start, time.UTC)))
	wantState(t, st, superAdminID, StateAddEnd)

	// Too short an open window.
	res = dispatch(t, e, text(superAdminID, timefmt.Format(start.Add(5*time.Minute), time.UTC)))
	wantReplyContains(t, res, "at least")
	wantState(t, st, superAdminID, StateAddEnd)

	end := start.Add(time.Hour)
	dispatch(t, e, text(superAdminID, timefmt.Format(end, time.UTC)))
	wantState(t, st, superAdminID, StateAddNotify)

	// Notification in the past, then too close to the start.
	res = dispatch(t, e, text(superAdminID, timefmt.Format(now.Add(-time.Minute), time.UTC)))
	wantReplyContains(t, res, "past")
	wantState(t, st, superAdminID, StateAddNotify)

	res = dispatch(t, e, text(superAdminID, timefmt.Format(start.Add(-time.Minute), time.UTC)))
	wantReplyContains(t, res, "before sign-up opens")
	wantState(t, st, superAdminID, StateAddNotify)

	res = dispatch(t, e, text(superAdminID, timefmt.Format(start.Add(-30*time.Minute), time.UTC)))
	wantReplyContains(t, res, "scheduled")
	wantState(t, st, superAdminID, StateMenu)

	queues, err := st.ListQueuesByStatus(context.Background(), store.StatusPlanned)
	if err != nil {
		t.Fatalf("list queues: %v", err)
	}
	if len(queues) != 1 || queues[0].Name != "Standup" {
		t.Fatalf("queues = %+v, want one planned Standup", queues)
	}
	if !queues[0].StartAt.Equal(start) {
		t.Fatalf("start = %v, want %v", queues[0].StartAt, start)
	}

	sched.mu.Lock()
	defer sched.mu.Unlock()
	if len(sched.queues) != 1 || sched.queues[0].ID != queues[0].ID {
		t.Fatalf("scheduler saw %+v, want the created queue", sched.queues)
	}
}

func TestCreationDuplicateNameRestartsAtName(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	e, st, _ := newTestEngine(t, now)
	register(t, e, superAdminID, "Grace", "Hopper")

	ctx := context.Background()
	if _, err := st.CreateQueue(ctx, "Standup", now.Add(time.Hour), now.Add(2*time.Hour), now.Add(30*time.Minute)); err != nil {
		t.Fatalf("seed queue: %v", err)
	}

	dispatch(t, e, callback(superAdminID, "menu", "create", ""))
	res := dispatch(t, e, text(superAdminID, "STANDUP"))
	wantReplyContains(t, res, "already exists")
	wantState(t, st, superAdminID, StateAddName)

	// A fresh name moves on to the dates.
	dispatch(t, e, text(superAdminID, "Retro"))
	wantState(t, st, superAdminID, StateAddStart)
}

func TestBrowsePaginationAndJoin(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	e, st, _ := newTestEngine(t, now)
	register(t, e, 3, "Mary", "Shelley")

	ctx := context.Background()
	var open store.Queue
	for i, name := range []string{"alpha", "beta", "gamma", "delta"} {
		q, err := st.CreateQueue(ctx, name, now.Add(time.Hour), now.Add(2*time.Hour), now.Add(30*time.Minute))
		if err != nil {
			t.Fatalf("create queue %s: %v", name, err)
		}
		if i == 0 {
			if _, err := st.OpenQueue(ctx, q.ID); err != nil {
				t.Fatalf("open queue: %v", err)
			}
			open = q
		}
	}

	// One open and three planned queues means two menu buttons.
	res := dispatch(t, e, text(3, "hi"))
	wantButton(t, res, "✅ Open queues (1)")
	wantButton(t, res, "🗓 Planned queues (3)")

	// Three planned queues at page size 2 is two pages.
	res = dispatch(t, e, callback(3, "menu", "queues", "planned"))
	wantReplyContains(t, res, "Page 1/2")
	wantReplyContains(t, res, "beta")
	wantState(t, st, 3, StateQueueList)

	// Stale button payloads clamp; typed page numbers out of range keep
	// the current page and are rejected.
	res = dispatch(t, e, callback(3, "q", "page", "9"))
	wantReplyContains(t, res, "Page 2/2")
	res = dispatch(t, e, text(3, "0"))
	wantReplyContains(t, res, "There is no page 0")
	wantReplyContains(t, res, "Page 2/2")
	res = dispatch(t, e, text(3, "not a number"))
	wantReplyContains(t, res, "Page 2/2")
	res = dispatch(t, e, text(3, "1"))
	wantReplyContains(t, res, "Page 1/2")

	dispatch(t, e, callback(3, "q", "back", ""))
	wantState(t, st, 3, StateMenu)

	// The open list holds only alpha.
	res = dispatch(t, e, callback(3, "menu", "queues", "active"))
	wantReplyContains(t, res, "Page 1/1")
	wantReplyContains(t, res, "alpha")

	id := strconv.FormatInt(open.ID, 10)
	res = dispatch(t, e, callback(3, "q", "show", id))
	wantReplyContains(t, res, "alpha")
	wantState(t, st, 3, StateQueueDetail)

	res = dispatch(t, e, callback(3, "q", "join", id))
	if res.Ack != "You are #1 in the queue" {
		t.Fatalf("ack = %q", res.Ack)
	}
	wantReplyContains(t, res, "Mary Shelley")

	res = dispatch(t, e, callback(3, "q", "join", id))
	if !strings.Contains(res.Ack, "already") {
		t.Fatalf("second join ack = %q", res.Ack)
	}

	// Back lands on the same open list, not the planned one.
	res = dispatch(t, e, callback(3, "q", "back", ""))
	wantReplyContains(t, res, "Open queues")
	wantState(t, st, 3, StateQueueList)
	dispatch(t, e, callback(3, "q", "back", ""))
	wantState(t, st, 3, StateMenu)
}

func TestArchivedQueuesBrowsable(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	e, st, _ := newTestEngine(t, now)
	register(t, e, 6, "Mary", "Shelley")

	ctx := context.Background()
	q, err := st.CreateQueue(ctx, "workshop", now.Add(-2*time.Hour), now.Add(-time.Hour), now.Add(-3*time.Hour))
	if err != nil {
		t.Fatalf("create queue: %v", err)
	}
	if _, err := st.OpenQueue(ctx, q.ID); err != nil {
		t.Fatalf("open queue: %v", err)
	}
	if _, err := st.JoinQueue(ctx, 6, q.ID); err != nil {
		t.Fatalf("join queue: %v", err)
	}
	if _, err := st.CloseQueue(ctx, q.ID); err != nil {
		t.Fatalf("close queue: %v", err)
	}

	res := dispatch(t, e, text(6, "hi"))
	wantButton(t, res, "📦 Closed queues (1)")

	// The closed list still opens, showing final positions.
	res = dispatch(t, e, callback(6, "menu", "queues", "archived"))
	wantReplyContains(t, res, "Closed queues")
	wantReplyContains(t, res, "workshop")
	wantState(t, st, 6, StateQueueList)

	id := strconv.FormatInt(q.ID, 10)
	res = dispatch(t, e, callback(6, "q", "show", id))
	wantReplyContains(t, res, "Mary Shelley")
	wantState(t, st, 6, StateQueueDetail)

	// Joining a closed queue is refused.
	res = dispatch(t, e, callback(6, "q", "join", id))
	if !strings.Contains(res.Ack, "not open") {
		t.Fatalf("ack = %q, want not-open toast", res.Ack)
	}
}

func TestCompletedFlowDropsSession(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	e, st, _ := newTestEngine(t, now)

	dispatch(t, e, text(11, "/start"))
	if _, ok, err := st.GetSession(context.Background(), 11); err != nil || !ok {
		t.Fatalf("ok = %v err = %v, want a mid-registration row", ok, err)
	}

	dispatch(t, e, text(11, "Ada"))
	dispatch(t, e, text(11, "Lovelace"))
	if _, ok, err := st.GetSession(context.Background(), 11); err != nil || ok {
		t.Fatalf("ok = %v err = %v, want the row dropped after registration", ok, err)
	}
}

func TestJoinClosedQueueToast(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	e, st, _ := newTestEngine(t, now)
	register(t, e, 4, "Alan", "Turing")

	ctx := context.Background()
	q, err := st.CreateQueue(ctx, "late", now.Add(time.Hour), now.Add(2*time.Hour), now.Add(30*time.Minute))
	if err != nil {
		t.Fatalf("create queue: %v", err)
	}
	id := strconv.FormatInt(q.ID, 10)

	dispatch(t, e, callback(4, "menu", "queues", ""))
	dispatch(t, e, callback(4, "q", "show", id))

	res := dispatch(t, e, callback(4, "q", "join", id))
	if !strings.Contains(res.Ack, "not open") {
		t.Fatalf("ack = %q, want not-open toast", res.Ack)
	}
	if joined, err := st.HasJoined(ctx, 4, q.ID); err != nil || joined {
		t.Fatalf("joined = %v err = %v, want false", joined, err)
	}
}

func TestUnmatchedEventsAreDropped(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	e, st, _ := newTestEngine(t, now)

	dispatch(t, e, text(8, "/start"))
	wantState(t, st, 8, StateRegName)

	// Mid-registration, button taps mean nothing.
	res := dispatch(t, e, callback(8, "q", "join", "1"))
	if len(res.Replies) != 0 || res.Ack != "" {
		t.Fatalf("expected drop, got %+v", res)
	}
	wantState(t, st, 8, StateRegName)
}

func TestBackStepsThroughCreation(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	e, st, _ := newTestEngine(t, now)
	register(t, e, superAdminID, "Grace", "Hopper")

	dispatch(t, e, callback(superAdminID, "menu", "create", ""))
	dispatch(t, e, text(superAdminID, "Standup"))
	wantState(t, st, superAdminID, StateAddStart)

	// Stepping back re-asks the name but keeps the entered one in the form.
	dispatch(t, e, callback(superAdminID, "nav", "back", ""))
	wantState(t, st, superAdminID, StateAddName)
	sess, _, err := st.GetSession(context.Background(), superAdminID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if sess.Data[dataQName] != "Standup" {
		t.Fatalf("q_name = %q, want Standup", sess.Data[dataQName])
	}

	dispatch(t, e, text(superAdminID, "Standup"))
	dispatch(t, e, text(superAdminID, timefmt.Format(now.Add(time.Hour), time.UTC)))
	wantState(t, st, superAdminID, StateAddEnd)

	// Back to the start question, then re-answer with a later time.
	dispatch(t, e, callback(superAdminID, "nav", "back", ""))
	wantState(t, st, superAdminID, StateAddStart)
	start := now.Add(2 * time.Hour)
	dispatch(t, e, text(superAdminID, timefmt.Format(start, time.UTC)))
	dispatch(t, e, text(superAdminID, timefmt.Format(start.Add(time.Hour), time.UTC)))
	res := dispatch(t, e, text(superAdminID, timefmt.Format(start.Add(-30*time.Minute), time.UTC)))
	wantReplyContains(t, res, "scheduled")

	queues, err := st.ListQueuesByStatus(context.Background(), store.StatusPlanned)
	if err != nil {
		t.Fatalf("list queues: %v", err)
	}
	if len(queues) != 1 || !queues[0].StartAt.Equal(start) {
		t.Fatalf("queues = %+v, want one starting at %v", queues, start)
	}

	// Back on the first question leaves the flow entirely.
	dispatch(t, e, callback(superAdminID, "menu", "create", ""))
	dispatch(t, e, callback(superAdminID, "nav", "back", ""))
	wantState(t, st, superAdminID, StateMenu)
}

func TestBackFromSurnameReasksName(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	e, st, _ := newTestEngine(t, now)

	dispatch(t, e, text(9, "/start"))
	dispatch(t, e, text(9, "Ada"))
	wantState(t, st, 9, StateRegSurname)

	dispatch(t, e, callback(9, "nav", "back", ""))
	wantState(t, st, 9, StateRegName)

	dispatch(t, e, text(9, "Grace"))
	res := dispatch(t, e, text(9, "Hopper"))
	wantReplyContains(t, res, "registered")

	u, err := st.GetUser(context.Background(), 9)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if u.Name != "Grace" {
		t.Fatalf("name = %q, want the re-entered Grace", u.Name)
	}
}

func TestStartResetsMidFlow(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	e, st, _ := newTestEngine(t, now)
	register(t, e, superAdminID, "Grace", "Hopper")

	dispatch(t, e, callback(superAdminID, "menu", "create", ""))
	dispatch(t, e, text(superAdminID, "half-done"))
	wantState(t, st, superAdminID, StateAddStart)

	dispatch(t, e, text(superAdminID, "/start"))
	wantState(t, st, superAdminID, StateMenu)

	if _, ok, err := st.GetSession(context.Background(), superAdminID); err != nil || ok {
		t.Fatalf("ok = %v err = %v, want the half-done form dropped", ok, err)
	}
}
