package session

import (
	"context"
	"sync"
	"time"

	"queuebot/internal/store"
	logx "queuebot/pkg/logx"
)

// Scheduler arms lifecycle timers for a queue the engine just created.
type Scheduler interface {
	ScheduleOnCreate(ctx context.Context, q store.Queue) error
}

// Config carries the conversation policy knobs.
type Config struct {
	// SuperAdminID always gets admin rights, even before registering.
	SuperAdminID int64

	// MinOpenDuration is the minimum allowed end-start span.
	MinOpenDuration time.Duration

	// MinNotifyLead is how far before start the notification must land.
	MinNotifyLead time.Duration

	// PageSize is queues per page when browsing.
	PageSize int

	// Location renders and parses all user-facing datetimes.
	Location *time.Location
}

func (c Config) withDefaults() Config {
	if c.MinOpenDuration <= 0 {
		c.MinOpenDuration = 10 * time.Minute
	}
	if c.MinNotifyLead <= 0 {
		c.MinNotifyLead = 5 * time.Minute
	}
	if c.PageSize <= 0 {
		c.PageSize = 5
	}
	if c.Location == nil {
		c.Location = time.UTC
	}
	return c
}

// Engine dispatches events against persisted sessions.
type Engine struct {
	cfg   Config
	st    *store.Store
	sched Scheduler
	log   logx.Logger
	now   func() time.Time

	rules []rule

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func New(cfg Config, st *store.Store, sched Scheduler, log logx.Logger) *Engine {
	if log.IsZero() {
		log = logx.Nop()
	}
	e := &Engine{
		cfg:   cfg.withDefaults(),
		st:    st,
		sched: sched,
		log:   log,
		now:   time.Now,
		locks: map[int64]*sync.Mutex{},
	}
	e.rules = buildRules()
	return e
}

// Apply swaps the policy knobs at runtime (config hot reload).
func (e *Engine) Apply(cfg Config) {
	e.mu.Lock()
	e.cfg = cfg.withDefaults()
	e.mu.Unlock()
}

func (e *Engine) config() Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// Dispatch routes one event through the conversation graph. Events from the
// same user are processed strictly one at a time, in arrival order.
func (e *Engine) Dispatch(ctx context.Context, ev Event) (Result, error) {
	lock := e.userLock(ev.UserID)
	lock.Lock()
	defer lock.Unlock()

	sess, ok, err := e.st.GetSession(ctx, ev.UserID)
	if err != nil {
		return Result{}, err
	}
	if !ok || !knownStates[State(sess.State)] {
		sess = store.Session{UserID: ev.UserID, State: string(StateMenu), Data: map[string]string{}}
	}
	if sess.Data == nil {
		sess.Data = map[string]string{}
	}

	// /start resets the conversation from anywhere.
	if ev.IsCommand("/start") {
		res, err := e.handleStart(ctx, &sess, ev)
		if err != nil {
			return Result{}, err
		}
		return e.commit(ctx, &sess, res)
	}

	for _, r := range e.rules {
		if r.state != State(sess.State) || !r.match(ev) {
			continue
		}
		res, err := r.handle(e, ctx, &sess, ev)
		if err != nil {
			return Result{}, err
		}
		return e.commit(ctx, &sess, res)
	}

	// No rule matched: drop silently, still clearing any callback spinner.
	e.log.Debug("event dropped",
		logx.Int64("user_id", ev.UserID),
		logx.String("state", sess.State))
	return Result{}, nil
}

// commit persists the session before handing replies back for delivery.
// A user resting on the menu with no form data carries no state worth
// keeping, so the row is dropped instead (an absent row means the menu).
func (e *Engine) commit(ctx context.Context, sess *store.Session, res Result) (Result, error) {
	if State(sess.State) == StateMenu && len(sess.Data) == 0 {
		if err := e.st.DeleteSession(ctx, sess.UserID); err != nil {
			return Result{}, err
		}
		return res, nil
	}
	if err := e.st.PutSession(ctx, *sess); err != nil {
		return Result{}, err
	}
	return res, nil
}

func (e *Engine) userLock(id int64) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	m, ok := e.locks[id]
	if !ok {
		m = &sync.Mutex{}
		e.locks[id] = m
	}
	return m
}

// isAdmin reports whether the user may run the creation flow.
func (e *Engine) isAdmin(ctx context.Context, userID int64) bool {
	if userID == e.config().SuperAdminID {
		return true
	}
	u, err := e.st.GetUser(ctx, userID)
	return err == nil && u.IsAdmin
}

// rule maps a (state, event shape) pair to a handler. The table is scanned
// top to bottom; the first match wins.
type rule struct {
	state  State
	match  func(Event) bool
	handle func(e *Engine, ctx context.Context, sess *store.Session, ev Event) (Result, error)
}

func onText() func(Event) bool {
	return func(ev Event) bool { return ev.Callback == nil && ev.Text != "" }
}

func onCallback(scope, action string) func(Event) bool {
	return func(ev Event) bool {
		return ev.Callback != nil && ev.Callback.Scope == scope && ev.Callback.Action == action
	}
}

func buildRules() []rule {
	return []rule{
		// Menu.
		{StateMenu, onCallback("menu", "queues"), (*Engine).openQueueList},
		{StateMenu, onCallback("menu", "create"), (*Engine).startCreation},
		{StateMenu, onCallback("q", "show"), (*Engine).showQueue}, // broadcast button
		{StateMenu, onText(), (*Engine).showMenu},

		// Registration.
		{StateRegName, onText(), (*Engine).regName},
		{StateRegSurname, onText(), (*Engine).regSurname},
		{StateRegSurname, onCallback("nav", "back"), (*Engine).backToRegName},

		// Browsing.
		{StateQueueList, onCallback("q", "page"), (*Engine).gotoPage},
		{StateQueueList, onCallback("q", "show"), (*Engine).showQueue},
		{StateQueueList, onCallback("q", "back"), (*Engine).backToMenu},
		{StateQueueList, onText(), (*Engine).gotoPageText},
		{StateQueueDetail, onCallback("q", "join"), (*Engine).joinQueue},
		{StateQueueDetail, onCallback("q", "back"), (*Engine).backToList},
		{StateQueueDetail, onCallback("q", "show"), (*Engine).showQueue},

		// Creation. Each step also supports going back one question.
		{StateAddName, onText(), (*Engine).addName},
		{StateAddName, onCallback("nav", "back"), (*Engine).backToMenu},
		{StateAddStart, onText(), (*Engine).addStart},
		{StateAddStart, onCallback("nav", "back"), (*Engine).backToAddName},
		{StateAddEnd, onText(), (*Engine).addEnd},
		{StateAddEnd, onCallback("nav", "back"), (*Engine).backToAddStart},
		{StateAddNotify, onText(), (*Engine).addNotify},
		{StateAddNotify, onCallback("nav", "back"), (*Engine).backToAddEnd},
	}
}
