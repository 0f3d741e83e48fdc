package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	tele "gopkg.in/telebot.v4"

	"queuebot/internal/store"
	"queuebot/internal/timefmt"
	"queuebot/pkg/tgui"
)

// backNavKb is the single-button keyboard shown on form prompts so users can
// step back one question.
func backNavKb() *tele.ReplyMarkup {
	return tgui.NewInline().
		Row(tgui.Btn("⬅ Back", tgui.Data("nav", "back", ""))).
		Markup()
}

func statusLabel(s store.Status) string {
	switch s {
	case store.StatusPlanned:
		return "planned"
	case store.StatusActive:
		return "open"
	case store.StatusArchived:
		return "closed"
	}
	return string(s)
}

// menuStatuses is the order the status buttons appear in the menu.
var menuStatuses = []struct {
	status store.Status
	label  string
}{
	{store.StatusActive, "✅ Open queues"},
	{store.StatusPlanned, "🗓 Planned queues"},
	{store.StatusArchived, "📦 Closed queues"},
}

func (e *Engine) renderMenu(ctx context.Context, userID int64) (string, *tele.ReplyMarkup, error) {
	u, err := e.st.GetUser(ctx, userID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return "", nil, err
	}
	counts, err := e.st.CountQueuesByStatus(ctx)
	if err != nil {
		return "", nil, err
	}

	greeting := tgui.Raw("Hello!")
	if u.Name != "" {
		greeting = tgui.Raw("Hello, ") + tgui.B(u.Name) + tgui.Raw("!")
	}

	kb := tgui.NewInline()
	total := 0
	for _, m := range menuStatuses {
		n := counts[m.status]
		total += n
		if n == 0 {
			continue
		}
		kb.Row(tgui.Btn(fmt.Sprintf("%s (%d)", m.label, n),
			tgui.Data("menu", "queues", string(m.status))))
	}

	parts := []tgui.H{greeting}
	if total == 0 {
		parts = append(parts, tgui.Raw("No queues yet."))
	} else {
		parts = append(parts, tgui.Raw("Pick a list:"))
	}
	if e.isAdmin(ctx, userID) {
		kb.Row(tgui.Btn("➕ New queue", tgui.Data("menu", "create", "")))
	}
	return tgui.JoinH("\n", parts...).String(), kb.Markup(), nil
}

func listTitle(status store.Status) string {
	switch status {
	case store.StatusActive:
		return "Open queues"
	case store.StatusArchived:
		return "Closed queues"
	}
	return "Planned queues"
}

// renderList renders one page of the queues that currently have the given
// status. The returned page is clamped to the valid range and is what the
// caller should persist.
func (e *Engine) renderList(ctx context.Context, status store.Status, page int) (string, *tele.ReplyMarkup, int, error) {
	queues, err := e.st.ListQueuesByStatus(ctx, status)
	if err != nil {
		return "", nil, 0, err
	}
	cfg := e.config()

	backRow := tgui.Btn("⬅ Menu", tgui.Data("q", "back", ""))
	if len(queues) == 0 {
		kb := tgui.NewInline().Row(backRow)
		return "No " + statusLabel(status) + " queues right now.", kb.Markup(), 1, nil
	}

	page = tgui.ClampPage(page, len(queues), cfg.PageSize)
	sub, hasPrev, hasNext := tgui.PageSlice(queues, page, cfg.PageSize)

	parts := []tgui.H{tgui.B(listTitle(status)) + tgui.Raw(" · "+tgui.PageLabel(page, len(queues), cfg.PageSize))}
	kb := tgui.NewInline()
	for _, q := range sub {
		var when string
		switch status {
		case store.StatusActive:
			when = "until " + timefmt.FormatShort(q.EndAt, cfg.Location)
		case store.StatusArchived:
			when = "closed " + timefmt.FormatShort(q.EndAt, cfg.Location)
		default:
			when = "opens " + timefmt.FormatShort(q.StartAt, cfg.Location)
		}
		parts = append(parts, tgui.Raw("• ")+tgui.Esc(q.Name)+tgui.Raw(" ("+when+")"))
		kb.Row(tgui.Btn(q.Name, tgui.Data("q", "show", strconv.FormatInt(q.ID, 10))))
	}
	var nav []tele.Btn
	if hasPrev {
		nav = append(nav, tgui.Btn("«", tgui.Data("q", "page", strconv.Itoa(page-1))))
	}
	if hasNext {
		nav = append(nav, tgui.Btn("»", tgui.Data("q", "page", strconv.Itoa(page+1))))
	}
	if len(nav) > 0 {
		kb.Row(nav...)
	}
	kb.Row(backRow)

	return tgui.JoinH("\n", parts...).String(), kb.Markup(), page, nil
}

func (e *Engine) renderDetail(ctx context.Context, userID, queueID int64) (string, *tele.ReplyMarkup, error) {
	q, err := e.st.GetQueue(ctx, queueID)
	if errors.Is(err, store.ErrNotFound) {
		kb := tgui.NewInline().Row(tgui.Btn("⬅ Back", tgui.Data("q", "back", "")))
		return "This queue no longer exists.", kb.Markup(), nil
	}
	if err != nil {
		return "", nil, err
	}
	attendants, err := e.st.ListAttendants(ctx, queueID)
	if err != nil {
		return "", nil, err
	}
	joined, err := e.st.HasJoined(ctx, userID, queueID)
	if err != nil {
		return "", nil, err
	}
	loc := e.config().Location

	parts := []tgui.H{tgui.B(q.Name)}
	switch q.Status {
	case store.StatusPlanned:
		parts = append(parts, tgui.Raw("Opens at ")+tgui.Code(timefmt.Format(q.StartAt, loc)))
	case store.StatusActive:
		parts = append(parts, tgui.Raw("Open until ")+tgui.Code(timefmt.Format(q.EndAt, loc)))
	case store.StatusArchived:
		parts = append(parts, tgui.Raw("Closed at ")+tgui.Code(timefmt.Format(q.EndAt, loc)))
	}
	if len(attendants) == 0 {
		parts = append(parts, tgui.I("No sign-ups yet."))
	} else {
		parts = append(parts, tgui.Raw("Sign-ups:"))
		for _, a := range attendants {
			who := tgui.Esc(a.Name + " " + a.Surname)
			if a.UserID == userID {
				who = tgui.B(a.Name + " " + a.Surname)
			}
			parts = append(parts, tgui.Raw(fmt.Sprintf("%d. ", a.Position))+who)
		}
	}

	kb := tgui.NewInline()
	if q.Status == store.StatusActive && !joined {
		kb.Row(tgui.Btn("✅ Join", tgui.Data("q", "join", strconv.FormatInt(queueID, 10))))
	}
	kb.Row(tgui.Btn("⬅ Back", tgui.Data("q", "back", "")))

	return tgui.JoinH("\n", parts...).String(), kb.Markup(), nil
}
