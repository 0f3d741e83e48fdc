package lifecycle

import (
	"strconv"
	"time"

	tele "gopkg.in/telebot.v4"

	"queuebot/internal/store"
	"queuebot/internal/timefmt"
	"queuebot/pkg/tgui"
)

func notifyText(q store.Queue, loc *time.Location) string {
	return tgui.JoinH("\n",
		tgui.Raw("🔔 Queue ")+tgui.B(q.Name)+tgui.Raw(" opens soon."),
		tgui.Raw("Sign-up starts at ")+tgui.Code(timefmt.Format(q.StartAt, loc))+tgui.Raw("."),
	).String()
}

func openText(q store.Queue, loc *time.Location) string {
	return tgui.JoinH("\n",
		tgui.Raw("✅ Queue ")+tgui.B(q.Name)+tgui.Raw(" is open!"),
		tgui.Raw("Sign-up closes at ")+tgui.Code(timefmt.Format(q.EndAt, loc))+tgui.Raw("."),
	).String()
}

func openMarkup(q store.Queue) *tele.ReplyMarkup {
	id := strconv.FormatInt(q.ID, 10)
	return tgui.NewInline().
		Row(tgui.Btn("Open queue", tgui.Data("q", "show", id))).
		Markup()
}

func closeText(q store.Queue) string {
	return (tgui.Raw("⛔ Queue ") + tgui.B(q.Name) + tgui.Raw(" is closed.")).String()
}
