package app

import (
	"context"

	"queuebot/internal/session"
	kit "queuebot/internal/transport"
	logx "queuebot/pkg/logx"
	"queuebot/pkg/tgui"
)

// dispatchLoop drains adapter updates into the conversation engine and
// delivers whatever it produced. One slow chat must not stall the loop, so
// deliveries reuse the loop goroutine but are bounded by the app context.
func (a *App) dispatchLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case up, ok := <-a.updates:
			if !ok {
				return nil
			}
			a.handleUpdate(ctx, up)
		}
	}
}

func (a *App) handleUpdate(ctx context.Context, up kit.Update) {
	ev, ok := toEvent(up)
	if !ok {
		return
	}

	res, err := a.engine.Dispatch(ctx, ev)
	if err != nil {
		a.log.Error("dispatch failed",
			logx.Int64("user_id", ev.UserID),
			logx.Err(err))
		if ev.Callback != nil {
			_ = a.adapter.AnswerCallback(ctx, ev.Callback.ID, "Something went wrong, try again")
		}
		return
	}

	// Answer the callback first so the client spinner clears even if a
	// reply send below fails.
	if ev.Callback != nil {
		if err := a.adapter.AnswerCallback(ctx, ev.Callback.ID, res.Ack); err != nil {
			a.log.Warn("answer callback failed", logx.Err(err))
		}
	}
	for _, r := range res.Replies {
		_, err := a.adapter.SendText(ctx, kit.ChatTarget{ChatID: r.ChatID}, r.Text, &kit.SendOptions{
			ParseMode:          "HTML",
			DisablePreview:     true,
			ReplyMarkupAdapter: r.Markup,
		})
		if err != nil {
			a.log.Warn("send reply failed",
				logx.Int64("chat_id", r.ChatID),
				logx.Err(err))
		}
	}
}

func toEvent(up kit.Update) (session.Event, bool) {
	switch up.Kind {
	case kit.UpdateMessage:
		if up.Message == nil || up.Message.Text == "" {
			return session.Event{}, false
		}
		return session.Event{
			UserID: up.Message.FromID,
			ChatID: up.Message.ChatID,
			Text:   up.Message.Text,
		}, true
	case kit.UpdateCallback:
		if up.Callback == nil {
			return session.Event{}, false
		}
		scope, action, payload := tgui.ParseData(up.Callback.Data)
		return session.Event{
			UserID: up.Callback.FromID,
			ChatID: up.Callback.ChatID,
			Callback: &session.Callback{
				ID:      up.Callback.ID,
				Scope:   scope,
				Action:  action,
				Payload: payload,
			},
		}, true
	}
	return session.Event{}, false
}
