package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"queuebot/internal/store"
	"queuebot/internal/timefmt"
	logx "queuebot/pkg/logx"
)

func (e *Engine) startCreation(ctx context.Context, sess *store.Session, ev Event) (Result, error) {
	if !e.isAdmin(ctx, ev.UserID) {
		return Result{Ack: "Only admins can create queues"}, nil
	}
	var res Result
	e.promptAddName(&res, sess, ev.ChatID)
	return res, nil
}

func (e *Engine) promptAddName(res *Result, sess *store.Session, chatID int64) {
	sess.State = string(StateAddName)
	res.reply(chatID, "Creating a new queue.\nWhat should it be called?", backNavKb())
}

func (e *Engine) promptAddStart(res *Result, sess *store.Session, chatID int64) {
	sess.State = string(StateAddStart)
	res.reply(chatID, "When does sign-up open?\nFormat: "+timefmt.Layout+" (e.g. 02.06.2026 18:00:00)", backNavKb())
}

func (e *Engine) promptAddEnd(res *Result, sess *store.Session, chatID int64) {
	sess.State = string(StateAddEnd)
	res.reply(chatID, "When does sign-up close?\nFormat: "+timefmt.Layout, backNavKb())
}

func (e *Engine) promptAddNotify(res *Result, sess *store.Session, chatID int64) {
	sess.State = string(StateAddNotify)
	res.reply(chatID, "When should everyone be notified?\nFormat: "+timefmt.Layout, backNavKb())
}

// Back handlers re-ask the previous question. Already-entered answers stay in
// the form until overwritten.

func (e *Engine) backToAddName(_ context.Context, sess *store.Session, ev Event) (Result, error) {
	var res Result
	e.promptAddName(&res, sess, ev.ChatID)
	return res, nil
}

func (e *Engine) backToAddStart(_ context.Context, sess *store.Session, ev Event) (Result, error) {
	var res Result
	e.promptAddStart(&res, sess, ev.ChatID)
	return res, nil
}

func (e *Engine) backToAddEnd(_ context.Context, sess *store.Session, ev Event) (Result, error) {
	var res Result
	e.promptAddEnd(&res, sess, ev.ChatID)
	return res, nil
}

func (e *Engine) addName(ctx context.Context, sess *store.Session, ev Event) (Result, error) {
	name := strings.TrimSpace(ev.Text)
	var res Result
	if name == "" {
		res.reply(ev.ChatID, "The name cannot be empty. What should the queue be called?", backNavKb())
		return res, nil
	}
	taken, err := e.st.QueueNameExists(ctx, name)
	if err != nil {
		return Result{}, err
	}
	if taken {
		res.reply(ev.ChatID, "A queue with that name already exists. Enter a different name.", backNavKb())
		return res, nil
	}
	sess.Data[dataQName] = name
	e.promptAddStart(&res, sess, ev.ChatID)
	return res, nil
}

func (e *Engine) addStart(ctx context.Context, sess *store.Session, ev Event) (Result, error) {
	var res Result
	start, ok := e.parseWhen(ev.Text, &res, ev.ChatID)
	if !ok {
		return res, nil
	}
	if start.Before(e.now()) {
		res.reply(ev.ChatID, "The opening time is in the past. Enter a future time.", backNavKb())
		return res, nil
	}
	sess.Data[dataQStart] = strconv.FormatInt(start.Unix(), 10)
	e.promptAddEnd(&res, sess, ev.ChatID)
	return res, nil
}

func (e *Engine) addEnd(ctx context.Context, sess *store.Session, ev Event) (Result, error) {
	var res Result
	end, ok := e.parseWhen(ev.Text, &res, ev.ChatID)
	if !ok {
		return res, nil
	}
	start := unixTime(sess.Data[dataQStart])
	minDur := e.config().MinOpenDuration
	if end.Sub(start) < minDur {
		res.reply(ev.ChatID, fmt.Sprintf("The queue must stay open for at least %s. Enter a later closing time.", minDur), backNavKb())
		return res, nil
	}
	sess.Data[dataQEnd] = strconv.FormatInt(end.Unix(), 10)
	e.promptAddNotify(&res, sess, ev.ChatID)
	return res, nil
}

// addNotify validates the final date and creates the queue. A duplicate name
// can still surface here if another admin raced us to it.
func (e *Engine) addNotify(ctx context.Context, sess *store.Session, ev Event) (Result, error) {
	var res Result
	notify, ok := e.parseWhen(ev.Text, &res, ev.ChatID)
	if !ok {
		return res, nil
	}
	if notify.Before(e.now()) {
		res.reply(ev.ChatID, "The notification time is in the past. Enter a future time.", backNavKb())
		return res, nil
	}
	start := unixTime(sess.Data[dataQStart])
	lead := e.config().MinNotifyLead
	if start.Sub(notify) <= lead {
		res.reply(ev.ChatID, fmt.Sprintf("The notification must go out at least %s before sign-up opens.", lead), backNavKb())
		return res, nil
	}

	name := sess.Data[dataQName]
	end := unixTime(sess.Data[dataQEnd])

	q, err := e.st.CreateQueue(ctx, name, start, end, notify)
	if errors.Is(err, store.ErrDuplicateName) {
		delete(sess.Data, dataQName)
		res.reply(ev.ChatID, "A queue with that name already exists. Enter a different name.", nil)
		e.promptAddName(&res, sess, ev.ChatID)
		return res, nil
	}
	if err != nil {
		return Result{}, err
	}
	if e.sched != nil {
		if err := e.sched.ScheduleOnCreate(ctx, q); err != nil {
			// The queue row is durable; the sweep picks the timers up.
			e.log.Warn("schedule on create failed", logx.Int64("queue_id", q.ID), logx.Err(err))
		}
	}
	e.log.Info("queue created",
		logx.Int64("queue_id", q.ID),
		logx.String("name", q.Name),
		logx.Time("start", q.StartAt))

	delete(sess.Data, dataQName)
	delete(sess.Data, dataQStart)
	delete(sess.Data, dataQEnd)
	res.reply(ev.ChatID, "Queue \""+name+"\" is scheduled. Sign-up opens "+timefmt.Format(start, e.config().Location)+".", nil)
	menu, err := e.toMenu(ctx, sess, ev)
	if err != nil {
		return Result{}, err
	}
	res.Replies = append(res.Replies, menu.Replies...)
	return res, nil
}

// parseWhen parses a user-entered datetime, appending the re-prompt to res
// on failure.
func (e *Engine) parseWhen(text string, res *Result, chatID int64) (time.Time, bool) {
	t, err := timefmt.Parse(text, e.config().Location)
	if err != nil {
		res.reply(chatID, "I could not read that date.\nUse the format "+timefmt.Layout+", e.g. 02.06.2026 18:00:00.", backNavKb())
		return time.Time{}, false
	}
	return t, true
}

func unixTime(s string) time.Time {
	sec, _ := strconv.ParseInt(s, 10, 64)
	return time.Unix(sec, 0).UTC()
}
