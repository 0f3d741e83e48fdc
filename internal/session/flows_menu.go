package session

import (
	"context"
	"errors"

	"queuebot/internal/store"
)

// handleStart resets the conversation. Unregistered users are routed into
// the registration flow; everyone else lands on the menu.
func (e *Engine) handleStart(ctx context.Context, sess *store.Session, ev Event) (Result, error) {
	sess.Data = map[string]string{}

	_, err := e.st.GetUser(ctx, ev.UserID)
	if errors.Is(err, store.ErrNotFound) {
		sess.State = string(StateRegName)
		var res Result
		res.reply(ev.ChatID, "Welcome! Let's get you registered.\nWhat is your first name?", nil)
		return res, nil
	}
	if err != nil {
		return Result{}, err
	}
	return e.toMenu(ctx, sess, ev)
}

// showMenu re-renders the menu for stray text, nudging unregistered users
// into registration first.
func (e *Engine) showMenu(ctx context.Context, sess *store.Session, ev Event) (Result, error) {
	_, err := e.st.GetUser(ctx, ev.UserID)
	if errors.Is(err, store.ErrNotFound) {
		sess.State = string(StateRegName)
		var res Result
		res.reply(ev.ChatID, "You are not registered yet.\nWhat is your first name?", nil)
		return res, nil
	}
	if err != nil {
		return Result{}, err
	}
	return e.toMenu(ctx, sess, ev)
}

func (e *Engine) backToMenu(ctx context.Context, sess *store.Session, ev Event) (Result, error) {
	return e.toMenu(ctx, sess, ev)
}

func (e *Engine) toMenu(ctx context.Context, sess *store.Session, ev Event) (Result, error) {
	sess.State = string(StateMenu)
	delete(sess.Data, dataStatus)
	delete(sess.Data, dataPage)
	delete(sess.Data, dataQueueID)

	text, kb, err := e.renderMenu(ctx, ev.UserID)
	if err != nil {
		return Result{}, err
	}
	var res Result
	res.reply(ev.ChatID, text, kb)
	return res, nil
}
