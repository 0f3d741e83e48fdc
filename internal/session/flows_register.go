package session

import (
	"context"
	"strings"

	"queuebot/internal/store"
	logx "queuebot/pkg/logx"
)

func (e *Engine) regName(ctx context.Context, sess *store.Session, ev Event) (Result, error) {
	name := strings.TrimSpace(ev.Text)
	var res Result
	if name == "" {
		res.reply(ev.ChatID, "A name cannot be empty. What is your first name?", nil)
		return res, nil
	}
	sess.Data[dataName] = name
	sess.State = string(StateRegSurname)
	res.reply(ev.ChatID, "And your surname?", backNavKb())
	return res, nil
}

func (e *Engine) backToRegName(_ context.Context, sess *store.Session, ev Event) (Result, error) {
	sess.State = string(StateRegName)
	var res Result
	res.reply(ev.ChatID, "What is your first name?", nil)
	return res, nil
}

// regSurname completes registration. The (name, surname) pair must be
// unique, compared case-sensitively; on a clash the flow restarts from the
// name question.
func (e *Engine) regSurname(ctx context.Context, sess *store.Session, ev Event) (Result, error) {
	surname := strings.TrimSpace(ev.Text)
	var res Result
	if surname == "" {
		res.reply(ev.ChatID, "A surname cannot be empty. What is your surname?", nil)
		return res, nil
	}
	name := sess.Data[dataName]

	taken, err := e.st.UserExistsByName(ctx, name, surname)
	if err != nil {
		return Result{}, err
	}
	if taken {
		delete(sess.Data, dataName)
		sess.State = string(StateRegName)
		res.reply(ev.ChatID, "Someone with that name and surname is already registered.\nPlease enter a different first name.", nil)
		return res, nil
	}

	err = e.st.CreateUser(ctx, store.User{
		ID:      ev.UserID,
		Name:    name,
		Surname: surname,
		IsAdmin: ev.UserID == e.config().SuperAdminID,
	})
	if err != nil {
		return Result{}, err
	}
	e.log.Info("user registered", logx.Int64("user_id", ev.UserID))

	delete(sess.Data, dataName)
	res.reply(ev.ChatID, "You are registered, "+name+"!", nil)
	menu, err := e.toMenu(ctx, sess, ev)
	if err != nil {
		return Result{}, err
	}
	res.Replies = append(res.Replies, menu.Replies...)
	return res, nil
}
