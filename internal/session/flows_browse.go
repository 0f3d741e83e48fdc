package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"queuebot/internal/store"
	"queuebot/pkg/tgui"
)

// openQueueList enters the list for the status named in the button payload.
// A stale or mangled payload falls back to the open queues.
func (e *Engine) openQueueList(ctx context.Context, sess *store.Session, ev Event) (Result, error) {
	status := store.Status(ev.Callback.Payload)
	if !status.Valid() {
		status = store.StatusActive
	}
	return e.toList(ctx, sess, ev, status, 1)
}

// listStatus reads the browsed status back from the form.
func (e *Engine) listStatus(sess *store.Session) store.Status {
	status := store.Status(sess.Data[dataStatus])
	if !status.Valid() {
		return store.StatusActive
	}
	return status
}

func (e *Engine) gotoPage(ctx context.Context, sess *store.Session, ev Event) (Result, error) {
	page, err := strconv.Atoi(ev.Callback.Payload)
	if err != nil {
		page = 1
	}
	return e.toList(ctx, sess, ev, e.listStatus(sess), page)
}

// gotoPageText lets users jump to a page by typing its number. Out-of-range
// or non-numeric input keeps the current page and re-prompts.
func (e *Engine) gotoPageText(ctx context.Context, sess *store.Session, ev Event) (Result, error) {
	status := e.listStatus(sess)
	current, _ := strconv.Atoi(sess.Data[dataPage])

	page, err := strconv.Atoi(strings.TrimSpace(ev.Text))
	if err != nil {
		res, lerr := e.toList(ctx, sess, ev, status, current)
		if lerr != nil {
			return Result{}, lerr
		}
		res.Replies = append([]Reply{{ChatID: ev.ChatID, Text: "Type a page number, or use the buttons."}}, res.Replies...)
		return res, nil
	}

	queues, err := e.st.ListQueuesByStatus(ctx, status)
	if err != nil {
		return Result{}, err
	}
	pages := tgui.Pages(len(queues), e.config().PageSize)
	if page < 1 || page > pages {
		res, lerr := e.toList(ctx, sess, ev, status, current)
		if lerr != nil {
			return Result{}, lerr
		}
		res.Replies = append([]Reply{{ChatID: ev.ChatID, Text: fmt.Sprintf("There is no page %d. Pick one between 1 and %d.", page, pages)}}, res.Replies...)
		return res, nil
	}
	return e.toList(ctx, sess, ev, status, page)
}

func (e *Engine) backToList(ctx context.Context, sess *store.Session, ev Event) (Result, error) {
	page, _ := strconv.Atoi(sess.Data[dataPage])
	return e.toList(ctx, sess, ev, e.listStatus(sess), page)
}

func (e *Engine) toList(ctx context.Context, sess *store.Session, ev Event, status store.Status, page int) (Result, error) {
	text, kb, clamped, err := e.renderList(ctx, status, page)
	if err != nil {
		return Result{}, err
	}
	sess.State = string(StateQueueList)
	sess.Data[dataStatus] = string(status)
	sess.Data[dataPage] = strconv.Itoa(clamped)
	delete(sess.Data, dataQueueID)

	var res Result
	res.reply(ev.ChatID, text, kb)
	return res, nil
}

func (e *Engine) showQueue(ctx context.Context, sess *store.Session, ev Event) (Result, error) {
	id, err := strconv.ParseInt(ev.Callback.Payload, 10, 64)
	if err != nil {
		// Malformed payload; treat like a back press.
		return e.toList(ctx, sess, ev, e.listStatus(sess), 1)
	}
	text, kb, err := e.renderDetail(ctx, ev.UserID, id)
	if err != nil {
		return Result{}, err
	}
	sess.State = string(StateQueueDetail)
	sess.Data[dataQueueID] = strconv.FormatInt(id, 10)

	var res Result
	res.reply(ev.ChatID, text, kb)
	return res, nil
}

// joinQueue signs the user up and re-renders the detail view. All the
// interesting failure modes surface as a callback toast, not a message.
func (e *Engine) joinQueue(ctx context.Context, sess *store.Session, ev Event) (Result, error) {
	id, err := strconv.ParseInt(ev.Callback.Payload, 10, 64)
	if err != nil {
		return e.toList(ctx, sess, ev, e.listStatus(sess), 1)
	}

	var ack string
	pos, err := e.st.JoinQueue(ctx, ev.UserID, id)
	switch {
	case err == nil:
		ack = fmt.Sprintf("You are #%d in the queue", pos)
	case errors.Is(err, store.ErrAlreadyJoined):
		ack = "You are already in this queue"
	case errors.Is(err, store.ErrNotOpen):
		ack = "This queue is not open for sign-up"
	case errors.Is(err, store.ErrNotFound):
		ack = "This queue no longer exists"
	default:
		return Result{}, err
	}

	text, kb, err := e.renderDetail(ctx, ev.UserID, id)
	if err != nil {
		return Result{}, err
	}
	sess.State = string(StateQueueDetail)
	sess.Data[dataQueueID] = strconv.FormatInt(id, 10)

	res := Result{Ack: ack}
	res.reply(ev.ChatID, text, kb)
	return res, nil
}
