package session

import (
	tele "gopkg.in/telebot.v4"
)

// Event is one normalized incoming update from a user.
type Event struct {
	UserID int64
	ChatID int64

	// Text is the message text for plain messages and commands.
	Text string

	// Callback is set for inline-button taps, nil otherwise.
	Callback *Callback
}

// Callback is a parsed inline-button payload ("scope:action:payload").
type Callback struct {
	ID      string
	Scope   string
	Action  string
	Payload string
}

// IsCommand reports whether the event is a slash command.
func (e Event) IsCommand(cmd string) bool {
	return e.Callback == nil && e.Text == cmd
}

// Reply is one outgoing message the engine wants delivered.
type Reply struct {
	ChatID int64
	Text   string
	Markup *tele.ReplyMarkup
}

// Result is what a dispatch produced: replies to deliver in order, plus an
// optional callback acknowledgement toast.
type Result struct {
	Replies []Reply

	// Ack is the text shown in the callback answer popup. Empty still
	// answers the callback (clears the client spinner) with no toast.
	Ack string
}

func (r *Result) reply(chatID int64, text string, markup *tele.ReplyMarkup) {
	r.Replies = append(r.Replies, Reply{ChatID: chatID, Text: text, Markup: markup})
}
