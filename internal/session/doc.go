// Package session implements the per-user conversation engine.
//
// Every user mid-flow has one persisted session row: the current state plus
// the string form data collected so far. A user resting on the menu has no
// row at all. Incoming updates become Events; a
// static dispatch table maps (state, event shape) to a handler. The first
// matching rule wins and unmatched events are dropped. The mutated session
// is persisted before any reply is handed back for delivery, so a crash
// between the two leaves the conversation consistent (the user re-sends and
// continues from the stored state).
//
// Dispatch serializes per user: two updates from the same user never
// interleave, while different users proceed concurrently.
package session
