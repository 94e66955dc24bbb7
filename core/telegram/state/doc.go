// Package state provides a lightweight FSM/session manager for chat bots.
// Sessions are keyed by an opaque int64 (the bot uses the chat id) and hold the
// current step plus temporary values collected along the way.
package state
