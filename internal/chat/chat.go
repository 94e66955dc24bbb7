// Package chat defines the message-channel contract shared by the conversation
// engine and the timer callback. The telegram wiring implements it.
package chat

import "context"

// Option is a single selectable choice attached to a message.
type Option struct {
	Label string
	Value string
}

// Message is an outbound text with optional choices.
type Message struct {
	Text    string
	Options []Option
}

// Text builds a plain message.
func Text(text string) Message {
	return Message{Text: text}
}

// Choice builds a message that offers the given options.
func Choice(text string, opts ...Option) Message {
	return Message{Text: text, Options: opts}
}

// Replier answers the update currently being handled.
type Replier interface {
	Reply(ctx context.Context, msg Message) error
}

// Sender pushes a message to a session outside of any update, e.g. from a timer.
type Sender interface {
	Send(ctx context.Context, sessionID int64, msg Message) error
}

// ReplierFunc adapts a function to Replier.
type ReplierFunc func(ctx context.Context, msg Message) error

// Reply calls f.
func (f ReplierFunc) Reply(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}
