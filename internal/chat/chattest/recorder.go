// Package chattest records outbound messages for tests.
package chattest

import (
	"context"
	"sync"

	"github.com/m3rciful/vitalsbot/internal/chat"
)

// Sent is one captured message.
type Sent struct {
	SessionID int64
	Message   chat.Message
}

// Recorder implements chat.Sender, and chat.Replier for a fixed session.
type Recorder struct {
	mu sync.Mutex
	// SessionID is used for Reply.
	SessionID int64
	// Err, when set, is returned after recording.
	Err  error
	sent []Sent
}

// Send implements chat.Sender.
func (r *Recorder) Send(_ context.Context, sessionID int64, msg chat.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, Sent{SessionID: sessionID, Message: msg})
	return r.Err
}

// Reply implements chat.Replier.
func (r *Recorder) Reply(ctx context.Context, msg chat.Message) error {
	return r.Send(ctx, r.SessionID, msg)
}

// All returns a copy of every captured message.
func (r *Recorder) All() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Sent(nil), r.sent...)
}

// Texts returns the text of every captured message.
func (r *Recorder) Texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.sent))
	for _, s := range r.sent {
		out = append(out, s.Message.Text)
	}
	return out
}

// Last returns the most recent message.
func (r *Recorder) Last() (chat.Message, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sent) == 0 {
		return chat.Message{}, false
	}
	return r.sent[len(r.sent)-1].Message, true
}

// Reset drops captured messages.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = nil
}
