// Package teletest provides a minimal tele.Context for handler tests.
package teletest

import (
	"sync"

	tele "gopkg.in/telebot.v4"
)

// Sent is one message captured by Context.Send.
type Sent struct {
	What   interface{}
	Markup *tele.ReplyMarkup
}

// Context implements the parts of tele.Context the bot's handlers use.
// Calling any other method panics.
type Context struct {
	tele.Context

	mu        sync.Mutex
	upd       tele.Update
	store     map[string]interface{}
	sent      []Sent
	edits     []Sent
	responses int
	// SendErr, when set, is returned by Send.
	SendErr error
}

// Message builds a context for a text message from user in chat.
func Message(updateID int, chatID, userID int64, text string) *Context {
	return &Context{
		upd: tele.Update{
			ID: updateID,
			Message: &tele.Message{
				Text:   text,
				Chat:   &tele.Chat{ID: chatID, Type: tele.ChatPrivate},
				Sender: &tele.User{ID: userID},
			},
		},
		store: make(map[string]interface{}),
	}
}

// Callback builds a context for an inline button press carrying raw data.
func Callback(updateID int, chatID, userID int64, data string) *Context {
	msg := &tele.Message{Chat: &tele.Chat{ID: chatID, Type: tele.ChatPrivate}}
	return &Context{
		upd: tele.Update{
			ID: updateID,
			Callback: &tele.Callback{
				ID:      "cb",
				Data:    data,
				Sender:  &tele.User{ID: userID},
				Message: msg,
			},
		},
		store: make(map[string]interface{}),
	}
}

func (c *Context) Update() tele.Update { return c.upd }

func (c *Context) Message() *tele.Message {
	switch {
	case c.upd.Message != nil:
		return c.upd.Message
	case c.upd.Callback != nil:
		return c.upd.Callback.Message
	}
	return nil
}

func (c *Context) Callback() *tele.Callback { return c.upd.Callback }

func (c *Context) Sender() *tele.User {
	switch {
	case c.upd.Message != nil:
		return c.upd.Message.Sender
	case c.upd.Callback != nil:
		return c.upd.Callback.Sender
	}
	return nil
}

func (c *Context) Chat() *tele.Chat {
	if m := c.Message(); m != nil {
		return m.Chat
	}
	return nil
}

func (c *Context) Text() string {
	if m := c.Message(); m != nil {
		return m.Text
	}
	return ""
}

func (c *Context) Get(key string) interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store[key]
}

func (c *Context) Set(key string, val interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store[key] = val
}

func capture(what interface{}, opts []interface{}) Sent {
	s := Sent{What: what}
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.SendOptions:
			if v != nil {
				s.Markup = v.ReplyMarkup
			}
		case *tele.ReplyMarkup:
			s.Markup = v
		}
	}
	return s
}

func (c *Context) Send(what interface{}, opts ...interface{}) error {
	s := capture(what, opts)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, s)
	return c.SendErr
}

func (c *Context) Edit(what interface{}, opts ...interface{}) error {
	s := capture(what, opts)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.edits = append(c.edits, s)
	return c.SendErr
}

func (c *Context) Respond(_ ...*tele.CallbackResponse) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responses++
	return nil
}

// Sent returns the captured messages.
func (c *Context) Sent() []Sent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Sent(nil), c.sent...)
}

// Texts returns the text of every captured message.
func (c *Context) Texts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.sent))
	for _, s := range c.sent {
		if text, ok := s.What.(string); ok {
			out = append(out, text)
		}
	}
	return out
}

// Edits returns the captured message edits.
func (c *Context) Edits() []Sent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Sent(nil), c.edits...)
}

// Responses counts callback acknowledgements.
func (c *Context) Responses() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.responses
}
