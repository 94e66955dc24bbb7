package middleware

import (
	tele "gopkg.in/telebot.v4"
)

const keyOutbound = "outbound"

// outbound tallies what a handler sent back for the current update.
type outbound struct {
	messages int
	keyboard bool
}

func (o *outbound) record(opts []interface{}) {
	o.messages++
	if o.keyboard {
		return
	}
	for _, opt := range opts {
		var rm *tele.ReplyMarkup
		switch v := opt.(type) {
		case *tele.SendOptions:
			if v != nil {
				rm = v.ReplyMarkup
			}
		case *tele.ReplyMarkup:
			rm = v
		}
		if rm != nil && len(rm.InlineKeyboard) > 0 {
			o.keyboard = true
			return
		}
	}
}

// countingContext counts successful Send, Reply and Edit calls.
type countingContext struct {
	tele.Context
	out *outbound
}

func (c countingContext) counted(err error, opts []interface{}) error {
	if err == nil {
		c.out.record(opts)
	}
	return err
}

func (c countingContext) Send(what interface{}, opts ...interface{}) error {
	return c.counted(c.Context.Send(what, opts...), opts)
}

func (c countingContext) Reply(what interface{}, opts ...interface{}) error {
	return c.counted(c.Context.Reply(what, opts...), opts)
}

// Edit counts too: a callback answer replaces the menu in place.
func (c countingContext) Edit(what interface{}, opts ...interface{}) error {
	return c.counted(c.Context.Edit(what, opts...), opts)
}

// MessageMetricsMiddleware counts the replies a handler makes so the
// handler summary can report them.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		out := &outbound{}
		c.Set(keyOutbound, out)
		return next(countingContext{Context: c, out: out})
	}
}

// GetCounters returns how many messages the handler sent and whether any
// carried an inline keyboard. Timer pushes sent through the dispatcher are
// not included.
func GetCounters(c tele.Context) (int, bool) {
	out, ok := c.Get(keyOutbound).(*outbound)
	if !ok {
		return 0, false
	}
	return out.messages, out.keyboard
}
