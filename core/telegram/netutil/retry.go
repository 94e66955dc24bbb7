// Package netutil classifies Bot API failures.
package netutil

import (
	"errors"
	"net"
	"syscall"
	"time"

	tele "gopkg.in/telebot.v4"
)

// ShouldRetry reports whether a failed Bot API call may succeed when
// repeated. Flood control, 5xx answers, timeouts and refused or reset
// connections qualify. Any other API answer is final.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	var flood tele.FloodError
	if errors.As(err, &flood) {
		return true
	}
	if api := new(tele.Error); errors.As(err, &api) {
		return api.Code >= 500
	}
	if ne := net.Error(nil); errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	if op := new(net.OpError); errors.As(err, &op) && op.Op == "dial" {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET)
}

// RetryAfter is the wait Telegram asked for on flood control, or zero.
func RetryAfter(err error) time.Duration {
	var flood tele.FloodError
	if !errors.As(err, &flood) || flood.RetryAfter <= 0 {
		return 0
	}
	return time.Duration(flood.RetryAfter) * time.Second
}
