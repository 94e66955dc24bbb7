package router

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tg "github.com/m3rciful/vitalsbot/core/telegram"
	"github.com/m3rciful/vitalsbot/core/telegram/commands"
	"github.com/m3rciful/vitalsbot/core/telegram/teletest"

	tele "gopkg.in/telebot.v4"
)

type fakeConversation struct {
	active map[int64]bool
	texts  []string
}

func (f *fakeConversation) InProgress(sid int64) bool { return f.active[sid] }

func (f *fakeConversation) HandleText(c tele.Context) error {
	f.texts = append(f.texts, c.Text())
	return nil
}

func routeFor(t *testing.T, routes []tg.Route, endpoint any) tele.HandlerFunc {
	t.Helper()
	for _, r := range routes {
		if r.Endpoint == endpoint {
			return r.Handler
		}
	}
	t.Fatalf("no route for %v", endpoint)
	return nil
}

func TestTextRoutesPreferActiveConversation(t *testing.T) {
	conv := &fakeConversation{active: map[int64]bool{10: true}}
	reg := tg.NewRegistry()
	fallbacks := 0
	reg.SetTextFallback(func(tele.Context) error { fallbacks++; return nil })

	h := routeFor(t, TextRoutes(conv, reg, TextOptions{}), tele.OnText)

	require.NoError(t, h(teletest.Message(1, 10, 10, "P1")))
	require.NoError(t, h(teletest.Message(2, 11, 11, "hello")))

	assert.Equal(t, []string{"P1"}, conv.texts)
	assert.Equal(t, 1, fallbacks)
}

func TestTextRoutesUnknownText(t *testing.T) {
	unknown := 0
	h := routeFor(t, TextRoutes(nil, nil, TextOptions{
		UnknownText: func(tele.Context) error { unknown++; return nil },
	}), tele.OnText)

	require.NoError(t, h(teletest.Message(1, 10, 10, "hi")))
	assert.Equal(t, 1, unknown)
}

func TestCallbackRouteDispatchesByKey(t *testing.T) {
	reg := tg.NewRegistry()
	var payloads []string
	require.NoError(t, reg.RegisterCallback("flow", func(c tele.Context) error {
		payloads = append(payloads, c.Callback().Data)
		return nil
	}))
	route := CallbackRoute(reg, CallbackOptions{})

	c := teletest.Callback(1, 10, 10, "\fflow|hourly")
	require.NoError(t, route.Handler(c))
	assert.Equal(t, []string{"\fflow|hourly"}, payloads)
	assert.Equal(t, 1, c.Responses())
}

func TestCallbackRouteNotFound(t *testing.T) {
	reg := tg.NewRegistry()
	missing := 0
	route := CallbackRoute(reg, CallbackOptions{
		NotFound: func(tele.Context) error { missing++; return nil },
	})

	require.NoError(t, route.Handler(teletest.Callback(1, 10, 10, "\fgone|x")))
	assert.Equal(t, 1, missing)

	// Without an explicit handler the registry default acknowledges the press.
	c := teletest.Callback(2, 10, 10, "\fgone|x")
	require.NoError(t, CallbackRoute(reg, CallbackOptions{}).Handler(c))
	assert.Equal(t, 1, c.Responses())
}

func TestCommandRoutesGateAdminCommands(t *testing.T) {
	reg := tg.NewRegistry()
	calls := map[string]int{}
	for _, cmd := range []commands.Command{
		{Name: "/data", Description: "data", Handler: func(tele.Context) error { calls["data"]++; return nil }},
		{Name: "/timers", Description: "timers", AdminOnly: true, Handler: func(tele.Context) error { calls["timers"]++; return nil }},
	} {
		require.NoError(t, reg.RegisterCommand(cmd))
	}

	rejected := 0
	routes := CommandRoutes(reg, CommandRouteOptions{
		AdminID:       1,
		OnAdminReject: func(tele.Context) error { rejected++; return nil },
	})
	require.Len(t, routes, 2)
	assert.Equal(t, "/data", routes[0].Endpoint)

	timers := routeFor(t, routes, "/timers")
	require.NoError(t, timers(teletest.Message(1, 2, 2, "/timers")))
	require.NoError(t, timers(teletest.Message(2, 1, 1, "/timers")))
	require.NoError(t, routeFor(t, routes, "/data")(teletest.Message(3, 2, 2, "/data")))

	assert.Equal(t, 1, calls["timers"])
	assert.Equal(t, 1, calls["data"])
	assert.Equal(t, 1, rejected)
}

func TestNormalizeHandlerName(t *testing.T) {
	assert.Equal(t, "settimer", normalizeHandlerName("/SetTimer"))
	assert.Equal(t, "unknown", normalizeHandlerName("  "))
}

type codedErr struct{}

func (codedErr) Error() string { return "coded" }
func (codedErr) Code() string  { return "profile not found" }

func TestErrorCode(t *testing.T) {
	assert.Equal(t, "CANCELLED", errorCode(fmt.Errorf("wrap: %w", context.Canceled)))
	assert.Equal(t, "TIMEOUT", errorCode(context.DeadlineExceeded))
	assert.Equal(t, "TG_403", errorCode(fmt.Errorf("send: %w", &tele.Error{Code: 403})))
	assert.Equal(t, "PROFILE_NOT_FOUND", errorCode(fmt.Errorf("x: %w", codedErr{})))
	assert.Equal(t, "ERRORSTRING", errorCode(errors.New("plain")))
}
