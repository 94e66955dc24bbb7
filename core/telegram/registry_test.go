package telegram

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/vitalsbot/core/telegram/commands"

	tele "gopkg.in/telebot.v4"
)

func noop(tele.Context) error { return nil }

type menuRecorder struct {
	got []tele.Command
	err error
}

func (m *menuRecorder) SetCommands(opts ...interface{}) error {
	for _, o := range opts {
		if cmds, ok := o.([]tele.Command); ok {
			m.got = cmds
		}
	}
	return m.err
}

func TestRegistryKeepsOrderAndRejectsInvalid(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterCommand(commands.Command{Name: "/start", Description: "start", Handler: noop}))
	require.NoError(t, reg.RegisterCommand(commands.Command{Name: "/data", Description: "data", Handler: noop}))
	require.NoError(t, reg.RegisterCommand(commands.Command{Name: "/timers", Description: "timers", Handler: noop, AdminOnly: true}))

	assert.ErrorIs(t, reg.RegisterCommand(commands.Command{Name: "/data", Description: "again", Handler: noop}), ErrDuplicate)
	assert.ErrorIs(t, reg.RegisterCommand(commands.Command{Name: "help", Description: "help", Handler: noop}), ErrInvalidCommand)
	assert.ErrorIs(t, reg.RegisterCommand(commands.Command{Name: "/nohandler", Description: "x"}), ErrInvalidCommand)

	var names []string
	for _, c := range reg.Commands() {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"/start", "/data", "/timers"}, names)

	cmd, ok := reg.LookupCommand("data@vitals_bot")
	require.True(t, ok)
	assert.Equal(t, "/data", cmd.Name)
}

func TestInitBotCommandsPublishesVisibleMenu(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterCommand(commands.Command{Name: "/data", Description: "Fetch data", Handler: noop}))
	require.NoError(t, reg.RegisterCommand(commands.Command{Name: "/cancel", Description: "Cancel", Handler: noop, Hidden: true}))
	require.NoError(t, reg.RegisterCommand(commands.Command{Name: "/timers", Description: "Timers", Handler: noop, AdminOnly: true}))

	rec := &menuRecorder{}
	require.NoError(t, InitBotCommands(rec, reg))
	assert.Equal(t, []tele.Command{{Text: "data", Description: "Fetch data"}}, rec.got)

	rec.err = errors.New("boom")
	assert.Error(t, InitBotCommands(rec, reg))
}

func TestRegistryCallbacks(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.RegisterCallback("flow", noop))
	assert.ErrorIs(t, reg.RegisterCallback("flow", noop), ErrDuplicate)
	assert.Error(t, reg.RegisterCallback("", noop))

	_, ok := reg.GetCallback("flow")
	assert.True(t, ok)
	assert.Equal(t, []string{"flow"}, reg.ListCallbacks())
}
