// Package commands describes slash commands and how they appear in the
// client's command menu.
package commands

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Command is a slash command with its handler and menu metadata.
// Name carries the leading slash, e.g. "/data".
type Command struct {
	Name        string
	Description string
	Handler     tele.HandlerFunc
	// AdminOnly commands are wrapped with the admin gate and never listed.
	AdminOnly bool
	Hidden    bool
}

// Visible reports whether the command belongs in the public menu.
func (c Command) Visible() bool {
	return !c.Hidden && !c.AdminOnly
}

// Menu converts visible commands to the Bot API form, which wants names
// without the slash.
func Menu(cmds []Command) []tele.Command {
	out := make([]tele.Command, 0, len(cmds))
	for _, c := range cmds {
		if !c.Visible() {
			continue
		}
		out = append(out, tele.Command{
			Text:        strings.TrimPrefix(c.Name, "/"),
			Description: c.Description,
		})
	}
	return out
}
