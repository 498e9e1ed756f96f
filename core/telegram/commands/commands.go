// Package commands describes slash commands independently of routing.
package commands

import tele "gopkg.in/telebot.v4"

// Command is a slash command. Aliases are alternative names, with or
// without the slash, resolved by the text router.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	// AdminOnly commands run for the configured admin only and are listed
	// in the admin's command menu alone.
	AdminOnly bool
	// Hidden commands work but are never listed.
	Hidden  bool
	Aliases []string
}

// Public reports whether the command belongs in everyone's menu.
func (c Command) Public() bool { return !c.Hidden && !c.AdminOnly }
