package router

import (
	"strings"

	tg "github.com/bryanwax12/newbotcursor/core/telegram"
	"github.com/bryanwax12/newbotcursor/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// Conversation receives free text while a user has a dialog in progress.
// InProgress may consult a shared store, so it gets the update context.
type Conversation interface {
	InProgress(c tele.Context) bool
	HandleInput(c tele.Context) error
}

// TextOptions controls fallback behaviour for text/document updates.
type TextOptions struct {
	UnknownText     tele.HandlerFunc
	UnknownDocument tele.HandlerFunc
	// Admin guards admin-only commands reached through the text route.
	Admin middleware.AdminOptions
}

// TextRoutes builds handlers for text and document routing. Slash commands
// win over an active conversation so /cancel always works; this covers
// aliases and "/cmd@bot" forms Telebot does not route itself.
func TextRoutes(conv Conversation, reg *tg.Registry, opts TextOptions) []tg.Route {
	inConversation := func(c tele.Context) bool { return conv != nil && conv.InProgress(c) }

	onText := func(c tele.Context) error {
		if text := c.Text(); reg != nil && strings.HasPrefix(text, "/") {
			if key, cmd, ok := reg.LookupCommand(commandName(text)); ok {
				return invoke(c, handlerName(key), guard(cmd.Handler, cmd.AdminOnly, opts.Admin))
			}
		}
		switch {
		case inConversation(c):
			return invoke(c, "conversation", conv.HandleInput)
		case opts.UnknownText != nil:
			return invoke(c, "unknown_text", opts.UnknownText)
		}
		skipped(c, "unknown_text")
		return nil
	}

	onDocument := func(c tele.Context) error {
		switch {
		case inConversation(c):
			return invoke(c, "conversation_document", conv.HandleInput)
		case opts.UnknownDocument != nil:
			return invoke(c, "unexpected_document", opts.UnknownDocument)
		}
		skipped(c, "unexpected_document")
		return nil
	}

	return []tg.Route{
		{Endpoint: tele.OnText, Handler: wrap(onText)},
		{Endpoint: tele.OnDocument, Handler: wrap(onDocument)},
	}
}

// commandName strips arguments and a @botname suffix from a command line.
func commandName(text string) string {
	name, _, _ := strings.Cut(strings.TrimSpace(text), " ")
	name, _, _ = strings.Cut(name, "@")
	return name
}
