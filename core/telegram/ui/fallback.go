// Package ui holds interfaces shared by Telegram front ends.
package ui

import tele "gopkg.in/telebot.v4"

// FallbackProvider answers updates that no command, callback or
// conversation claimed, and updates dropped by the rate limit.
type FallbackProvider interface {
	UnknownText() tele.HandlerFunc
	UnknownDocument() tele.HandlerFunc
	UnknownCallback() tele.HandlerFunc
	Throttled() tele.HandlerFunc
}
