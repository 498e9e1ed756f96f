package callbacks

import (
	"errors"
	"strings"

	tele "gopkg.in/telebot.v4"
)

// MaxDataLen is Telegram's limit for callback_data, in bytes.
const MaxDataLen = 64

// ErrNoPayload is returned when a callback that needs a payload has none.
var ErrNoPayload = errors.New("callbacks: empty payload")

// RequirePayload returns the trimmed payload or ErrNoPayload.
func RequirePayload(c tele.Context) (string, error) {
	p := strings.TrimSpace(CallbackPayload(c))
	if p == "" {
		return "", ErrNoPayload
	}
	return p, nil
}

// Data encodes unique and payload the way Telebot's markup.Data does and
// reports whether the result fits into callback_data.
func Data(unique, payload string) (string, bool) {
	d := "\f" + unique
	if payload != "" {
		d += "|" + payload
	}
	return d, len(d) <= MaxDataLen
}
