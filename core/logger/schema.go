package logger

import "strings"

// vocab is a closed set of values for one log key; aliases map onto their
// canonical spelling.
type vocab map[string]string

func words(canonical ...string) vocab {
	v := make(vocab, len(canonical))
	for _, w := range canonical {
		v[w] = w
	}
	return v
}

func (v vocab) with(alias, canonical string) vocab {
	v[alias] = canonical
	return v
}

// lookup lowercases s and reports its canonical form.
func (v vocab) lookup(s string) (string, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "", false
	}
	n, ok := v[s]
	return n, ok
}

var (
	levels = vocab{"debug": "DEBUG", "info": "INFO", "warn": "WARN", "warning": "WARN", "error": "ERROR"}

	statuses = words("ok", "fail", "skip", "retry", "rate_limited", "cancelled")

	cacheResults = words("hit", "miss", "refresh")

	// outcomes of a conversation step or command
	outcomes = words(
		"ok", "fail", "cancelled", "rate_limited",
		"reprompt", "advanced", "rejected", "editing",
		"ready_for_finalization", "complete", "finalize_failed",
		"load_template", "template_applied", "template_failed",
		"no_session", "debounced", "conflict", "stale",
		"started", "resumed",
	).with("canceled", "cancelled")
)

// normalizeLevel maps slog level names onto the canonical ones; offsets
// such as "ERROR+2" are kept upper-cased.
func normalizeLevel(level string) string {
	if level == "" {
		return "INFO"
	}
	if n, ok := levels.lookup(level); ok {
		return n
	}
	return strings.ToUpper(level)
}

var defaultKeyOrder = []string{
	"ts",
	"level",
	"component",
	"event",
	"status",
	"rid",
	"rid_full",
	"ts_unix_nano",
	"update_id",
	"user_id",
	"chat_id",
	"chat_type",
	"handler",
	"operation",
	"op",
	"cb_key",
	"outcome",
	"duration_ms",
	"messages",
	"kb",
	"count",
	"page",
	"pages",
	"cache",
	"payload",
	"lang",
	"username",
	"mode",
	"listen",
	"public_url",
	"http_code",
	"db",
	"host",
	"port",
	"draft_id",
	"step",
	"version",
	"reason",
	"order_id",
	"template_id",
	"err",
	"err_code",
	"cause",
	"retryable",
	"attempts",
	"backoff_ms",
	"rate_limited",
	"collapsed",
	"repeats",
	"pending_count",
	"purged",
}
