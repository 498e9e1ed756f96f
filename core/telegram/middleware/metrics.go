package middleware

import tele "gopkg.in/telebot.v4"

const countersKey = "reply_counters"

// counters are the per-update reply statistics shown in handler summaries.
type counters struct {
	messages int
	keyboard bool
}

// metricsContext counts what a handler sends back through the context.
type metricsContext struct {
	tele.Context
	n *counters
}

func (m metricsContext) count(err error, opts []any) error {
	if err != nil {
		return err
	}
	m.n.messages++
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.SendOptions:
			m.n.keyboard = m.n.keyboard || (v != nil && v.ReplyMarkup != nil)
		case *tele.ReplyMarkup:
			m.n.keyboard = m.n.keyboard || v != nil
		}
	}
	return nil
}

func (m metricsContext) Send(what any, opts ...any) error {
	return m.count(m.Context.Send(what, opts...), opts)
}

func (m metricsContext) Reply(what any, opts ...any) error {
	return m.count(m.Context.Reply(what, opts...), opts)
}

func (m metricsContext) Edit(what any, opts ...any) error {
	return m.count(m.Context.Edit(what, opts...), opts)
}

func (m metricsContext) EditOrSend(what any, opts ...any) error {
	return m.count(m.Context.EditOrSend(what, opts...), opts)
}

func (m metricsContext) EditOrReply(what any, opts ...any) error {
	return m.count(m.Context.EditOrReply(what, opts...), opts)
}

// MessageMetricsMiddleware counts the messages a handler sends and whether
// any of them carried a keyboard.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		n := &counters{}
		c.Set(countersKey, n)
		return next(metricsContext{Context: c, n: n})
	}
}

// GetCounters returns the sent message count and keyboard flag for the
// current update.
func GetCounters(c tele.Context) (int, bool) {
	if n, ok := c.Get(countersKey).(*counters); ok && n != nil {
		return n.messages, n.keyboard
	}
	return 0, false
}
