package orders

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/bryanwax12/newbotcursor/internal/testutil"
)

func TestPostgresStore(t *testing.T) {
	db := testutil.Postgres(t)
	var next atomic.Int64
	next.Store(time.Now().UnixNano() % 1_000_000_000)
	runStoreContract(t, func(t *testing.T, opts ...Option) Store {
		return NewPostgresStore(db, opts...)
	}, func() int64 { return next.Add(1) })
}
