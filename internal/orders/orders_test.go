package orders

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var required = []string{"sender_name", "recipient_name", "parcel_weight"}

func completeFields() map[string]string {
	return map[string]string{"sender_name": "John Doe", "recipient_name": "Jane Roe", "parcel_weight": "2.5"}
}

func TestNewOrderID(t *testing.T) {
	id := NewOrderID(time.Date(2024, 5, 1, 9, 8, 7, 0, time.FixedZone("X", 3600)))
	assert.Regexp(t, `^ORD-20240501080807-[0-9a-f]{8}$`, id)
}

func TestFormatCents(t *testing.T) {
	assert.Equal(t, "12.50", FormatCents(1250))
	assert.Equal(t, "0.05", FormatCents(5))
	assert.Equal(t, "-1.00", FormatCents(-100))
}

func TestParseCents(t *testing.T) {
	cases := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"12", 1200, true},
		{"12.5", 1250, true},
		{" 0.05 ", 5, true},
		{"12.345", 0, false},
		{"12.", 0, false},
		{"-3", 0, false},
		{"1e3", 0, false},
		{"", 0, false},
		{"1.+5", 0, false},
		{"+1.50", 0, false},
		{"1.-5", 0, false},
		{"1_000", 0, false},
		{"1000000", MaxAmountCents, true},
		{"1000000.01", 0, false},
		{"92233720368547758", 0, false},
		{"999999999999999999999", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseCents(tc.in)
		if !tc.ok {
			assert.Error(t, err, tc.in)
			continue
		}
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestRejectionError(t *testing.T) {
	err := Reject(ReasonInsufficientBalance, ErrInsufficientBalance)
	var rej *RejectionError
	require.True(t, errors.As(err, &rej))
	assert.Equal(t, ReasonInsufficientBalance, rej.Reason)
	assert.ErrorIs(t, err, ErrInsufficientBalance)
}

type storeFactory func(t *testing.T, opts ...Option) Store

func runStoreContract(t *testing.T, factory storeFactory, newUser func() int64) {
	ctx := context.Background()

	t.Run("generated fields round trip", func(t *testing.T) {
		st := factory(t, WithRequired(required))
		uid := newUser()
		draft := "draft-gen-" + NewOrderID(time.Now())
		_, err := st.Finalize(ctx, draft, uid, completeFields(), "parcel_height", "sender_phone")
		require.NoError(t, err)

		o, err := st.Get(ctx, draft)
		require.NoError(t, err)
		assert.Equal(t, []string{"parcel_height", "sender_phone"}, o.Generated)
	})

	t.Run("finalize is idempotent per draft", func(t *testing.T) {
		st := factory(t, WithRequired(required))
		uid := newUser()
		draft := "draft-" + NewOrderID(time.Now())

		first, err := st.Finalize(ctx, draft, uid, completeFields())
		require.NoError(t, err)
		second, err := st.Finalize(ctx, draft, uid, completeFields())
		require.NoError(t, err)
		assert.Equal(t, first, second)

		o, err := st.Get(ctx, draft)
		require.NoError(t, err)
		assert.Equal(t, first, o.OrderID)
		assert.Equal(t, uid, o.UserID)
		assert.Equal(t, "Jane Roe", o.Fields["recipient_name"])
		assert.Equal(t, StatusCreated, o.Status)

		_, err = st.Finalize(ctx, draft, uid+1, completeFields())
		assert.ErrorIs(t, err, ErrDraftOwner)
	})

	t.Run("incomplete order", func(t *testing.T) {
		st := factory(t, WithRequired(required))
		fields := completeFields()
		delete(fields, "parcel_weight")
		_, err := st.Finalize(ctx, "draft-incomplete-"+NewOrderID(time.Now()), newUser(), fields)
		var rej *RejectionError
		require.ErrorAs(t, err, &rej)
		assert.Equal(t, ReasonIncompleteOrder, rej.Reason)
		assert.ErrorIs(t, err, ErrIncomplete)
	})

	t.Run("balance is charged once", func(t *testing.T) {
		st := factory(t, WithPrice(1000))
		uid := newUser()
		draft := "draft-paid-" + NewOrderID(time.Now())

		_, err := st.Finalize(ctx, draft, uid, completeFields())
		var rej *RejectionError
		require.ErrorAs(t, err, &rej)
		assert.Equal(t, ReasonInsufficientBalance, rej.Reason)

		_, err = st.Get(ctx, draft)
		assert.ErrorIs(t, err, ErrNotFound, "rejected order leaves no row")

		bal, err := st.Credit(ctx, uid, 1500)
		require.NoError(t, err)
		assert.Equal(t, int64(1500), bal)

		var wg sync.WaitGroup
		ids := make([]string, 4)
		for i := range ids {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				ids[i], _ = st.Finalize(ctx, draft, uid, completeFields())
			}(i)
		}
		wg.Wait()
		for _, id := range ids {
			assert.Equal(t, ids[0], id)
		}

		bal, err = st.Balance(ctx, uid)
		require.NoError(t, err)
		assert.Equal(t, int64(500), bal)
	})

	t.Run("get unknown", func(t *testing.T) {
		st := factory(t)
		_, err := st.Get(ctx, "missing-"+NewOrderID(time.Now()))
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestMemoryStore(t *testing.T) {
	var next int64
	runStoreContract(t, func(t *testing.T, opts ...Option) Store {
		return NewMemoryStore(opts...)
	}, func() int64 { next++; return next })
}
