package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidators(t *testing.T) {
	tests := []struct {
		name   string
		fn     Func
		input  string
		want   string
		reason Reason
	}{
		{name: "name ok", fn: Name, input: "  John   Doe ", want: "John Doe"},
		{name: "name apostrophe", fn: Name, input: "Mary O'Neil-Smith", want: "Mary O'Neil-Smith"},
		{name: "name empty", fn: Name, input: "   ", reason: ReasonEmpty},
		{name: "name short", fn: Name, input: "J", reason: ReasonTooShort},
		{name: "name cyrillic", fn: Name, input: "Иван Петров", reason: ReasonNonLatin},
		{name: "name digits", fn: Name, input: "John 3rd", reason: ReasonInvalidChars},
		{name: "street ok", fn: Street, input: "123 Main St, Apt #4", want: "123 Main St, Apt #4"},
		{name: "street short", fn: Street, input: "12", reason: ReasonTooShort},
		{name: "street symbols", fn: Street, input: "12 Main @ St", reason: ReasonInvalidChars},
		{name: "addr2 single char", fn: AddressLine2, input: "B", want: "B"},
		{name: "city ok", fn: City, input: "San Francisco", want: "San Francisco"},
		{name: "city digits", fn: City, input: "Area 51", reason: ReasonInvalidChars},
		{name: "state lower", fn: State, input: " ca ", want: "CA"},
		{name: "state territory", fn: State, input: "PR", want: "PR"},
		{name: "state unknown", fn: State, input: "XX", reason: ReasonInvalidState},
		{name: "state long", fn: State, input: "Cal", reason: ReasonInvalidState},
		{name: "zip five", fn: ZIP, input: "94105", want: "94105"},
		{name: "zip plus four", fn: ZIP, input: "94105-1234", want: "94105-1234"},
		{name: "zip letters", fn: ZIP, input: "9410A", reason: ReasonInvalidZIP},
		{name: "phone ten digits", fn: Phone, input: "(415) 555-1234", want: "+14155551234"},
		{name: "phone eleven digits", fn: Phone, input: "+1 415 555 1234", want: "+14155551234"},
		{name: "phone short", fn: Phone, input: "555-1234", reason: ReasonInvalidPhone},
		{name: "phone letters", fn: Phone, input: "call me", reason: ReasonInvalidPhone},
		{name: "weight ok", fn: Weight, input: "5.50", want: "5.5"},
		{name: "weight comma", fn: Weight, input: "2,5", want: "2.5"},
		{name: "weight negative", fn: Weight, input: "-5", reason: ReasonInvalidNumber},
		{name: "weight zero", fn: Weight, input: "0", reason: ReasonInvalidNumber},
		{name: "weight garbage", fn: Weight, input: "five", reason: ReasonInvalidNumber},
		{name: "weight exponent", fn: Weight, input: "1e2", reason: ReasonInvalidNumber},
		{name: "weight too heavy", fn: Weight, input: "151", reason: ReasonOutOfRange},
		{name: "weight too light", fn: Weight, input: "0.05", reason: ReasonOutOfRange},
		{name: "dimension ok", fn: Dimension, input: "12", want: "12"},
		{name: "dimension too long", fn: Dimension, input: "109", reason: ReasonOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := tt.fn(tt.input)
			if tt.reason != "" {
				assert.False(t, res.OK())
				assert.Equal(t, tt.reason, res.Reason)
				assert.NotEmpty(t, res.Detail)
				return
			}
			assert.True(t, res.OK(), "unexpected rejection: %s", res.Detail)
			assert.Equal(t, tt.want, res.Value)
		})
	}
}
