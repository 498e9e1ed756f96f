// Package validate holds the per-field input validators used by the order
// conversation. Validators never fail with an error: an invalid input is an
// expected outcome and is reported through Result.
package validate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Reason identifies why an input was rejected.
type Reason string

const (
	ReasonEmpty         Reason = "empty"
	ReasonTooShort      Reason = "too_short"
	ReasonTooLong       Reason = "too_long"
	ReasonNonLatin      Reason = "non_latin"
	ReasonInvalidChars  Reason = "invalid_chars"
	ReasonInvalidState  Reason = "invalid_state"
	ReasonInvalidZIP    Reason = "invalid_zip"
	ReasonInvalidPhone  Reason = "invalid_phone"
	ReasonInvalidNumber Reason = "invalid_number"
	ReasonOutOfRange    Reason = "out_of_range"
)

// Result is either a normalized value or a rejection reason with a short
// human readable hint.
type Result struct {
	Value  string
	Reason Reason
	Detail string
}

// OK reports whether the input was accepted.
func (r Result) OK() bool { return r.Reason == "" }

// Func validates and normalizes one raw input.
type Func func(raw string) Result

func accept(v string) Result { return Result{Value: v} }

func reject(reason Reason, format string, args ...any) Result {
	return Result{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

var (
	nameRe   = regexp.MustCompile(`^[A-Za-z .'\-]+$`)
	streetRe = regexp.MustCompile(`^[A-Za-z0-9 .,\-#&/]+$`)
	cityRe   = regexp.MustCompile(`^[A-Za-z '\-]+$`)
	stateRe  = regexp.MustCompile(`^[A-Z]{2}$`)
	zipRe    = regexp.MustCompile(`^\d{5}(-\d{4})?$`)
	phoneRe  = regexp.MustCompile(`^[+]?[0-9 ().\-]+$`)
	numberRe = regexp.MustCompile(`^(\d+(\.\d*)?|\.\d+)$`)
)

// usStates lists the two-letter codes accepted for the state field.
var usStates = map[string]struct{}{
	"AL": {}, "AK": {}, "AZ": {}, "AR": {}, "CA": {}, "CO": {}, "CT": {}, "DE": {}, "FL": {}, "GA": {},
	"HI": {}, "ID": {}, "IL": {}, "IN": {}, "IA": {}, "KS": {}, "KY": {}, "LA": {}, "ME": {}, "MD": {},
	"MA": {}, "MI": {}, "MN": {}, "MS": {}, "MO": {}, "MT": {}, "NE": {}, "NV": {}, "NH": {}, "NJ": {},
	"NM": {}, "NY": {}, "NC": {}, "ND": {}, "OH": {}, "OK": {}, "OR": {}, "PA": {}, "RI": {}, "SC": {},
	"SD": {}, "TN": {}, "TX": {}, "UT": {}, "VT": {}, "VA": {}, "WA": {}, "WV": {}, "WI": {}, "WY": {},
	"DC": {}, "PR": {}, "VI": {}, "GU": {}, "AS": {}, "MP": {},
}

// collapse trims the input and folds internal whitespace runs into single spaces.
func collapse(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}

func hasCyrillic(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Cyrillic, r) {
			return true
		}
	}
	return false
}

func lengthCheck(field, v string, min, max int) (Result, bool) {
	n := utf8.RuneCountInString(v)
	if n == 0 {
		return reject(ReasonEmpty, "%s cannot be empty", field), false
	}
	if n < min {
		return reject(ReasonTooShort, "%s must be at least %d characters", field, min), false
	}
	if n > max {
		return reject(ReasonTooLong, "%s must be at most %d characters", field, max), false
	}
	return Result{}, true
}

func text(field string, min, max int, pattern *regexp.Regexp, allowed string) Func {
	return func(raw string) Result {
		v := collapse(raw)
		if res, ok := lengthCheck(field, v, min, max); !ok {
			return res
		}
		if hasCyrillic(v) {
			return reject(ReasonNonLatin, "%s must use Latin letters only", field)
		}
		if !pattern.MatchString(v) {
			return reject(ReasonInvalidChars, "%s may contain only %s", field, allowed)
		}
		return accept(v)
	}
}

// Name validates a person or company name.
func Name(raw string) Result {
	return text("Name", 2, 50, nameRe, "letters, spaces and . - '")(raw)
}

// Street validates the first address line.
func Street(raw string) Result {
	return text("Address", 3, 100, streetRe, "letters, digits, spaces and . , - # & /")(raw)
}

// AddressLine2 validates the optional second address line.
func AddressLine2(raw string) Result {
	return text("Address line 2", 1, 100, streetRe, "letters, digits, spaces and . , - # & /")(raw)
}

// City validates a city name.
func City(raw string) Result {
	return text("City", 2, 50, cityRe, "letters, spaces and - '")(raw)
}

// State normalizes to a two-letter upper-case US state or territory code.
func State(raw string) Result {
	v := strings.ToUpper(strings.TrimSpace(raw))
	if v == "" {
		return reject(ReasonEmpty, "State cannot be empty")
	}
	if !stateRe.MatchString(v) {
		return reject(ReasonInvalidState, "State must be a two-letter code, e.g. CA or NY")
	}
	if _, ok := usStates[v]; !ok {
		return reject(ReasonInvalidState, "%s is not a known US state code", v)
	}
	return accept(v)
}

// ZIP accepts five-digit ZIP codes and ZIP+4.
func ZIP(raw string) Result {
	v := strings.TrimSpace(raw)
	if v == "" {
		return reject(ReasonEmpty, "ZIP code cannot be empty")
	}
	if !zipRe.MatchString(v) {
		return reject(ReasonInvalidZIP, "ZIP code must look like 12345 or 12345-6789")
	}
	return accept(v)
}

// Phone normalizes a US phone number to +1XXXXXXXXXX.
func Phone(raw string) Result {
	v := strings.TrimSpace(raw)
	if v == "" {
		return reject(ReasonEmpty, "Phone cannot be empty")
	}
	if !phoneRe.MatchString(v) {
		return reject(ReasonInvalidPhone, "Phone may contain only digits, spaces, + ( ) . -")
	}
	digits := make([]rune, 0, len(v))
	for _, r := range v {
		if r >= '0' && r <= '9' {
			digits = append(digits, r)
		}
	}
	switch {
	case len(digits) == 10:
		return accept("+1" + string(digits))
	case len(digits) == 11 && digits[0] == '1':
		return accept("+" + string(digits))
	}
	return reject(ReasonInvalidPhone, "Phone must have 10 digits, optionally prefixed with 1")
}

// Decimal returns a validator for a positive decimal bounded by [min, max].
func Decimal(field, unit string, min, max float64) Func {
	return func(raw string) Result {
		v := strings.ReplaceAll(strings.TrimSpace(raw), ",", ".")
		if v == "" {
			return reject(ReasonEmpty, "%s cannot be empty", field)
		}
		if !numberRe.MatchString(v) {
			return reject(ReasonInvalidNumber, "%s must be a positive number", field)
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			return reject(ReasonInvalidNumber, "%s must be a positive number", field)
		}
		if f < min || f > max {
			return reject(ReasonOutOfRange, "%s must be between %s and %s %s", field, FormatDecimal(min), FormatDecimal(max), unit)
		}
		return accept(FormatDecimal(f))
	}
}

// Weight validates a parcel weight in pounds.
var Weight = Decimal("Weight", "lb", 0.1, 150)

// Dimension validates a parcel dimension in inches.
var Dimension = Decimal("Dimension", "in", 0.1, 108)

// FormatDecimal renders f with the shortest representation.
func FormatDecimal(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
