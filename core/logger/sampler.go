package logger

import (
	"strconv"
	"strings"
	"sync"
)

// ratioSampler lets n of every m events through, in a fixed pattern.
// A zero ratio disables sampling and lets everything through.
type ratioSampler struct {
	mu   sync.Mutex
	n, m int
	seen int
}

func newRatioSampler(n, m int) *ratioSampler {
	s := &ratioSampler{}
	s.Set(n, m)
	return s
}

func (s *ratioSampler) Set(n, m int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = 0
	if n <= 0 || m <= 0 {
		s.n, s.m = 0, 0
		return
	}
	s.n, s.m = min(n, m), m
}

func (s *ratioSampler) Allow() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.m == 0 {
		return true
	}
	s.seen = s.seen%s.m + 1
	return s.seen <= s.n
}

// parseRatio reads "n/m" or "m" (meaning 1/m). ok is false for malformed
// input; a non-positive value yields 0/0.
func parseRatio(ratio string) (n, m int, ok bool) {
	ratio = strings.TrimSpace(ratio)
	num, den, hasSlash := strings.Cut(ratio, "/")
	if !hasSlash {
		v, err := strconv.Atoi(ratio)
		if err != nil {
			return 0, 0, false
		}
		if v <= 0 {
			return 0, 0, true
		}
		return 1, v, true
	}
	a, err1 := strconv.Atoi(strings.TrimSpace(num))
	b, err2 := strconv.Atoi(strings.TrimSpace(den))
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	if a <= 0 || b <= 0 {
		return 0, 0, true
	}
	return a, b, true
}
