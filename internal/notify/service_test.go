package notify

import (
	"testing"
	"time"
)

func TestBackoffSaturates(t *testing.T) {
	t.Parallel()
	base := 500 * time.Millisecond
	max := 10 * time.Second

	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, base},
		{1, time.Second},
		{3, 4 * time.Second},
		{5, max},
		{34, max},
		{63, max},
		{100, max},
	}
	for _, c := range cases {
		got := backoff(base, max, c.attempt)
		if got != c.want {
			t.Fatalf("backoff(attempt=%d) = %v, want %v", c.attempt, got, c.want)
		}
		if got <= 0 {
			t.Fatalf("backoff(attempt=%d) = %v, must stay positive", c.attempt, got)
		}
	}
}
