package inbox

import (
	"testing"
	"time"
)

func TestNextReconnectDelay(t *testing.T) {
	cases := []struct {
		in   time.Duration
		want time.Duration
	}{
		{initialReconnectDelay, 2 * time.Second},
		{2 * time.Second, 4 * time.Second},
		{16 * time.Second, 30 * time.Second}, // 32s упирается в потолок
		{maxReconnectDelay, maxReconnectDelay},
	}

	for _, c := range cases {
		if got := nextReconnectDelay(c.in); got != c.want {
			t.Errorf("nextReconnectDelay(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}
