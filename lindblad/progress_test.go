package lindblad

import (
	"testing"
	"time"
)

func TestProgressDue(t *testing.T) {
	t.Parallel()
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		every time.Duration
		at    []time.Duration
		due   []bool
	}{
		{every: time.Second, at: []time.Duration{0, 500 * time.Millisecond, time.Second, 1500 * time.Millisecond, 3 * time.Second}, due: []bool{true, false, true, false, true}},
		{every: 0, at: []time.Duration{0, time.Hour}, due: []bool{false, false}},
		{every: -time.Second, at: []time.Duration{0}, due: []bool{false}},
	}
	for _, test := range tests {
		t.Run(test.every.String(), func(t *testing.T) {
			t.Parallel()
			p := &progress{every: test.every}
			for i, d := range test.at {
				if due := p.due(t0.Add(d)); due != test.due[i] {
					t.Fatalf("%d %v %t, expected %t", i, d, due, test.due[i])
				}
			}
		})
	}
}
