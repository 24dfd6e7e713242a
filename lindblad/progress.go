package lindblad

import (
	"log"
	"time"
)

// progress logs the integration state at most once per every.
// A non-positive every disables logging.
type progress struct {
	every time.Duration
	last  time.Time
}

// due reports whether a log line may be written at now, and if so marks now as the last write.
func (p *progress) due(now time.Time) bool {
	if p.every <= 0 {
		return false
	}
	if !p.last.IsZero() && now.Sub(p.last) < p.every {
		return false
	}
	p.last = now
	return true
}

func (p *progress) log(t, tEnd float64, ig *integrator) {
	if !p.due(time.Now()) {
		return
	}
	log.Printf("t %.3f/%.3f steps %d rejected %d h %g", t, tEnd, ig.steps, ig.rejected, ig.h)
}
