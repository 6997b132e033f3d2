package gesture

import "time"

// CooldownGate suppresses emissions that follow the previous one too closely.
type CooldownGate struct {
	cooldown    time.Duration
	last        time.Time
	lastConcept string
	emitted     bool
}

// NewCooldownGate creates a gate with the given cooldown.
func NewCooldownGate(cooldown time.Duration) *CooldownGate {
	return &CooldownGate{cooldown: cooldown}
}

// Allow reports whether concept may be emitted at now and, if so, records the emission.
// The first emission is always allowed.
func (g *CooldownGate) Allow(concept string, now time.Time) bool {
	if g.emitted && now.Sub(g.last) <= g.cooldown {
		return false
	}
	g.last = now
	g.lastConcept = concept
	g.emitted = true
	return true
}

// Remaining returns how long until the gate opens again.
func (g *CooldownGate) Remaining(now time.Time) time.Duration {
	if !g.emitted {
		return 0
	}
	if d := g.cooldown - now.Sub(g.last); d > 0 {
		return d
	}
	return 0
}

// Last returns the last emitted concept and when it was emitted.
func (g *CooldownGate) Last() (string, time.Time, bool) {
	return g.lastConcept, g.last, g.emitted
}

// Reset forgets the last emission so the next Allow succeeds.
func (g *CooldownGate) Reset() {
	g.last = time.Time{}
	g.lastConcept = ""
	g.emitted = false
}
