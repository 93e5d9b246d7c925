package core

import "time"

// maxCatchUp bounds how many sweeps a single Due call may release after a stall.
const maxCatchUp = 8

// Pacer releases lattice sweeps at a steady rate independent of the frame rate
// of whoever is polling it.
type Pacer struct {
	interval time.Duration
	owed     time.Duration
	last     time.Time
	now      func() time.Time
}

// NewPacer constructs a Pacer targeting the given sweeps per second.
// Non-positive rates fall back to 60.
func NewPacer(rate int) *Pacer {
	p := &Pacer{now: time.Now}
	p.SetRate(rate)
	p.owed = p.interval
	return p
}

// SetRate changes the sweep rate.
func (p *Pacer) SetRate(rate int) {
	if rate <= 0 {
		rate = 60
	}
	p.interval = time.Second / time.Duration(rate)
}

// Due reports how many sweeps should run now, at most maxCatchUp.
func (p *Pacer) Due() int {
	now := p.now()
	if p.last.IsZero() {
		p.last = now
	}
	p.owed += now.Sub(p.last)
	p.last = now
	n := int(p.owed / p.interval)
	if n > maxCatchUp {
		n = maxCatchUp
		p.owed = 0
		return n
	}
	p.owed -= time.Duration(n) * p.interval
	return n
}
