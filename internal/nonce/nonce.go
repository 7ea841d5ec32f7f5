// Package nonce issues strictly increasing request nonces for one adapter.
package nonce

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"marketlink/pkg/core"
)

// Scale converts a clock reading into a nonce candidate and renders nonces
// in the form a venue expects on the wire.
type Scale int

const (
	// Centiseconds counts hundredths of a second since the epoch.
	Centiseconds Scale = iota
	// Milliseconds counts milliseconds since the epoch.
	Milliseconds
	// MicroFloat counts microseconds since the epoch and renders them as
	// fractional seconds with six digits, e.g. "1700000000.000001".
	MicroFloat
)

func (s Scale) String() string {
	switch s {
	case Centiseconds:
		return "centiseconds"
	case Milliseconds:
		return "milliseconds"
	case MicroFloat:
		return "micro_float"
	default:
		return "unknown"
	}
}

// FromTime returns the nonce candidate for t.
func (s Scale) FromTime(t time.Time) int64 {
	switch s {
	case Centiseconds:
		return t.UnixNano() / int64(10*time.Millisecond)
	case Milliseconds:
		return t.UnixMilli()
	default:
		return t.UnixMicro()
	}
}

// Format renders n for the wire.
func (s Scale) Format(n int64) string {
	if s == MicroFloat {
		return fmt.Sprintf("%d.%06d", n/1_000_000, n%1_000_000)
	}
	return strconv.FormatInt(n, 10)
}

// Generator owns the nonce state of a single adapter instance.
type Generator struct {
	mu    sync.Mutex
	last  int64
	scale Scale
	clock core.Clock
}

// New creates a Generator. Its baseline is derived from the clock at the
// first issue, never from zero.
func New(scale Scale, clock core.Clock) *Generator {
	if clock == nil {
		clock = core.SystemClock{}
	}
	return &Generator{scale: scale, clock: clock}
}

// Next issues the next nonce: the clock candidate, or last+1 when the clock
// has not moved past the previous nonce.
func (g *Generator) Next() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	next := g.scale.FromTime(g.clock.Now())
	if next <= g.last {
		next = g.last + 1
	}
	g.last = next
	return next
}

// NextString issues the next nonce in wire form.
func (g *Generator) NextString() string {
	return g.scale.Format(g.Next())
}

// Last returns the most recently issued nonce, zero before the first issue.
func (g *Generator) Last() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.last
}

// Scale returns the generator's scale.
func (g *Generator) Scale() Scale {
	return g.scale
}
