package game

import (
	"time"

	"github.com/pong/server/config"
)

// ValidationResult is the verdict on one input event.
type ValidationResult int

const (
	ValidationValid ValidationResult = iota
	ValidationIgnoreInput
	ValidationTooEarly
	ValidationTooLate
)

func (r ValidationResult) String() string {
	switch r {
	case ValidationValid:
		return "valid"
	case ValidationIgnoreInput:
		return "rate limited"
	case ValidationTooEarly:
		return "ahead of clock"
	case ValidationTooLate:
		return "already committed"
	}
	return "unknown"
}

// InputGuard screens client input before it reaches the input buffers.
// Rejected events are dropped without telling the client.
type InputGuard struct {
	inputsThisTick [2]int
	violations     [2]int
}

// NewInputGuard creates a guard with clean counters.
func NewInputGuard() *InputGuard {
	return &InputGuard{}
}

// Validate checks e from side against the match clock reading now and the
// last committed tick.
func (g *InputGuard) Validate(side Side, e InputEvent, now, lastFrame time.Duration) ValidationResult {
	g.inputsThisTick[side]++
	result := ValidationValid
	switch {
	case g.inputsThisTick[side] > config.MaxInputsPerTick:
		result = ValidationIgnoreInput
	case e.Timestamp > now+config.MaxInputLead:
		result = ValidationTooEarly
	case e.Timestamp <= lastFrame:
		result = ValidationTooLate
	}
	if result != ValidationValid {
		g.violations[side]++
	}
	return result
}

// ResetTick starts a new rate limiting window.
func (g *InputGuard) ResetTick() {
	g.inputsThisTick = [2]int{}
}

// Violations returns how many events from side were rejected.
func (g *InputGuard) Violations(side Side) int {
	return g.violations[side]
}
