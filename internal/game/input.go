package game

import (
	"fmt"
	"time"

	"github.com/pong/server/config"
)

// Direction is the lateral key an input event refers to.
type Direction int

const (
	DirectionNone Direction = iota
	DirectionLeft
	DirectionRight
)

func (d Direction) String() string {
	switch d {
	case DirectionLeft:
		return "left"
	case DirectionRight:
		return "right"
	default:
		return "none"
	}
}

// ParseDirection maps a wire direction name to a Direction.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "left":
		return DirectionLeft, nil
	case "right":
		return DirectionRight, nil
	case "none", "":
		return DirectionNone, nil
	}
	return DirectionNone, fmt.Errorf("unknown direction %q", s)
}

// InputEvent is one key transition sent by a client. Simplified events carry
// no key state: they select the direction the paddle should move in, with
// DirectionNone stopping it.
type InputEvent struct {
	Timestamp  time.Duration
	Direction  Direction
	Pressed    bool
	Simplified bool
}

// Time implements Timestamped.
func (e InputEvent) Time() time.Duration { return e.Timestamp }

// InputManager buffers the input of both players of a match.
type InputManager struct {
	buffers [2]*History[InputEvent]
}

// NewInputManager creates empty per-player buffers.
func NewInputManager() *InputManager {
	return &InputManager{buffers: [2]*History[InputEvent]{
		NewHistory[InputEvent](config.InputHistory),
		NewHistory[InputEvent](config.InputHistory),
	}}
}

// Record buffers e for side. Events that are not strictly newer than the last
// accepted one are dropped and false is returned.
func (m *InputManager) Record(side Side, e InputEvent) bool {
	return m.buffers[side].AddStrict(e)
}

// Range returns the buffered events of side with from < timestamp <= to.
func (m *InputManager) Range(side Side, from, to time.Duration) []InputEvent {
	return m.buffers[side].StatesInRange(from, to)
}

// Process applies e to the paddle of p.
func (m *InputManager) Process(p *Player, e InputEvent) {
	if e.Simplified {
		p.Paddle.Steer(e.Direction)
		return
	}
	p.Paddle.SetKey(e.Direction, e.Pressed)
}

// Clear drops every buffered event.
func (m *InputManager) Clear() {
	for _, b := range m.buffers {
		b.Clear()
	}
}
