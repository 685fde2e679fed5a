// Package clock implements the logical match clock: a scalable timestamp
// source that only moves when Update is called and can be rebased onto an
// authoritative time without touching wall-clock state.
package clock

import (
	"errors"
	"time"
)

// ErrNegativeScale is returned when a scale would make time run backwards.
var ErrNegativeScale = errors.New("clock scale must not be negative")

// WallFunc supplies wall-clock readings.
type WallFunc func() time.Time

// Logical is a monotonic match clock. It is not safe for concurrent use; each
// session owns its own clock.
type Logical struct {
	wall WallFunc
	last time.Time

	timestamp time.Duration
	scale     float64
}

// New creates a clock reading zero. A nil wall uses time.Now.
func New(wall WallFunc) *Logical {
	if wall == nil {
		wall = time.Now
	}
	return &Logical{wall: wall, last: wall(), scale: 1}
}

// Now returns the current logical timestamp.
func (c *Logical) Now() time.Duration {
	return c.timestamp
}

// Update advances the clock by the scaled wall time elapsed since the
// previous Update (or rebase).
func (c *Logical) Update() {
	now := c.wall()
	elapsed := now.Sub(c.last)
	if elapsed < 0 {
		elapsed = 0
	}
	c.timestamp += time.Duration(float64(elapsed) * c.scale)
	c.last = now
}

// Scale returns the current time scale.
func (c *Logical) Scale() float64 {
	return c.scale
}

// SetScale changes how fast logical time runs relative to wall time.
func (c *Logical) SetScale(scale float64) error {
	if scale < 0 {
		return ErrNegativeScale
	}
	c.scale = scale
	return nil
}

// SetTimestamp rebases the clock so that Now returns t. The wall reference is
// reset, so wall time spent before the call is never added by the next Update.
func (c *Logical) SetTimestamp(t time.Duration) {
	c.timestamp = t
	c.last = c.wall()
}
