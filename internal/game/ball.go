package game

import (
	"math"
	"time"

	"github.com/pong/server/config"
	"github.com/pong/server/internal/geom"
)

// Ball is the match ball. Its direction is kept at unit length in the x/z
// plane and its speed within [base, max].
type Ball struct {
	position  geom.Vec3
	direction geom.Vec3
	speed     float64

	moving          bool
	startMovingTime time.Duration

	spawn  geom.Vec3
	tuning config.BallTuning
}

// NewBall creates a moving ball at the arena center, heading along the serve
// angle.
func NewBall(t config.BallTuning) *Ball {
	b := &Ball{tuning: t, spawn: geom.V(0, t.Y, 0)}
	b.reset()
	b.moving = true
	return b
}

func (b *Ball) reset() {
	b.position = b.spawn
	b.direction = geom.Rotate(geom.V(0, 0, 1), b.tuning.ServeAngle)
	b.speed = b.tuning.BaseSpeed
}

// Generate recenters the ball and holds it until now+delay.
func (b *Ball) Generate(now, delay time.Duration) {
	b.reset()
	b.moving = false
	b.startMovingTime = now + delay
}

func (b *Ball) Position() geom.Vec3            { return b.position }
func (b *Ball) Direction() geom.Vec3           { return b.direction }
func (b *Ball) Speed() float64                 { return b.speed }
func (b *Ball) Moving() bool                   { return b.moving }
func (b *Ball) StartMovingTime() time.Duration { return b.startMovingTime }
func (b *Ball) Diameter() float64              { return b.tuning.Diameter }
func (b *Ball) Radius() float64                { return b.tuning.Diameter / 2 }

// SetPosition places the ball.
func (b *Ball) SetPosition(p geom.Vec3) {
	b.position = p
}

// SetDirection normalizes d onto the arena plane. Degenerate directions are
// ignored.
func (b *Ball) SetDirection(d geom.Vec3) {
	if u, ok := geom.Unit(geom.Flat(d)); ok {
		b.direction = u
	}
}

// SetSpeed clamps s to the tuning range.
func (b *Ball) SetSpeed(s float64) {
	b.speed = math.Max(b.tuning.BaseSpeed, math.Min(b.tuning.MaxSpeed, s))
}

// SpeedUp applies one paddle hit worth of acceleration.
func (b *Ball) SpeedUp() {
	if b.speed < b.tuning.MaxSpeed {
		b.SetSpeed(b.speed * b.tuning.Acceleration)
	}
}

// Stop freezes the ball for the rest of the tick. It resumes on the next
// Update since its start time has passed.
func (b *Ball) Stop() {
	b.moving = false
}

// Bounds implements Body.
func (b *Ball) Bounds() geom.Box {
	d := b.tuning.Diameter
	return geom.NewBox(b.position, geom.V(d, d, d))
}

// Update advances the ball to now, a tick of length dt. A held ball starts
// moving once now reaches its start time and only travels for the part of the
// tick after it. Contact times are offsets from the start of the tick.
func (b *Ball) Update(now, dt time.Duration, p1, p2 PaddleState, ph *Physics) []Contact {
	if now < b.startMovingTime {
		b.moving = false
		return nil
	}
	b.moving = true
	held := time.Duration(0)
	if now-dt < b.startMovingTime {
		held = b.startMovingTime - (now - dt)
	}
	if dt-held <= 0 {
		return nil
	}
	contacts := ph.Sweep(b, dt-held, [2]PaddleState{p1, p2})
	for i := range contacts {
		contacts[i].Time += held
	}
	return contacts
}
