package game

import (
	"math"
	"time"

	"github.com/pong/server/config"
	"github.com/pong/server/internal/geom"
)

// Paddle is a player's bat. It only moves along the x axis and is held inside
// the arena walls.
type Paddle struct {
	Side Side

	position  geom.Vec3
	direction geom.Vec3
	speed     float64

	size     geom.Vec3
	maxSpeed float64
	limit    float64 // largest |x| of the center
	right    geom.Vec3

	leftHeld, rightHeld bool
}

// NewPaddle creates an idle paddle at position. facing points toward the
// opponent and decides which way "left" is.
func NewPaddle(side Side, position, facing geom.Vec3, arena config.ArenaTuning, t config.PaddleTuning) *Paddle {
	right := geom.V(facing.Z(), 0, -facing.X())
	return &Paddle{
		Side:      side,
		position:  position,
		direction: right,
		size:      geom.V(t.Width, t.Height, t.Depth),
		maxSpeed:  t.Speed,
		limit:     math.Max(0, arena.Width/2-t.Width/2),
		right:     right,
	}
}

// Position returns the center of the paddle.
func (p *Paddle) Position() geom.Vec3 { return p.position }

// Direction returns the unit lateral direction of travel.
func (p *Paddle) Direction() geom.Vec3 { return p.direction }

// Speed is zero while idle.
func (p *Paddle) Speed() float64 { return p.speed }

// SetPosition moves the paddle, clamped to the arena.
func (p *Paddle) SetPosition(pos geom.Vec3) {
	p.position = clampX(pos, p.limit)
}

// SetKey records a key transition and recomputes the motion.
func (p *Paddle) SetKey(d Direction, pressed bool) {
	switch d {
	case DirectionLeft:
		p.leftHeld = pressed
	case DirectionRight:
		p.rightHeld = pressed
	default:
		if !pressed {
			p.leftHeld, p.rightHeld = false, false
		}
	}
	p.applyKeys()
}

// Steer sets the motion directly, replacing the held keys.
func (p *Paddle) Steer(d Direction) {
	p.leftHeld = d == DirectionLeft
	p.rightHeld = d == DirectionRight
	p.applyKeys()
}

func (p *Paddle) applyKeys() {
	switch {
	case p.leftHeld == p.rightHeld:
		p.speed = 0
	case p.leftHeld:
		p.direction = p.right.Mul(-1)
		p.speed = p.maxSpeed
	default:
		p.direction = p.right
		p.speed = p.maxSpeed
	}
}

// Update integrates the paddle over dt.
func (p *Paddle) Update(dt time.Duration) {
	if dt <= 0 || p.speed == 0 {
		return
	}
	p.position = p.State().At(dt)
}

// Bounds implements Body.
func (p *Paddle) Bounds() geom.Box {
	return geom.NewBox(p.position, p.size)
}

// Stop releases both keys.
func (p *Paddle) Stop() {
	p.leftHeld, p.rightHeld = false, false
	p.speed = 0
}

// State captures the paddle's current motion.
func (p *Paddle) State() PaddleState {
	return PaddleState{
		Side:      p.Side,
		Position:  p.position,
		Direction: p.direction,
		Speed:     p.speed,
		Size:      p.size,
		Limit:     p.limit,
	}
}

// PaddleState is an immutable copy of a paddle's motion. The collision sweep
// uses it to place a paddle at any time within a tick without moving it.
type PaddleState struct {
	Side      Side
	Position  geom.Vec3
	Direction geom.Vec3
	Speed     float64
	Size      geom.Vec3
	Limit     float64
}

// At returns the paddle center after moving for t.
func (s PaddleState) At(t time.Duration) geom.Vec3 {
	return s.AtSeconds(t.Seconds())
}

// AtSeconds is At with t in seconds.
func (s PaddleState) AtSeconds(t float64) geom.Vec3 {
	if t <= 0 || s.Speed == 0 {
		return s.Position
	}
	return clampX(s.Position.Add(s.Direction.Mul(s.Speed*t)), s.Limit)
}

// Displacement returns how far the paddle moves in t seconds.
func (s PaddleState) Displacement(t float64) geom.Vec3 {
	return s.AtSeconds(t).Sub(s.Position)
}

// VelocityAt returns the paddle velocity t seconds in. It is zero once the
// paddle is pinned against the arena edge it moves toward.
func (s PaddleState) VelocityAt(t float64) geom.Vec3 {
	if s.Speed == 0 {
		return geom.Vec3{}
	}
	x := s.AtSeconds(t).X()
	if math.Abs(x) >= s.Limit-geom.Epsilon && x*s.Direction.X() > 0 {
		return geom.Vec3{}
	}
	return s.Direction.Mul(s.Speed)
}

// Box returns the paddle volume at its captured position.
func (s PaddleState) Box() geom.Box {
	return geom.NewBox(s.Position, s.Size)
}

// BoxAt returns the paddle volume after t seconds.
func (s PaddleState) BoxAt(t float64) geom.Box {
	return geom.NewBox(s.AtSeconds(t), s.Size)
}

func clampX(v geom.Vec3, limit float64) geom.Vec3 {
	x := math.Max(-limit, math.Min(limit, v.X()))
	return geom.V(x, v.Y(), v.Z())
}
