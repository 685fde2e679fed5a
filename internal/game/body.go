package game

import "github.com/pong/server/internal/geom"

// Tags used to register bodies in the spatial index.
const (
	TagBall     = "ball"
	TagPaddle   = "paddle"
	TagWall     = "wall"
	TagDeathBar = "deathBar"
)

// Body is anything the ball can collide with.
type Body interface {
	Bounds() geom.Box
}

// Side identifies one of the two players of a match.
type Side int

const (
	Side1 Side = iota
	Side2
)

// Opponent returns the other side.
func (s Side) Opponent() Side {
	return 1 - s
}

func (s Side) String() string {
	if s == Side1 {
		return "player1"
	}
	return "player2"
}
