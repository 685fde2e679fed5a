package game

import (
	"github.com/pong/server/config"
	"github.com/pong/server/internal/geom"
)

// Wall is a side boundary of the arena.
type Wall struct {
	box geom.Box
}

// NewWall creates the wall on the given side of the arena: -1 for left (-x),
// +1 for right.
func NewWall(sign float64, arena config.ArenaTuning) *Wall {
	center := geom.V(sign*(arena.Width/2+arena.WallThickness/2), arena.WallHeight/2, 0)
	size := geom.V(arena.WallThickness, arena.WallHeight, arena.Length)
	return &Wall{box: geom.NewBox(center, size)}
}

// Bounds implements Body.
func (w *Wall) Bounds() geom.Box { return w.box }

// DeathBar is the goal line behind a paddle. The ball touching it scores for
// the owner's opponent.
type DeathBar struct {
	Owner Side
	box   geom.Box
}

// NewDeathBar creates the deathbar guarding owner's end. y is the height of
// the ball's plane.
func NewDeathBar(owner Side, z, y float64, arena config.ArenaTuning) *DeathBar {
	size := geom.V(arena.Width, arena.DeathBarHeight, arena.DeathBarHeight)
	return &DeathBar{Owner: owner, box: geom.NewBox(geom.V(0, y, z), size)}
}

// Bounds implements Body.
func (d *DeathBar) Bounds() geom.Box { return d.box }
