package game

import (
	"time"

	"github.com/pong/server/config"
	"github.com/pong/server/internal/geom"
)

// Player is one side of a match.
type Player struct {
	ID       string
	Side     Side
	Facing   geom.Vec3
	Paddle   *Paddle
	DeathBar *DeathBar

	score int
}

// NewPlayer places side's paddle and deathbar. Player 1 defends the -z end
// and faces +z.
func NewPlayer(id string, side Side, t config.Tuning) *Player {
	sign := -1.0
	if side == Side2 {
		sign = 1
	}
	facing := geom.V(0, 0, -sign)
	paddleZ := sign * (t.Arena.Length/2 - t.Arena.PaddleInset)
	barZ := sign * (t.Arena.Length/2 - t.Arena.DeathBarInset)

	return &Player{
		ID:       id,
		Side:     side,
		Facing:   facing,
		Paddle:   NewPaddle(side, geom.V(0, t.Paddle.Y, paddleZ), facing, t.Arena, t.Paddle),
		DeathBar: NewDeathBar(side, barZ, t.Ball.Y, t.Arena),
	}
}

// Score returns the points scored by the player.
func (p *Player) Score() int { return p.score }

// ScoreUp adds one point.
func (p *Player) ScoreUp() { p.score++ }

// Update integrates the player's paddle.
func (p *Player) Update(dt time.Duration) {
	p.Paddle.Update(dt)
}
