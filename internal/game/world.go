package game

import (
	"time"

	"github.com/pong/server/config"
	"github.com/pong/server/internal/clock"
	"github.com/pong/server/internal/geom"
)

// ScoreEvent is produced when the ball reaches a deathbar.
type ScoreEvent struct {
	Scorer Side
	Scores [2]int
	Time   time.Duration
}

// WorldStats reports simulation counters.
type WorldStats struct {
	PhysicsStats
	Bodies int
}

// World holds everything one match simulates: its clock, the bodies and the
// spatial index they are registered in. Worlds share nothing, so sessions
// can run them concurrently.
type World struct {
	tuning  config.Tuning
	clock   *clock.Logical
	index   *SpatialIndex
	physics *Physics

	ball    *Ball
	players [2]*Player
	walls   [2]*Wall
}

// NewWorld lays out the arena for players id1 and id2.
func NewWorld(t config.Tuning, clk *clock.Logical, id1, id2 string) *World {
	margin := t.Arena.WallThickness + 1
	index := NewSpatialIndex(t.Arena.Width, t.Arena.Length, margin)
	w := &World{
		tuning:  t,
		clock:   clk,
		index:   index,
		physics: NewPhysics(index),
		ball:    NewBall(t.Ball),
		players: [2]*Player{NewPlayer(id1, Side1, t), NewPlayer(id2, Side2, t)},
		walls:   [2]*Wall{NewWall(-1, t.Arena), NewWall(1, t.Arena)},
	}

	index.Add(w.ball, TagBall)
	for _, p := range w.players {
		index.Add(p.Paddle, TagPaddle)
		index.Add(p.DeathBar, TagDeathBar)
	}
	for _, wall := range w.walls {
		index.Add(wall, TagWall)
	}
	return w
}

func (w *World) Clock() *clock.Logical    { return w.clock }
func (w *World) Index() *SpatialIndex     { return w.index }
func (w *World) Ball() *Ball              { return w.ball }
func (w *World) Player(side Side) *Player { return w.players[side] }
func (w *World) Tuning() config.Tuning    { return w.tuning }
func (w *World) Scores() [2]int           { return [2]int{w.players[0].score, w.players[1].score} }

// Serve holds the ball at the center until now plus the serve delay.
func (w *World) Serve(now time.Duration) {
	w.ball.Generate(now, w.tuning.Match.ServeDelay.Duration)
}

// Step advances the ball over a tick of length dt ending at now, with the
// paddles where the input replay left them. The index is refreshed first so
// its broad phase sees the replayed paddles. A deathbar contact scores for the
// opponent of its owner and replaces the ball with a fresh held one.
func (w *World) Step(now, dt time.Duration) []ScoreEvent {
	w.index.Refresh()
	contacts := w.ball.Update(now, dt,
		w.players[Side1].Paddle.State(),
		w.players[Side2].Paddle.State(),
		w.physics)

	var events []ScoreEvent
	for _, c := range contacts {
		bar, ok := c.Body.(*DeathBar)
		if !ok {
			continue
		}
		scorer := bar.Owner.Opponent()
		w.players[scorer].ScoreUp()
		events = append(events, ScoreEvent{
			Scorer: scorer,
			Scores: w.Scores(),
			Time:   now - dt + c.Time,
		})
		log.Debugf("%s scored, %d-%d", scorer, w.players[0].score, w.players[1].score)

		w.index.Remove(w.ball)
		w.ball = NewBall(w.tuning.Ball)
		w.ball.Generate(now, w.tuning.Match.ServeDelay.Duration)
		w.index.Add(w.ball, TagBall)
	}
	return events
}

// Snapshot captures the world at timestamp ts.
func (w *World) Snapshot(ts time.Duration) Snapshot {
	s := Snapshot{
		Timestamp: ts,
		Ball: BallSnapshot{
			Position:  w.ball.position,
			Direction: w.ball.direction,
			Speed:     w.ball.speed,
			Moving:    w.ball.moving,
		},
		Scores: w.Scores(),
	}
	for i, p := range w.players {
		s.Paddles[i] = PaddleSnapshot{Position: p.Paddle.position, Direction: p.Paddle.direction}
	}
	return s
}

// Stats returns the simulation counters.
func (w *World) Stats() WorldStats {
	return WorldStats{PhysicsStats: w.physics.Stats(), Bodies: w.index.Len()}
}

// Dispose unregisters every body. The world must not be stepped afterwards.
func (w *World) Dispose() {
	w.ball.Stop()
	w.index.Clear()
}

// PaddleSnapshot is a paddle's state in a Snapshot.
type PaddleSnapshot struct {
	Position  geom.Vec3
	Direction geom.Vec3
}

// BallSnapshot is the ball's state in a Snapshot.
type BallSnapshot struct {
	Position  geom.Vec3
	Direction geom.Vec3
	Speed     float64
	Moving    bool
}

// Snapshot is the authoritative state broadcast after every tick.
type Snapshot struct {
	Timestamp time.Duration
	Paddles   [2]PaddleSnapshot
	Ball      BallSnapshot
	Scores    [2]int
}

// Time implements Timestamped.
func (s Snapshot) Time() time.Duration { return s.Timestamp }
