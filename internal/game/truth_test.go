package game

import (
	"math"
	"testing"
	"time"

	"github.com/pong/server/config"
	"github.com/pong/server/internal/clock"
	"github.com/pong/server/internal/geom"
)

type fakeWall struct {
	now time.Time
}

func (f *fakeWall) Now() time.Time { return f.now }

func (f *fakeWall) Advance(d time.Duration) { f.now = f.now.Add(d) }

func newTruthFixture() (*fakeWall, *World, *InputManager, *TruthManager, *[]Snapshot) {
	wall := &fakeWall{now: time.Unix(1700000000, 0)}
	clk := clock.New(wall.Now)
	w := NewWorld(config.DefaultTuning(), clk, "a", "b")
	w.Serve(0)
	inputs := NewInputManager()
	var sent []Snapshot
	tm := NewTruthManager(w, inputs, func(s Snapshot) { sent = append(sent, s) })
	return wall, w, inputs, tm, &sent
}

func TestTruthUpdateWaitsForFrame(t *testing.T) {
	wall, _, _, tm, sent := newTruthFixture()

	wall.Advance(config.FrameDuration - time.Millisecond)
	if _, ticked := tm.Update(); ticked {
		t.Fatalf("ticked before a frame elapsed")
	}
	wall.Advance(time.Millisecond)
	if _, ticked := tm.Update(); !ticked {
		t.Fatalf("expected a tick after one frame")
	}
	if len(*sent) != 1 || tm.History().Len() != 1 {
		t.Fatalf("broadcasts = %d, history = %d", len(*sent), tm.History().Len())
	}
	if tm.LastFrame() != config.FrameDuration {
		t.Fatalf("last frame = %v", tm.LastFrame())
	}
}

func TestTruthReplaysInputAtEventTime(t *testing.T) {
	wall, w, inputs, tm, _ := newTruthFixture()
	speed := w.Tuning().Paddle.Speed

	inputs.Record(Side1, InputEvent{Timestamp: 10 * time.Millisecond, Direction: DirectionRight, Pressed: true})
	inputs.Record(Side1, InputEvent{Timestamp: 30 * time.Millisecond, Direction: DirectionRight, Pressed: false})
	// Simplified variant for player 2: move left from 20ms on.
	inputs.Record(Side2, InputEvent{Timestamp: 20 * time.Millisecond, Direction: DirectionLeft, Simplified: true})

	wall.Advance(40 * time.Millisecond)
	if _, ticked := tm.Update(); !ticked {
		t.Fatalf("expected a tick")
	}

	// Player 1 held right (+x) for 20ms.
	if x := w.Player(Side1).Paddle.Position().X(); math.Abs(x-speed*0.02) > 1e-9 {
		t.Fatalf("player 1 x = %v, want %v", x, speed*0.02)
	}
	// Player 2 faces -z so its left is +x; it moved for 20ms and keeps going.
	p2 := w.Player(Side2).Paddle
	if x := p2.Position().X(); math.Abs(x-speed*0.02) > 1e-9 {
		t.Fatalf("player 2 x = %v, want %v", x, speed*0.02)
	}
	if p2.Speed() != speed {
		t.Fatalf("player 2 should still be moving")
	}

	// Input from the committed tick is never replayed again.
	wall.Advance(40 * time.Millisecond)
	tm.Update()
	if x := w.Player(Side1).Paddle.Position().X(); math.Abs(x-speed*0.02) > 1e-9 {
		t.Fatalf("player 1 moved after release: %v", x)
	}
}

func TestTruthResumeSkipsPause(t *testing.T) {
	wall, w, _, tm, _ := newTruthFixture()

	wall.Advance(40 * time.Millisecond)
	tm.Update()
	before := w.Clock().Now()

	wall.Advance(10 * time.Second)
	tm.Resume()
	wall.Advance(40 * time.Millisecond)
	tm.Update()

	if got := w.Clock().Now() - before; got != 40*time.Millisecond {
		t.Fatalf("clock advanced %v across the pause, want 40ms", got)
	}
	latest, ok := tm.Latest()
	if !ok || latest.Timestamp != w.Clock().Now() {
		t.Fatalf("latest snapshot = %v, %v", latest.Timestamp, ok)
	}
	if !geom.ApproxEqual(latest.Ball.Position, w.Ball().Position(), 0) {
		t.Fatalf("snapshot ball differs from world")
	}
}
