package game

import (
	"time"

	"github.com/pong/server/config"
)

// TruthManager drives a world at the fixed frame rate. Every committed tick it
// replays the buffered input of both players at the moments it happened,
// steps the ball once for the whole tick and publishes the resulting
// snapshot.
type TruthManager struct {
	world     *World
	inputs    *InputManager
	snapshots *History[Snapshot]
	broadcast func(Snapshot)

	lastFrame time.Duration
	ticks     uint64
}

// NewTruthManager creates a driver for w reading from inputs. broadcast is
// called once per committed tick and may be nil.
func NewTruthManager(w *World, inputs *InputManager, broadcast func(Snapshot)) *TruthManager {
	return &TruthManager{
		world:     w,
		inputs:    inputs,
		snapshots: NewHistory[Snapshot](config.StateHistory),
		broadcast: broadcast,
		lastFrame: w.clock.Now(),
	}
}

// Update advances the clock and commits a tick if at least one frame
// duration passed since the previous one. It returns the scores of the tick
// and whether a tick was committed.
func (tm *TruthManager) Update() ([]ScoreEvent, bool) {
	clk := tm.world.clock
	clk.Update()
	now := clk.Now()
	dt := now - tm.lastFrame
	if dt < config.FrameDuration {
		return nil, false
	}

	for _, p := range tm.world.players {
		tm.replay(p, tm.inputs.Range(p.Side, tm.lastFrame, now), now)
	}

	events := tm.world.Step(now, dt)

	snap := tm.world.Snapshot(now)
	if tm.broadcast != nil {
		tm.broadcast(snap)
	}
	tm.snapshots.Add(snap)
	tm.lastFrame = now
	tm.ticks++
	return events, true
}

// replay moves p's paddle to each event's timestamp before applying it, then
// on to now.
func (tm *TruthManager) replay(p *Player, events []InputEvent, now time.Duration) {
	last := tm.lastFrame
	for _, e := range events {
		p.Update(e.Timestamp - last)
		tm.inputs.Process(p, e)
		last = e.Timestamp
	}
	if now > last {
		p.Update(now - last)
	}
}

// Resume rebases the clock onto its current reading so the wall time spent
// paused is not simulated.
func (tm *TruthManager) Resume() {
	clk := tm.world.clock
	clk.SetTimestamp(clk.Now())
}

// LastFrame returns the timestamp of the last committed tick.
func (tm *TruthManager) LastFrame() time.Duration { return tm.lastFrame }

// Ticks returns the number of committed ticks.
func (tm *TruthManager) Ticks() uint64 { return tm.ticks }

// Latest returns the most recent snapshot.
func (tm *TruthManager) Latest() (Snapshot, bool) { return tm.snapshots.Latest() }

// History returns the snapshot ring.
func (tm *TruthManager) History() *History[Snapshot] { return tm.snapshots }
