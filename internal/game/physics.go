package game

import (
	"math"
	"time"

	"github.com/pong/server/config"
	"github.com/pong/server/internal/geom"
)

// Contact is one collision resolved during a sweep.
type Contact struct {
	Body Body
	Tag  string
	// Time is the offset into the swept interval at which the contact happened.
	Time     time.Duration
	Position geom.Vec3 // ball center at contact
	Point    geom.Vec3
	Normal   geom.Vec3
	// Resolved is false when no impact sample confirmed the contact and the
	// ball was stopped instead of bounced.
	Resolved bool
}

// PhysicsStats counts sweep anomalies over the life of a world.
type PhysicsStats struct {
	Sweeps       uint64
	Contacts     uint64
	CappedSweeps uint64
	LostImpacts  uint64
}

// Physics advances the ball through the bodies registered in an index.
type Physics struct {
	index *SpatialIndex
	stats PhysicsStats
}

// NewPhysics creates a physics step bound to index.
func NewPhysics(index *SpatialIndex) *Physics {
	return &Physics{index: index}
}

// Stats returns the counters accumulated so far.
func (ph *Physics) Stats() PhysicsStats {
	return ph.stats
}

// Sweep moves b through dt, bouncing off every body it meets on the way.
//
// The interval is consumed in sub-steps. Each sub-step ends at the earliest
// predicted contact: against each paddle the ball's displacement is taken
// relative to the paddle's own and cast at the paddle grown by the ball's
// radius, against static bodies it is absolute. A paddle prediction is
// resolved where it was predicted; otherwise the sub-step is confirmed by a
// direct cast against every body placed at the end of the sub-step. Paddles
// are read from their states and never moved. A deathbar contact ends the
// sweep.
func (ph *Physics) Sweep(b *Ball, dt time.Duration, paddles [2]PaddleState) []Contact {
	ph.stats.Sweeps++

	var contacts []Contact
	remaining := dt.Seconds()
	elapsed := 0.0
	r := b.Radius()

	for iter := 0; remaining > geom.Epsilon && b.moving; iter++ {
		if iter >= config.MaxSweepIterations {
			ph.stats.CappedSweeps++
			log.Warnf("Ball sweep exceeded %d iterations with %.6fs left, truncating",
				config.MaxSweepIterations, remaining)
			break
		}

		// Earliest candidate, ties go to paddle 1, then paddle 2, then static.
		inside := ph.containing(b, paddles, elapsed)
		step := remaining
		var predicted *RayHit
		for _, p := range paddles {
			if inside[p.Side] {
				continue
			}
			if hit, t, ok := ph.paddleTime(b, p, elapsed, remaining); ok && t < step-geom.Epsilon {
				step, predicted = t, &hit
			}
		}
		if t, ok := ph.staticTime(b, remaining); ok && t < step-geom.Epsilon {
			step, predicted = t, nil
		}

		at := elapsed + step
		dist := b.speed * step
		var c Contact
		if predicted != nil {
			b.position = b.position.Add(b.direction.Mul(dist))
			c = ph.resolve(b, *predicted, ph.boundsAt(b, paddles, at), paddles, at, true)
		} else {
			bounds := ph.boundsAt(b, paddles, at)
			hit, ok := ph.index.CastWith(geom.NewRay(b.position, b.direction, dist+r+config.ContactSkin), bounds)
			if !ok {
				b.position = b.position.Add(b.direction.Mul(dist))
				elapsed = at
				remaining -= step
				continue
			}
			b.position = b.position.Add(b.direction.Mul(math.Max(0, hit.Distance-r)))
			c = ph.resolve(b, hit, ph.boundsAt(b, paddles, at), paddles, at, false)
		}

		c.Time = time.Duration(at * float64(time.Second))
		contacts = append(contacts, c)
		ph.stats.Contacts++

		elapsed = at
		remaining -= step
		if remaining < geom.Epsilon {
			remaining = 0
		}
		if c.Tag == TagDeathBar {
			break
		}
	}
	return contacts
}

// paddleTime predicts when the ball touches p within the next remaining
// seconds. The ball's center is cast in the paddle's frame of reference at
// the paddle box grown by the radius, so side faces and corners count as
// well as the front. A ball already overlapping the grown box touches it now
// unless the two are separating.
func (ph *Physics) paddleTime(b *Ball, p PaddleState, elapsed, remaining float64) (RayHit, float64, bool) {
	body := ph.paddleBody(p.Side)
	if body == nil {
		return RayHit{}, 0, false
	}
	box := p.BoxAt(elapsed).Expand(b.Radius())
	ballDisp := b.direction.Mul(b.speed * remaining)
	paddleDisp := p.AtSeconds(elapsed + remaining).Sub(p.AtSeconds(elapsed))
	rel := ballDisp.Sub(paddleDisp)
	relDist := rel.Len()
	if relDist < geom.Epsilon {
		return RayHit{}, 0, false
	}

	var hit geom.Hit
	if box.Contains(b.position) {
		hit = geom.Hit{Normal: box.NearestFace(b.position)}
	} else {
		var ok bool
		if hit, ok = box.Intersect(geom.NewRay(b.position, rel, relDist)); !ok {
			return RayHit{}, 0, false
		}
	}
	if rel.Dot(hit.Normal) >= 0 {
		return RayHit{}, 0, false
	}
	// The contact point lies on the paddle's own surface, one radius in.
	hit.Point = b.position.Add(rel.Mul(hit.Distance / relDist)).Sub(hit.Normal.Mul(b.Radius()))
	t := hit.Distance / relDist * remaining
	return RayHit{Hit: hit, Body: body, Tag: TagPaddle}, t, true
}

// staticTime predicts when the ball touches a wall or deathbar.
func (ph *Physics) staticTime(b *Ball, remaining float64) (float64, bool) {
	dist := b.speed * remaining
	if dist < geom.Epsilon {
		return 0, false
	}
	r := b.Radius()
	skip := make(map[Body]bool)
	for _, tag := range []string{TagWall, TagDeathBar} {
		for _, body := range ph.index.Intersecting(b.position, tag) {
			skip[body] = true
		}
	}
	hit, ok := ph.index.Cast(geom.NewRay(b.position, b.direction, dist+r), func(body Body, tag string) bool {
		return (tag == TagWall || tag == TagDeathBar) && !skip[body]
	})
	if !ok {
		return 0, false
	}
	return math.Max(0, (hit.Distance-r)/dist*remaining), true
}

// containing reports which paddles hold the ball's center t seconds into the
// sweep. The index only knows where paddles were at the last refresh, so the
// query is widened by how far they have moved since.
func (ph *Physics) containing(b *Ball, paddles [2]PaddleState, t float64) [2]bool {
	reach := 0.0
	for _, p := range paddles {
		reach = math.Max(reach, p.AtSeconds(t).Sub(p.Position).Len())
	}
	var inside [2]bool
	found := ph.index.IntersectingWith(b.position, TagPaddle, reach, func(body Body, _ string) (geom.Box, bool) {
		p, ok := body.(*Paddle)
		if !ok {
			return geom.Box{}, false
		}
		return paddles[p.Side].BoxAt(t), true
	})
	for _, body := range found {
		inside[body.(*Paddle).Side] = true
	}
	return inside
}

// paddleBody returns the registered paddle of side.
func (ph *Physics) paddleBody(side Side) Body {
	for _, body := range ph.index.BodiesWithTag(TagPaddle) {
		if p, ok := body.(*Paddle); ok && p.Side == side {
			return p
		}
	}
	return nil
}

// boundsAt resolves every body for casts made at time t into the sweep. The
// ball itself and any body containing its center are skipped.
func (ph *Physics) boundsAt(b *Ball, paddles [2]PaddleState, t float64) BoundsFunc {
	inside := ph.containing(b, paddles, t)
	skip := make(map[Body]bool)
	for _, tag := range []string{TagWall, TagDeathBar} {
		for _, body := range ph.index.Intersecting(b.position, tag) {
			skip[body] = true
		}
	}
	return func(body Body, tag string) (geom.Box, bool) {
		switch tag {
		case TagBall:
			return geom.Box{}, false
		case TagPaddle:
			p, ok := body.(*Paddle)
			if !ok || inside[p.Side] {
				return geom.Box{}, false
			}
			return paddles[p.Side].BoxAt(t), true
		}
		if skip[body] {
			return geom.Box{}, false
		}
		return body.Bounds(), true
	}
}
