package game

import (
	"math"

	"github.com/pong/server/config"
	"github.com/pong/server/internal/geom"
)

// impact finds the surface normal of target near the ball by fanning rays
// across the half turn ahead of it and keeping the closest hit on target.
func (ph *Physics) impact(b *Ball, target Body, bounds BoundsFunc) (RayHit, bool) {
	reach := b.Radius() + config.ImpactReach
	best := RayHit{}
	found := false

	for i := 0; i <= config.ImpactSamples; i++ {
		angle := -math.Pi/2 + math.Pi*float64(i)/config.ImpactSamples
		ray := geom.NewRay(b.position, geom.Rotate(b.direction, angle), reach)
		hit, ok := ph.index.CastWith(ray, bounds)
		if !ok || hit.Body != target {
			continue
		}
		if !found || hit.Distance < best.Distance {
			best, found = hit, true
		}
	}
	return best, found
}

// resolve reacts to the ball touching hit.Body: walls and paddles bounce it,
// paddles also speed it up, a deathbar stops it for the world to score.
// The surface is measured again by radial sampling; a predicted paddle
// contact the samples cannot see (a paddle closing in from the side or
// behind) keeps its predicted normal.
func (ph *Physics) resolve(b *Ball, hit RayHit, bounds BoundsFunc, paddles [2]PaddleState, at float64, predicted bool) Contact {
	c := Contact{
		Body:     hit.Body,
		Tag:      hit.Tag,
		Position: b.position,
		Point:    hit.Point,
		Normal:   hit.Normal,
	}

	if imp, ok := ph.impact(b, hit.Body, bounds); ok {
		c.Point, c.Normal, c.Resolved = imp.Point, imp.Normal, true
	} else if predicted {
		c.Resolved = true
	} else {
		ph.stats.LostImpacts++
		log.Warnf("No radial impact found on %s at %v, stopping ball", hit.Tag, b.position)
		b.Stop()
		return c
	}

	switch hit.Tag {
	case TagDeathBar:
		b.Stop()
	case TagPaddle:
		var v geom.Vec3
		if p, ok := hit.Body.(*Paddle); ok {
			v = paddles[p.Side].VelocityAt(at)
		}
		bounce(b, c.Normal, v)
		b.SpeedUp()
	default:
		b.SetDirection(geom.Reflect(b.direction, c.Normal))
	}
	return c
}

// bounce reflects the ball's velocity relative to a surface moving at v.
// Against a paddle moving along its own face this is the plain reflection;
// a paddle pushing into the ball also hands it its own speed.
func bounce(b *Ball, normal, v geom.Vec3) {
	vel := b.direction.Mul(b.speed)
	approach := vel.Sub(v).Dot(normal)
	if approach >= 0 {
		return
	}
	vel = vel.Sub(normal.Mul(2 * approach))
	b.SetDirection(vel)
	b.SetSpeed(math.Max(b.speed, geom.Flat(vel).Len()))
}
