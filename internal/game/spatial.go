package game

import (
	"math"

	"github.com/solarlune/resolv"

	"github.com/pong/server/internal/geom"
)

const (
	indexScale = 100 // index units per world unit
	indexCell  = 100 // cell size in index units
)

// BoundsFunc picks the box tested for body, or false to skip the body.
type BoundsFunc func(body Body, tag string) (geom.Box, bool)

// RayHit is the nearest body hit by a cast.
type RayHit struct {
	geom.Hit
	Body Body
	Tag  string
}

type indexEntry struct {
	body Body
	tag  string
	obj  *resolv.Object
}

// SpatialIndex is the registry of solid bodies in one match. Bodies are
// projected onto a resolv space in the x/z plane for broad-phase point
// queries; exact tests use the body's box. Entries keep insertion order so
// casts and tag queries are deterministic.
type SpatialIndex struct {
	space   *resolv.Space
	origin  geom.Vec3
	entries []*indexEntry
}

// NewSpatialIndex covers an arena of the given width (x) and length (z),
// centered on the origin, plus margin on every side.
func NewSpatialIndex(width, length, margin float64) *SpatialIndex {
	w := int(math.Ceil((width + 2*margin) * indexScale))
	h := int(math.Ceil((length + 2*margin) * indexScale))
	return &SpatialIndex{
		space:  resolv.NewSpace(w, h, indexCell, indexCell),
		origin: geom.V(-width/2-margin, 0, -length/2-margin),
	}
}

// Add registers body under tag. Adding a body twice is a no-op.
func (ix *SpatialIndex) Add(body Body, tag string) {
	if ix.find(body) >= 0 {
		return
	}
	x, y, w, h := ix.project(body.Bounds())
	obj := resolv.NewObject(x, y, w, h, tag)
	obj.Data = body
	ix.space.Add(obj)
	ix.entries = append(ix.entries, &indexEntry{body: body, tag: tag, obj: obj})
}

// Remove unregisters body. Unknown bodies are ignored.
func (ix *SpatialIndex) Remove(body Body) {
	i := ix.find(body)
	if i < 0 {
		return
	}
	ix.space.Remove(ix.entries[i].obj)
	ix.entries = append(ix.entries[:i], ix.entries[i+1:]...)
}

// Clear unregisters every body.
func (ix *SpatialIndex) Clear() {
	for _, e := range ix.entries {
		ix.space.Remove(e.obj)
	}
	ix.entries = nil
}

// Len returns the number of registered bodies.
func (ix *SpatialIndex) Len() int {
	return len(ix.entries)
}

// Refresh re-projects every body after they moved.
func (ix *SpatialIndex) Refresh() {
	for _, e := range ix.entries {
		e.obj.X, e.obj.Y, e.obj.W, e.obj.H = ix.project(e.body.Bounds())
		e.obj.Update()
	}
}

// BodiesWithTag returns the bodies registered under tag.
func (ix *SpatialIndex) BodiesWithTag(tag string) []Body {
	var out []Body
	for _, e := range ix.entries {
		if e.tag == tag {
			out = append(out, e.body)
		}
	}
	return out
}

// Intersecting returns the bodies tagged tag whose box contains point. Call
// Refresh after bodies move.
func (ix *SpatialIndex) Intersecting(point geom.Vec3, tag string) []Body {
	return ix.IntersectingWith(point, tag, 0, func(body Body, _ string) (geom.Box, bool) {
		return body.Bounds(), true
	})
}

// IntersectingWith is Intersecting against the boxes chosen by bounds. Those
// boxes may lie up to reach away from where the bodies were last refreshed;
// candidates come from the cells around point widened by that distance.
func (ix *SpatialIndex) IntersectingWith(point geom.Vec3, tag string, reach float64, bounds BoundsFunc) []Body {
	cx, cy := ix.space.WorldToSpace((point.X()-ix.origin.X())*indexScale, (point.Z()-ix.origin.Z())*indexScale)
	ring := 1 + int(math.Ceil(reach*indexScale/indexCell))

	seen := make(map[*resolv.Object]bool)
	for dx := -ring; dx <= ring; dx++ {
		for dy := -ring; dy <= ring; dy++ {
			cell := ix.space.Cell(cx+dx, cy+dy)
			if cell == nil {
				continue
			}
			for _, obj := range cell.Objects {
				if obj.HasTags(tag) {
					seen[obj] = true
				}
			}
		}
	}

	var out []Body
	for _, e := range ix.entries {
		if !seen[e.obj] {
			continue
		}
		if box, ok := bounds(e.body, e.tag); ok && box.Contains(point) {
			out = append(out, e.body)
		}
	}
	return out
}

// Cast returns the nearest body hit by ray among the bodies accepted by
// predicate (nil accepts all).
func (ix *SpatialIndex) Cast(ray geom.Ray, predicate func(body Body, tag string) bool) (RayHit, bool) {
	return ix.CastWith(ray, func(body Body, tag string) (geom.Box, bool) {
		if predicate != nil && !predicate(body, tag) {
			return geom.Box{}, false
		}
		return body.Bounds(), true
	})
}

// CastWith returns the nearest hit against the boxes chosen by bounds. On equal
// distances the body registered first wins.
func (ix *SpatialIndex) CastWith(ray geom.Ray, bounds BoundsFunc) (RayHit, bool) {
	var best RayHit
	found := false
	for _, e := range ix.entries {
		box, ok := bounds(e.body, e.tag)
		if !ok {
			continue
		}
		hit, ok := box.Intersect(ray)
		if !ok {
			continue
		}
		if !found || hit.Distance < best.Distance {
			best = RayHit{Hit: hit, Body: e.body, Tag: e.tag}
			found = true
		}
	}
	return best, found
}

func (ix *SpatialIndex) find(body Body) int {
	for i, e := range ix.entries {
		if e.body == body {
			return i
		}
	}
	return -1
}

// project maps a box onto the index plane.
func (ix *SpatialIndex) project(box geom.Box) (x, y, w, h float64) {
	lo := box.Min()
	x = (lo.X() - ix.origin.X()) * indexScale
	y = (lo.Z() - ix.origin.Z()) * indexScale
	w = box.Half.X() * 2 * indexScale
	h = box.Half.Z() * 2 * indexScale
	return x, y, w, h
}
