package geom

import "math"

// Box is an axis-aligned bounding box stored as center and half extents.
type Box struct {
	Center Vec3
	Half   Vec3
}

// NewBox builds a box from a center and full size.
func NewBox(center, size Vec3) Box {
	return Box{Center: center, Half: size.Mul(0.5)}
}

// Min returns the lowest corner.
func (b Box) Min() Vec3 { return b.Center.Sub(b.Half) }

// Max returns the highest corner.
func (b Box) Max() Vec3 { return b.Center.Add(b.Half) }

// Translate returns the box moved by offset.
func (b Box) Translate(offset Vec3) Box {
	return Box{Center: b.Center.Add(offset), Half: b.Half}
}

// Expand returns the box grown by margin on every side.
func (b Box) Expand(margin float64) Box {
	return Box{Center: b.Center, Half: b.Half.Add(Vec3{margin, margin, margin})}
}

// NearestFace returns the outward normal of the face closest to p.
func (b Box) NearestFace(p Vec3) Vec3 {
	lo, hi := b.Min(), b.Max()
	best := math.Inf(1)
	var normal Vec3
	for i := 0; i < 3; i++ {
		if d := math.Abs(p[i] - lo[i]); d < best {
			best, normal = d, Vec3{}
			normal[i] = -1
		}
		if d := math.Abs(hi[i] - p[i]); d < best {
			best, normal = d, Vec3{}
			normal[i] = 1
		}
	}
	return normal
}

// Contains reports whether p lies inside the box, faces included.
func (b Box) Contains(p Vec3) bool {
	lo, hi := b.Min(), b.Max()
	for i := 0; i < 3; i++ {
		if p[i] < lo[i] || p[i] > hi[i] {
			return false
		}
	}
	return true
}

// Intersect returns the first point where r enters the box (slab method).
// Rays starting inside the box do not hit it.
func (b Box) Intersect(r Ray) (Hit, bool) {
	if r.Length <= 0 {
		return Hit{}, false
	}
	lo, hi := b.Min(), b.Max()
	near, far := math.Inf(-1), math.Inf(1)
	axis := -1
	sign := 0.0

	for i := 0; i < 3; i++ {
		o, d := r.Origin[i], r.Direction[i]
		if math.Abs(d) < Epsilon {
			if o < lo[i] || o > hi[i] {
				return Hit{}, false
			}
			continue
		}
		t1 := (lo[i] - o) / d
		t2 := (hi[i] - o) / d
		s := -1.0
		if t1 > t2 {
			t1, t2 = t2, t1
			s = 1.0
		}
		if t1 > near {
			near, axis, sign = t1, i, s
		}
		if t2 < far {
			far = t2
		}
		if near > far {
			return Hit{}, false
		}
	}

	if axis < 0 || near < 0 || near > r.Length {
		return Hit{}, false
	}

	var normal Vec3
	normal[axis] = sign
	return Hit{Distance: near, Point: r.At(near), Normal: normal}, true
}
