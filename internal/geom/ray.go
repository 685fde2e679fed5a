package geom

// Ray is a half-line segment: Origin + Direction*t for t in [0, Length].
type Ray struct {
	Origin    Vec3
	Direction Vec3
	Length    float64
}

// NewRay normalizes direction. A zero direction yields a zero-length ray that
// never hits anything.
func NewRay(origin, direction Vec3, length float64) Ray {
	dir, ok := Unit(direction)
	if !ok {
		length = 0
	}
	return Ray{Origin: origin, Direction: dir, Length: length}
}

// At returns the point at distance t along the ray.
func (r Ray) At(t float64) Vec3 {
	return r.Origin.Add(r.Direction.Mul(t))
}

// Hit describes where a ray meets a surface.
type Hit struct {
	Distance float64
	Point    Vec3
	Normal   Vec3
}
