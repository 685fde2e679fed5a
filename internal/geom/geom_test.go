package geom

import (
	"math"
	"testing"
)

func TestBoxIntersectFaces(t *testing.T) {
	box := NewBox(V(0, 0, 5), V(2, 1, 1))

	tests := []struct {
		name       string
		ray        Ray
		wantHit    bool
		wantDist   float64
		wantNormal Vec3
	}{
		{"front face", NewRay(V(0, 0, 0), V(0, 0, 1), 10), true, 4.5, V(0, 0, -1)},
		{"back face", NewRay(V(0, 0, 10), V(0, 0, -1), 10), true, 4.5, V(0, 0, 1)},
		{"side face", NewRay(V(-5, 0, 5), V(1, 0, 0), 10), true, 4, V(-1, 0, 0)},
		{"too short", NewRay(V(0, 0, 0), V(0, 0, 1), 4), false, 0, Vec3{}},
		{"miss", NewRay(V(3, 0, 0), V(0, 0, 1), 10), false, 0, Vec3{}},
		{"pointing away", NewRay(V(0, 0, 0), V(0, 0, -1), 10), false, 0, Vec3{}},
		{"origin inside", NewRay(V(0, 0, 5), V(0, 0, 1), 10), false, 0, Vec3{}},
		{"zero direction", NewRay(V(0, 0, 0), Vec3{}, 10), false, 0, Vec3{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hit, ok := box.Intersect(tt.ray)
			if ok != tt.wantHit {
				t.Fatalf("hit = %v, want %v", ok, tt.wantHit)
			}
			if !ok {
				return
			}
			if math.Abs(hit.Distance-tt.wantDist) > 1e-9 {
				t.Errorf("distance = %f, want %f", hit.Distance, tt.wantDist)
			}
			if hit.Normal != tt.wantNormal {
				t.Errorf("normal = %v, want %v", hit.Normal, tt.wantNormal)
			}
			if !ApproxEqual(hit.Point, tt.ray.At(tt.wantDist), 1e-9) {
				t.Errorf("point = %v, want %v", hit.Point, tt.ray.At(tt.wantDist))
			}
		})
	}
}

func TestBoxContains(t *testing.T) {
	box := NewBox(V(1, 1, 1), V(2, 2, 2))
	if !box.Contains(V(0, 0, 0)) {
		t.Fatalf("corner should be contained")
	}
	if !box.Contains(V(1.5, 1.5, 1.5)) {
		t.Fatalf("interior point should be contained")
	}
	if box.Contains(V(2.01, 1, 1)) {
		t.Fatalf("outside point should not be contained")
	}
}

func TestReflectKeepsUnitLength(t *testing.T) {
	d, _ := Unit(V(1, 0, 1))
	r := Reflect(d, V(0, 0, -1))
	if !ApproxEqual(r, V(d.X(), 0, -d.Z()), 1e-12) {
		t.Fatalf("reflect = %v", r)
	}
	if math.Abs(r.Len()-1) > 1e-12 {
		t.Fatalf("reflected length = %f, want 1", r.Len())
	}
}

func TestRotateHalfTurnFan(t *testing.T) {
	d := V(0, 0, 1)
	if got := Rotate(d, 0); !ApproxEqual(got, d, 1e-12) {
		t.Errorf("rotate 0 = %v", got)
	}
	if got := Rotate(d, math.Pi/2); !ApproxEqual(got, Left(d), 1e-12) {
		t.Errorf("rotate +90 = %v, want %v", got, Left(d))
	}
	if got := Rotate(d, -math.Pi/2); !ApproxEqual(got, Left(d).Mul(-1), 1e-12) {
		t.Errorf("rotate -90 = %v", got)
	}
}

func TestBoxNearestFace(t *testing.T) {
	box := NewBox(V(0, 0, 0), V(2, 1, 1)).Expand(0.5)
	if box.Half != V(1.5, 1, 1) {
		t.Fatalf("expanded half = %v", box.Half)
	}

	tests := []struct {
		p    Vec3
		want Vec3
	}{
		{V(-1.4, 0, 0), V(-1, 0, 0)},
		{V(1.5, 0, 0.2), V(1, 0, 0)},
		{V(0, 0, 0.9), V(0, 0, 1)},
	}
	for _, tt := range tests {
		if got := box.NearestFace(tt.p); got != tt.want {
			t.Errorf("NearestFace(%v) = %v, want %v", tt.p, got, tt.want)
		}
	}
}
