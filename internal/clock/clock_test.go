package clock

import (
	"testing"
	"time"
)

type fakeWall struct {
	now time.Time
}

func (f *fakeWall) Now() time.Time { return f.now }

func (f *fakeWall) Advance(d time.Duration) { f.now = f.now.Add(d) }

func newFake() (*fakeWall, *Logical) {
	w := &fakeWall{now: time.Unix(1700000000, 0)}
	return w, New(w.Now)
}

func TestUpdateAdvancesByWallDelta(t *testing.T) {
	w, c := newFake()
	if c.Now() != 0 {
		t.Fatalf("new clock = %v, want 0", c.Now())
	}

	w.Advance(40 * time.Millisecond)
	if c.Now() != 0 {
		t.Fatalf("clock moved without Update: %v", c.Now())
	}
	c.Update()
	if c.Now() != 40*time.Millisecond {
		t.Fatalf("after update = %v, want 40ms", c.Now())
	}
}

func TestScale(t *testing.T) {
	w, c := newFake()
	if err := c.SetScale(0.5); err != nil {
		t.Fatalf("set scale: %v", err)
	}
	w.Advance(100 * time.Millisecond)
	c.Update()
	if c.Now() != 50*time.Millisecond {
		t.Fatalf("scaled now = %v, want 50ms", c.Now())
	}
	if err := c.SetScale(-1); err != ErrNegativeScale {
		t.Fatalf("negative scale err = %v, want ErrNegativeScale", err)
	}
	if c.Scale() != 0.5 {
		t.Fatalf("scale changed by rejected call: %v", c.Scale())
	}
}

func TestSetTimestampRebases(t *testing.T) {
	w, c := newFake()
	w.Advance(100 * time.Millisecond)
	c.Update()

	// A pause: wall time passes but nobody updates the clock.
	w.Advance(5 * time.Second)
	c.SetTimestamp(c.Now())
	w.Advance(20 * time.Millisecond)
	c.Update()

	if c.Now() != 120*time.Millisecond {
		t.Fatalf("after pause = %v, want 120ms", c.Now())
	}

	c.SetTimestamp(3 * time.Second)
	if c.Now() != 3*time.Second {
		t.Fatalf("rebased now = %v, want 3s", c.Now())
	}
	w.Advance(10 * time.Millisecond)
	c.Update()
	if c.Now() != 3*time.Second+10*time.Millisecond {
		t.Fatalf("after rebase update = %v", c.Now())
	}
}

func TestNowNeverDecreases(t *testing.T) {
	w, c := newFake()
	prev := c.Now()
	for i := 0; i < 50; i++ {
		if i%7 == 0 {
			w.Advance(-3 * time.Millisecond)
		} else {
			w.Advance(time.Duration(i) * time.Millisecond)
		}
		c.Update()
		if c.Now() < prev {
			t.Fatalf("step %d: now %v < previous %v", i, c.Now(), prev)
		}
		prev = c.Now()
	}
}
