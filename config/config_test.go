package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFrameDuration(t *testing.T) {
	if FrameDuration != 33*time.Millisecond {
		t.Fatalf("FrameDuration = %v, want 33ms", FrameDuration)
	}
	if err := DefaultTuning().Validate(); err != nil {
		t.Fatalf("default tuning invalid: %v", err)
	}
}

func TestLoadTuningOverridesSomeKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.toml")
	data := []byte(`
[ball]
base_speed = 4.5

[match]
grace_period = "3s"
winning_score = 11
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	tuning, err := LoadTuning(path)
	if err != nil {
		t.Fatalf("LoadTuning: %v", err)
	}
	if tuning.Ball.BaseSpeed != 4.5 {
		t.Errorf("base speed = %v, want 4.5", tuning.Ball.BaseSpeed)
	}
	if tuning.Match.GracePeriod.Duration != 3*time.Second {
		t.Errorf("grace = %v, want 3s", tuning.Match.GracePeriod)
	}
	if tuning.Match.WinningScore != 11 {
		t.Errorf("winning score = %d, want 11", tuning.Match.WinningScore)
	}
	if tuning.Arena.Width != DefaultTuning().Arena.Width {
		t.Errorf("arena width lost its default: %v", tuning.Arena.Width)
	}
}

func TestLoadTuningRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("[ball]\nmax_speed = 1\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadTuning(path); err == nil {
		t.Fatalf("expected error for max speed below base speed")
	}
}

func TestWriteTuningRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteTuning(&buf, DefaultTuning()); err != nil {
		t.Fatalf("WriteTuning: %v", err)
	}
	path := filepath.Join(t.TempDir(), "dump.toml")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := LoadTuning(path)
	if err != nil {
		t.Fatalf("LoadTuning: %v", err)
	}
	if got != DefaultTuning() {
		t.Fatalf("round trip changed tuning:\n got %+v\nwant %+v", got, DefaultTuning())
	}
}
