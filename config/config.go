package config

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/BurntSushi/toml"
)

// Match loop constants. Clients replaying the simulation rely on these values.
const (
	// Network
	PollRate       = 60 // Hz, how often a playing session checks its truth loop
	FrameRate      = 30 // Hz, authoritative ticks
	FrameDuration  = time.Duration(1000/FrameRate) * time.Millisecond
	InputHistory   = 100 // buffered input events per player
	StateHistory   = 60  // snapshots kept per session
	SessionInbox   = 256 // queued commands per session
	ClientSendSize = 256 // buffered outbound frames per connection

	// Physics
	MaxSweepIterations = 50
	ImpactSamples      = 8 // radial impact sampling intervals over a half turn
	ImpactReach        = 0.1
	ContactSkin        = 0.01

	// Anti-cheat
	MaxInputsPerTick = 16
	MaxInputLead     = 500 * time.Millisecond
)

// ServerConfig holds transport and integration settings.
type ServerConfig struct {
	Host       string
	Port       int
	EnableCORS bool
	JWTSecret  string // empty disables token checks (dev mode)
	LogLevel   string
	TuningFile string

	PostgresDSN string
	MongoURI    string
	MongoDB     string
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Host:       "0.0.0.0",
		Port:       8080,
		EnableCORS: true,
		LogLevel:   "info",
		MongoDB:    "pong",
	}
}

// Tuning is the gameplay configuration of a match. It can be overridden from a
// TOML file; every session gets its own copy.
type Tuning struct {
	Arena  ArenaTuning  `toml:"arena"`
	Paddle PaddleTuning `toml:"paddle"`
	Ball   BallTuning   `toml:"ball"`
	Match  MatchTuning  `toml:"match"`
}

// ArenaTuning describes the playfield, centered on the origin.
type ArenaTuning struct {
	Width          float64 `toml:"width"`  // along x
	Length         float64 `toml:"length"` // along z
	WallThickness  float64 `toml:"wall_thickness"`
	WallHeight     float64 `toml:"wall_height"`
	PaddleInset    float64 `toml:"paddle_inset"`   // paddle distance from the arena end
	DeathBarInset  float64 `toml:"deathbar_inset"` // deathbar distance from the arena end
	DeathBarHeight float64 `toml:"deathbar_height"`
}

// PaddleTuning describes both paddles.
type PaddleTuning struct {
	Width  float64 `toml:"width"`
	Height float64 `toml:"height"`
	Depth  float64 `toml:"depth"`
	Speed  float64 `toml:"speed"` // units per second
	Y      float64 `toml:"y"`
}

// BallTuning describes the ball.
type BallTuning struct {
	Diameter     float64 `toml:"diameter"`
	BaseSpeed    float64 `toml:"base_speed"` // units per second
	MaxSpeed     float64 `toml:"max_speed"`
	Acceleration float64 `toml:"acceleration"` // speed multiplier per paddle hit
	ServeAngle   float64 `toml:"serve_angle"`  // radians around y, 0 is +z
	Y            float64 `toml:"y"`
}

// MatchTuning controls session lifecycle.
type MatchTuning struct {
	ServeDelay   Duration `toml:"serve_delay"`
	GracePeriod  Duration `toml:"grace_period"`
	WinningScore int      `toml:"winning_score"` // 0 plays forever
	ClockScale   float64  `toml:"clock_scale"`
}

// DefaultTuning returns the stock 7x12 arena.
func DefaultTuning() Tuning {
	return Tuning{
		Arena: ArenaTuning{
			Width:          7,
			Length:         12,
			WallThickness:  0.2,
			WallHeight:     0.5,
			PaddleInset:    2,
			DeathBarInset:  1,
			DeathBarHeight: 0.1,
		},
		Paddle: PaddleTuning{
			Width:  1.5,
			Height: 0.3,
			Depth:  0.2,
			Speed:  5,
			Y:      0.15,
		},
		Ball: BallTuning{
			Diameter:     0.25,
			BaseSpeed:    3,
			MaxSpeed:     150,
			Acceleration: 1.1,
			ServeAngle:   math.Pi,
			Y:            0.125,
		},
		Match: MatchTuning{
			ServeDelay:   Duration{time.Second},
			GracePeriod:  Duration{15 * time.Second},
			WinningScore: 5,
			ClockScale:   1,
		},
	}
}

// Validate rejects tunings the simulation cannot run with.
func (t Tuning) Validate() error {
	switch {
	case t.Arena.Width <= 0 || t.Arena.Length <= 0:
		return fmt.Errorf("arena dimensions must be positive")
	case t.Paddle.Width <= 0 || t.Paddle.Width >= t.Arena.Width:
		return fmt.Errorf("paddle width must be in (0, arena width)")
	case t.Ball.Diameter <= 0:
		return fmt.Errorf("ball diameter must be positive")
	case t.Ball.BaseSpeed <= 0 || t.Ball.MaxSpeed < t.Ball.BaseSpeed:
		return fmt.Errorf("ball speeds must satisfy 0 < base <= max")
	case t.Ball.Acceleration < 1:
		return fmt.Errorf("ball acceleration must be >= 1")
	case t.Match.GracePeriod.Duration < 0 || t.Match.ServeDelay.Duration < 0:
		return fmt.Errorf("durations must not be negative")
	case t.Match.ClockScale < 0:
		return fmt.Errorf("clock scale must not be negative")
	}
	return nil
}

// LoadTuning reads a TOML file on top of DefaultTuning. Keys missing from the
// file keep their default values.
func LoadTuning(path string) (Tuning, error) {
	t := DefaultTuning()
	if path == "" {
		return t, nil
	}
	if _, err := toml.DecodeFile(path, &t); err != nil {
		return t, fmt.Errorf("decode tuning %s: %w", path, err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning %s: %w", path, err)
	}
	return t, nil
}

// WriteTuning encodes t as TOML.
func WriteTuning(w io.Writer, t Tuning) error {
	return toml.NewEncoder(w).Encode(t)
}

// Duration is a time.Duration that reads and writes TOML strings like "15s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}
