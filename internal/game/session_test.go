package game

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/pong/server/config"
	"github.com/pong/server/internal/network"
)

type fakeConn struct {
	sendCh chan []byte
	proto  *network.Protocol
	closed chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		sendCh: make(chan []byte, 1024),
		proto:  network.NewProtocol(network.CodecJSON),
		closed: make(chan struct{}, 1),
	}
}

func (f *fakeConn) Send(b []byte) error {
	cp := make([]byte, len(b))
	copy(cp, b)
	select {
	case f.sendCh <- cp:
	default:
	}
	return nil
}

func (f *fakeConn) Close() error {
	select {
	case f.closed <- struct{}{}:
	default:
	}
	return nil
}

func (f *fakeConn) RemoteAddr() string { return "fake" }

func (f *fakeConn) Protocol() *network.Protocol { return f.proto }

// waitFor reads frames from fc until one of type msgType arrives.
func waitFor(t *testing.T, fc *fakeConn, msgType string) json.RawMessage {
	t.Helper()
	timeout := time.After(time.Second)
	for {
		select {
		case b := <-fc.sendCh:
			var env struct {
				Type    string          `json:"type"`
				Payload json.RawMessage `json:"payload"`
			}
			if err := json.Unmarshal(b, &env); err != nil {
				t.Fatalf("decode envelope: %v", err)
			}
			if env.Type == msgType {
				return env.Payload
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", msgType)
		}
	}
}

func testTuning(grace time.Duration) config.Tuning {
	t := config.DefaultTuning()
	t.Match.GracePeriod = config.Duration{Duration: grace}
	t.Match.ServeDelay = config.Duration{Duration: 10 * time.Millisecond}
	return t
}

func startSession(t *testing.T, grace time.Duration) (*Session, chan Result) {
	t.Helper()
	results := make(chan Result, 2)
	s := NewSession("s1", "alice", "bob", testTuning(grace), func(r Result) { results <- r })
	s.Start()
	t.Cleanup(func() { s.Stop(ReasonShutdown) })
	return s, results
}

func mustState(t *testing.T, s *Session, want SessionState) {
	t.Helper()
	info, err := s.Info()
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	if info.State != want {
		t.Fatalf("state = %s, want %s", info.State, want)
	}
}

func TestSessionLifecycle(t *testing.T) {
	s, results := startSession(t, 200*time.Millisecond)
	a, b := newFakeConn(), newFakeConn()

	if err := s.Connect("alice", a); err != nil {
		t.Fatalf("connect alice: %v", err)
	}
	waitFor(t, a, network.MsgTypeGameCreated)
	mustState(t, s, StateWaiting)

	if err := s.Connect("bob", b); err != nil {
		t.Fatalf("connect bob: %v", err)
	}
	waitFor(t, a, network.MsgTypeGameStarted)
	waitFor(t, b, network.MsgTypeGameStarted)
	mustState(t, s, StatePlaying)
	waitFor(t, a, network.MsgTypeGameUpdate)

	// Disconnect, then come back inside the grace period.
	s.Disconnect("alice", a)
	waitFor(t, b, network.MsgTypeGameStopped)
	waitFor(t, b, network.MsgTypePlayerDisconnected)
	mustState(t, s, StateWaiting)

	time.Sleep(100 * time.Millisecond)
	a2 := newFakeConn()
	if err := s.Connect("alice", a2); err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	waitFor(t, a2, network.MsgTypeGameJoined)
	waitFor(t, a2, network.MsgTypeGameUpdate)
	waitFor(t, a2, network.MsgTypeGameStarted)
	mustState(t, s, StatePlaying)

	// The cancelled timer must not fire.
	select {
	case r := <-results:
		t.Fatalf("session ended early: %+v", r)
	case <-time.After(250 * time.Millisecond):
	}
	mustState(t, s, StatePlaying)

	// Leave for good.
	s.Disconnect("bob", b)
	select {
	case r := <-results:
		if r.Reason != ReasonForfeit || r.Winner != "alice" {
			t.Fatalf("result = %+v", r)
		}
	case <-time.After(time.Second):
		t.Fatalf("session not disposed after grace period")
	}
	waitFor(t, a2, network.MsgTypeGameEnded)

	select {
	case <-s.Done():
	case <-time.After(time.Second):
		t.Fatalf("done not closed")
	}
	if _, err := s.Info(); err != ErrSessionClosed {
		t.Fatalf("info after dispose: %v", err)
	}
	if err := s.Input("alice", network.InputMessage{Direction: "left"}); err != ErrSessionClosed {
		t.Fatalf("input after dispose: %v", err)
	}
}

func TestSessionAbandonedWhenNobodyConnects(t *testing.T) {
	_, results := startSession(t, 50*time.Millisecond)
	select {
	case r := <-results:
		if r.Reason != ReasonAbandoned || r.Winner != "" {
			t.Fatalf("result = %+v", r)
		}
	case <-time.After(time.Second):
		t.Fatalf("session not abandoned")
	}
}

func TestSessionReplacedConnection(t *testing.T) {
	s, _ := startSession(t, time.Second)
	a, b := newFakeConn(), newFakeConn()
	s.Connect("alice", a)
	s.Connect("bob", b)
	mustState(t, s, StatePlaying)

	a2 := newFakeConn()
	s.Connect("alice", a2)
	waitFor(t, a, network.MsgTypeError)
	select {
	case <-a.closed:
	case <-time.After(time.Second):
		t.Fatalf("old connection not closed")
	}
	waitFor(t, a2, network.MsgTypeGameJoined)

	// The stale connection's disconnect is ignored.
	s.Disconnect("alice", a)
	mustState(t, s, StatePlaying)
}

func TestSessionStopReportsOnce(t *testing.T) {
	results := make(chan Result, 2)
	s := NewSession("s2", "alice", "bob", testTuning(time.Second), func(r Result) { results <- r })
	s.Start()
	s.Stop(ReasonShutdown)
	s.Stop(ReasonShutdown)

	if r := <-results; r.Reason != ReasonShutdown || r.SessionID != "s2" {
		t.Fatalf("result = %+v", r)
	}
	select {
	case r := <-results:
		t.Fatalf("second result %+v", r)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSessionUnknownPlayer(t *testing.T) {
	s, _ := startSession(t, time.Second)
	if err := s.Connect("mallory", newFakeConn()); err != ErrNotInSession {
		t.Fatalf("err = %v", err)
	}
}

// playing connects both players and waits for the first state broadcast.
func playing(t *testing.T, s *Session) (a, b *fakeConn, first network.GameStateMessage) {
	t.Helper()
	a, b = newFakeConn(), newFakeConn()
	if err := s.Connect("alice", a); err != nil {
		t.Fatalf("connect alice: %v", err)
	}
	if err := s.Connect("bob", b); err != nil {
		t.Fatalf("connect bob: %v", err)
	}
	waitFor(t, a, network.MsgTypeGameStarted)
	if err := json.Unmarshal(waitFor(t, a, network.MsgTypeGameUpdate), &first); err != nil {
		t.Fatalf("decode update: %v", err)
	}
	return a, b, first
}

func TestSessionEndsAtWinningScore(t *testing.T) {
	tun := testTuning(time.Second)
	tun.Match.WinningScore = 1
	tun.Match.ClockScale = 10
	// Angled so the serve passes beside player 1's paddle and into its deathbar.
	tun.Ball.ServeAngle = math.Pi - 0.5

	results := make(chan Result, 2)
	s := NewSession("s3", "alice", "bob", tun, func(r Result) { results <- r })
	s.Start()
	t.Cleanup(func() { s.Stop(ReasonShutdown) })
	a, b, _ := playing(t, s)

	select {
	case r := <-results:
		if r.Reason != ReasonScore || r.Winner != "bob" || r.Scores != [2]int{0, 1} {
			t.Fatalf("result = %+v", r)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("session did not end on score")
	}

	for _, fc := range []*fakeConn{a, b} {
		var ended network.GameEndedMessage
		if err := json.Unmarshal(waitFor(t, fc, network.MsgTypeGameEnded), &ended); err != nil {
			t.Fatalf("decode gameEnded: %v", err)
		}
		if ended.Reason != string(ReasonScore) || ended.Winner != "bob" {
			t.Fatalf("gameEnded = %+v", ended)
		}
	}
}

func TestSessionInputReplay(t *testing.T) {
	s, _ := startSession(t, time.Second)
	a, _, first := playing(t, s)

	// Press at T, then a release carrying the same timestamp, which is dropped.
	at := first.Timestamp + 100
	pressed, released := true, false
	for _, msg := range []network.InputMessage{
		{Timestamp: &at, Direction: "right", IsPressed: &pressed},
		{Timestamp: &at, Direction: "right", IsPressed: &released},
	} {
		if err := s.Input("alice", msg); err != nil {
			t.Fatalf("input: %v", err)
		}
	}
	// Too far ahead of the match clock.
	early := first.Timestamp + 60000
	if err := s.Input("alice", network.InputMessage{Timestamp: &early, Direction: "left", IsPressed: &pressed}); err != nil {
		t.Fatalf("input: %v", err)
	}

	speed := config.DefaultTuning().Paddle.Speed
	deadline := time.After(2 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatalf("no update past the input")
		default:
		}
		var st network.GameStateMessage
		if err := json.Unmarshal(waitFor(t, a, network.MsgTypeGameUpdate), &st); err != nil {
			t.Fatalf("decode update: %v", err)
		}
		if st.Timestamp <= at+50 {
			continue
		}
		if st.Timestamp > at+400 {
			t.Fatalf("updates skipped past the check window: %v", st.Timestamp)
		}
		// Player 1's right is +x; the paddle moves from T on and never stops.
		want := speed * (st.Timestamp - at) / 1000
		if math.Abs(st.P1.Pos.X-want) > 1e-3 {
			t.Fatalf("p1 x = %v at %vms, want %v", st.P1.Pos.X, st.Timestamp, want)
		}
		break
	}

	info, err := s.Info()
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	if info.Violations != [2]int{1, 0} {
		t.Fatalf("violations = %v", info.Violations)
	}
}

func TestInputGuardRejects(t *testing.T) {
	g := NewInputGuard()
	now := time.Second
	last := 900 * time.Millisecond

	tests := []struct {
		ts   time.Duration
		want ValidationResult
	}{
		{950 * time.Millisecond, ValidationValid},
		{now + config.MaxInputLead + time.Millisecond, ValidationTooEarly},
		{last, ValidationTooLate},
	}
	for _, tt := range tests {
		if got := g.Validate(Side1, InputEvent{Timestamp: tt.ts}, now, last); got != tt.want {
			t.Errorf("ts %v: got %s, want %s", tt.ts, got, tt.want)
		}
	}

	g.ResetTick()
	for i := 0; i < config.MaxInputsPerTick; i++ {
		g.Validate(Side2, InputEvent{Timestamp: now}, now, last)
	}
	if got := g.Validate(Side2, InputEvent{Timestamp: now}, now, last); got != ValidationIgnoreInput {
		t.Fatalf("flood not limited: %s", got)
	}
	if g.Violations(Side1) != 2 || g.Violations(Side2) != 1 {
		t.Fatalf("violations = %d/%d", g.Violations(Side1), g.Violations(Side2))
	}
}
