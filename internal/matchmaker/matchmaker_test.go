package matchmaker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/pong/server/config"
	"github.com/pong/server/internal/game"
	"github.com/pong/server/internal/network"
	"github.com/pong/server/internal/report"
)

type fakeConn struct {
	sendCh chan []byte
	closed chan struct{}
	proto  *network.Protocol
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		sendCh: make(chan []byte, 1024),
		closed: make(chan struct{}, 1),
		proto:  network.NewProtocol(network.CodecJSON),
	}
}

func (f *fakeConn) Send(b []byte) error {
	select {
	case f.sendCh <- append([]byte(nil), b...):
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

func (f *fakeConn) RemoteAddr() string          { return "fake" }
func (f *fakeConn) Protocol() *network.Protocol { return f.proto }

func waitFor(t *testing.T, fc *fakeConn, msgType string) {
	t.Helper()
	timeout := time.After(time.Second)
	for {
		select {
		case b := <-fc.sendCh:
			var env struct {
				Type string `json:"type"`
			}
			if err := json.Unmarshal(b, &env); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if env.Type == msgType {
				return
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", msgType)
		}
	}
}

type chanReporter chan report.MatchResult

func (c chanReporter) Report(_ context.Context, r report.MatchResult) error {
	c <- r
	return nil
}

func newManager(t *testing.T, grace time.Duration) (*SessionManager, chanReporter) {
	t.Helper()
	tun := config.DefaultTuning()
	tun.Match.GracePeriod = config.Duration{Duration: grace}
	rep := make(chanReporter, 4)
	m := NewSessionManager(tun, rep)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		m.Shutdown(ctx)
	})
	return m, rep
}

func TestQueuePairsTwoPlayers(t *testing.T) {
	m, _ := newManager(t, time.Second)
	a, b := newFakeConn(), newFakeConn()

	if err := m.Join("alice", a); err != nil {
		t.Fatalf("join alice: %v", err)
	}
	waitFor(t, a, network.MsgTypeQueued)
	if st := m.Stats(); st.QueuedPlayers != 1 || st.ActiveSessions != 0 {
		t.Fatalf("stats = %+v", st)
	}

	if err := m.Join("bob", b); err != nil {
		t.Fatalf("join bob: %v", err)
	}
	waitFor(t, a, network.MsgTypeGameCreated)
	waitFor(t, b, network.MsgTypeGameCreated)
	waitFor(t, a, network.MsgTypeGameStarted)

	st := m.Stats()
	if st.QueuedPlayers != 0 || st.ActiveSessions != 1 || st.PlayersInGame != 2 {
		t.Fatalf("stats = %+v", st)
	}
	sa, _ := m.SessionOf("alice")
	sb, _ := m.SessionOf("bob")
	if sa == nil || sa != sb {
		t.Fatalf("players not indexed to the same session")
	}
	if infos := m.Sessions(); len(infos) != 1 || infos[0].State != game.StatePlaying {
		t.Fatalf("sessions = %+v", infos)
	}
	if err := m.Input("alice", network.InputMessage{Direction: "left"}); err != nil {
		t.Fatalf("input: %v", err)
	}
}

func TestDuplicateQueueEntryReplacesOlder(t *testing.T) {
	m, _ := newManager(t, time.Second)
	old, fresh := newFakeConn(), newFakeConn()
	m.Join("alice", old)
	m.Join("alice", fresh)

	waitFor(t, old, network.MsgTypeError)
	select {
	case <-old.closed:
	case <-time.After(time.Second):
		t.Fatalf("older connection not closed")
	}
	if st := m.Stats(); st.QueuedPlayers != 1 {
		t.Fatalf("queued = %d, want 1", st.QueuedPlayers)
	}

	// The replaced connection going away leaves the queue untouched.
	m.Leave("alice", old)
	if st := m.Stats(); st.QueuedPlayers != 1 {
		t.Fatalf("stale leave removed the entry")
	}
	m.Leave("alice", fresh)
	if st := m.Stats(); st.QueuedPlayers != 0 {
		t.Fatalf("leave did not remove the entry")
	}
}

func TestSessionEndIsReported(t *testing.T) {
	m, rep := newManager(t, 50*time.Millisecond)
	a, b := newFakeConn(), newFakeConn()
	m.Join("alice", a)
	m.Join("bob", b)
	waitFor(t, a, network.MsgTypeGameStarted)

	m.Leave("bob", b)
	waitFor(t, a, network.MsgTypePlayerDisconnected)

	select {
	case r := <-rep:
		if r.Reason != string(game.ReasonForfeit) || r.Winner != "alice" {
			t.Fatalf("result = %+v", r)
		}
	case <-time.After(time.Second):
		t.Fatalf("no match result reported")
	}
	if _, ok := m.SessionOf("alice"); ok {
		t.Fatalf("player mapping not removed")
	}
	if st := m.Stats(); st.ActiveSessions != 0 || st.SessionsEnded != 1 {
		t.Fatalf("stats = %+v", st)
	}
	if err := m.Input("alice", network.InputMessage{Direction: "left"}); !errors.Is(err, game.ErrSessionNotFound) {
		t.Fatalf("input after end: %v", err)
	}
}

func TestReconnectThroughJoin(t *testing.T) {
	m, _ := newManager(t, time.Second)
	a, b := newFakeConn(), newFakeConn()
	m.Join("alice", a)
	m.Join("bob", b)
	waitFor(t, a, network.MsgTypeGameStarted)

	m.Leave("alice", a)
	waitFor(t, b, network.MsgTypeGameStopped)

	a2 := newFakeConn()
	if err := m.Join("alice", a2); err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	waitFor(t, a2, network.MsgTypeGameJoined)
	waitFor(t, b, network.MsgTypeGameStarted)
}

func TestCreateSessionRejectsBusyPlayer(t *testing.T) {
	m, _ := newManager(t, time.Second)
	if _, err := m.CreateSession("g1", "alice", "bob"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := m.CreateSession("g2", "alice", "carol"); !errors.Is(err, ErrPlayerBusy) {
		t.Fatalf("err = %v, want ErrPlayerBusy", err)
	}
	if _, err := m.CreateSession("g1", "dave", "erin"); !errors.Is(err, ErrSessionExists) {
		t.Fatalf("err = %v, want ErrSessionExists", err)
	}
	if _, err := m.CreateSession("g3", "frank", "frank"); !errors.Is(err, ErrSamePlayerTwice) {
		t.Fatalf("err = %v, want ErrSamePlayerTwice", err)
	}
}

func TestShutdownReportsEverySession(t *testing.T) {
	m, rep := newManager(t, time.Second)
	m.CreateSession("g1", "alice", "bob")
	m.CreateSession("g2", "carol", "dave")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := m.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	for i := 0; i < 2; i++ {
		select {
		case r := <-rep:
			if r.Reason != string(game.ReasonShutdown) {
				t.Fatalf("reason = %s", r.Reason)
			}
		default:
			t.Fatalf("missing report %d", i)
		}
	}
	if err := m.Join("erin", newFakeConn()); !errors.Is(err, ErrManagerClosed) {
		t.Fatalf("join after shutdown: %v", err)
	}
}
