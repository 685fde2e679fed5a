package game

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pong/server/config"
	"github.com/pong/server/internal/clock"
	"github.com/pong/server/internal/geom"
	"github.com/pong/server/internal/network"
)

// SessionState is the lifecycle state of a session.
type SessionState int

const (
	StateWaiting SessionState = iota
	StatePlaying
	StateDisposed
)

func (s SessionState) String() string {
	switch s {
	case StateWaiting:
		return "waiting"
	case StatePlaying:
		return "playing"
	default:
		return "disposed"
	}
}

// EndReason says why a session was disposed.
type EndReason string

const (
	ReasonScore     EndReason = "score"     // a player reached the winning score
	ReasonForfeit   EndReason = "forfeit"   // one player never came back
	ReasonAbandoned EndReason = "abandoned" // nobody came back
	ReasonShutdown  EndReason = "shutdown"
)

// Result is delivered exactly once when a session ends.
type Result struct {
	SessionID string
	Players   [2]string
	Scores    [2]int
	Winner    string // empty on a draw
	Reason    EndReason
	StartedAt time.Time
	EndedAt   time.Time
}

// SessionInfo is a point-in-time view of a session.
type SessionInfo struct {
	ID        string
	State     SessionState
	Players   [2]string
	Connected [2]bool
	Scores    [2]int
	Ticks     uint64
	Stats     WorldStats
	// Violations counts rejected input events per side.
	Violations [2]int
}

// PlayerConnection is the transport a session talks to. Send must not block.
type PlayerConnection interface {
	Send(data []byte) error
	Close() error
	RemoteAddr() string
	Protocol() *network.Protocol
}

type seat struct {
	id      string
	conn    PlayerConnection
	joined  bool // connected at least once
	started bool
}

type connectCmd struct {
	side  Side
	conn  PlayerConnection
	reply chan error
}

type disconnectCmd struct {
	side Side
	conn PlayerConnection
}

type inputCmd struct {
	side Side
	msg  network.InputMessage
}

type pingCmd struct {
	conn      PlayerConnection
	timestamp float64
}

type graceCmd struct {
	gen uint64
}

type queryCmd struct {
	reply chan SessionInfo
}

type stopCmd struct {
	reason EndReason
}

// Session runs one match. All of its state is owned by a single goroutine
// fed through an inbox, so physics never runs concurrently with itself and
// callers never block on a tick.
type Session struct {
	ID string

	tuning  config.Tuning
	seats   [2]*seat
	world   *World
	inputs  *InputManager
	guard   *InputGuard
	truth   *TruthManager
	onClose func(Result)

	state      SessionState
	ticker     *time.Ticker
	graceTimer *time.Timer
	graceGen   uint64
	startedAt  time.Time

	inbox     chan interface{}
	done      chan struct{}
	running   atomic.Bool
	closeOnce sync.Once
}

// NewSession creates a waiting session for players id1 and id2. onClose is
// called once, from the session goroutine, when the session is disposed.
func NewSession(id, id1, id2 string, tuning config.Tuning, onClose func(Result)) *Session {
	clk := clock.New(nil)
	if err := clk.SetScale(tuning.Match.ClockScale); err != nil {
		log.Warnf("Session %s: %v, keeping scale 1", id, err)
	}
	world := NewWorld(tuning, clk, id1, id2)
	inputs := NewInputManager()

	s := &Session{
		ID:      id,
		tuning:  tuning,
		seats:   [2]*seat{{id: id1}, {id: id2}},
		world:   world,
		inputs:  inputs,
		guard:   NewInputGuard(),
		onClose: onClose,
		inbox:   make(chan interface{}, config.SessionInbox),
		done:    make(chan struct{}),
	}
	s.truth = NewTruthManager(world, inputs, s.broadcastState)
	return s
}

// Start launches the session goroutine. Players have one grace period to
// connect. Safe to call multiple times.
func (s *Session) Start() {
	if s.running.Swap(true) {
		return
	}
	s.startedAt = time.Now()
	s.startGraceTimer()
	go s.run()
	log.Infof("Session %s started (%s vs %s)", s.ID, s.seats[0].id, s.seats[1].id)
}

// Done is closed once the session is disposed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Players returns the user ids of both sides.
func (s *Session) Players() [2]string {
	return [2]string{s.seats[0].id, s.seats[1].id}
}

// SideOf returns the side userID plays on.
func (s *Session) SideOf(userID string) (Side, bool) {
	for i, st := range s.seats {
		if st.id == userID {
			return Side(i), true
		}
	}
	return 0, false
}

// Connect attaches conn as userID's connection, replacing any previous one.
func (s *Session) Connect(userID string, conn PlayerConnection) error {
	side, ok := s.SideOf(userID)
	if !ok {
		return ErrNotInSession
	}
	reply := make(chan error, 1)
	if err := s.post(connectCmd{side: side, conn: conn, reply: reply}); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-s.done:
		return ErrSessionClosed
	}
}

// Disconnect detaches conn. Disconnects of a connection that was already
// replaced are ignored.
func (s *Session) Disconnect(userID string, conn PlayerConnection) error {
	side, ok := s.SideOf(userID)
	if !ok {
		return ErrNotInSession
	}
	return s.post(disconnectCmd{side: side, conn: conn})
}

// Input queues a client input event. It never blocks: input arriving while
// the inbox is full is dropped.
func (s *Session) Input(userID string, msg network.InputMessage) error {
	side, ok := s.SideOf(userID)
	if !ok {
		return ErrNotInSession
	}
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}
	select {
	case s.inbox <- inputCmd{side: side, msg: msg}:
	default:
		log.Debugf("Session %s inbox full, dropping input from %s", s.ID, userID)
	}
	return nil
}

// Ping asks the session to answer conn with the match time.
func (s *Session) Ping(conn PlayerConnection, timestamp float64) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	case s.inbox <- pingCmd{conn: conn, timestamp: timestamp}:
		return nil
	default:
		return nil
	}
}

// Info returns a snapshot of the session state.
func (s *Session) Info() (SessionInfo, error) {
	reply := make(chan SessionInfo, 1)
	if err := s.post(queryCmd{reply: reply}); err != nil {
		return SessionInfo{}, err
	}
	select {
	case info := <-reply:
		return info, nil
	case <-s.done:
		return SessionInfo{}, ErrSessionClosed
	}
}

// Stop disposes the session and waits for it to finish.
func (s *Session) Stop(reason EndReason) {
	if s.post(stopCmd{reason: reason}) == nil {
		<-s.done
	}
}

// post delivers a lifecycle command, waiting for inbox space.
func (s *Session) post(cmd interface{}) error {
	if !s.running.Load() {
		return ErrSessionNotStarted
	}
	select {
	case <-s.done:
		return ErrSessionClosed
	case s.inbox <- cmd:
		return nil
	}
}

func (s *Session) run() {
	for {
		var tick <-chan time.Time
		if s.ticker != nil {
			tick = s.ticker.C
		}

		select {
		case cmd := <-s.inbox:
			s.handle(cmd)
		case <-tick:
			s.update()
		}

		if s.state == StateDisposed {
			return
		}
	}
}

func (s *Session) handle(cmd interface{}) {
	switch c := cmd.(type) {
	case connectCmd:
		c.reply <- s.connect(c.side, c.conn)
	case disconnectCmd:
		s.disconnect(c.side, c.conn)
	case inputCmd:
		s.input(c.side, c.msg)
	case pingCmd:
		c.conn.Send(c.conn.Protocol().EncodePong(c.timestamp, millis(s.world.clock.Now())))
	case graceCmd:
		if c.gen == s.graceGen && s.graceTimer != nil {
			s.graceExpired()
		}
	case queryCmd:
		c.reply <- s.info()
	case stopCmd:
		s.dispose(c.reason)
	}
}

func (s *Session) connect(side Side, conn PlayerConnection) error {
	st := s.seats[side]
	if st.conn != nil && st.conn != conn {
		log.Infof("Session %s: replacing connection of %s (%s)", s.ID, st.id, st.conn.RemoteAddr())
		p := st.conn.Protocol()
		st.conn.Send(p.EncodeError(network.ErrorCodeReplaced, "connected from another client"))
		st.conn.Close()
	}
	st.conn = conn
	p := conn.Protocol()

	if !st.joined {
		st.joined = true
		conn.Send(p.EncodeGame(network.MsgTypeGameCreated, network.GameMessage{
			GameID:   s.ID,
			Message:  fmt.Sprintf("Game %s created successfully! You are Player %d.", s.ID, side+1),
			Player:   int(side) + 1,
			Opponent: s.seats[side.Opponent()].id,
		}))
	} else {
		conn.Send(p.EncodeGame(network.MsgTypeGameJoined, network.GameMessage{
			GameID:   s.ID,
			Message:  fmt.Sprintf("Rejoined game %s as Player %d.", s.ID, side+1),
			Player:   int(side) + 1,
			Opponent: s.seats[side.Opponent()].id,
		}))
		if snap, ok := s.truth.Latest(); ok {
			conn.Send(p.EncodeGameState(toWire(snap)))
		}
	}
	log.Infof("Player %s connected to session %s as %s", st.id, s.ID, side)

	if s.seats[0].conn != nil && s.seats[1].conn != nil && s.state == StateWaiting {
		s.play()
	}
	return nil
}

func (s *Session) disconnect(side Side, conn PlayerConnection) {
	st := s.seats[side]
	if st.conn == nil || st.conn != conn {
		return
	}
	st.conn = nil
	log.Infof("Player %s disconnected from session %s", st.id, s.ID)

	if s.state == StatePlaying {
		s.pause()
		s.broadcast(func(p *network.Protocol) []byte {
			return p.EncodeGame(network.MsgTypeGameStopped, network.GameMessage{
				GameID:  s.ID,
				Message: fmt.Sprintf("Game %s stopped: waiting for %s to reconnect.", s.ID, st.id),
			})
		})
	}
	grace := s.tuning.Match.GracePeriod.Duration
	s.broadcast(func(p *network.Protocol) []byte {
		return p.EncodePlayerDisconnected(network.PlayerDisconnectedMessage{
			GameID:  s.ID,
			UserID:  st.id,
			Message: "A player has disconnected.",
			GraceMs: millis(grace),
		})
	})
	if s.graceTimer == nil {
		s.startGraceTimer()
	}
}

// play moves the session to playing and starts ticking.
func (s *Session) play() {
	s.stopGraceTimer()
	s.truth.Resume()

	first := !s.seats[0].started || !s.seats[1].started
	if first {
		s.seats[0].started, s.seats[1].started = true, true
		s.world.Serve(s.world.clock.Now())
	}

	s.state = StatePlaying
	s.ticker = time.NewTicker(time.Second / config.PollRate)
	s.broadcast(func(p *network.Protocol) []byte {
		return p.EncodeGame(network.MsgTypeGameStarted, network.GameMessage{
			GameID:  s.ID,
			Message: fmt.Sprintf("Game %s has started!", s.ID),
		})
	})
	log.Infof("Session %s playing", s.ID)
}

// pause stops ticking. Held keys are released so a paddle does not drift
// when the match resumes.
func (s *Session) pause() {
	s.stopTicker()
	s.state = StateWaiting
	for _, p := range s.world.players {
		p.Paddle.Stop()
	}
	s.inputs.Clear()
	log.Infof("Session %s waiting", s.ID)
}

func (s *Session) input(side Side, msg network.InputMessage) {
	if s.state != StatePlaying {
		return
	}
	dir, err := ParseDirection(msg.Direction)
	if err != nil {
		return
	}

	clk := s.world.clock
	e := InputEvent{Direction: dir, Simplified: msg.IsPressed == nil}
	if msg.IsPressed != nil {
		e.Pressed = *msg.IsPressed
	}
	if msg.Timestamp != nil {
		e.Timestamp = fromMillis(*msg.Timestamp)
	} else {
		clk.Update()
		e.Timestamp = clk.Now()
	}

	if res := s.guard.Validate(side, e, clk.Now(), s.truth.LastFrame()); res != ValidationValid {
		log.Tracef("Session %s: dropped input from %s: %s", s.ID, side, res)
		return
	}
	if !s.inputs.Record(side, e) {
		log.Tracef("Session %s: dropped out of order input from %s at %v", s.ID, side, e.Timestamp)
	}
}

func (s *Session) update() {
	events, ticked := s.truth.Update()
	if !ticked {
		return
	}
	s.guard.ResetTick()

	win := s.tuning.Match.WinningScore
	for _, ev := range events {
		if win > 0 && ev.Scores[ev.Scorer] >= win {
			s.dispose(ReasonScore)
			return
		}
	}
}

func (s *Session) graceExpired() {
	s.graceTimer = nil
	connected := 0
	for _, st := range s.seats {
		if st.conn != nil {
			connected++
		}
	}
	switch connected {
	case 2:
		return
	case 1:
		log.Infof("Session %s: grace period expired, forfeit", s.ID)
		s.dispose(ReasonForfeit)
	default:
		log.Infof("Session %s: grace period expired, abandoned", s.ID)
		s.dispose(ReasonAbandoned)
	}
}

// dispose tears the session down. The ticker goes first so no tick runs on a
// disposed world.
func (s *Session) dispose(reason EndReason) {
	if s.state == StateDisposed {
		return
	}
	s.stopTicker()
	s.stopGraceTimer()
	s.state = StateDisposed

	res := s.result(reason)
	s.broadcast(func(p *network.Protocol) []byte {
		return p.EncodeGameEnded(network.GameEndedMessage{
			GameID:  s.ID,
			Message: fmt.Sprintf("Game %s has ended.", s.ID),
			Scores:  res.Scores,
			Winner:  res.Winner,
			Reason:  string(res.Reason),
		})
	})

	s.world.Dispose()
	s.inputs.Clear()
	s.truth.History().Clear()

	s.closeOnce.Do(func() {
		close(s.done)
		if s.onClose != nil {
			s.onClose(res)
		}
	})
	log.Infof("Session %s ended (%s) %d-%d", s.ID, reason, res.Scores[0], res.Scores[1])
}

func (s *Session) result(reason EndReason) Result {
	res := Result{
		SessionID: s.ID,
		Players:   s.Players(),
		Scores:    s.world.Scores(),
		Reason:    reason,
		StartedAt: s.startedAt,
		EndedAt:   time.Now(),
	}
	switch reason {
	case ReasonForfeit:
		for _, st := range s.seats {
			if st.conn != nil {
				res.Winner = st.id
			}
		}
	default:
		if res.Scores[0] > res.Scores[1] {
			res.Winner = res.Players[0]
		} else if res.Scores[1] > res.Scores[0] {
			res.Winner = res.Players[1]
		}
	}
	return res
}

func (s *Session) info() SessionInfo {
	return SessionInfo{
		ID:        s.ID,
		State:     s.state,
		Players:   s.Players(),
		Connected: [2]bool{s.seats[0].conn != nil, s.seats[1].conn != nil},
		Scores:    s.world.Scores(),
		Ticks:     s.truth.Ticks(),
		Stats:     s.world.Stats(),
		Violations: [2]int{
			s.guard.Violations(Side1),
			s.guard.Violations(Side2),
		},
	}
}

func (s *Session) startGraceTimer() {
	s.graceGen++
	gen := s.graceGen
	s.graceTimer = time.AfterFunc(s.tuning.Match.GracePeriod.Duration, func() {
		select {
		case s.inbox <- graceCmd{gen: gen}:
		case <-s.done:
		}
	})
}

func (s *Session) stopGraceTimer() {
	if s.graceTimer != nil {
		s.graceTimer.Stop()
		s.graceTimer = nil
	}
	s.graceGen++
}

func (s *Session) stopTicker() {
	if s.ticker != nil {
		s.ticker.Stop()
		s.ticker = nil
	}
}

func (s *Session) broadcastState(snap Snapshot) {
	state := toWire(snap)
	s.broadcast(func(p *network.Protocol) []byte {
		return p.EncodeGameState(state)
	})
}

// broadcast sends a message to every connected player, encoding it once per
// codec.
func (s *Session) broadcast(encode func(p *network.Protocol) []byte) {
	var cache [2][]byte
	for _, st := range s.seats {
		if st.conn == nil {
			continue
		}
		p := st.conn.Protocol()
		c := p.Codec()
		if cache[c] == nil {
			cache[c] = encode(p)
		}
		if err := st.conn.Send(cache[c]); err != nil {
			log.Debugf("Failed to send to %s: %v", st.id, err)
		}
	}
}

func toWire(s Snapshot) network.GameStateMessage {
	return network.GameStateMessage{
		Timestamp: millis(s.Timestamp),
		P1:        network.PaddleState{Pos: wireVec(s.Paddles[0].Position), Dir: wireVec(s.Paddles[0].Direction)},
		P2:        network.PaddleState{Pos: wireVec(s.Paddles[1].Position), Dir: wireVec(s.Paddles[1].Direction)},
		Ball: network.BallState{
			Pos:   wireVec(s.Ball.Position),
			Dir:   wireVec(s.Ball.Direction),
			Speed: s.Ball.Speed,
		},
		Scores: s.Scores,
	}
}

func wireVec(v geom.Vec3) network.Vec3 {
	return network.Vec3{X: v.X(), Y: v.Y(), Z: v.Z()}
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func fromMillis(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}

// Error definitions
var (
	ErrSessionNotFound   = &SessionError{message: "session not found"}
	ErrSessionClosed     = &SessionError{message: "session closed"}
	ErrSessionNotStarted = &SessionError{message: "session not started"}
	ErrNotInSession      = &SessionError{message: "player not in session"}
)

// SessionError represents an error related to session operations.
type SessionError struct {
	message string
}

func (e *SessionError) Error() string {
	return e.message
}
