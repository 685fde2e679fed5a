// Package matchmaker pairs queued players into sessions and keeps the
// registry of running sessions.
package matchmaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pong/server/config"
	"github.com/pong/server/internal/game"
	"github.com/pong/server/internal/network"
	"github.com/pong/server/internal/report"
)

// ReportTimeout bounds the delivery of one match result.
const ReportTimeout = 10 * time.Second

var (
	ErrPlayerBusy      = errors.New("player already in a session")
	ErrSessionExists   = errors.New("session id already in use")
	ErrManagerClosed   = errors.New("session manager is shut down")
	ErrSamePlayerTwice = errors.New("a player cannot face themselves")
)

type queued struct {
	userID string
	conn   game.PlayerConnection
}

// SessionManager owns every session of the server. Its registry is the only
// state shared between sessions.
type SessionManager struct {
	mu       sync.RWMutex
	tuning   config.Tuning
	reporter report.Reporter

	queue    []queued
	sessions map[string]*game.Session
	byPlayer map[string]*game.Session

	created  uint64
	finished uint64
	closed   bool

	pending sync.WaitGroup // sessions whose result is not reported yet
}

// NewSessionManager creates a manager running matches with tuning. reporter
// may be nil.
func NewSessionManager(tuning config.Tuning, reporter report.Reporter) *SessionManager {
	return &SessionManager{
		tuning:   tuning,
		reporter: reporter,
		sessions: make(map[string]*game.Session),
		byPlayer: make(map[string]*game.Session),
	}
}

// Join brings a connection in: back into its session if the player has one,
// otherwise into the queue. A second queued connection for the same player
// replaces the first.
func (m *SessionManager) Join(userID string, conn game.PlayerConnection) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrManagerClosed
	}
	if s, ok := m.byPlayer[userID]; ok {
		m.mu.Unlock()
		err := s.Connect(userID, conn)
		if !errors.Is(err, game.ErrSessionClosed) {
			return err
		}
		// The session ended before its close callback ran.
		m.mu.Lock()
		if m.byPlayer[userID] == s {
			delete(m.byPlayer, userID)
		}
		m.mu.Unlock()
		return m.Join(userID, conn)
	}

	var replaced game.PlayerConnection
	for i, q := range m.queue {
		if q.userID == userID {
			replaced = q.conn
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			break
		}
	}
	m.queue = append(m.queue, queued{userID: userID, conn: conn})
	position := len(m.queue)

	var pair []queued
	if len(m.queue) >= 2 {
		pair = []queued{m.queue[0], m.queue[1]}
		m.queue = m.queue[2:]
	}
	m.mu.Unlock()

	if replaced != nil && replaced != conn {
		replaced.Send(replaced.Protocol().EncodeError(network.ErrorCodeReplaced, "connected from another client"))
		replaced.Close()
	}
	if pair == nil {
		conn.Send(conn.Protocol().EncodeQueued(position))
		log.Debugf("Player %s queued at position %d", userID, position)
		return nil
	}
	return m.pair(pair[0], pair[1])
}

func (m *SessionManager) pair(a, b queued) error {
	s, err := m.CreateSession(uuid.NewString(), a.userID, b.userID)
	if err != nil {
		return err
	}
	for _, q := range []queued{a, b} {
		if err := s.Connect(q.userID, q.conn); err != nil {
			return fmt.Errorf("connect %s to %s: %w", q.userID, s.ID, err)
		}
	}
	return nil
}

// CreateSession starts a session for two players chosen by an outside
// matchmaker. The players then connect with Join.
func (m *SessionManager) CreateSession(id, playerA, playerB string) (*game.Session, error) {
	if playerA == playerB {
		return nil, ErrSamePlayerTwice
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrManagerClosed
	}
	if _, ok := m.sessions[id]; ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionExists, id)
	}
	for _, p := range []string{playerA, playerB} {
		if _, ok := m.byPlayer[p]; ok {
			return nil, fmt.Errorf("%w: %s", ErrPlayerBusy, p)
		}
	}

	s := game.NewSession(id, playerA, playerB, m.tuning, m.sessionClosed)
	m.sessions[id] = s
	m.byPlayer[playerA] = s
	m.byPlayer[playerB] = s
	m.created++
	m.pending.Add(1)
	s.Start()

	log.Infof("Session %s created: %s vs %s", id, playerA, playerB)
	return s, nil
}

// sessionClosed runs on the session goroutine once the session is disposed.
func (m *SessionManager) sessionClosed(res game.Result) {
	m.mu.Lock()
	if s, ok := m.sessions[res.SessionID]; ok {
		delete(m.sessions, res.SessionID)
		for _, p := range res.Players {
			if m.byPlayer[p] == s {
				delete(m.byPlayer, p)
			}
		}
	}
	m.finished++
	m.mu.Unlock()

	go func() {
		defer m.pending.Done()
		if m.reporter == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), ReportTimeout)
		defer cancel()
		if err := m.reporter.Report(ctx, toReport(res)); err != nil {
			log.Errorf("Failed to report match %s: %v", res.SessionID, err)
		}
	}()
}

func toReport(res game.Result) report.MatchResult {
	return report.MatchResult{
		GameID:    res.SessionID,
		Players:   res.Players,
		Scores:    res.Scores,
		Winner:    res.Winner,
		Reason:    string(res.Reason),
		StartedAt: res.StartedAt,
		EndedAt:   res.EndedAt,
	}
}

// Leave handles a closed connection. Queued players leave the queue; players
// in a session start its grace period. Stale connections are ignored.
func (m *SessionManager) Leave(userID string, conn game.PlayerConnection) {
	m.mu.Lock()
	for i, q := range m.queue {
		if q.userID == userID && q.conn == conn {
			m.queue = append(m.queue[:i], m.queue[i+1:]...)
			m.mu.Unlock()
			log.Debugf("Player %s left the queue", userID)
			return
		}
	}
	s, ok := m.byPlayer[userID]
	m.mu.Unlock()

	if ok {
		s.Disconnect(userID, conn)
	}
}

// Input forwards a client input to the player's session.
func (m *SessionManager) Input(userID string, msg network.InputMessage) error {
	s, ok := m.SessionOf(userID)
	if !ok {
		return game.ErrSessionNotFound
	}
	return s.Input(userID, msg)
}

// Ping answers a ping, with the match time when the player is in a session.
func (m *SessionManager) Ping(userID string, conn game.PlayerConnection, timestamp float64) {
	if s, ok := m.SessionOf(userID); ok && s.Ping(conn, timestamp) == nil {
		return
	}
	conn.Send(conn.Protocol().EncodePong(timestamp, 0))
}

// SessionOf returns the session userID plays in.
func (m *SessionManager) SessionOf(userID string) (*game.Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.byPlayer[userID]
	return s, ok
}

// Session returns a session by id.
func (m *SessionManager) Session(id string) (*game.Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Sessions describes every running session.
func (m *SessionManager) Sessions() []game.SessionInfo {
	m.mu.RLock()
	list := make([]*game.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		list = append(list, s)
	}
	m.mu.RUnlock()

	infos := make([]game.SessionInfo, 0, len(list))
	for _, s := range list {
		info, err := s.Info()
		if err != nil {
			continue // ended meanwhile
		}
		infos = append(infos, info)
	}
	return infos
}

// Stats returns manager statistics
func (m *SessionManager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Stats{
		ActiveSessions:  len(m.sessions),
		QueuedPlayers:   len(m.queue),
		PlayersInGame:   len(m.byPlayer),
		SessionsCreated: m.created,
		SessionsEnded:   m.finished,
	}
}

// Stats contains session manager statistics
type Stats struct {
	ActiveSessions  int    `json:"activeSessions"`
	QueuedPlayers   int    `json:"queuedPlayers"`
	PlayersInGame   int    `json:"playersInGame"`
	SessionsCreated uint64 `json:"sessionsCreated"`
	SessionsEnded   uint64 `json:"sessionsEnded"`
}

// Shutdown ends every session and waits for their results to be reported.
func (m *SessionManager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	list := make([]*game.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		list = append(list, s)
	}
	queue := m.queue
	m.queue = nil
	m.mu.Unlock()

	for _, q := range queue {
		q.conn.Close()
	}
	for _, s := range list {
		s.Stop(game.ReasonShutdown)
	}

	done := make(chan struct{})
	go func() {
		m.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		log.Infof("All %d sessions stopped", len(list))
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for match reports: %w", ctx.Err())
	}
}
