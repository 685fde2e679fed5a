// Package report delivers finished match results to the match history
// stores.
package report

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// MatchResult is the outcome of one match.
type MatchResult struct {
	GameID    string    `json:"gameId" bson:"game_id"`
	Players   [2]string `json:"players" bson:"players"`
	Scores    [2]int    `json:"scores" bson:"scores"`
	Winner    string    `json:"winner,omitempty" bson:"winner,omitempty"`
	Reason    string    `json:"reason" bson:"reason"`
	StartedAt time.Time `json:"startedAt" bson:"started_at"`
	EndedAt   time.Time `json:"endedAt" bson:"ended_at"`
}

// Validate rejects results that cannot be stored.
func (r MatchResult) Validate() error {
	switch {
	case r.GameID == "":
		return ErrMissingGameID
	case r.Players[0] == "" || r.Players[1] == "":
		return fmt.Errorf("%w: game %s", ErrMissingPlayer, r.GameID)
	case r.Winner != "" && r.Winner != r.Players[0] && r.Winner != r.Players[1]:
		return fmt.Errorf("%w: %s in game %s", ErrUnknownWinner, r.Winner, r.GameID)
	}
	return nil
}

var (
	ErrMissingGameID = errors.New("match result without game id")
	ErrMissingPlayer = errors.New("match result without both players")
	ErrUnknownWinner = errors.New("winner is not a player of the match")
)

// Reporter stores match results.
type Reporter interface {
	Report(ctx context.Context, r MatchResult) error
}

// LogReporter writes results to the log.
type LogReporter struct{}

// Report implements Reporter.
func (LogReporter) Report(_ context.Context, r MatchResult) error {
	winner := r.Winner
	if winner == "" {
		winner = "none"
	}
	log.Infof("Match %s ended (%s): %s %d - %d %s, winner %s, lasted %v",
		r.GameID, r.Reason, r.Players[0], r.Scores[0], r.Scores[1], r.Players[1],
		winner, r.EndedAt.Sub(r.StartedAt).Round(time.Second))
	return nil
}

// Multi fans a result out to several reporters. Every reporter is called even
// when an earlier one fails.
type Multi []Reporter

// Report implements Reporter.
func (m Multi) Report(ctx context.Context, r MatchResult) error {
	if err := r.Validate(); err != nil {
		return err
	}
	var errs []error
	for _, rep := range m {
		if err := rep.Report(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
