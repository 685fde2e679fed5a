package report

import (
	"context"
	"errors"
	"testing"
	"time"
)

type recorder struct {
	got []MatchResult
	err error
}

func (r *recorder) Report(_ context.Context, m MatchResult) error {
	r.got = append(r.got, m)
	return r.err
}

func result() MatchResult {
	now := time.Now()
	return MatchResult{
		GameID:    "g1",
		Players:   [2]string{"alice", "bob"},
		Scores:    [2]int{5, 3},
		Winner:    "alice",
		Reason:    "score",
		StartedAt: now.Add(-time.Minute),
		EndedAt:   now,
	}
}

func TestMultiReportsToAll(t *testing.T) {
	boom := errors.New("boom")
	a, b, c := &recorder{}, &recorder{err: boom}, &recorder{}
	err := Multi{a, b, LogReporter{}, c}.Report(context.Background(), result())
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if len(a.got) != 1 || len(b.got) != 1 || len(c.got) != 1 {
		t.Fatalf("not every reporter was called: %d %d %d", len(a.got), len(b.got), len(c.got))
	}
}

func TestMultiRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		edit func(*MatchResult)
		want error
	}{
		{"no id", func(r *MatchResult) { r.GameID = "" }, ErrMissingGameID},
		{"no player", func(r *MatchResult) { r.Players[1] = "" }, ErrMissingPlayer},
		{"stranger wins", func(r *MatchResult) { r.Winner = "carol" }, ErrUnknownWinner},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &recorder{}
			r := result()
			tt.edit(&r)
			if err := (Multi{rec}).Report(context.Background(), r); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if len(rec.got) != 0 {
				t.Fatalf("invalid result was reported")
			}
		})
	}
}

func TestDrawIsValid(t *testing.T) {
	r := result()
	r.Winner = ""
	r.Scores = [2]int{2, 2}
	if err := r.Validate(); err != nil {
		t.Fatalf("draw rejected: %v", err)
	}
}
