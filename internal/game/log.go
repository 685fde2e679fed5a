package game

import "github.com/decred/slog"

// log is disabled until UseLogger is called.
var log = slog.Disabled

// UseLogger sets the logger used by the game package.
func UseLogger(logger slog.Logger) {
	log = logger
}
