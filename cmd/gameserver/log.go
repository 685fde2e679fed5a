package main

import (
	"fmt"
	"os"

	"github.com/decred/slog"

	"github.com/pong/server/internal/game"
	"github.com/pong/server/internal/matchmaker"
	"github.com/pong/server/internal/network"
	"github.com/pong/server/internal/report"
)

var (
	backend = slog.NewBackend(os.Stdout)

	log = backend.Logger("SRVR")

	subsystemLoggers = map[string]slog.Logger{
		"SRVR": log,
		"GAME": backend.Logger("GAME"),
		"MTCH": backend.Logger("MTCH"),
		"NETW": backend.Logger("NETW"),
		"RPRT": backend.Logger("RPRT"),
	}
)

func init() {
	game.UseLogger(subsystemLoggers["GAME"])
	matchmaker.UseLogger(subsystemLoggers["MTCH"])
	network.UseLogger(subsystemLoggers["NETW"])
	report.UseLogger(subsystemLoggers["RPRT"])
}

// setLogLevels sets every subsystem to level (trace, debug, info, warn,
// error, critical, off).
func setLogLevels(level string) error {
	lvl, ok := slog.LevelFromString(level)
	if !ok {
		return fmt.Errorf("invalid log level %q", level)
	}
	for _, logger := range subsystemLoggers {
		logger.SetLevel(lvl)
	}
	return nil
}
