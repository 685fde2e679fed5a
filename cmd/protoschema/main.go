// Command protoschema writes JSON schemas for the client protocol payloads so
// clients can validate what they send and receive.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/invopop/jsonschema"

	"github.com/pong/server/internal/network"
)

type payload struct {
	msgType     string
	description string
	value       interface{}
}

var payloads = []payload{
	{network.MsgTypeInput, "Paddle input sent by a player.", new(network.InputMessage)},
	{network.MsgTypePing, "Latency check sent by a player.", new(network.PingMessage)},
	{network.MsgTypePong, "Reply to a ping.", new(network.PongMessage)},
	{network.MsgTypeConnection, "First message on every connection.", new(network.ConnectionMessage)},
	{network.MsgTypeQueued, "The player is waiting for an opponent.", new(network.QueuedMessage)},
	{network.MsgTypeGameCreated, "Session created, sent to the first player to connect.", new(network.GameMessage)},
	{network.MsgTypeGameJoined, "Player joined an existing session.", new(network.GameMessage)},
	{network.MsgTypeGameStarted, "Both players connected and play started.", new(network.GameMessage)},
	{network.MsgTypeGameStopped, "Play paused.", new(network.GameMessage)},
	{network.MsgTypePlayerDisconnected, "A player left; the match ends unless they return in time.", new(network.PlayerDisconnectedMessage)},
	{network.MsgTypeGameEnded, "Final result of the match.", new(network.GameEndedMessage)},
	{network.MsgTypeGameUpdate, "Authoritative state of one frame.", new(network.GameStateMessage)},
	{network.MsgTypeError, "Request failed.", new(network.ErrorMessage)},
}

func main() {
	var outDir string
	flag.StringVar(&outDir, "out", "", "directory to write the JSON schemas to")
	flag.Parse()

	if outDir == "" {
		fmt.Fprintln(os.Stderr, "--out is required")
		os.Exit(1)
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "create schema directory: %v\n", err)
		os.Exit(1)
	}

	for _, p := range payloads {
		path := filepath.Join(outDir, p.msgType+".schema.json")
		if err := writeSchema(path, buildSchema(p)); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write %s: %v\n", path, err)
			os.Exit(1)
		}
	}

	if err := writeSchema(filepath.Join(outDir, "envelope.schema.json"), envelopeSchema()); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write envelope schema: %v\n", err)
		os.Exit(1)
	}
}

func buildSchema(p payload) *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: true,
	}
	schema := reflector.Reflect(p.value)
	schema.Title = p.msgType
	schema.Description = p.description
	return schema
}

// envelopeSchema restricts the envelope type to the known message types.
func envelopeSchema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: true,
		DoNotReference:            true,
	}
	schema := reflector.Reflect(new(network.Envelope))
	schema.Title = "Pong Message Envelope"
	schema.Description = "Every frame in either direction is an envelope carrying a typed payload."

	if v, ok := schema.Properties.Get("type"); ok {
		prop := v.(*jsonschema.Schema)
		for _, p := range payloads {
			prop.Enum = append(prop.Enum, p.msgType)
		}
	}
	return schema
}

func writeSchema(outPath string, schema *jsonschema.Schema) error {
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}

	tmpPath := outPath + ".tmp"
	if err := os.WriteFile(tmpPath, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write temp schema: %w", err)
	}
	if err := os.Rename(tmpPath, outPath); err != nil {
		return fmt.Errorf("replace schema: %w", err)
	}
	return nil
}
