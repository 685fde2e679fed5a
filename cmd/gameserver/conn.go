package main

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pong/server/config"
	"github.com/pong/server/internal/network"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 1024
)

var errConnClosed = errors.New("connection closed")

// ClientConnection is one websocket client. Each has a read pump and a write
// pump goroutine.
type ClientConnection struct {
	ws       *websocket.Conn
	server   *GameServer
	userID   string
	proto    *network.Protocol
	sendChan chan []byte
	done     chan struct{}

	closeOnce   sync.Once
	cleanupOnce sync.Once
}

func newClientConnection(ws *websocket.Conn, s *GameServer, userID string, proto *network.Protocol) *ClientConnection {
	return &ClientConnection{
		ws:       ws,
		server:   s,
		userID:   userID,
		proto:    proto,
		sendChan: make(chan []byte, config.ClientSendSize),
		done:     make(chan struct{}),
	}
}

// Send queues data for the client. It never blocks: when the buffer is full
// the frame is dropped and the client catches up on the next update.
func (c *ClientConnection) Send(data []byte) error {
	if data == nil {
		return nil
	}
	select {
	case <-c.done:
		return errConnClosed
	default:
	}
	select {
	case c.sendChan <- data:
	default:
	}
	return nil
}

// Close shuts the connection down. Safe to call multiple times.
func (c *ClientConnection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.ws.Close()
	})
	return err
}

// RemoteAddr returns the client's address for logging.
func (c *ClientConnection) RemoteAddr() string {
	return c.ws.RemoteAddr().String()
}

// Protocol returns the codec the client negotiated.
func (c *ClientConnection) Protocol() *network.Protocol {
	return c.proto
}

// frameType is the websocket frame that carries the negotiated codec.
func (c *ClientConnection) frameType() int {
	if c.proto.Codec().Binary() {
		return websocket.BinaryMessage
	}
	return websocket.TextMessage
}

func (c *ClientConnection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer c.cleanup()

	frameType := c.frameType()
	for {
		select {
		case <-c.done:
			return

		case message := <-c.sendChan:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(frameType, message); err != nil {
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *ClientConnection) readPump() {
	defer c.cleanup()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Debugf("Read error from %s: %v", c.userID, err)
			}
			return
		}
		c.handleMessage(message)
	}
}

func (c *ClientConnection) handleMessage(data []byte) {
	msg, err := c.proto.Decode(data)
	if err != nil {
		c.Send(c.proto.EncodeError(network.ErrorCodeInvalidMessage, err.Error()))
		return
	}

	mgr := c.server.manager
	switch msg.Type {
	case network.MsgTypeInput:
		in, err := c.proto.DecodeInput(msg)
		if err != nil {
			c.Send(c.proto.EncodeError(network.ErrorCodeInvalidMessage, err.Error()))
			return
		}
		// Input outside a match is ignored.
		mgr.Input(c.userID, *in)

	case network.MsgTypePing:
		ping, err := c.proto.DecodePing(msg)
		if err != nil {
			return
		}
		mgr.Ping(c.userID, c, ping.Timestamp)

	default:
		c.Send(c.proto.EncodeError(network.ErrorCodeInvalidMessage, "unknown message type "+msg.Type))
	}
}

// cleanup leaves the queue or session and closes the socket.
func (c *ClientConnection) cleanup() {
	c.cleanupOnce.Do(func() {
		c.server.manager.Leave(c.userID, c)
		c.Close()
		log.Infof("Connection closed: %s (%s)", c.userID, c.RemoteAddr())
	})
}
