package main

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"rotateio-server/internal/protocol"
	"rotateio-server/internal/sim"
)

const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	maxMessageSize    = 4096
	sendBufSize       = 256
	maxMessagesPerSec = 50
	maxNameLen        = 16
)

// Client represents an authenticated WebSocket connection. Its id is the
// connection id and becomes the player id when it joins a match.
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	id         string
	claims     *Claims
	binary     bool
	remoteAddr string
	log        zerolog.Logger
	matchID    string
	msgCount   int
	msgResetAt time.Time
}

// NewClient creates a new Client
func NewClient(hub *Hub, conn *websocket.Conn, claims *Claims, remoteAddr string, binary bool) *Client {
	id := uuid.NewString()
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, sendBufSize),
		id:         id,
		claims:     claims,
		binary:     binary,
		remoteAddr: remoteAddr,
		log:        hub.log.With().Str("conn", id).Str("account", claims.Subject).Logger(),
	}
}

// ReadPump reads messages from the WebSocket connection
func (c *Client) ReadPump() {
	defer func() {
		c.hub.TrackDisconnect(c.remoteAddr)
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug().Err(err).Msg("ws error")
			}
			break
		}

		// Rate limiting
		now := time.Now()
		if now.After(c.msgResetAt) {
			c.msgCount = 0
			c.msgResetAt = now.Add(time.Second)
		}
		c.msgCount++
		if c.msgCount > maxMessagesPerSec {
			c.log.Warn().Str("ip", c.remoteAddr).Msg("rate limit exceeded, disconnecting")
			break
		}

		c.handleMessage(message)
	}
}

// WritePump writes messages to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			var err error
			if len(message) > 0 && message[0] == protocol.BinaryMarker {
				err = c.conn.WriteMessage(websocket.BinaryMessage, message[1:])
			} else {
				err = c.conn.WriteMessage(websocket.TextMessage, message)
			}
			if err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// SendJSON sends a JSON message to the client
func (c *Client) SendJSON(msg any) bool {
	data, err := json.Marshal(msg)
	if err != nil {
		c.log.Error().Err(err).Msg("marshal")
		return false
	}
	return c.SendRaw(data)
}

// SendRaw queues pre-marshaled bytes as a text message. A full queue drops
// the frame; a closed one (the client is gone) is recovered.
func (c *Client) SendRaw(data []byte) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// SendBinary queues pre-marshaled bytes as a binary WebSocket message,
// prefixed with the marker byte so WritePump can tell it from text
func (c *Client) SendBinary(data []byte) bool {
	msg := make([]byte, len(data)+1)
	msg[0] = protocol.BinaryMarker
	copy(msg[1:], data)
	return c.SendRaw(msg)
}

// WantsBinary reports whether snapshots go out as msgpack
func (c *Client) WantsBinary() bool { return c.binary }

func (c *Client) sendError(msg string) {
	c.SendJSON(protocol.Envelope{T: protocol.MsgError, Data: protocol.ErrorMsg{Msg: msg}})
}

// handleMessage routes incoming messages (single-pass decode via InEnvelope)
func (c *Client) handleMessage(raw []byte) {
	var env protocol.InEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.log.Debug().Err(err).Msg("unmarshal")
		return
	}

	switch env.T {
	case protocol.MsgJoin:
		c.handleJoin(env.D)
	case protocol.MsgLeave:
		c.handleLeave()
	case protocol.MsgMove:
		c.handleMove(env.D)
	case protocol.MsgShoot:
		if m, ok := c.match(); ok {
			m.Shoot(c.id)
		}
	case protocol.MsgUseAbility:
		c.handleAbility(env.D)
	case protocol.MsgBuyWeapon:
		c.handleBuy(env.D)
	}
}

func (c *Client) match() (*Match, bool) {
	if c.matchID == "" {
		return nil, false
	}
	return c.hub.registry.Get(c.matchID)
}

func (c *Client) handleJoin(data json.RawMessage) {
	var msg protocol.JoinMsg
	if len(data) > 0 {
		if err := json.Unmarshal(data, &msg); err != nil {
			return
		}
	}
	if c.matchID != "" {
		c.handleLeave()
	}

	m, ok := c.hub.registry.Get(msg.MatchID)
	if !ok {
		c.sendError("match not found")
		return
	}

	name := displayName(msg.Name, c.claims.Name)
	spec := sim.JoinSpec{ID: c.id, AccountID: c.claims.Subject, Name: name}
	if err := m.Join(spec, c); err != nil {
		c.sendError(err.Error())
		return
	}
	c.matchID = m.ID()
}

// displayName picks the requested name, then the account name, then a
// placeholder, cut to maxNameLen runes
func displayName(requested, account string) string {
	name := strings.TrimSpace(requested)
	if name == "" {
		name = account
	}
	if name == "" {
		name = "Player"
	}
	if r := []rune(name); len(r) > maxNameLen {
		name = string(r[:maxNameLen])
	}
	return name
}

func (c *Client) handleLeave() {
	if c.matchID == "" {
		return
	}
	c.hub.registry.RemovePlayer(c.matchID, c.id)
	c.matchID = ""
}

func (c *Client) handleMove(data json.RawMessage) {
	m, ok := c.match()
	if !ok {
		return
	}
	var msg protocol.MoveMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	m.Move(c.id, msg)
}

func (c *Client) handleAbility(data json.RawMessage) {
	m, ok := c.match()
	if !ok {
		return
	}
	var msg protocol.AbilityMsg
	if len(data) > 0 {
		if err := json.Unmarshal(data, &msg); err != nil {
			return
		}
	}
	m.UseAbility(c.id, msg)
}

func (c *Client) handleBuy(data json.RawMessage) {
	m, ok := c.match()
	if !ok {
		return
	}
	var msg protocol.BuyWeaponMsg
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	m.BuyWeapon(c.id, msg.Weapon)
}
