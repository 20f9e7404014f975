package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"rotateio-server/internal/bot"
	"rotateio-server/internal/protocol"
	"rotateio-server/internal/sim"
)

const (
	dialTimeout = 5 * time.Second
	writeWait   = 10 * time.Second
)

// ErrNoCredential is returned when no token is configured and guest play is off
var ErrNoCredential = errors.New("client: no credential and guest mode disabled")

// Config configures a Session
type Config struct {
	URL        string // ws://host/ws
	Token      string
	Guest      bool // play offline when Token is empty
	Name       string
	MatchID    string
	Binary     bool // ask for msgpack snapshots
	Mode       bot.Mode
	Difficulty bot.Difficulty
	Tick       time.Duration // offline tick
	Seed       uint64
}

// Session connects one player to the server and keeps a View current. Any
// connection failure degrades it to an Offline simulation.
type Session struct {
	cfg  Config
	log  zerolog.Logger
	view *View
	now  func() time.Time

	mu      sync.Mutex
	conn    *websocket.Conn
	offline *Offline
	ctx     context.Context
	done    chan struct{}
}

// NewSession returns an unstarted session
func NewSession(cfg Config, log zerolog.Logger) *Session {
	return &Session{
		cfg:  cfg,
		log:  log.With().Str("component", "session").Logger(),
		view: NewView(),
		now:  time.Now,
		done: make(chan struct{}),
	}
}

// View returns the reconciled render state
func (s *Session) View() *View { return s.view }

// Offline reports whether the session runs the local simulation
func (s *Session) Offline() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offline != nil
}

// Done is closed when the session stops for good
func (s *Session) Done() <-chan struct{} { return s.done }

// Start connects to the server, or activates the offline fallback when the
// token is missing in guest mode or the dial fails
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	if s.cfg.Token == "" {
		if !s.cfg.Guest {
			return ErrNoCredential
		}
		s.log.Info().Msg("no credential, playing offline")
		s.goOffline()
		return nil
	}

	conn, err := s.dial(ctx)
	if err != nil {
		s.log.Warn().Err(err).Str("url", s.cfg.URL).Msg("dial failed, playing offline")
		s.goOffline()
		return nil
	}
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	if err := s.send(protocol.MsgJoin, protocol.JoinMsg{MatchID: s.cfg.MatchID, Name: s.cfg.Name}); err != nil {
		conn.Close()
		s.log.Warn().Err(err).Msg("join failed, playing offline")
		s.goOffline()
		return nil
	}
	go s.readLoop(conn)
	go func() {
		<-ctx.Done()
		conn.Close()
	}()
	return nil
}

func (s *Session) dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(s.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if s.cfg.Binary {
		q := u.Query()
		q.Set("enc", "msgpack")
		u.RawQuery = q.Encode()
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+s.cfg.Token)

	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	conn, resp, err := dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %s: %w", u.Redacted(), resp.Status, err)
		}
		return nil, fmt.Errorf("dial %s: %w", u.Redacted(), err)
	}
	return conn, nil
}

func (s *Session) readLoop(conn *websocket.Conn) {
	defer conn.Close()
	for {
		msgType, raw, err := conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			ctx := s.ctx
			s.conn = nil
			s.mu.Unlock()
			if ctx.Err() != nil {
				close(s.done)
				return
			}
			s.log.Warn().Err(err).Msg("connection lost, playing offline")
			s.goOffline()
			return
		}
		if msgType == websocket.BinaryMessage {
			var update protocol.GameUpdate
			if err := protocol.DecodeBinary(raw, &update); err != nil {
				s.log.Debug().Err(err).Msg("bad binary frame")
				continue
			}
			s.applyUpdate(update)
			continue
		}
		s.handle(raw)
	}
}

// handle applies one JSON server message to the view
func (s *Session) handle(raw []byte) {
	var env protocol.InEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		s.log.Debug().Err(err).Msg("bad frame")
		return
	}
	switch env.T {
	case protocol.MsgInit:
		var msg protocol.InitMsg
		if decode(env.D, &msg) {
			s.view.ApplyInit(msg)
		}
	case protocol.MsgGameUpdate:
		var msg protocol.GameUpdate
		if decode(env.D, &msg) {
			s.applyUpdate(msg)
		}
	case protocol.MsgPlayerJoined:
		var p sim.PlayerState
		if decode(env.D, &p) {
			s.view.ApplyJoined(p)
		}
	case protocol.MsgPlayerLeft:
		var msg protocol.PlayerLeftMsg
		if decode(env.D, &msg) {
			s.view.ApplyLeft(msg.ID)
		}
	case protocol.MsgAbilityRotated:
		var msg protocol.RotationMsg
		if decode(env.D, &msg) {
			s.view.ApplyRotation(msg)
		}
	case protocol.MsgPlayerKilled:
		var msg protocol.KillMsg
		if decode(env.D, &msg) {
			s.view.ApplyKill(msg)
		}
	case protocol.MsgRespawn:
		var msg protocol.PositionMsg
		if decode(env.D, &msg) {
			s.view.ApplyRespawn(msg.X, msg.Y)
		}
	case protocol.MsgKnocked:
		var msg protocol.PositionMsg
		if decode(env.D, &msg) {
			s.view.ApplyKnocked(msg.X, msg.Y)
		}
	case protocol.MsgAbilityUsed:
		var msg sim.AbilityUsedEvent
		if decode(env.D, &msg) {
			s.view.ApplyAbilityUsed(msg.ID, msg.Ability, s.now())
		}
	case protocol.MsgMatchOver:
		s.log.Info().Msg("round over")
	case protocol.MsgError:
		var msg protocol.ErrorMsg
		if decode(env.D, &msg) {
			s.log.Warn().Str("msg", msg.Msg).Msg("server error")
		}
	}
}

// applyUpdate predicts the tick the server just stepped, then reconciles
func (s *Session) applyUpdate(update protocol.GameUpdate) {
	s.view.PredictTick(s.now())
	s.view.ApplySnapshot(update.Players)
}

func decode(raw json.RawMessage, v any) bool {
	return json.Unmarshal(raw, v) == nil
}

func (s *Session) goOffline() {
	s.mu.Lock()
	if s.offline != nil {
		s.mu.Unlock()
		return
	}
	ctx := s.ctx
	o := NewOffline(OfflineConfig{
		Mode:       s.cfg.Mode,
		Difficulty: s.cfg.Difficulty,
		Name:       s.cfg.Name,
		Tick:       s.cfg.Tick,
		Seed:       s.cfg.Seed,
	}, s.view, s.now())
	s.offline = o
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		if err := o.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.log.Error().Err(err).Msg("offline loop stopped")
		}
	}()
}

func (s *Session) send(t string, data any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return errors.New("client: not connected")
	}
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return s.conn.WriteJSON(protocol.Envelope{T: t, Data: data})
}

func (s *Session) target() (*Offline, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.offline, s.conn != nil
}

// Move sets the held local intent and sends it
func (s *Session) Move(dx, dy, rotation float64) {
	off, online := s.target()
	if off != nil {
		off.Move(dx, dy, rotation)
		return
	}
	if !online {
		return
	}
	s.view.SetIntent(dx, dy, rotation)
	s.sendOrLog(protocol.MsgMove, protocol.MoveMsg{DX: dx, DY: dy, Rotation: rotation})
}

// Shoot fires the current weapon
func (s *Session) Shoot() {
	if off, online := s.target(); off != nil {
		off.Shoot()
	} else if online {
		s.sendOrLog(protocol.MsgShoot, struct{}{})
	}
}

// UseAbility activates the current ability; aim is the blink target
func (s *Session) UseAbility(aim *sim.Point) {
	off, online := s.target()
	if off != nil {
		off.UseAbility(aim)
		return
	}
	if !online {
		return
	}
	msg := protocol.AbilityMsg{}
	if local, ok := s.view.Local(); ok {
		msg.Rotation = &local.Rotation
	}
	if aim != nil {
		msg.X, msg.Y = &aim.X, &aim.Y
	}
	s.sendOrLog(protocol.MsgUseAbility, msg)
}

// BuyWeapon asks the shop for a weapon
func (s *Session) BuyWeapon(kind sim.WeaponKind) {
	if off, online := s.target(); off != nil {
		off.BuyWeapon(kind)
	} else if online {
		s.sendOrLog(protocol.MsgBuyWeapon, protocol.BuyWeaponMsg{Weapon: kind})
	}
}

func (s *Session) sendOrLog(t string, data any) {
	if err := s.send(t, data); err != nil {
		s.log.Debug().Err(err).Str("t", t).Msg("send failed")
	}
}
