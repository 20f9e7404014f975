// Package protocol defines the websocket message surface shared by the
// server and the client session.
package protocol

import (
	"bytes"
	"encoding/json"

	"github.com/vmihailenco/msgpack/v5"

	"rotateio-server/internal/sim"
)

// Client -> Server message types
const (
	MsgJoin       = "join"
	MsgLeave      = "leave"
	MsgMove       = "move"
	MsgShoot      = "shoot"
	MsgUseAbility = "useAbility"
	MsgBuyWeapon  = "buyWeapon"
)

// Server -> Client message types
const (
	MsgInit           = "init"
	MsgGameUpdate     = "gameUpdate"
	MsgPlayerJoined   = "playerJoined"
	MsgPlayerLeft     = "playerLeft"
	MsgAbilityRotated = "abilityRotated"
	MsgPlayerKilled   = "playerKilled"
	MsgRespawn        = "respawn"
	MsgAbilityUsed    = "abilityUsed"
	MsgKnocked        = "knocked"
	MsgWeaponBought   = "weaponBought"
	MsgMatchOver      = "matchOver"
	MsgError          = "error"
)

// BinaryMarker prefixes queued frames that must go out as binary messages
const BinaryMarker = 0xFF

// Envelope wraps all outgoing messages with a type field
type Envelope struct {
	T    string      `json:"t"`
	Data interface{} `json:"d,omitempty"`
}

// InEnvelope is used for incoming messages; json.RawMessage avoids double-unmarshal
type InEnvelope struct {
	T string          `json:"t"`
	D json.RawMessage `json:"d,omitempty"`
}

// JoinMsg picks a match. An empty MatchID means the default match.
type JoinMsg struct {
	MatchID string `json:"matchId"`
	Name    string `json:"name"`
}

// MoveMsg stages movement intent for the next tick
type MoveMsg struct {
	DX       float64 `json:"dx"`
	DY       float64 `json:"dy"`
	Rotation float64 `json:"rotation"`
}

// AbilityMsg activates the sender's current ability. X and Y, when both
// present, are the blink target.
type AbilityMsg struct {
	Rotation *float64 `json:"rotation,omitempty"`
	X        *float64 `json:"x,omitempty"`
	Y        *float64 `json:"y,omitempty"`
}

// Aim returns the aim point if one was sent
func (m AbilityMsg) Aim() *sim.Point {
	if m.X == nil || m.Y == nil {
		return nil
	}
	return &sim.Point{X: *m.X, Y: *m.Y}
}

// BuyWeaponMsg asks the shop for a weapon
type BuyWeaponMsg struct {
	Weapon sim.WeaponKind `json:"weapon"`
}

// ArenaSize is the logical arena extent
type ArenaSize struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// InitMsg is the full state sent to a player when it joins
type InitMsg struct {
	PlayerID     string            `json:"playerId"`
	MatchID      string            `json:"matchId"`
	Players      []sim.PlayerState `json:"players"`
	Ability      sim.AbilityKind   `json:"ability"`
	NextRotation int64             `json:"nextRotationDeadline"` // unix ms
	ArenaSize    ArenaSize         `json:"arenaSize"`
	Obstacles    []sim.Rect        `json:"obstacles"`
	Abilities    []sim.AbilityDef  `json:"abilities"`
	Weapons      []sim.WeaponDef   `json:"weapons"`
	KillFeed     []KillMsg         `json:"killFeed,omitempty"`
}

// GameUpdate is the per-tick snapshot broadcast
type GameUpdate struct {
	Tick        uint64                `json:"tick"`
	Players     []sim.PlayerState     `json:"players"`
	Projectiles []sim.ProjectileState `json:"projectiles,omitempty"`
}

// PlayerLeftMsg removes a player from the roster
type PlayerLeftMsg struct {
	ID string `json:"id"`
}

// RotationMsg is the global rotation result
type RotationMsg struct {
	Changes      []sim.AbilityChange `json:"changes"`
	NextRotation int64               `json:"nextRotationDeadline"` // unix ms
}

// KillMsg is one kill-feed entry
type KillMsg struct {
	Killer     string `json:"killer"`
	Victim     string `json:"victim"`
	KillerName string `json:"killerName,omitempty"`
	VictimName string `json:"victimName,omitempty"`
}

// NewKillMsg converts a sim kill event
func NewKillMsg(ev sim.KillEvent) KillMsg {
	return KillMsg{Killer: ev.Killer, Victim: ev.Victim, KillerName: ev.KillerName, VictimName: ev.VictimName}
}

// PositionMsg carries a position for respawn and knocked notices
type PositionMsg struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// WeaponBoughtMsg confirms a shop purchase
type WeaponBoughtMsg struct {
	Weapon sim.WeaponKind `json:"weapon"`
	Coins  int            `json:"coins"`
}

// ScoreEntry is one scoreboard row
type ScoreEntry struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Team   sim.Team `json:"team,omitempty"`
	Score  int      `json:"score"`
	Kills  int      `json:"kills"`
	Deaths int      `json:"deaths"`
}

// MatchOverMsg ends a round
type MatchOverMsg struct {
	MatchID    string       `json:"matchId"`
	Scoreboard []ScoreEntry `json:"scoreboard"`
}

// ErrorMsg sends error to client
type ErrorMsg struct {
	Msg string `json:"msg"`
}

// ReplayEntry is one recorded input
type ReplayEntry struct {
	T      int64   `json:"t"` // unix ms
	Player string  `json:"player"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Input  string  `json:"input"`
	Data   any     `json:"data,omitempty"`
}

// RosterEntry assigns an account to a team at match start
type RosterEntry struct {
	AccountID string   `json:"accountId"`
	Team      sim.Team `json:"team"`
}

// StartMatchRequest is posted by the match allocator
type StartMatchRequest struct {
	MatchID string        `json:"matchId"`
	Mode    string        `json:"mode"`
	Players []RosterEntry `json:"players"`
}

// MatchInfo is used in the match list
type MatchInfo struct {
	ID      string `json:"id"`
	Mode    string `json:"mode"`
	Players int    `json:"players"`
}

// EncodeBinary msgpack-encodes v using its json field names
func EncodeBinary(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeBinary is the inverse of EncodeBinary
func DecodeBinary(data []byte, v any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	return dec.Decode(v)
}
