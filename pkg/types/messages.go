package types

import "encoding/json"

// Client -> server event names. One wire event per session/lobby
// operation; the ws layer maps these onto the typed hub and session
// message unions.
const (
	EvtSessionJoin    = "session.join"
	EvtSessionStart   = "session.start"
	EvtSessionAction  = "session.action"
	EvtSessionLeave   = "session.leave"
	EvtSessionConcede = "session.concede"
	EvtSessionMute    = "session.mute"
	EvtSessionChat    = "session.chat"
	EvtLobbyWatch     = "lobby.watch"
)

// Server -> client discriminator tags. "start" and "state" are both
// full-state pushes; clients treat the first one specially. "diff" is an
// incremental delta against the previous push.
const (
	MsgStart     = "start"
	MsgState     = "state"
	MsgDiff      = "diff"
	MsgDirective = "directive"
	MsgLobby     = "lobby"
	MsgError     = "error"
)

type ClientMessage struct {
	Type      string         `json:"type"`
	SessionID string         `json:"session_id,omitempty"`
	Side      string         `json:"side,omitempty"`
	DeckID    string         `json:"deck_id,omitempty"`
	Password  string         `json:"password,omitempty"`
	Command   string         `json:"command,omitempty"`
	Args      map[string]any `json:"args,omitempty"`
	Text      string         `json:"text,omitempty"`
	Muted     bool           `json:"muted,omitempty"`
}

type ServerMessage struct {
	Type      string          `json:"type"`
	SessionID string          `json:"session_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Code      int             `json:"code,omitempty"`
	Text      string          `json:"text,omitempty"`
}
