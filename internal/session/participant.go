package session

import (
	"github.com/duelgrid/duel-backend/internal/engine"
	"github.com/duelgrid/duel-backend/pkg/types"
)

// Participant is one connected party. Players carry a fixed side and an
// opaque deck reference; spectators have neither. The outbox is owned by
// the transport layer; the session only writes to it, non-blocking.
type Participant struct {
	ConnID string
	User   string
	Side   engine.Side // empty for spectators
	DeckID string
	Outbox chan types.ServerMessage
}

// SummarySeat is one player entry in a lobby summary.
type SummarySeat struct {
	User string `json:"user"`
	Side string `json:"side,omitempty"`
}

// Summary is the lobby-level description of a session, published to
// lobby watchers whenever membership or the mute flag changes.
type Summary struct {
	ID                string        `json:"id"`
	Started           bool          `json:"started"`
	Players           []SummarySeat `json:"players"`
	Spectators        int           `json:"spectators"`
	MuteSpectators    bool          `json:"mute_spectators"`
	PasswordProtected bool          `json:"password_protected"`
}

// Verdict is the admission outcome for a watch request. Declined means
// this session deliberately did not handle the request and the caller
// should fall through to the lobby-level handler; it is not a failure.
type Verdict int

const (
	VerdictHandled Verdict = iota
	VerdictDeclined
	VerdictFailed
)

// Watch reply codes, mirrored onto the wire as directive codes.
const (
	WatchOK        = 200
	WatchForbidden = 403
	WatchNotFound  = 404
)

type WatchReply struct {
	Verdict Verdict
	Code    int   // set when Verdict == VerdictHandled
	Err     error // set when Verdict == VerdictFailed
}
