package engine

import "encoding/json"

// Side is one of the two opposing player roles in a started session.
// Sides are free-form strings chosen at join time; a session requires
// exactly two distinct sides before it can start.
type Side string

// Role is the chat/notification role a log entry is attributed to:
// either a Side or RoleSpectator.
type Role string

const (
	RoleSpectator Role = "spectator"
	RoleSystem    Role = "system"
)

// Seat is one finalized roster entry. DeckID is an opaque reference;
// deck contents never cross this boundary.
type Seat struct {
	User   string
	Side   Side
	DeckID string
}

type Roster []Seat

// State is the authoritative game state. It is owned by the session that
// created it and opaque to everything outside the rules engine; the
// session layer only threads it back into Rules calls.
type State any

// Views is one role-filtered projection cycle: exactly one view per side
// plus one spectator view. Views are transient, produced per broadcast
// and discarded after send.
type Views struct {
	Sides     map[Side]json.RawMessage
	Spectator json.RawMessage
}

// Rules is the engine boundary. The session layer never inspects game
// semantics; it invokes these entry points and relays their output.
//
// States are mutated in place, so the snapshot discipline needs an
// engine-owned deep copy: Clone must return a State unaffected by later
// mutations of the original.
type Rules interface {
	// Initialize builds the authoritative state for a finalized roster.
	Initialize(roster Roster) State

	// ApplyAction dispatches a named player command. A rejected command
	// leaves the state unchanged and returns the engine's error.
	ApplyAction(st State, side Side, name string, args map[string]any) error

	// ApplyConcede ends the game in favor of the opposing side.
	ApplyConcede(st State, side Side) error

	// ApplyNotification appends a system line to the game log.
	ApplyNotification(st State, text string)

	// ApplySay appends a chat line attributed to role/user.
	ApplySay(st State, role Role, user, text string)

	// ProjectFull produces a complete per-role snapshot of st.
	ProjectFull(st State) Views

	// ProjectDiff produces per-role deltas between two state values.
	// Shallow-merging a diff into the previous full view of the same
	// role reconstructs the current full view.
	ProjectDiff(prev, cur State) Views

	// Clone deep-copies st.
	Clone(st State) State
}
