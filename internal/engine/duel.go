package engine

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
)

var ErrWrongTurn = errors.New("not your turn")
var ErrUnknownSide = errors.New("unknown side")
var ErrUnknownCommand = errors.New("unknown command")
var ErrGameOver = errors.New("game already decided")
var ErrEmptyDeck = errors.New("deck is empty")
var ErrCardNotInHand = errors.New("card not in hand")

const (
	startingHand    = 5
	startingCredits = 5
	deckSize        = 15
)

// Outcomer is implemented by engines that can report a decided game.
// The session layer uses it to complete archive records; engines that
// cannot report an outcome simply don't implement it.
type Outcomer interface {
	Outcome(st State) (winner Side, over bool)
}

// Duel is the reference Rules implementation: a two-side card duel with
// per-side deck, hand and credit pool, an append-only log, and a turn
// marker. Hands are hidden information: a side's view carries its own
// cards but only counts for the opponent, and spectators see counts only.
type Duel struct{}

func NewDuel() Duel { return Duel{} }

type duelState struct {
	order   []Side // roster order; order[0] acts first
	sides   map[Side]*sideState
	log     []logLine
	turn    Side
	winner  Side
	decided bool
}

type sideState struct {
	user    string
	deck    []string
	hand    []string
	credits int
}

type logLine struct {
	Role string `json:"role"`
	User string `json:"user,omitempty"`
	Text string `json:"text"`
}

func (Duel) Initialize(roster Roster) State {
	st := &duelState{sides: make(map[Side]*sideState)}
	for _, seat := range roster {
		if seat.Side == "" {
			continue
		}
		deck := make([]string, deckSize)
		for i := range deck {
			deck[i] = fmt.Sprintf("%s-%02d", seat.DeckID, i+1)
		}
		st.order = append(st.order, seat.Side)
		// Clone both halves so hand mutations can't bleed into the deck.
		st.sides[seat.Side] = &sideState{
			user:    seat.User,
			deck:    slices.Clone(deck[startingHand:]),
			hand:    slices.Clone(deck[:startingHand]),
			credits: startingCredits,
		}
	}
	if len(st.order) > 0 {
		st.turn = st.order[0]
	}
	return st
}

func (Duel) ApplyAction(raw State, side Side, name string, args map[string]any) error {
	st := raw.(*duelState)
	ss, ok := st.sides[side]
	if !ok {
		return ErrUnknownSide
	}
	if st.decided {
		return ErrGameOver
	}
	if st.turn != side {
		return ErrWrongTurn
	}

	switch name {
	case "draw":
		if len(ss.deck) == 0 {
			return ErrEmptyDeck
		}
		ss.hand = append(ss.hand, ss.deck[0])
		ss.deck = ss.deck[1:]
		st.say(logLine{Role: string(RoleSystem), Text: fmt.Sprintf("%s draws a card.", ss.user)})

	case "gain":
		ss.credits++
		st.say(logLine{Role: string(RoleSystem), Text: fmt.Sprintf("%s gains 1 credit.", ss.user)})

	case "play":
		card, _ := args["card"].(string)
		i := slices.Index(ss.hand, card)
		if i < 0 {
			return ErrCardNotInHand
		}
		ss.hand = slices.Delete(ss.hand, i, i+1)
		st.say(logLine{Role: string(RoleSystem), Text: fmt.Sprintf("%s plays %s.", ss.user, card)})

	case "end-turn":
		st.turn = st.opponentOf(side)
		st.say(logLine{Role: string(RoleSystem), Text: fmt.Sprintf("%s ends their turn.", ss.user)})

	default:
		return ErrUnknownCommand
	}
	return nil
}

func (Duel) ApplyConcede(raw State, side Side) error {
	st := raw.(*duelState)
	ss, ok := st.sides[side]
	if !ok {
		return ErrUnknownSide
	}
	if st.decided {
		return ErrGameOver
	}
	st.decided = true
	st.winner = st.opponentOf(side)
	st.say(logLine{Role: string(RoleSystem), Text: fmt.Sprintf("%s concedes.", ss.user)})
	return nil
}

func (Duel) ApplyNotification(raw State, text string) {
	st := raw.(*duelState)
	st.say(logLine{Role: string(RoleSystem), Text: text})
}

func (Duel) ApplySay(raw State, role Role, user, text string) {
	st := raw.(*duelState)
	st.say(logLine{Role: string(role), User: user, Text: text})
}

func (Duel) ProjectFull(raw State) Views {
	st := raw.(*duelState)
	views := Views{Sides: make(map[Side]json.RawMessage, len(st.order))}
	for _, side := range st.order {
		views.Sides[side] = marshalView(st.sideView(side))
	}
	views.Spectator = marshalView(st.spectatorView())
	return views
}

func (Duel) ProjectDiff(rawPrev, rawCur State) Views {
	prev := rawPrev.(*duelState)
	cur := rawCur.(*duelState)
	views := Views{Sides: make(map[Side]json.RawMessage, len(cur.order))}
	for _, side := range cur.order {
		views.Sides[side] = marshalView(diffViews(prev.sideView(side), cur.sideView(side)))
	}
	views.Spectator = marshalView(diffViews(prev.spectatorView(), cur.spectatorView()))
	return views
}

func (Duel) Clone(raw State) State {
	st := raw.(*duelState)
	cp := &duelState{
		order:   slices.Clone(st.order),
		sides:   make(map[Side]*sideState, len(st.sides)),
		log:     slices.Clone(st.log),
		turn:    st.turn,
		winner:  st.winner,
		decided: st.decided,
	}
	for side, ss := range st.sides {
		cp.sides[side] = &sideState{
			user:    ss.user,
			deck:    slices.Clone(ss.deck),
			hand:    slices.Clone(ss.hand),
			credits: ss.credits,
		}
	}
	return cp
}

func (Duel) Outcome(raw State) (Side, bool) {
	st := raw.(*duelState)
	return st.winner, st.decided
}

func (st *duelState) say(line logLine) {
	st.log = append(st.log, line)
}

func (st *duelState) opponentOf(side Side) Side {
	for _, s := range st.order {
		if s != side {
			return s
		}
	}
	return ""
}

// sideView is the role-filtered projection for one side. Flat top-level
// keys so diffs stay shallow-mergeable.
func (st *duelState) sideView(side Side) map[string]any {
	ss := st.sides[side]
	opp := st.opponentOf(side)
	view := map[string]any{
		"side":       side,
		"turn":       st.turn,
		"winner":     st.winner,
		"over":       st.decided,
		"log":        st.log,
		"hand":       slices.Clone(ss.hand),
		"credits":    ss.credits,
		"deck_count": len(ss.deck),
	}
	if os, ok := st.sides[opp]; ok {
		view["opponent"] = map[string]any{
			"side":       opp,
			"user":       os.user,
			"credits":    os.credits,
			"hand_count": len(os.hand),
			"deck_count": len(os.deck),
		}
	}
	return view
}

func (st *duelState) spectatorView() map[string]any {
	sides := make(map[string]any, len(st.sides))
	for side, ss := range st.sides {
		sides[string(side)] = map[string]any{
			"user":       ss.user,
			"credits":    ss.credits,
			"hand_count": len(ss.hand),
			"deck_count": len(ss.deck),
		}
	}
	return map[string]any{
		"turn":   st.turn,
		"winner": st.winner,
		"over":   st.decided,
		"log":    st.log,
		"sides":  sides,
	}
}

// diffViews keeps only the top-level keys of cur whose encoding changed
// since prev. A key that disappeared encodes as null so merge removes it.
func diffViews(prev, cur map[string]any) map[string]any {
	out := map[string]any{}
	for key, val := range cur {
		before, seen := prev[key]
		if !seen || !bytes.Equal(marshalView(before), marshalView(val)) {
			out[key] = val
		}
	}
	for key := range prev {
		if _, ok := cur[key]; !ok {
			out[key] = nil
		}
	}
	return out
}

func marshalView(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}
