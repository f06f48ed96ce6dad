package session

import (
	"go.uber.org/zap"

	"github.com/duelgrid/duel-backend/internal/engine"
	"github.com/duelgrid/duel-backend/pkg/types"
)

// broadcastFull projects the current state, persists it as the new diff
// baseline, then fans the full views out under kind ("start" for the
// initial push, "state" for re-syncs).
func (s *Session) broadcastFull(kind string) {
	views := s.rules.ProjectFull(s.state)
	s.snapshots.Put(s.id, s.rules.Clone(s.state))
	s.fanOut(kind, views)
}

// broadcastDiff computes per-role deltas against the snapshot stored by
// the previous cycle and overwrites it before sending. Both steps run on
// the actor goroutine, so the baseline can never be read mid-mutation.
func (s *Session) broadcastDiff() {
	prev, ok := s.snapshots.Get(s.id)
	if !ok {
		s.broadcastFull(types.MsgState)
		return
	}
	views := s.rules.ProjectDiff(prev, s.state)
	s.snapshots.Put(s.id, s.rules.Clone(s.state))
	s.fanOut(types.MsgDiff, views)
}

// fanOut delivers one message per connected participant: players get the
// view for their side, spectators the spectator view. Sends are
// independent; one full outbox never stalls the rest.
func (s *Session) fanOut(kind string, views engine.Views) {
	for _, p := range s.players {
		s.deliver(p, types.ServerMessage{
			Type:      kind,
			SessionID: s.id,
			Payload:   views.Sides[p.Side],
		})
	}
	for _, w := range s.spectators {
		s.deliver(w, types.ServerMessage{
			Type:      kind,
			SessionID: s.id,
			Payload:   views.Spectator,
		})
	}
}

// deliver is fire-and-forget: a slow recipient loses this message and
// converges again on the next full push. Nothing here retries.
func (s *Session) deliver(p *Participant, msg types.ServerMessage) {
	select {
	case p.Outbox <- msg:
	default:
		s.logger.Warn("outbox full, dropping message",
			zap.String("session", s.id),
			zap.String("conn", p.ConnID),
			zap.String("kind", msg.Type))
	}
}
