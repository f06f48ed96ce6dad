package hub

import (
	"context"
	"testing"
	"time"

	"github.com/duelgrid/duel-backend/internal/engine"
	"github.com/duelgrid/duel-backend/internal/session"
	"github.com/duelgrid/duel-backend/pkg/types"
)

const waitFor = time.Second

func newTestHub(t *testing.T) *Hub {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return NewHub(ctx, Config{Rules: engine.NewDuel()})
}

func createSession(t *testing.T, h *Hub, id string) *session.Session {
	t.Helper()
	reply := make(chan *session.Session, 1)
	h.Inbox() <- CreateSession{ID: id, Reply: reply}
	select {
	case sess := <-reply:
		if sess == nil {
			t.Fatalf("create returned nil session")
		}
		return sess
	case <-time.After(waitFor):
		t.Fatalf("timed out creating session")
		return nil // unreachable
	}
}

func TestHub_CreateIsIdempotentAndResolvable(t *testing.T) {
	h := newTestHub(t)

	first := createSession(t, h, "G1")
	second := createSession(t, h, "G1")
	if first != second {
		t.Fatalf("duplicate create spawned a second session")
	}
	if got := h.Session("G1"); got != first {
		t.Fatalf("Session() resolved a different actor")
	}
	if got := h.Session("missing"); got != nil {
		t.Fatalf("resolved a session that was never created")
	}
}

func TestHub_RemoveSessionDropsIt(t *testing.T) {
	h := newTestHub(t)
	createSession(t, h, "G1")

	h.Inbox() <- RemoveSession{ID: "G1"}
	deadline := time.After(waitFor)
	for h.Session("G1") != nil {
		select {
		case <-deadline:
			t.Fatalf("session still resolvable after removal")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestHub_WatchMissingSessionIsNotFound(t *testing.T) {
	h := newTestHub(t)

	out := make(chan types.ServerMessage, 8)
	r := h.Watch("conn-1", "carol", "missing", "", out)
	if r.Verdict != session.VerdictHandled || r.Code != session.WatchNotFound {
		t.Fatalf("got %+v, want handled 404", r)
	}
}

func TestHub_WatchPreStartFallsBackToPendingJoin(t *testing.T) {
	h := newTestHub(t)
	sess := createSession(t, h, "G1")

	outA := make(chan types.ServerMessage, 8)
	sess.Inbox() <- session.JoinPlayer{ConnID: "conn-a", User: "alice", Side: "corp", DeckID: "deck-a", Outbox: outA}

	out := make(chan types.ServerMessage, 8)
	r := h.Watch("conn-s", "carol", "G1", "", out)
	if r.Verdict != session.VerdictHandled || r.Code != session.WatchOK {
		t.Fatalf("got %+v, want handled 200 via the lobby fallback", r)
	}
}

func TestHub_PublishesSummariesToLobbyWatchers(t *testing.T) {
	h := newTestHub(t)

	out := make(chan types.ServerMessage, 8)
	h.Inbox() <- WatchLobby{ConnID: "conn-w", Outbox: out}

	sess := createSession(t, h, "G1")
	outA := make(chan types.ServerMessage, 8)
	sess.Inbox() <- session.JoinPlayer{ConnID: "conn-a", User: "alice", Side: "corp", DeckID: "deck-a", Outbox: outA}

	select {
	case msg := <-out:
		if msg.Type != types.MsgLobby || msg.SessionID != "G1" {
			t.Fatalf("unexpected lobby push: %+v", msg)
		}
	case <-time.After(waitFor):
		t.Fatalf("timed out waiting for lobby summary")
	}

	reply := make(chan []session.Summary, 1)
	h.Inbox() <- ListSummaries{Reply: reply}
	select {
	case summaries := <-reply:
		if len(summaries) != 1 || summaries[0].ID != "G1" {
			t.Fatalf("unexpected summaries: %+v", summaries)
		}
	case <-time.After(waitFor):
		t.Fatalf("timed out listing summaries")
	}
}
