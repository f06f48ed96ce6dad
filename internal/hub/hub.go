package hub

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/duelgrid/duel-backend/internal/archive"
	"github.com/duelgrid/duel-backend/internal/engine"
	"github.com/duelgrid/duel-backend/internal/session"
	"github.com/duelgrid/duel-backend/pkg/types"
)

type HubMsg interface{ isHubMsg() }

// CreateSession registers a session under ID, creating it if absent.
type CreateSession struct {
	ID           string
	PasswordHash []byte
	Blocked      []string
	Reply        chan *session.Session
}

type GetSession struct {
	ID    string
	Reply chan *session.Session
}

type RemoveSession struct {
	ID string
}

// ListSummaries replies with the cached lobby summaries.
type ListSummaries struct {
	Reply chan []session.Summary
}

// WatchLobby subscribes a connection to lobby summary pushes.
type WatchLobby struct {
	ConnID string
	Outbox chan types.ServerMessage
}

type UnwatchLobby struct {
	ConnID string
}

type ShutdownHub struct{}

// summaryUpdate carries a session's published summary into the hub loop.
type summaryUpdate struct {
	summary session.Summary
}

func (CreateSession) isHubMsg() {}
func (GetSession) isHubMsg()    {}
func (RemoveSession) isHubMsg() {}
func (ListSummaries) isHubMsg() {}
func (WatchLobby) isHubMsg()    {}
func (UnwatchLobby) isHubMsg()  {}
func (ShutdownHub) isHubMsg()   {}
func (summaryUpdate) isHubMsg() {}

// Config wires the collaborators every session created by this hub
// shares: one rules engine, one snapshot store, one archive.
type Config struct {
	Rules     engine.Rules
	Snapshots *session.SnapshotStore
	Archive   archive.Store
	Logger    *zap.Logger
}

// Hub is the session directory: it owns the id -> session map, the lobby
// watcher set and the summary cache. Sessions for different ids run fully
// in parallel; the hub only routes.
type Hub struct {
	inbox     chan HubMsg
	sessions  map[string]*session.Session
	summaries map[string]session.Summary
	watchers  map[string]chan types.ServerMessage

	rules     engine.Rules
	snapshots *session.SnapshotStore
	archive   archive.Store
	logger    *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

func NewHub(parent context.Context, cfg Config) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:     make(chan HubMsg, 64),
		sessions:  make(map[string]*session.Session),
		summaries: make(map[string]session.Summary),
		watchers:  make(map[string]chan types.ServerMessage),
		rules:     cfg.Rules,
		snapshots: cfg.Snapshots,
		archive:   cfg.Archive,
		logger:    cfg.Logger,
		ctx:       ctx,
		cancel:    cancel,
	}
	if h.logger == nil {
		h.logger = zap.NewNop()
	}
	if h.snapshots == nil {
		h.snapshots = session.NewSnapshotStore()
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateSession:
				if sess := h.sessions[msg.ID]; sess != nil {
					msg.Reply <- sess
					break
				}
				sess := session.New(h.ctx, session.Config{
					ID:           msg.ID,
					Rules:        h.rules,
					PasswordHash: msg.PasswordHash,
					Blocked:      msg.Blocked,
					Snapshots:    h.snapshots,
					Archive:      h.archive,
					Publish:      h.publishFunc(),
					Logger:       h.logger,
				})
				h.sessions[msg.ID] = sess
				h.logger.Info("session created", zap.String("session", msg.ID))
				msg.Reply <- sess

			case GetSession:
				msg.Reply <- h.sessions[msg.ID] // may be nil

			case RemoveSession:
				if sess := h.sessions[msg.ID]; sess != nil {
					sess.Inbox() <- session.Shutdown{}
				}
				delete(h.sessions, msg.ID)
				delete(h.summaries, msg.ID)

			case ListSummaries:
				out := make([]session.Summary, 0, len(h.summaries))
				for _, s := range h.summaries {
					out = append(out, s)
				}
				msg.Reply <- out

			case WatchLobby:
				h.watchers[msg.ConnID] = msg.Outbox

			case UnwatchLobby:
				delete(h.watchers, msg.ConnID)

			case summaryUpdate:
				h.summaries[msg.summary.ID] = msg.summary
				h.pushSummary(msg.summary)

			case ShutdownHub:
				for _, sess := range h.sessions {
					sess.Inbox() <- session.Shutdown{}
				}
				clear(h.sessions)
				clear(h.summaries)
				h.cancel()
			}
		}
	}
}

// publishFunc is handed to sessions; it routes their summary publications
// back through the hub loop. Non-blocking: a congested hub loses a lobby
// update, never a game event.
func (h *Hub) publishFunc() func(session.Summary) {
	return func(s session.Summary) {
		select {
		case h.inbox <- summaryUpdate{summary: s}:
		default:
		}
	}
}

func (h *Hub) pushSummary(s session.Summary) {
	payload, _ := json.Marshal(s)
	msg := types.ServerMessage{Type: types.MsgLobby, SessionID: s.ID, Payload: payload}
	for connID, outbox := range h.watchers {
		select {
		case outbox <- msg:
		default:
			h.logger.Warn("lobby watcher outbox full, dropping summary",
				zap.String("conn", connID))
		}
	}
}

// Session resolves an id from outside the hub goroutine.
func (h *Hub) Session(id string) *session.Session {
	reply := make(chan *session.Session, 1)
	h.inbox <- GetSession{ID: id, Reply: reply}
	return <-reply
}

// Watch runs the full admission flow for a spectator request: missing
// session answers 404 here, a started session decides 200/403 on its own
// lane, and a Declined verdict (unauthorized or pre-start) falls through
// to the lobby-level pending join. A request both paths decline gets no
// reply at all.
func (h *Hub) Watch(connID, user, sessionID, password string, outbox chan types.ServerMessage) session.WatchReply {
	sess := h.Session(sessionID)
	if sess == nil {
		return session.WatchReply{Verdict: session.VerdictHandled, Code: session.WatchNotFound}
	}

	reply := make(chan session.WatchReply, 1)
	sess.Inbox() <- session.Watch{
		ConnID:   connID,
		User:     user,
		Password: password,
		Outbox:   outbox,
		Reply:    reply,
	}
	r := <-reply
	if r.Verdict != session.VerdictDeclined {
		return r
	}

	fallback := make(chan session.WatchReply, 1)
	sess.Inbox() <- session.JoinPending{
		ConnID:   connID,
		User:     user,
		Password: password,
		Outbox:   outbox,
		Reply:    fallback,
	}
	return <-fallback
}
