package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/duelgrid/duel-backend/internal/engine"
	"github.com/duelgrid/duel-backend/internal/hub"
	"github.com/duelgrid/duel-backend/internal/session"
	"github.com/duelgrid/duel-backend/pkg/types"
)

const (
	writeTimeout = 3 * time.Second
	readTimeout  = 5 * time.Minute
	outboxSize   = 16
)

// Handler upgrades a connection and runs its read loop. Each connection
// gets a buffered outbox; sessions and the hub write into it and a
// single writer goroutine drains it, so no game lane ever blocks on a
// socket.
func Handler(h *hub.Hub, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := r.URL.Query().Get("user")
		if user == "" {
			http.Error(w, "missing user", http.StatusBadRequest)
			return
		}

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		c := &client{
			connID: uuid.NewString(),
			user:   user,
			hub:    h,
			outbox: make(chan types.ServerMessage, outboxSize),
			logger: logger,
		}

		h.Inbox() <- hub.WatchLobby{ConnID: c.connID, Outbox: c.outbox}
		defer func() {
			h.Inbox() <- hub.UnwatchLobby{ConnID: c.connID}
			if c.bound != nil {
				c.bound.Inbox() <- session.Leave{ConnID: c.connID}
			}
		}()

		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go writeLoop(writeCtx, conn, c.outbox)

		for {
			ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
			_, data, err := conn.Read(ctx)
			cancel()
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					return
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				c.send(types.ServerMessage{Type: types.MsgError, Text: "bad json"})
				continue
			}
			c.dispatch(cm)
		}
	}
}

type client struct {
	connID string
	user   string
	hub    *hub.Hub
	outbox chan types.ServerMessage
	bound  *session.Session // session this connection joined or watches
	logger *zap.Logger
}

func (c *client) dispatch(cm types.ClientMessage) {
	switch cm.Type {
	case types.EvtSessionJoin:
		sess := c.hub.Session(cm.SessionID)
		if sess == nil {
			c.send(types.ServerMessage{Type: types.MsgError, SessionID: cm.SessionID, Text: "session not found"})
			return
		}
		sess.Inbox() <- session.JoinPlayer{
			ConnID: c.connID,
			User:   c.user,
			Side:   engine.Side(cm.Side),
			DeckID: cm.DeckID,
			Outbox: c.outbox,
		}
		c.bound = sess

	case types.EvtLobbyWatch:
		reply := c.hub.Watch(c.connID, c.user, cm.SessionID, cm.Password, c.outbox)
		switch {
		case reply.Verdict == session.VerdictDeclined:
			// Deliberately unhandled: no reply on the wire.
		case reply.Code == session.WatchOK:
			// The session already pushed its admission directive.
			c.bound = c.hub.Session(cm.SessionID)
		default:
			c.send(types.ServerMessage{
				Type:      types.MsgDirective,
				SessionID: cm.SessionID,
				Code:      reply.Code,
				Text:      http.StatusText(reply.Code),
			})
		}

	default:
		msg, ok := toSessionMsg(c.connID, cm)
		if !ok {
			c.send(types.ServerMessage{Type: types.MsgError, Text: "unknown type"})
			return
		}
		if c.bound == nil {
			c.send(types.ServerMessage{Type: types.MsgError, Text: "not in a session"})
			return
		}
		c.bound.Inbox() <- msg
		if cm.Type == types.EvtSessionLeave {
			c.bound = nil
		}
	}
}

// toSessionMsg maps the session-scoped wire events onto the session's
// typed message union.
func toSessionMsg(connID string, cm types.ClientMessage) (session.Msg, bool) {
	switch cm.Type {
	case types.EvtSessionStart:
		return session.Start{ConnID: connID}, true
	case types.EvtSessionAction:
		return session.Action{ConnID: connID, Name: cm.Command, Args: cm.Args}, true
	case types.EvtSessionLeave:
		return session.Leave{ConnID: connID}, true
	case types.EvtSessionConcede:
		return session.Concede{ConnID: connID}, true
	case types.EvtSessionMute:
		return session.Mute{ConnID: connID, Muted: cm.Muted}, true
	case types.EvtSessionChat:
		return session.Say{ConnID: connID, Text: cm.Text}, true
	default:
		return nil, false
	}
}

func (c *client) send(msg types.ServerMessage) {
	select {
	case c.outbox <- msg:
	default:
		c.logger.Warn("client outbox full, dropping reply", zap.String("conn", c.connID))
	}
}

func writeLoop(ctx context.Context, conn *websocket.Conn, outbox <-chan types.ServerMessage) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-outbox:
			payload, _ := json.Marshal(msg)
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			_ = conn.Write(writeCtx, websocket.MessageText, payload)
			cancel()
		}
	}
}
