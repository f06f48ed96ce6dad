package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/duelgrid/duel-backend/internal/hub"
	"github.com/duelgrid/duel-backend/internal/session"
)

type createSessionRequest struct {
	Password string   `json:"password,omitempty"`
	Blocked  []string `json:"blocked,omitempty"`
}

type createSessionResponse struct {
	ID string `json:"id"`
}

// CreateSession registers a new session. The admission password is
// hashed here, once, at creation; it is immutable afterwards.
func CreateSession(h *hub.Hub, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createSessionRequest
		if r.Body != nil {
			// An empty body is a session with open admission.
			_ = json.NewDecoder(r.Body).Decode(&req)
		}

		var hash []byte
		if req.Password != "" {
			var err error
			hash, err = bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
			if err != nil {
				logger.Error("hashing session password", zap.Error(err))
				http.Error(w, "failed to create session", http.StatusInternalServerError)
				return
			}
		}

		id := uuid.NewString()
		reply := make(chan *session.Session, 1)
		h.Inbox() <- hub.CreateSession{ID: id, PasswordHash: hash, Blocked: req.Blocked, Reply: reply}
		if <-reply == nil {
			http.Error(w, "failed to create session", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(createSessionResponse{ID: id})
	}
}

// ListSessions serves the lobby summaries.
func ListSessions(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reply := make(chan []session.Summary, 1)
		h.Inbox() <- hub.ListSummaries{Reply: reply}
		summaries := <-reply

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(summaries)
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
