package session

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/duelgrid/duel-backend/internal/archive"
	"github.com/duelgrid/duel-backend/internal/engine"
	"github.com/duelgrid/duel-backend/pkg/types"
)

// Msg is the closed union of session events. Every variant is handled on
// the session's own goroutine, so the mutate / snapshot / broadcast
// sequence for one session never interleaves with itself.
type Msg interface{ isSessionMsg() }

// JoinPlayer seats a player before start. The first seated player is the
// designated start trigger.
type JoinPlayer struct {
	ConnID string
	User   string
	Side   engine.Side
	DeckID string
	Outbox chan types.ServerMessage
}

// Start finalizes the roster and initializes the authoritative state.
type Start struct{ ConnID string }

// Action dispatches a named engine command for the caller's side.
type Action struct {
	ConnID string
	Name   string
	Args   map[string]any
}

// Say relays chat under the caller's role.
type Say struct {
	ConnID string
	Text   string
}

type Concede struct{ ConnID string }

// Mute toggles the spectator-mute flag.
type Mute struct {
	ConnID string
	Muted  bool
}

// Leave removes the participant owning ConnID.
type Leave struct{ ConnID string }

// Watch is a spectator admission request for a started session.
type Watch struct {
	ConnID   string
	User     string
	Password string
	Outbox   chan types.ServerMessage
	Reply    chan WatchReply
}

// JoinPending is the lobby-level fallback admission: spectating a session
// that has not started yet. Routed here by the hub after the Watch path
// declined.
type JoinPending struct {
	ConnID   string
	User     string
	Password string
	Outbox   chan types.ServerMessage
	Reply    chan WatchReply
}

// Inspect reflects internal state without data races (test support).
type Inspect struct{ Reply chan Overview }

type Shutdown struct{}

func (JoinPlayer) isSessionMsg()  {}
func (Start) isSessionMsg()       {}
func (Action) isSessionMsg()      {}
func (Say) isSessionMsg()         {}
func (Concede) isSessionMsg()     {}
func (Mute) isSessionMsg()        {}
func (Leave) isSessionMsg()       {}
func (Watch) isSessionMsg()       {}
func (JoinPending) isSessionMsg() {}
func (Inspect) isSessionMsg()     {}
func (Shutdown) isSessionMsg()    {}

// Overview is a race-free copy of the fields tests care about.
type Overview struct {
	Started    bool
	Muted      bool
	Players    int
	Spectators int
	Summary    Summary
}

// Config wires a session's collaborators. Snapshots is required; Archive,
// Publish and Logger fall back to no-ops.
type Config struct {
	ID           string
	Rules        engine.Rules
	PasswordHash []byte   // bcrypt hash; empty means open admission
	Blocked      []string // users not authorized to view this session
	Snapshots    *SnapshotStore
	Archive      archive.Store
	Publish      func(Summary)
	Logger       *zap.Logger
}

// Session is a per-session actor: one goroutine owning the authoritative
// state, the participant list and the broadcast sequence. All mutation
// of the state happens through the rules engine, invoked only from the
// actor loop.
type Session struct {
	id     string
	rules  engine.Rules
	logger *zap.Logger
	inbox  chan Msg
	ctx    context.Context
	cancel context.CancelFunc

	passwordHash []byte
	blocked      map[string]bool

	started    bool
	muted      bool
	players    []*Participant
	spectators []*Participant

	state       engine.State
	startRoster engine.Roster
	finished    bool

	snapshots *SnapshotStore
	archive   archive.Store
	publish   func(Summary)
}

func New(parent context.Context, cfg Config) *Session {
	ctx, cancel := context.WithCancel(parent)
	s := &Session{
		id:           cfg.ID,
		rules:        cfg.Rules,
		logger:       cfg.Logger,
		inbox:        make(chan Msg, 64),
		ctx:          ctx,
		cancel:       cancel,
		passwordHash: cfg.PasswordHash,
		blocked:      make(map[string]bool, len(cfg.Blocked)),
		snapshots:    cfg.Snapshots,
		archive:      cfg.Archive,
		publish:      cfg.Publish,
	}
	for _, user := range cfg.Blocked {
		s.blocked[user] = true
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.archive == nil {
		s.archive = archive.Noop{}
	}
	if s.publish == nil {
		s.publish = func(Summary) {}
	}
	go s.loop()
	return s
}

func (s *Session) ID() string { return s.id }

func (s *Session) Inbox() chan<- Msg { return s.inbox }

func (s *Session) loop() {
	for {
		select {
		case <-s.ctx.Done():
			s.shutdown()
			return

		case m := <-s.inbox:
			switch msg := m.(type) {
			case JoinPlayer:
				s.handleJoinPlayer(msg)
			case Start:
				s.handleStart(msg)
			case Action:
				s.handleAction(msg)
			case Say:
				s.handleSay(msg)
			case Concede:
				s.handleConcede(msg)
			case Mute:
				s.handleMute(msg)
			case Leave:
				s.handleLeave(msg)
			case Watch:
				s.handleWatch(msg)
			case JoinPending:
				s.handleJoinPending(msg)
			case Inspect:
				msg.Reply <- s.overview()
			case Shutdown:
				s.shutdown()
				return
			}
		}
	}
}

func (s *Session) shutdown() {
	s.snapshots.Drop(s.id)
	s.cancel()
}

func (s *Session) handleJoinPlayer(m JoinPlayer) {
	switch {
	case s.started:
		s.errTo(m.Outbox, "game already started")
	case len(s.players) >= 2:
		s.errTo(m.Outbox, "both seats are taken")
	case m.Side == "":
		s.errTo(m.Outbox, "side is required")
	case len(s.players) == 1 && s.players[0].Side == m.Side:
		s.errTo(m.Outbox, fmt.Sprintf("side %s is taken", m.Side))
	default:
		s.players = append(s.players, &Participant{
			ConnID: m.ConnID,
			User:   m.User,
			Side:   m.Side,
			DeckID: m.DeckID,
			Outbox: m.Outbox,
		})
		s.deliver(s.players[len(s.players)-1], types.ServerMessage{
			Type:      types.MsgDirective,
			SessionID: s.id,
			Text:      "joined",
		})
		s.publish(s.summary())
	}
}

func (s *Session) handleStart(m Start) {
	p := s.playerByConn(m.ConnID)
	if p == nil {
		return
	}
	if s.started {
		// First start request won; later ones are no-ops.
		return
	}
	if p != s.players[0] {
		return
	}
	if len(s.players) != 2 || s.players[0].Side == s.players[1].Side {
		s.errTo(p.Outbox, "need two players on opposing sides")
		return
	}

	roster := make(engine.Roster, 0, len(s.players))
	for _, pl := range s.players {
		roster = append(roster, engine.Seat{User: pl.User, Side: pl.Side, DeckID: pl.DeckID})
	}
	s.started = true
	s.startRoster = roster
	s.state = s.rules.Initialize(roster)

	rec := &archive.GameRecord{
		SessionID: s.id,
		StartedAt: time.Now().UTC(),
		Roster:    archive.EncodeRoster(roster),
	}
	go func() {
		if err := s.archive.RecordStart(context.Background(), rec); err != nil {
			s.logger.Error("archive start record failed",
				zap.String("session", s.id), zap.Error(err))
		}
	}()

	s.broadcastFull(types.MsgStart)
	s.publish(s.summary())
	s.logger.Info("session started", zap.String("session", s.id))
}

func (s *Session) handleAction(m Action) {
	p := s.playerByConn(m.ConnID)
	if p == nil {
		// No side resolved: fail closed, no mutation, no broadcast.
		return
	}
	if !s.started {
		s.errTo(p.Outbox, "game not started")
		return
	}
	if err := s.rules.ApplyAction(s.state, p.Side, m.Name, m.Args); err != nil {
		s.surfaceEngineError(p, m.Name, err)
		return
	}
	s.broadcastDiff()
	s.recordOutcome()
}

func (s *Session) handleConcede(m Concede) {
	p := s.playerByConn(m.ConnID)
	if p == nil || !s.started {
		return
	}
	if err := s.rules.ApplyConcede(s.state, p.Side); err != nil {
		s.surfaceEngineError(p, "concede", err)
		return
	}
	s.broadcastDiff()
	s.recordOutcome()
}

func (s *Session) handleSay(m Say) {
	if !s.started {
		return
	}
	if p := s.playerByConn(m.ConnID); p != nil {
		// Players are always relayed, regardless of the mute flag.
		s.rules.ApplySay(s.state, engine.Role(p.Side), p.User, m.Text)
		s.broadcastDiff()
		return
	}
	if w := s.spectatorByConn(m.ConnID); w != nil && !s.muted {
		s.rules.ApplySay(s.state, engine.RoleSpectator, w.User, m.Text)
		s.broadcastDiff()
		return
	}
	// Muted spectator or unknown connection: silently dropped.
}

func (s *Session) handleMute(m Mute) {
	p := s.playerByConn(m.ConnID)
	if p == nil {
		return
	}
	s.muted = m.Muted
	if s.started {
		verb := "unmutes"
		if m.Muted {
			verb = "mutes"
		}
		s.rules.ApplyNotification(s.state, fmt.Sprintf("%s %s spectators.", p.User, verb))
		s.broadcastDiff()
	}
	s.publish(s.summary())
}

func (s *Session) handleLeave(m Leave) {
	leaving := s.removeParticipant(m.ConnID)
	if leaving == nil {
		return
	}
	if s.started {
		s.rules.ApplyNotification(s.state, fmt.Sprintf("%s has left the game.", leaving.User))
		s.broadcastDiff()
	}
	s.publish(s.summary())
}

func (s *Session) handleWatch(m Watch) {
	if s.blocked[m.User] {
		m.Reply <- WatchReply{Verdict: VerdictDeclined}
		return
	}
	if !s.started {
		// Pre-start spectating belongs to the lobby-level handler.
		m.Reply <- WatchReply{Verdict: VerdictDeclined}
		return
	}
	if !s.passwordMatches(m.Password) {
		m.Reply <- WatchReply{Verdict: VerdictHandled, Code: WatchForbidden}
		return
	}

	s.admitSpectator(m.ConnID, m.User, m.Outbox, "watching")
	s.rules.ApplyNotification(s.state, fmt.Sprintf("%s joined the game as a spectator.", m.User))
	// A diff is meaningless to a viewer with no prior snapshot; one full
	// push re-synchronizes everyone, new arrival included.
	s.broadcastFull(types.MsgState)
	s.publish(s.summary())
	m.Reply <- WatchReply{Verdict: VerdictHandled, Code: WatchOK}
}

func (s *Session) handleJoinPending(m JoinPending) {
	if s.started || s.blocked[m.User] {
		m.Reply <- WatchReply{Verdict: VerdictDeclined}
		return
	}
	if !s.passwordMatches(m.Password) {
		m.Reply <- WatchReply{Verdict: VerdictHandled, Code: WatchForbidden}
		return
	}
	s.admitSpectator(m.ConnID, m.User, m.Outbox, "pending")
	s.publish(s.summary())
	m.Reply <- WatchReply{Verdict: VerdictHandled, Code: WatchOK}
}

func (s *Session) admitSpectator(connID, user string, outbox chan types.ServerMessage, directive string) {
	w := &Participant{ConnID: connID, User: user, Outbox: outbox}
	s.spectators = append(s.spectators, w)
	s.deliver(w, types.ServerMessage{
		Type:      types.MsgDirective,
		SessionID: s.id,
		Text:      directive,
		Code:      WatchOK,
	})
}

func (s *Session) passwordMatches(supplied string) bool {
	if len(s.passwordHash) == 0 {
		return true
	}
	return bcrypt.CompareHashAndPassword(s.passwordHash, []byte(supplied)) == nil
}

// surfaceEngineError relays an engine rejection to the acting connection.
// Masking it would desynchronize the client, so it is never swallowed;
// nothing was mutated, so nothing is broadcast.
func (s *Session) surfaceEngineError(p *Participant, op string, err error) {
	s.logger.Warn("engine rejected command",
		zap.String("session", s.id),
		zap.String("user", p.User),
		zap.String("command", op),
		zap.Error(err))
	s.errTo(p.Outbox, err.Error())
}

func (s *Session) recordOutcome() {
	oc, ok := s.rules.(engine.Outcomer)
	if !ok || s.finished {
		return
	}
	winner, over := oc.Outcome(s.state)
	if !over {
		return
	}
	s.finished = true
	go func() {
		if err := s.archive.RecordFinish(context.Background(), s.id, string(winner), time.Now().UTC()); err != nil {
			s.logger.Error("archive finish record failed",
				zap.String("session", s.id), zap.Error(err))
		}
	}()
}

func (s *Session) playerByConn(connID string) *Participant {
	for _, p := range s.players {
		if p.ConnID == connID {
			return p
		}
	}
	return nil
}

func (s *Session) spectatorByConn(connID string) *Participant {
	for _, w := range s.spectators {
		if w.ConnID == connID {
			return w
		}
	}
	return nil
}

func (s *Session) removeParticipant(connID string) *Participant {
	for i, p := range s.players {
		if p.ConnID == connID {
			s.players = append(s.players[:i], s.players[i+1:]...)
			return p
		}
	}
	for i, w := range s.spectators {
		if w.ConnID == connID {
			s.spectators = append(s.spectators[:i], s.spectators[i+1:]...)
			return w
		}
	}
	return nil
}

func (s *Session) summary() Summary {
	seats := make([]SummarySeat, 0, len(s.players))
	for _, p := range s.players {
		seats = append(seats, SummarySeat{User: p.User, Side: string(p.Side)})
	}
	return Summary{
		ID:                s.id,
		Started:           s.started,
		Players:           seats,
		Spectators:        len(s.spectators),
		MuteSpectators:    s.muted,
		PasswordProtected: len(s.passwordHash) > 0,
	}
}

func (s *Session) overview() Overview {
	return Overview{
		Started:    s.started,
		Muted:      s.muted,
		Players:    len(s.players),
		Spectators: len(s.spectators),
		Summary:    s.summary(),
	}
}

func (s *Session) errTo(outbox chan types.ServerMessage, text string) {
	if outbox == nil {
		return
	}
	select {
	case outbox <- types.ServerMessage{Type: types.MsgError, SessionID: s.id, Text: text}:
	default:
	}
}
