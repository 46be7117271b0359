// Package host owns the teacher side of a multiplayer session: the room
// code, the roster of joined participants, and the broadcasts that start and
// end rounds.
//
// All session state lives inside a single goroutine. Transport events and
// caller operations are funneled through one inbox, so handlers never run
// concurrently and no ordering across participants is ever assumed.
package host

import (
	"context"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/kapisz0n951/learnengpol/internal/content"
	"github.com/kapisz0n951/learnengpol/internal/domain"
	"github.com/kapisz0n951/learnengpol/internal/errors"
	"github.com/kapisz0n951/learnengpol/internal/event"
	"github.com/kapisz0n951/learnengpol/internal/protocol"
	"github.com/kapisz0n951/learnengpol/internal/roomcode"
	"github.com/kapisz0n951/learnengpol/internal/transport"
)

const broadcastConcurrency = 16

type Config struct {
	Transport transport.Transport
	EventBus  *event.Bus
}

type msg interface{ isHostMsg() }

type connAccepted struct{ conn transport.Conn }
type connData struct {
	id   string
	data []byte
}
type connClosed struct{ id string }
type startRound struct {
	cfg   domain.RoundConfig
	reply chan error
}
type endSession struct{ reply chan struct{} }
type getView struct{ reply chan View }

func (connAccepted) isHostMsg() {}
func (connData) isHostMsg()     {}
func (connClosed) isHostMsg()   {}
func (startRound) isHostMsg()   {}
func (endSession) isHostMsg()   {}
func (getView) isHostMsg()      {}

// View is a copy of the session state for the dashboard.
type View struct {
	RoomCode string
	Roster   []domain.Participant
	Config   *domain.RoundConfig
}

type Controller struct {
	code     string
	eb       *event.Bus
	listener transport.Listener

	inbox chan msg
	done  chan struct{}

	// Owned by the loop goroutine.
	roster map[string]*domain.Participant
	conns  map[string]transport.Conn
	config *domain.RoundConfig
}

// Open generates a room code, claims its identity at the transport and
// starts accepting participants. A transport refusal (identity collision,
// relay down) is returned synchronously; the session never half-starts.
func Open(ctx context.Context, c Config) (*Controller, error) {
	code, err := roomcode.Generate()
	if err != nil {
		return nil, err
	}

	listener, err := c.Transport.Listen(ctx, roomcode.Identity(code))
	if err != nil {
		return nil, err
	}

	h := &Controller{
		code:     code,
		eb:       c.EventBus,
		listener: listener,
		inbox:    make(chan msg, 64),
		done:     make(chan struct{}),
		roster:   make(map[string]*domain.Participant),
		conns:    make(map[string]transport.Conn),
	}

	go h.acceptLoop()
	go h.loop()

	slog.InfoContext(ctx, "host: session open", "code", code)
	return h, nil
}

func (h *Controller) RoomCode() string { return h.code }

// StartRound validates cfg against the content store and broadcasts it to
// every connected participant. Broadcast is fire-and-forget: participants on
// dead connections are skipped, never retried.
func (h *Controller) StartRound(cfg domain.RoundConfig) error {
	reply := make(chan error, 1)
	if !h.send(startRound{cfg: cfg, reply: reply}) {
		return sessionClosedErr()
	}

	select {
	case err := <-reply:
		return err
	case <-h.done:
		return sessionClosedErr()
	}
}

// EndSession broadcasts GAME_OVER, tears down every connection and the
// listening identity, and clears the roster.
func (h *Controller) EndSession() {
	reply := make(chan struct{}, 1)
	if !h.send(endSession{reply: reply}) {
		return
	}

	select {
	case <-reply:
	case <-h.done:
	}
}

// View snapshots the roster for rendering.
func (h *Controller) View() View {
	reply := make(chan View, 1)
	if !h.send(getView{reply: reply}) {
		return View{RoomCode: h.code}
	}

	select {
	case v := <-reply:
		return v
	case <-h.done:
		return View{RoomCode: h.code}
	}
}

// Leaderboard is the roster sorted by score in descending order, ties broken
// by nickname.
func (h *Controller) Leaderboard() domain.Leaderboard {
	v := h.View()

	entries := make([]domain.LeaderboardEntry, 0, len(v.Roster))
	for _, p := range v.Roster {
		entries = append(entries, domain.LeaderboardEntry{
			Nickname: p.Nickname,
			Score:    p.Score,
			Progress: p.Progress,
			Status:   p.Status,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].Nickname < entries[j].Nickname
	})

	return domain.Leaderboard{RoomCode: h.code, Entries: entries}
}

// Done is closed when the session has ended.
func (h *Controller) Done() <-chan struct{} { return h.done }

func sessionClosedErr() error {
	return errors.New(errors.CodeFailedPrecondition, errors.WithMessagef("session closed"))
}

func (h *Controller) send(m msg) bool {
	select {
	case h.inbox <- m:
		return true
	case <-h.done:
		return false
	}
}

func (h *Controller) acceptLoop() {
	for conn := range h.listener.Accept() {
		if !h.send(connAccepted{conn: conn}) {
			conn.Close()
			return
		}
	}
}

func (h *Controller) loop() {
	defer close(h.done)

	for m := range h.inbox {
		switch m := m.(type) {
		case connAccepted:
			h.handleConnAccepted(m.conn)

		case connData:
			h.handleData(m.id, m.data)

		case connClosed:
			// The participant stays on the roster and the
			// leaderboard; only the connection is gone.
			delete(h.conns, m.id)

		case startRound:
			m.reply <- h.handleStartRound(m.cfg)

		case getView:
			m.reply <- h.view()

		case endSession:
			h.handleEndSession()
			m.reply <- struct{}{}
			return
		}
	}
}

// handleConnAccepted registers a data pump for the connection. The peer is
// not on the roster until its JOIN arrives.
func (h *Controller) handleConnAccepted(conn transport.Conn) {
	h.conns[conn.ID()] = conn

	go func() {
		for data := range conn.Recv() {
			if !h.send(connData{id: conn.ID(), data: data}) {
				return
			}
		}
		h.send(connClosed{id: conn.ID()})
	}()
}

func (h *Controller) handleData(id string, data []byte) {
	m, err := protocol.Decode(data)
	if err != nil {
		slog.DebugContext(context.Background(), "host: dropping message", "participant", id, "error", err)
		return
	}

	switch m.Type {
	case protocol.TypeJoin:
		h.handleJoin(id, *m.Join)

	case protocol.TypeUpdateScore:
		h.handleUpdateScore(id, *m.UpdateScore)

	default:
		// START_GAME and GAME_OVER only flow host→participant.
		slog.DebugContext(context.Background(), "host: dropping message", "participant", id, "type", m.Type)
	}
}

func (h *Controller) handleJoin(id string, j protocol.Join) {
	p := &domain.Participant{
		ID:       id,
		Nickname: j.Nickname,
		Status:   domain.StatusPlaying,
	}
	h.roster[id] = p

	slog.InfoContext(context.Background(), "host: participant joined", "participant", id, "nickname", j.Nickname)
	h.publish(domain.EventParticipantJoined{RoomCode: h.code, Participant: *p})
	h.publishLeaderboard()
}

func (h *Controller) handleUpdateScore(id string, us protocol.UpdateScore) {
	p, ok := h.roster[id]
	if !ok {
		// Stale or out-of-order; the sender never joined.
		slog.DebugContext(context.Background(), "host: score update from unknown participant", "participant", id)
		return
	}

	p.Score = us.Score
	p.Progress = us.Progress
	p.Status = us.Status
	h.publishLeaderboard()
}

func (h *Controller) handleStartRound(cfg domain.RoundConfig) error {
	if err := content.Validate(cfg); err != nil {
		return err
	}

	data, err := protocol.EncodeStartGame(protocol.StartGame{
		CategoryGroup: cfg.Group,
		Category:      cfg.Category,
		Difficulty:    cfg.Difficulty,
		Mode:          cfg.Mode,
	})
	if err != nil {
		return err
	}

	h.config = &cfg
	h.broadcast(data)
	h.publish(domain.EventRoundStarted{Config: cfg})
	return nil
}

func (h *Controller) handleEndSession() {
	if data, err := protocol.EncodeGameOver(); err == nil {
		h.broadcast(data)
	}

	for id, conn := range h.conns {
		conn.Close()
		delete(h.conns, id)
	}
	h.listener.Close()
	clear(h.roster)
	h.config = nil

	h.publish(domain.EventSessionEnded{RoomCode: h.code})
	slog.InfoContext(context.Background(), "host: session ended", "code", h.code)
}

// broadcast fans data out to every open connection. Failed sends only lose
// that participant's copy; there is no retry and no acknowledgment.
func (h *Controller) broadcast(data []byte) {
	var eg errgroup.Group
	eg.SetLimit(broadcastConcurrency)

	for id, conn := range h.conns {
		id, conn := id, conn
		eg.Go(func() error {
			if err := conn.Send(data); err != nil {
				slog.DebugContext(context.Background(), "host: broadcast skipped participant", "participant", id, "error", err)
			}
			return nil
		})
	}
	_ = eg.Wait()
}

func (h *Controller) view() View {
	v := View{RoomCode: h.code}
	for _, p := range h.roster {
		v.Roster = append(v.Roster, *p)
	}
	sort.Slice(v.Roster, func(i, j int) bool { return v.Roster[i].ID < v.Roster[j].ID })

	if h.config != nil {
		cfg := *h.config
		v.Config = &cfg
	}
	return v
}

func (h *Controller) publish(e event.Event) {
	if h.eb != nil {
		h.eb.Publish(context.Background(), e)
	}
}

func (h *Controller) publishLeaderboard() {
	if h.eb == nil {
		return
	}

	entries := make([]domain.LeaderboardEntry, 0, len(h.roster))
	for _, p := range h.roster {
		entries = append(entries, domain.LeaderboardEntry{
			Nickname: p.Nickname,
			Score:    p.Score,
			Progress: p.Progress,
			Status:   p.Status,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].Nickname < entries[j].Nickname
	})

	h.publish(domain.EventScoreUpdated{Leaderboard: domain.Leaderboard{
		RoomCode: h.code,
		Entries:  entries,
	}})
}
