// Package participant owns the student side of a multiplayer session: the
// join handshake, reacting to the host's broadcasts, and reporting progress
// after every answered question.
//
// Like the host, all state lives in one goroutine fed by a single inbox.
package participant

import (
	"context"
	"log/slog"
	"math/rand"

	"github.com/kapisz0n951/learnengpol/internal/content"
	"github.com/kapisz0n951/learnengpol/internal/domain"
	"github.com/kapisz0n951/learnengpol/internal/errors"
	"github.com/kapisz0n951/learnengpol/internal/event"
	"github.com/kapisz0n951/learnengpol/internal/protocol"
	"github.com/kapisz0n951/learnengpol/internal/quiz"
	"github.com/kapisz0n951/learnengpol/internal/roomcode"
	"github.com/kapisz0n951/learnengpol/internal/transport"
)

type Config struct {
	Transport transport.Transport
	EventBus  *event.Bus

	// Rand seeds round draws; nil means time-seeded. Tests inject it.
	Rand *rand.Rand
}

type msg interface{ isParticipantMsg() }

type hostData struct{ data []byte }
type hostClosed struct{}
type submitAnswer struct {
	answer string
	reply  chan submitReply
}
type getView struct{ reply chan RoundView }
type leave struct{ reply chan struct{} }

func (hostData) isParticipantMsg()     {}
func (hostClosed) isParticipantMsg()   {}
func (submitAnswer) isParticipantMsg() {}
func (getView) isParticipantMsg()      {}
func (leave) isParticipantMsg()        {}

type submitReply struct {
	res quiz.Result
	err error
}

// RoundView is a copy of the local round state for rendering.
type RoundView struct {
	Active   bool
	Finished bool
	Config   domain.RoundConfig
	Question *quiz.Question
	Letters  []rune
	Index    int
	Score    int
}

type Controller struct {
	nickname string
	eb       *event.Bus
	conn     transport.Conn
	rng      *rand.Rand

	inbox chan msg
	done  chan struct{}

	// Owned by the loop goroutine.
	round *quiz.Round
}

// Join connects to the host derived from the room code and announces the
// nickname. A bad code or an absent host fails the dial; the context bounds
// how long the caller is willing to wait.
func Join(ctx context.Context, code, nickname string, c Config) (*Controller, error) {
	if !roomcode.Valid(code) {
		return nil, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("invalid room code %q", code))
	}

	conn, err := c.Transport.Connect(ctx, roomcode.Identity(code))
	if err != nil {
		return nil, err
	}

	data, err := protocol.EncodeJoin(protocol.Join{Nickname: nickname})
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := conn.Send(data); err != nil {
		conn.Close()
		return nil, err
	}

	p := &Controller{
		nickname: nickname,
		eb:       c.EventBus,
		conn:     conn,
		rng:      c.Rand,
		inbox:    make(chan msg, 64),
		done:     make(chan struct{}),
	}

	go p.pump()
	go p.loop()

	slog.InfoContext(ctx, "participant: joined session", "code", roomcode.Normalize(code), "nickname", nickname)
	return p, nil
}

// Submit answers the current question. The resulting progress report to the
// host is sent before Submit returns, preserving per-connection order.
func (p *Controller) Submit(answer string) (quiz.Result, error) {
	reply := make(chan submitReply, 1)
	if !p.send(submitAnswer{answer: answer, reply: reply}) {
		return quiz.Result{}, leftSessionErr()
	}

	select {
	case r := <-reply:
		return r.res, r.err
	case <-p.done:
		return quiz.Result{}, leftSessionErr()
	}
}

// View snapshots the local round for rendering.
func (p *Controller) View() RoundView {
	reply := make(chan RoundView, 1)
	if !p.send(getView{reply: reply}) {
		return RoundView{}
	}

	select {
	case v := <-reply:
		return v
	case <-p.done:
		return RoundView{}
	}
}

// Leave closes the connection to the host and discards any active round.
func (p *Controller) Leave() {
	reply := make(chan struct{}, 1)
	if !p.send(leave{reply: reply}) {
		return
	}

	select {
	case <-reply:
	case <-p.done:
	}
}

// Done is closed when the participant has left the session.
func (p *Controller) Done() <-chan struct{} { return p.done }

func leftSessionErr() error {
	return errors.New(errors.CodeFailedPrecondition, errors.WithMessagef("left session"))
}

func (p *Controller) send(m msg) bool {
	select {
	case p.inbox <- m:
		return true
	case <-p.done:
		return false
	}
}

func (p *Controller) pump() {
	for data := range p.conn.Recv() {
		if !p.send(hostData{data: data}) {
			return
		}
	}
	p.send(hostClosed{})
}

func (p *Controller) loop() {
	defer close(p.done)

	for m := range p.inbox {
		switch m := m.(type) {
		case hostData:
			p.handleData(m.data)

		case hostClosed:
			// No host anymore. The round, if any, stays; only an
			// explicit Leave gets the user out.
			slog.WarnContext(context.Background(), "participant: lost connection to host")

		case submitAnswer:
			m.reply <- p.handleSubmit(m.answer)

		case getView:
			m.reply <- p.view()

		case leave:
			p.round = nil
			p.conn.Close()
			m.reply <- struct{}{}
			return
		}
	}
}

func (p *Controller) handleData(data []byte) {
	m, err := protocol.Decode(data)
	if err != nil {
		slog.DebugContext(context.Background(), "participant: dropping message", "error", err)
		return
	}

	switch m.Type {
	case protocol.TypeStartGame:
		p.handleStartGame(*m.StartGame)

	case protocol.TypeGameOver:
		p.round = nil
		p.publish(domain.EventSessionEnded{})
		slog.InfoContext(context.Background(), "participant: game over, back to idle")

	default:
		// JOIN and UPDATE_SCORE only flow participant→host.
		slog.DebugContext(context.Background(), "participant: dropping message", "type", m.Type)
	}
}

// handleStartGame builds a fresh round from the host's config and attaches
// the progress observer. A config naming unknown content is dropped like any
// other bad message.
func (p *Controller) handleStartGame(sg protocol.StartGame) {
	cfg := domain.RoundConfig{
		Group:      sg.CategoryGroup,
		Category:   sg.Category,
		Difficulty: sg.Difficulty,
		Mode:       sg.Mode,
	}

	words, err := content.Lookup(cfg.Group, cfg.Category)
	if err != nil {
		slog.DebugContext(context.Background(), "participant: dropping start_game", "error", err)
		return
	}

	round, err := quiz.NewRound(cfg, words, p.rng)
	if err != nil {
		slog.DebugContext(context.Background(), "participant: dropping start_game", "error", err)
		return
	}

	round.Observe(p.reportProgress)
	p.round = round

	p.publish(domain.EventRoundStarted{Config: cfg})
	slog.InfoContext(context.Background(), "participant: round started",
		"group", cfg.Group, "category", cfg.Category,
		"difficulty", cfg.Difficulty, "mode", cfg.Mode)
}

func (p *Controller) handleSubmit(answer string) submitReply {
	if p.round == nil {
		return submitReply{err: errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("no active round"))}
	}

	res, err := p.round.Submit(answer)
	return submitReply{res: res, err: err}
}

// reportProgress turns a round transition into an UPDATE_SCORE. Best-effort:
// a dead host connection just loses the report.
func (p *Controller) reportProgress(res quiz.Result) {
	data, err := protocol.EncodeUpdateScore(protocol.UpdateScore{
		Score:    res.Score,
		Progress: res.Progress,
		Status:   res.Status,
	})
	if err != nil {
		return
	}

	if err := p.conn.Send(data); err != nil {
		slog.DebugContext(context.Background(), "participant: progress report lost", "error", err)
	}
}

func (p *Controller) view() RoundView {
	if p.round == nil {
		return RoundView{}
	}

	v := RoundView{
		Active:   p.round.State() == quiz.StateActive,
		Finished: p.round.State() == quiz.StateFinished,
		Config:   p.round.Config(),
		Index:    p.round.Index(),
		Score:    p.round.Score(),
	}

	if q, ok := p.round.Current(); ok {
		q := q
		v.Question = &q
		if v.Config.Mode == domain.ModeSpelling {
			v.Letters = p.round.Letters()
		}
	}
	return v
}

func (p *Controller) publish(e event.Event) {
	if p.eb != nil {
		p.eb.Publish(context.Background(), e)
	}
}
