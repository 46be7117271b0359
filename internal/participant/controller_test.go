package participant_test

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kapisz0n951/learnengpol/internal/domain"
	"github.com/kapisz0n951/learnengpol/internal/errors"
	"github.com/kapisz0n951/learnengpol/internal/participant"
	"github.com/kapisz0n951/learnengpol/internal/protocol"
	"github.com/kapisz0n951/learnengpol/internal/roomcode"
	"github.com/kapisz0n951/learnengpol/internal/transport"
)

// fakeHost claims a room identity on the memory transport and hands back the
// inbound connection once the participant dials in.
type fakeHost struct {
	code     string
	accepted chan transport.Conn
	conn     transport.Conn
}

func startFakeHost(t *testing.T, m *transport.Memory, code string) *fakeHost {
	t.Helper()

	l, err := m.Listen(context.Background(), roomcode.Identity(code))
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })

	fh := &fakeHost{code: code, accepted: make(chan transport.Conn, 1)}
	go func() {
		if c, ok := <-l.Accept(); ok {
			fh.accepted <- c
		}
	}()

	return fh
}

func (fh *fakeHost) await(t *testing.T) {
	t.Helper()

	select {
	case fh.conn = <-fh.accepted:
	case <-time.After(time.Second):
		t.Fatal("participant never connected")
	}
}

func (fh *fakeHost) recv(t *testing.T) protocol.Message {
	t.Helper()

	select {
	case data, open := <-fh.conn.Recv():
		require.True(t, open, "participant connection closed")
		m, err := protocol.Decode(data)
		require.NoError(t, err)
		return m
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for participant message")
		return protocol.Message{}
	}
}

func (fh *fakeHost) startGame(t *testing.T, cfg domain.RoundConfig) {
	t.Helper()

	data, err := protocol.EncodeStartGame(protocol.StartGame{
		CategoryGroup: cfg.Group,
		Category:      cfg.Category,
		Difficulty:    cfg.Difficulty,
		Mode:          cfg.Mode,
	})
	require.NoError(t, err)
	require.NoError(t, fh.conn.Send(data))
}

func joinFake(t *testing.T, m *transport.Memory, fh *fakeHost, nickname string) *participant.Controller {
	t.Helper()

	p, err := participant.Join(context.Background(), fh.code, nickname, participant.Config{
		Transport: m,
		Rand:      rand.New(rand.NewSource(1)),
	})
	require.NoError(t, err)
	t.Cleanup(p.Leave)

	fh.await(t)
	return p
}

func TestJoin_SendsJoinMessage(t *testing.T) {
	m := transport.NewMemory()
	defer m.Close()

	fh := startFakeHost(t, m, "ABCDE")
	joinFake(t, m, fh, "Alice")

	msg := fh.recv(t)
	require.Equal(t, protocol.TypeJoin, msg.Type)
	assert.Equal(t, "Alice", msg.Join.Nickname)
}

func TestJoin_RejectsMalformedCode(t *testing.T) {
	m := transport.NewMemory()
	defer m.Close()

	_, err := participant.Join(context.Background(), "AB!DE", "Alice", participant.Config{Transport: m})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CodeInvalidArgument))
}

func TestJoin_FailsWhenNobodyListens(t *testing.T) {
	m := transport.NewMemory()
	defer m.Close()

	_, err := participant.Join(context.Background(), "ZZZZZ", "Alice", participant.Config{Transport: m})
	assert.Error(t, err)
}

func TestStartGame_InstantiatesRound(t *testing.T) {
	m := transport.NewMemory()
	defer m.Close()

	fh := startFakeHost(t, m, "ABCDE")
	p := joinFake(t, m, fh, "Alice")
	fh.recv(t) // JOIN

	cfg := domain.RoundConfig{
		Group:      "words",
		Category:   "animals",
		Difficulty: domain.DifficultyNormal,
		Mode:       domain.ModeTranslation,
	}
	fh.startGame(t, cfg)

	require.Eventually(t, func() bool {
		return p.View().Active
	}, time.Second, 10*time.Millisecond)

	v := p.View()
	assert.Equal(t, cfg, v.Config)
	require.NotNil(t, v.Question)
	assert.Len(t, v.Question.Options, 4, "normal difficulty: correct answer plus three distractors")
	assert.Equal(t, 0, v.Index)
	assert.Equal(t, 0, v.Score)
}

func TestStartGame_UnknownCategoryDropped(t *testing.T) {
	m := transport.NewMemory()
	defer m.Close()

	fh := startFakeHost(t, m, "ABCDE")
	p := joinFake(t, m, fh, "Alice")
	fh.recv(t) // JOIN

	fh.startGame(t, domain.RoundConfig{
		Group:      "words",
		Category:   "dinosaurs",
		Difficulty: domain.DifficultyEasy,
		Mode:       domain.ModeTranslation,
	})

	// A bad config is dropped like any other malformed message; a good one
	// after it still lands.
	fh.startGame(t, domain.RoundConfig{
		Group:      "words",
		Category:   "animals",
		Difficulty: domain.DifficultyEasy,
		Mode:       domain.ModeTranslation,
	})

	require.Eventually(t, func() bool {
		return p.View().Active
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, "animals", p.View().Config.Category)
}

func TestSubmit_ReportsProgressToHost(t *testing.T) {
	m := transport.NewMemory()
	defer m.Close()

	fh := startFakeHost(t, m, "ABCDE")
	p := joinFake(t, m, fh, "Alice")
	fh.recv(t) // JOIN

	fh.startGame(t, domain.RoundConfig{
		Group:      "words",
		Category:   "animals",
		Difficulty: domain.DifficultyEasy,
		Mode:       domain.ModeTranslation,
	})
	require.Eventually(t, func() bool {
		return p.View().Active
	}, time.Second, 10*time.Millisecond)

	res, err := p.Submit(p.View().Question.Word.Target)
	require.NoError(t, err)
	assert.True(t, res.Correct)

	msg := fh.recv(t)
	require.Equal(t, protocol.TypeUpdateScore, msg.Type)
	assert.Equal(t, 1, msg.UpdateScore.Score)
	assert.Equal(t, 1, msg.UpdateScore.Progress)
	assert.Equal(t, domain.StatusPlaying, msg.UpdateScore.Status)
}

func TestSubmit_WrongAnswerRestartsAndKeepsSequence(t *testing.T) {
	m := transport.NewMemory()
	defer m.Close()

	fh := startFakeHost(t, m, "ABCDE")
	p := joinFake(t, m, fh, "Alice")
	fh.recv(t) // JOIN

	fh.startGame(t, domain.RoundConfig{
		Group:      "words",
		Category:   "animals",
		Difficulty: domain.DifficultyEasy,
		Mode:       domain.ModeTranslation,
	})
	require.Eventually(t, func() bool {
		return p.View().Active
	}, time.Second, 10*time.Millisecond)

	firstWord := p.View().Question.Word.ID

	// Two correct answers, then a wrong one.
	for i := 0; i < 2; i++ {
		_, err := p.Submit(p.View().Question.Word.Target)
		require.NoError(t, err)
		fh.recv(t)
	}

	res, err := p.Submit("definitely not a translation")
	require.NoError(t, err)
	assert.False(t, res.Correct)

	msg := fh.recv(t)
	require.Equal(t, protocol.TypeUpdateScore, msg.Type)
	assert.Equal(t, 0, msg.UpdateScore.Score)
	assert.Equal(t, 0, msg.UpdateScore.Progress)
	assert.Equal(t, domain.StatusRestart, msg.UpdateScore.Status)

	v := p.View()
	assert.Equal(t, 0, v.Index)
	assert.Equal(t, firstWord, v.Question.Word.ID, "restart replays the same drawn sequence")
}

func TestSubmit_FinishingRoundReportsFinished(t *testing.T) {
	m := transport.NewMemory()
	defer m.Close()

	fh := startFakeHost(t, m, "ABCDE")
	p := joinFake(t, m, fh, "Alice")
	fh.recv(t) // JOIN

	fh.startGame(t, domain.RoundConfig{
		Group:      "words",
		Category:   "animals",
		Difficulty: domain.DifficultyEasy,
		Mode:       domain.ModeTranslation,
	})
	require.Eventually(t, func() bool {
		return p.View().Active
	}, time.Second, 10*time.Millisecond)

	var last protocol.Message
	for p.View().Active {
		_, err := p.Submit(p.View().Question.Word.Target)
		require.NoError(t, err)
		last = fh.recv(t)
	}

	require.Equal(t, protocol.TypeUpdateScore, last.Type)
	assert.Equal(t, 10, last.UpdateScore.Score)
	assert.Equal(t, 10, last.UpdateScore.Progress)
	assert.Equal(t, domain.StatusFinished, last.UpdateScore.Status)
	assert.True(t, p.View().Finished)
}

func TestSubmit_NoActiveRound(t *testing.T) {
	m := transport.NewMemory()
	defer m.Close()

	fh := startFakeHost(t, m, "ABCDE")
	p := joinFake(t, m, fh, "Alice")
	fh.recv(t) // JOIN

	_, err := p.Submit("anything")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CodeFailedPrecondition))
}

func TestGameOver_ReturnsToIdle(t *testing.T) {
	m := transport.NewMemory()
	defer m.Close()

	fh := startFakeHost(t, m, "ABCDE")
	p := joinFake(t, m, fh, "Alice")
	fh.recv(t) // JOIN

	fh.startGame(t, domain.RoundConfig{
		Group:      "words",
		Category:   "animals",
		Difficulty: domain.DifficultyEasy,
		Mode:       domain.ModeTranslation,
	})
	require.Eventually(t, func() bool {
		return p.View().Active
	}, time.Second, 10*time.Millisecond)

	data, err := protocol.EncodeGameOver()
	require.NoError(t, err)
	require.NoError(t, fh.conn.Send(data))

	require.Eventually(t, func() bool {
		v := p.View()
		return !v.Active && v.Question == nil
	}, time.Second, 10*time.Millisecond)
}

func TestLeave_ClosesConnection(t *testing.T) {
	m := transport.NewMemory()
	defer m.Close()

	fh := startFakeHost(t, m, "ABCDE")
	p := joinFake(t, m, fh, "Alice")
	fh.recv(t) // JOIN

	p.Leave()

	select {
	case _, open := <-fh.conn.Recv():
		assert.False(t, open, "host side should see the connection close")
	case <-time.After(time.Second):
		t.Fatal("host side never saw the close")
	}

	select {
	case <-p.Done():
	case <-time.After(time.Second):
		t.Fatal("participant loop still running")
	}
}
