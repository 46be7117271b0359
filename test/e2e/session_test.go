package e2e

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kapisz0n951/learnengpol/internal/domain"
	"github.com/kapisz0n951/learnengpol/internal/host"
	"github.com/kapisz0n951/learnengpol/internal/participant"
	"github.com/kapisz0n951/learnengpol/internal/quiz"
	"github.com/kapisz0n951/learnengpol/internal/transport"
)

// TestClassroomSession walks one full session: a teacher opens a room, two
// students join, a round runs with one perfect playthrough and one restart,
// and the session ends with everyone back to idle.
func TestClassroomSession(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	m := transport.NewMemory()
	defer m.Close()

	teacher, err := host.Open(ctx, host.Config{Transport: m})
	require.NoError(t, err)

	anna, err := participant.Join(ctx, teacher.RoomCode(), "Anna", participant.Config{Transport: m})
	require.NoError(t, err)
	defer anna.Leave()

	bartek, err := participant.Join(ctx, teacher.RoomCode(), "Bartek", participant.Config{Transport: m})
	require.NoError(t, err)
	defer bartek.Leave()

	// Both joins land on the roster with zeroed scores.
	require.Eventually(t, func() bool {
		return len(teacher.View().Roster) == 2
	}, 5*time.Second, 10*time.Millisecond)
	for _, p := range teacher.View().Roster {
		assert.Zero(t, p.Score)
		assert.Equal(t, domain.StatusPlaying, p.Status)
	}

	// Teacher starts a translation round.
	require.NoError(t, teacher.StartRound(domain.RoundConfig{
		Group:      "words",
		Category:   "food",
		Difficulty: domain.DifficultyNormal,
		Mode:       domain.ModeTranslation,
	}))

	for _, p := range []*participant.Controller{anna, bartek} {
		p := p
		require.Eventually(t, func() bool {
			return p.View().Active
		}, 5*time.Second, 10*time.Millisecond)
	}

	// Anna plays a perfect round.
	for anna.View().Active {
		res, err := anna.Submit(anna.View().Question.Word.Target)
		require.NoError(t, err)
		require.True(t, res.Correct)
	}
	assert.True(t, anna.View().Finished)

	// Bartek gets three right, slips up, and restarts from the top.
	for i := 0; i < 3; i++ {
		_, err := bartek.Submit(bartek.View().Question.Word.Target)
		require.NoError(t, err)
	}
	res, err := bartek.Submit("nope")
	require.NoError(t, err)
	assert.False(t, res.Correct)
	assert.Equal(t, domain.StatusRestart, res.Status)
	assert.Equal(t, 0, bartek.View().Index)

	// The teacher's leaderboard converges on the reported progress.
	require.Eventually(t, func() bool {
		lb := teacher.Leaderboard()
		if len(lb.Entries) != 2 {
			return false
		}
		return lb.Entries[0].Nickname == "Anna" &&
			lb.Entries[0].Score == quiz.RoundLength &&
			lb.Entries[1].Nickname == "Bartek" &&
			lb.Entries[1].Status == domain.StatusRestart
	}, 5*time.Second, 10*time.Millisecond)

	lb := teacher.Leaderboard()
	assert.Equal(t, domain.StatusFinished, lb.Entries[0].Status)
	assert.Equal(t, 0, lb.Entries[1].Score)

	// Ending the session sends everyone back to idle.
	teacher.EndSession()

	for _, p := range []*participant.Controller{anna, bartek} {
		p := p
		require.Eventually(t, func() bool {
			v := p.View()
			return !v.Active && !v.Finished
		}, 5*time.Second, 10*time.Millisecond)
	}
}
