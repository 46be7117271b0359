package protocol_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kapisz0n951/learnengpol/internal/domain"
	"github.com/kapisz0n951/learnengpol/internal/protocol"
)

func TestDecode_Join(t *testing.T) {
	data, err := protocol.EncodeJoin(protocol.Join{Nickname: "Alice"})
	require.NoError(t, err)

	m, err := protocol.Decode(data)
	require.NoError(t, err)

	assert.Equal(t, protocol.TypeJoin, m.Type)
	require.NotNil(t, m.Join)
	assert.Equal(t, "Alice", m.Join.Nickname)
}

func TestDecode_StartGame(t *testing.T) {
	data, err := protocol.EncodeStartGame(protocol.StartGame{
		CategoryGroup: "words",
		Category:      "animals",
		Difficulty:    domain.DifficultyEasy,
		Mode:          domain.ModeTranslation,
	})
	require.NoError(t, err)

	m, err := protocol.Decode(data)
	require.NoError(t, err)

	assert.Equal(t, protocol.TypeStartGame, m.Type)
	require.NotNil(t, m.StartGame)
	assert.Equal(t, "animals", m.StartGame.Category)
	assert.Equal(t, domain.ModeTranslation, m.StartGame.Mode)
}

func TestDecode_UpdateScore(t *testing.T) {
	data, err := protocol.EncodeUpdateScore(protocol.UpdateScore{
		Score:    3,
		Progress: 3,
		Status:   domain.StatusPlaying,
	})
	require.NoError(t, err)

	m, err := protocol.Decode(data)
	require.NoError(t, err)

	require.NotNil(t, m.UpdateScore)
	assert.Equal(t, 3, m.UpdateScore.Score)
	assert.Equal(t, 3, m.UpdateScore.Progress)
	assert.Equal(t, domain.StatusPlaying, m.UpdateScore.Status)
}

func TestDecode_GameOverHasNoPayload(t *testing.T) {
	data, err := protocol.EncodeGameOver()
	require.NoError(t, err)

	m, err := protocol.Decode(data)
	require.NoError(t, err)

	assert.Equal(t, protocol.TypeGameOver, m.Type)
	assert.Nil(t, m.Join)
	assert.Nil(t, m.StartGame)
	assert.Nil(t, m.UpdateScore)
}

func TestDecode_Invalid(t *testing.T) {
	tests := map[string]struct {
		data string
	}{
		"not json":                     {data: `{{`},
		"unknown type":                 {data: `{"type":"TELEPORT"}`},
		"join without payload":         {data: `{"type":"JOIN"}`},
		"join with blank nickname":     {data: `{"type":"JOIN","payload":{"nickname":"   "}}`},
		"start_game missing category":  {data: `{"type":"START_GAME","payload":{"categoryGroup":"words","difficulty":"easy","mode":"translation"}}`},
		"start_game bad difficulty":    {data: `{"type":"START_GAME","payload":{"categoryGroup":"words","category":"animals","difficulty":"brutal","mode":"translation"}}`},
		"start_game bad mode":          {data: `{"type":"START_GAME","payload":{"categoryGroup":"words","category":"animals","difficulty":"easy","mode":"charades"}}`},
		"update_score negative score":  {data: `{"type":"UPDATE_SCORE","payload":{"score":-1,"progress":0,"status":"playing"}}`},
		"update_score unknown status":  {data: `{"type":"UPDATE_SCORE","payload":{"score":1,"progress":1,"status":"idle"}}`},
		"update_score payload mistype": {data: `{"type":"UPDATE_SCORE","payload":{"score":"one"}}`},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := protocol.Decode([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}
