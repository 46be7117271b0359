// Package protocol defines the messages exchanged between a host and its
// participants. The wire format is a JSON envelope with a type tag and a
// type-specific payload.
//
// Receivers are deliberately permissive: a message that fails to decode is
// dropped, never fatal. The transport only carries protocol-generated
// messages between trusted classroom peers, so anything malformed is stale or
// noise, not an attack to answer.
package protocol

import (
	"encoding/json"
	"strings"

	"github.com/kapisz0n951/learnengpol/internal/domain"
	"github.com/kapisz0n951/learnengpol/internal/errors"
)

type Type string

const (
	TypeJoin        Type = "JOIN"
	TypeStartGame   Type = "START_GAME"
	TypeUpdateScore Type = "UPDATE_SCORE"
	TypeGameOver    Type = "GAME_OVER"
)

type envelope struct {
	Type    Type            `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Join is sent participant→host once, immediately after the connection opens.
type Join struct {
	Nickname string `json:"nickname"`
}

// StartGame is sent host→participants to begin a synchronized round.
type StartGame struct {
	CategoryGroup string            `json:"categoryGroup"`
	Category      string            `json:"category"`
	Difficulty    domain.Difficulty `json:"difficulty"`
	Mode          domain.Mode       `json:"mode"`
}

// UpdateScore is sent participant→host after every answered question.
type UpdateScore struct {
	Score    int           `json:"score"`
	Progress int           `json:"progress"`
	Status   domain.Status `json:"status"`
}

// Message is a decoded, validated inbound message. Exactly the payload field
// matching Type is set; GAME_OVER has none.
type Message struct {
	Type        Type
	Join        *Join
	StartGame   *StartGame
	UpdateScore *UpdateScore
}

func EncodeJoin(j Join) ([]byte, error) {
	return encode(TypeJoin, j)
}

func EncodeStartGame(sg StartGame) ([]byte, error) {
	return encode(TypeStartGame, sg)
}

func EncodeUpdateScore(us UpdateScore) ([]byte, error) {
	return encode(TypeUpdateScore, us)
}

func EncodeGameOver() ([]byte, error) {
	return json.Marshal(envelope{Type: TypeGameOver})
}

func encode(t Type, payload any) ([]byte, error) {
	p, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Type: t, Payload: p})
}

// Decode parses and validates one inbound message. Any error means the
// message must be dropped by the receiver.
func Decode(data []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Message{}, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("decode envelope"),
			errors.WithCause(err))
	}

	m := Message{Type: env.Type}

	switch env.Type {
	case TypeJoin:
		var j Join
		if err := unmarshalPayload(env.Payload, &j); err != nil {
			return Message{}, err
		}
		if strings.TrimSpace(j.Nickname) == "" {
			return Message{}, errors.New(errors.CodeInvalidArgument,
				errors.WithMessagef("join: empty nickname"))
		}
		m.Join = &j

	case TypeStartGame:
		var sg StartGame
		if err := unmarshalPayload(env.Payload, &sg); err != nil {
			return Message{}, err
		}
		if sg.CategoryGroup == "" || sg.Category == "" {
			return Message{}, errors.New(errors.CodeInvalidArgument,
				errors.WithMessagef("start_game: missing category"))
		}
		if !sg.Difficulty.Valid() || !sg.Mode.Valid() {
			return Message{}, errors.New(errors.CodeInvalidArgument,
				errors.WithMessagef("start_game: difficulty=%q mode=%q", sg.Difficulty, sg.Mode))
		}
		m.StartGame = &sg

	case TypeUpdateScore:
		var us UpdateScore
		if err := unmarshalPayload(env.Payload, &us); err != nil {
			return Message{}, err
		}
		if us.Score < 0 || us.Progress < 0 {
			return Message{}, errors.New(errors.CodeInvalidArgument,
				errors.WithMessagef("update_score: negative score=%d progress=%d", us.Score, us.Progress))
		}
		if !us.Status.Valid() {
			return Message{}, errors.New(errors.CodeInvalidArgument,
				errors.WithMessagef("update_score: status=%q", us.Status))
		}
		m.UpdateScore = &us

	case TypeGameOver:
		// No payload.

	default:
		return Message{}, errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("unknown message type %q", env.Type))
	}

	return m, nil
}

func unmarshalPayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("missing payload"))
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return errors.New(errors.CodeInvalidArgument,
			errors.WithMessagef("decode payload"),
			errors.WithCause(err))
	}
	return nil
}
