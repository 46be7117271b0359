package domain

const (
	EventNameParticipantJoined = "participant.joined"
	EventNameScoreUpdated      = "score.updated"
	EventNameRoundStarted      = "round.started"
	EventNameSessionEnded      = "session.ended"
)

type EventParticipantJoined struct {
	RoomCode    string
	Participant Participant
}

func (EventParticipantJoined) Name() string { return EventNameParticipantJoined }

type EventScoreUpdated struct {
	Leaderboard Leaderboard
}

func (EventScoreUpdated) Name() string { return EventNameScoreUpdated }

type EventRoundStarted struct {
	Config RoundConfig
}

func (EventRoundStarted) Name() string { return EventNameRoundStarted }

type EventSessionEnded struct {
	RoomCode string
}

func (EventSessionEnded) Name() string { return EventNameSessionEnded }
