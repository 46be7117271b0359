package domain

// Mode selects how a question is asked and which rendering of the word a
// submitted answer is compared against.
type Mode string

const (
	ModeTranslation Mode = "translation"
	ModeListening   Mode = "listening"
	ModeSpelling    Mode = "spelling"
)

func (m Mode) Valid() bool {
	switch m {
	case ModeTranslation, ModeListening, ModeSpelling:
		return true
	}
	return false
}

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyNormal Difficulty = "normal"
	DifficultyHard   Difficulty = "hard"
)

func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyNormal, DifficultyHard:
		return true
	}
	return false
}

// Status is a participant's place in the current round, reported to the host
// after every answered question.
type Status string

const (
	StatusPlaying  Status = "playing"
	StatusRestart  Status = "restart"
	StatusFinished Status = "finished"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPlaying, StatusRestart, StatusFinished:
		return true
	}
	return false
}

// Word is one entry of the static quiz content. Source is the learner's
// language, Target the language being learned.
type Word struct {
	ID     string
	Source string
	Target string
	Icon   string
}

// RoundConfig describes one round. The host produces it and every participant
// consumes it verbatim to build an equivalent round.
type RoundConfig struct {
	Group      string
	Category   string
	Difficulty Difficulty
	Mode       Mode
}

// Participant is the host's record of one joined peer. It is keyed by the
// peer's connection id and mutated only by messages from that peer.
type Participant struct {
	ID       string
	Nickname string
	Score    int
	Progress int
	Status   Status
}

// Leaderboard is the host's aggregate view of a session.
// Entries are sorted by score in descending order.
type Leaderboard struct {
	RoomCode string
	Entries  []LeaderboardEntry
}

type LeaderboardEntry struct {
	Nickname string
	Score    int
	Progress int
	Status   Status
}
