// Package quiz holds the round state machine shared by solo and multiplayer
// play. It is pure local state: multiplayer controllers attach observers to
// it and turn transitions into progress messages.
package quiz

import (
	"math/rand"
	"strings"
	"time"

	"github.com/kapisz0n951/learnengpol/internal/domain"
	"github.com/kapisz0n951/learnengpol/internal/errors"
)

// RoundLength is the fixed number of questions in every round.
const RoundLength = 10

type State string

const (
	StateIdle     State = "idle"
	StateActive   State = "active"
	StateFinished State = "finished"
)

// Question is one drawn word plus its answer options. Options are empty in
// spelling mode, where the answer is assembled from letters instead.
type Question struct {
	Word    domain.Word
	Options []string
}

// Answered is one history entry of the current attempt.
type Answered struct {
	Word      domain.Word
	Submitted string
	Expected  string
	Correct   bool
}

// Result describes the transition caused by one submitted answer. Score and
// Progress are the values after the transition, which is exactly what a
// participant reports to the host.
type Result struct {
	Correct  bool
	Score    int
	Progress int
	Status   domain.Status
}

// Observer is called synchronously after every answered question.
type Observer func(Result)

// Round is one playthrough of RoundLength questions. A wrong answer restarts
// the same drawn sequence from index 0; the questions and their option sets
// are never re-shuffled within a round.
type Round struct {
	cfg       domain.RoundConfig
	questions []Question
	index     int
	score     int
	history   []Answered
	state     State
	observers []Observer
	rng       *rand.Rand
}

// NewRound draws RoundLength questions from words and builds their option
// sets. The round starts Active. A nil rng means time-seeded.
func NewRound(cfg domain.RoundConfig, words []domain.Word, rng *rand.Rand) (*Round, error) {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	extra := distractorCount(cfg.Difficulty)
	if len(words) < RoundLength || len(words) < extra+1 {
		return nil, errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("quiz: category %s/%s has %d words, need %d", cfg.Group, cfg.Category, len(words), max(RoundLength, extra+1)))
	}

	drawn := make([]domain.Word, len(words))
	copy(drawn, words)
	rng.Shuffle(len(drawn), func(i, j int) { drawn[i], drawn[j] = drawn[j], drawn[i] })

	r := &Round{
		cfg:   cfg,
		state: StateActive,
		rng:   rng,
	}

	for _, w := range drawn[:RoundLength] {
		q := Question{Word: w}
		if cfg.Mode != domain.ModeSpelling {
			q.Options = r.buildOptions(w, words, extra)
		}
		r.questions = append(r.questions, q)
	}

	return r, nil
}

func (r *Round) Config() domain.RoundConfig { return r.cfg }
func (r *Round) State() State               { return r.state }
func (r *Round) Index() int                 { return r.index }
func (r *Round) Score() int                 { return r.score }
func (r *Round) History() []Answered        { return r.history }

// Current returns the question at the current index, or false once the round
// is finished.
func (r *Round) Current() (Question, bool) {
	if r.state != StateActive {
		return Question{}, false
	}
	return r.questions[r.index], true
}

// Observe registers fn to be called after every answered question.
func (r *Round) Observe(fn Observer) {
	r.observers = append(r.observers, fn)
}

// Submit evaluates an answer for the current question and advances the
// machine. Comparison ignores case and surrounding whitespace.
func (r *Round) Submit(answer string) (Result, error) {
	if r.state != StateActive {
		return Result{}, errors.New(errors.CodeFailedPrecondition,
			errors.WithMessagef("quiz: round is %s", r.state))
	}

	q := r.questions[r.index]
	expected := expectedAnswer(q.Word, r.cfg.Mode)
	correct := equalAnswer(answer, expected)

	var res Result
	if correct {
		r.history = append(r.history, Answered{
			Word:      q.Word,
			Submitted: answer,
			Expected:  expected,
			Correct:   true,
		})
		r.score++
		r.index++

		res = Result{Correct: true, Score: r.score, Progress: r.index, Status: domain.StatusPlaying}
		if r.index == RoundLength {
			r.state = StateFinished
			res.Status = domain.StatusFinished
		}
	} else {
		// Same drawn sequence, same options, back to the start.
		r.index = 0
		r.score = 0
		r.history = nil

		res = Result{Correct: false, Score: 0, Progress: 0, Status: domain.StatusRestart}
	}

	for _, fn := range r.observers {
		fn(res)
	}

	return res, nil
}

// Letters returns the shuffled letters of the current target word for
// spelling mode, with spaces removed.
func (r *Round) Letters() []rune {
	q, ok := r.Current()
	if !ok {
		return nil
	}

	letters := []rune(stripSpaces(q.Word.Target))
	r.rng.Shuffle(len(letters), func(i, j int) { letters[i], letters[j] = letters[j], letters[i] })
	return letters
}

func (r *Round) buildOptions(w domain.Word, pool []domain.Word, extra int) []string {
	others := make([]string, 0, len(pool)-1)
	for _, o := range pool {
		if o.ID == w.ID {
			continue
		}
		others = append(others, expectedAnswer(o, r.cfg.Mode))
	}
	r.rng.Shuffle(len(others), func(i, j int) { others[i], others[j] = others[j], others[i] })

	opts := append([]string{expectedAnswer(w, r.cfg.Mode)}, others[:extra]...)
	r.rng.Shuffle(len(opts), func(i, j int) { opts[i], opts[j] = opts[j], opts[i] })
	return opts
}

func distractorCount(d domain.Difficulty) int {
	switch d {
	case domain.DifficultyEasy:
		return 1
	case domain.DifficultyHard:
		return 5
	default:
		return 3
	}
}

// expectedAnswer is the mode policy table: which rendering of the word a
// submitted answer is compared against.
func expectedAnswer(w domain.Word, m domain.Mode) string {
	switch m {
	case domain.ModeListening:
		return w.Source
	case domain.ModeSpelling:
		return stripSpaces(w.Target)
	default:
		return w.Target
	}
}

func equalAnswer(got, want string) bool {
	return strings.EqualFold(strings.TrimSpace(got), strings.TrimSpace(want))
}

func stripSpaces(s string) string {
	return strings.ReplaceAll(s, " ", "")
}
