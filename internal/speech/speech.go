// Package speech pronounces quiz words through a local text-to-speech
// command. Playback is fire-and-forget: a round never waits on it and a
// missing or failing synthesizer only costs the audio.
package speech

import (
	"context"
	"log/slog"
	"os/exec"
)

// Speaker pronounces a piece of text. Implementations must return without
// waiting for playback to finish.
type Speaker interface {
	Speak(text string)
}

// NoOp is the silent speaker used when no synthesizer is configured.
type NoOp struct{}

func (NoOp) Speak(string) {}

// Command speaks by spawning an external synthesizer such as espeak or say,
// with the text appended as the final argument.
type Command struct {
	Name string
	Args []string
}

// NewCommand picks the first synthesizer found on PATH, or a NoOp when none
// is installed.
func NewCommand() Speaker {
	for _, c := range []Command{
		{Name: "say"},
		{Name: "espeak-ng", Args: []string{"-v", "en"}},
		{Name: "espeak", Args: []string{"-v", "en"}},
	} {
		if _, err := exec.LookPath(c.Name); err == nil {
			return c
		}
	}
	return NoOp{}
}

func (c Command) Speak(text string) {
	if text == "" {
		return
	}

	args := append(append([]string{}, c.Args...), text)
	cmd := exec.CommandContext(context.Background(), c.Name, args...)

	go func() {
		if err := cmd.Run(); err != nil {
			slog.DebugContext(context.Background(), "speech: synthesizer failed", "command", c.Name, "error", err)
		}
	}()
}
