package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kapisz0n951/learnengpol/internal/domain"
	"github.com/kapisz0n951/learnengpol/internal/participant"
	"github.com/kapisz0n951/learnengpol/internal/quiz"
	"github.com/kapisz0n951/learnengpol/internal/speech"
	"github.com/kapisz0n951/learnengpol/internal/transport"
)

func newJoinCmd() *cobra.Command {
	var relayURL string

	cmd := &cobra.Command{
		Use:   "join <code> <nickname>",
		Short: "Join a classroom session with its room code",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws := transport.NewWS(relayURL)
			defer ws.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			p, err := participant.Join(ctx, args[0], args[1], participant.Config{Transport: ws})
			cancel()
			if err != nil {
				return err
			}
			defer p.Leave()

			fmt.Println("Joined. Waiting for the teacher to start a round...")

			speaker := speech.NewCommand()
			scanner := bufio.NewScanner(os.Stdin)
			var lastIndex = -1

			for {
				select {
				case <-p.Done():
					return nil
				default:
				}

				v := p.View()
				if !v.Active {
					if v.Finished {
						fmt.Printf("Round finished, score %d. Waiting for the next one...\n", v.Score)
					}
					lastIndex = -1
					time.Sleep(200 * time.Millisecond)
					continue
				}

				if v.Index != lastIndex {
					renderQuestion(v, speaker)
					lastIndex = v.Index
				}

				fmt.Print("> ")
				if !scanner.Scan() {
					return scanner.Err()
				}
				answer := scanner.Text()
				if strings.TrimSpace(answer) == "/leave" {
					return nil
				}

				if v.Question != nil {
					answer = resolveChoice(answer, v.Question.Options)
				}
				res, err := p.Submit(answer)
				if err != nil {
					// The round may have been ended from the host side
					// between the prompt and the answer.
					continue
				}
				printResult(res)
				lastIndex = -1
			}
		},
	}

	cmd.Flags().StringVar(&relayURL, "relay", defaultRelayURL, "relay websocket URL")
	return cmd
}

func renderQuestion(v participant.RoundView, speaker speech.Speaker) {
	q := v.Question
	fmt.Printf("\nQuestion %d/%d (score %d)\n", v.Index+1, quiz.RoundLength, v.Score)

	switch v.Config.Mode {
	case domain.ModeListening:
		speaker.Speak(q.Word.Target)
		fmt.Println("Listen and pick what you heard:")
	case domain.ModeSpelling:
		fmt.Printf("Spell the translation of %q using: %s\n", q.Word.Source, string(v.Letters))
		return
	default:
		fmt.Printf("Translate: %s\n", q.Word.Source)
	}

	for i, o := range q.Options {
		fmt.Printf("  %d) %s\n", i+1, o)
	}
}

// resolveChoice maps a typed option number onto the option text; anything
// else is submitted as-is.
func resolveChoice(answer string, options []string) string {
	n, err := strconv.Atoi(strings.TrimSpace(answer))
	if err != nil || n < 1 || n > len(options) {
		return answer
	}
	return options[n-1]
}

func printResult(res quiz.Result) {
	switch {
	case res.Status == domain.StatusFinished:
		fmt.Printf("Correct! Round complete with a perfect score of %d.\n", res.Score)
	case res.Correct:
		fmt.Println("Correct!")
	default:
		fmt.Println("Wrong — back to the first question.")
	}
}
