package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kapisz0n951/learnengpol/internal/content"
	"github.com/kapisz0n951/learnengpol/internal/domain"
	"github.com/kapisz0n951/learnengpol/internal/participant"
	"github.com/kapisz0n951/learnengpol/internal/quiz"
	"github.com/kapisz0n951/learnengpol/internal/speech"
)

func newSoloCmd() *cobra.Command {
	var (
		group      string
		category   string
		difficulty string
		mode       string
	)

	cmd := &cobra.Command{
		Use:   "solo",
		Short: "Practice a round on your own, no session needed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := domain.RoundConfig{
				Group:      group,
				Category:   category,
				Difficulty: domain.Difficulty(difficulty),
				Mode:       domain.Mode(mode),
			}
			if err := content.Validate(cfg); err != nil {
				printCatalog()
				return err
			}

			words, err := content.Lookup(cfg.Group, cfg.Category)
			if err != nil {
				return err
			}

			round, err := quiz.NewRound(cfg, words, nil)
			if err != nil {
				return err
			}

			speaker := speech.NewCommand()
			scanner := bufio.NewScanner(os.Stdin)

			for round.State() == quiz.StateActive {
				q, _ := round.Current()

				v := soloView(cfg, round, q)
				renderQuestion(v, speaker)

				fmt.Print("> ")
				if !scanner.Scan() {
					return scanner.Err()
				}
				answer := resolveChoice(scanner.Text(), q.Options)

				res, err := round.Submit(answer)
				if err != nil {
					return err
				}
				printResult(res)
			}

			fmt.Printf("Done! Final score: %d/%d\n", round.Score(), quiz.RoundLength)
			return nil
		},
	}

	cmd.Flags().StringVar(&group, "group", "words", "category group")
	cmd.Flags().StringVar(&category, "category", "animals", "category within the group")
	cmd.Flags().StringVar(&difficulty, "difficulty", string(domain.DifficultyNormal), "easy, normal or hard")
	cmd.Flags().StringVar(&mode, "mode", string(domain.ModeTranslation), "translation, listening or spelling")
	return cmd
}

func soloView(cfg domain.RoundConfig, round *quiz.Round, q quiz.Question) participant.RoundView {
	v := participant.RoundView{
		Active:   true,
		Config:   cfg,
		Question: &q,
		Index:    round.Index(),
		Score:    round.Score(),
	}
	if cfg.Mode == domain.ModeSpelling {
		v.Letters = round.Letters()
	}
	return v
}

func printCatalog() {
	for _, g := range content.Groups() {
		cs, err := content.Categories(g)
		if err != nil {
			continue
		}
		fmt.Printf("%s: %s\n", g, strings.Join(cs, ", "))
	}
}
