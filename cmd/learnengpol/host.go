package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	qrcode "github.com/skip2/go-qrcode"
	"github.com/spf13/cobra"

	"github.com/kapisz0n951/learnengpol/internal/content"
	"github.com/kapisz0n951/learnengpol/internal/domain"
	"github.com/kapisz0n951/learnengpol/internal/event"
	"github.com/kapisz0n951/learnengpol/internal/host"
	"github.com/kapisz0n951/learnengpol/internal/transport"
)

func newHostCmd() *cobra.Command {
	var (
		relayURL string
		qrPath   string
	)

	cmd := &cobra.Command{
		Use:   "host",
		Short: "Host a classroom session and hand out its room code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ws := transport.NewWS(relayURL)
			defer ws.Close()

			eb := event.NewBus()
			defer eb.Stop()

			// The bus dispatches by event name; the dashboard wants two of
			// them.
			dashboard := func(_ context.Context, e event.Event) error {
				switch e := e.(type) {
				case domain.EventParticipantJoined:
					fmt.Printf("* %s joined\n", e.Participant.Nickname)
				case domain.EventScoreUpdated:
					printLeaderboard(e.Leaderboard)
				}
				return nil
			}
			eb.Subscribe(domain.EventNameParticipantJoined, dashboard)
			eb.Subscribe(domain.EventNameScoreUpdated, dashboard)

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			h, err := host.Open(ctx, host.Config{Transport: ws, EventBus: eb})
			cancel()
			if err != nil {
				return err
			}

			fmt.Printf("Room code: %s\n", h.RoomCode())
			if qrPath != "" {
				if err := qrcode.WriteFile(h.RoomCode(), qrcode.Medium, 256, qrPath); err != nil {
					return fmt.Errorf("write QR code: %w", err)
				}
				fmt.Printf("QR code written to %s\n", qrPath)
			}

			fmt.Println(`Commands:
  start <group> <category> <difficulty> <mode>
  board
  end`)

			scanner := bufio.NewScanner(os.Stdin)
			for scanner.Scan() {
				fields := strings.Fields(scanner.Text())
				if len(fields) == 0 {
					continue
				}

				switch fields[0] {
				case "start":
					if len(fields) != 5 {
						fmt.Println("usage: start <group> <category> <difficulty> <mode>")
						fmt.Printf("groups: %s\n", strings.Join(content.Groups(), ", "))
						continue
					}
					err := h.StartRound(domain.RoundConfig{
						Group:      fields[1],
						Category:   fields[2],
						Difficulty: domain.Difficulty(fields[3]),
						Mode:       domain.Mode(fields[4]),
					})
					if err != nil {
						fmt.Printf("start: %v\n", err)
						continue
					}
					fmt.Println("Round started.")

				case "board":
					printLeaderboard(h.Leaderboard())

				case "end", "quit", "exit":
					h.EndSession()
					return nil

				default:
					fmt.Printf("unknown command %q\n", fields[0])
				}
			}

			h.EndSession()
			return scanner.Err()
		},
	}

	cmd.Flags().StringVar(&relayURL, "relay", defaultRelayURL, "relay websocket URL")
	cmd.Flags().StringVar(&qrPath, "qr", "", "write the room code as a QR code PNG to this path")
	return cmd
}

func printLeaderboard(lb domain.Leaderboard) {
	fmt.Printf("Leaderboard for %s:\n", lb.RoomCode)
	for i, e := range lb.Entries {
		fmt.Printf("%2d. %-20s score=%d progress=%d (%s)\n", i+1, e.Nickname, e.Score, e.Progress, e.Status)
	}
}
