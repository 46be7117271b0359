// learnengpol is an English vocabulary trainer for Polish speakers: solo
// practice on the command line, or classroom sessions where a teacher hosts
// and students join with a five letter room code.
package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const defaultRelayURL = "ws://localhost:8080/ws"

func main() {
	root := &cobra.Command{
		Use:           "learnengpol",
		Short:         "English vocabulary quizzes for Polish speakers, solo or in a classroom",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	var verbose bool
	root.PersistentFlags().SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentPreRun = func(*cobra.Command, []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	}

	root.AddCommand(newRelayCmd(), newHostCmd(), newJoinCmd(), newSoloCmd())

	cobra.CheckErr(root.Execute())
}
