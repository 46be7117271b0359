package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kapisz0n951/learnengpol/internal/config"
	"github.com/kapisz0n951/learnengpol/internal/relay"
)

func newRelayCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Run the rendezvous relay that sessions meet through",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var c relay.Config
			c.HTTP.Port = 8080

			if configPath == "" {
				configPath = os.Getenv("CONFIG_PATH")
			}
			if configPath != "" {
				if err := config.Load(configPath, &c); err != nil {
					return err
				}
			}

			s, err := relay.Init(c)
			if err != nil {
				return err
			}

			shutdown := make(chan os.Signal, 1)
			signal.Notify(shutdown, syscall.SIGTERM, os.Interrupt)

			go s.Start()

			<-shutdown
			s.Shutdown()
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to relay config file (env: CONFIG_PATH)")
	return cmd
}
