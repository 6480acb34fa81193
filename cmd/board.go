package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/debutade/debutade-hub/internal/ui"
)

var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Live view of all apps",
	Long: `Shows every app with its state and process, refreshed from the running hub.
Launch, stop and open apps from the keyboard.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		interval, _ := cmd.Flags().GetDuration("refresh")

		url := hubURL(cmd, cfg)
		client := hubClient(cmd, cfg)
		if _, err := client.Apps(cmd.Context()); err != nil {
			ui.PrintError("Hub is not reachable at " + url)
			ui.PrintInfo("Start it with: debutade serve")
			return err
		}
		return ui.RunBoard(client, url, interval)
	},
}

func init() {
	boardCmd.Flags().Duration("refresh", time.Second, "Refresh interval")
}
