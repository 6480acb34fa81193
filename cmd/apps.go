package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/debutade/debutade-hub/internal/ui"
)

var appsCmd = &cobra.Command{
	Use:   "apps",
	Short: "List the apps the hub can launch",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		reg, err := loadRegistry(cfg)
		if err != nil {
			return err
		}

		ui.PrintHeader(fmt.Sprintf("%d apps on port %d", reg.Len(), reg.Port()))
		fmt.Println(ui.RenderApps(reg.List()))
		return nil
	},
}

var launchCmd = &cobra.Command{
	Use:   "launch <app>",
	Short: "Start an app through the running hub",
	Long: `Asks the running hub to start the app. Whatever else holds the shared port
is stopped first. The command returns once the app accepts connections.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		ui.PrintInfo("Launching " + args[0] + "...")
		url, err := hubClient(cmd, cfg).Launch(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		ui.PrintSuccess(args[0] + " is running at " + url)

		if open, _ := cmd.Flags().GetBool("open"); open {
			if err := ui.OpenInBrowser(url); err != nil {
				ui.PrintWarning("Could not open browser: " + err.Error())
			}
		}
		return nil
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop <app>",
	Short: "Stop an app through the running hub",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		n, err := hubClient(cmd, cfg).Stop(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		ui.PrintSuccess(fmt.Sprintf("Stopped %s (%d processes)", args[0], n))
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which apps are running",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		apps, err := hubClient(cmd, cfg).Apps(cmd.Context())
		if err != nil {
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(apps)
		}
		fmt.Println(ui.RenderStatusTable(apps))
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{launchCmd, stopCmd, statusCmd, boardCmd} {
		c.Flags().String("hub", "", "Hub URL (default: derived from --host and --port)")
	}
	launchCmd.Flags().BoolP("open", "o", false, "Open the app in the browser")
	statusCmd.Flags().Bool("json", false, "Print JSON")
}
