package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/debutade/debutade-hub/internal/config"
	"github.com/debutade/debutade-hub/internal/hub"
	"github.com/debutade/debutade-hub/internal/registry"
)

// Version information (can be set at build time)
var (
	version = "0.1.0"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "debutade",
	Short: "Start page and launcher for the Debutade web apps",
	Long: `Debutade runs a small hub that starts one of the Debutade web apps on
demand. All apps share one port, so launching an app stops whichever app
was running before.

Usage:
  debutade serve          Run the hub
  debutade board          Live view of all apps
  debutade launch <app>   Start an app through the running hub
  debutade doctor         Check interpreters and packages of every app
  debutade watchdog       Run the hub and restart it when it stops`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", "", "Settings file (default: "+config.FileName+" in the base directory)")
	flags.String("base-dir", "", "Directory the apps live in (default: working directory)")
	flags.String("apps", "apps.yaml", "Apps catalog; the built-in catalog is used when it does not exist")
	flags.String("host", "127.0.0.1", "Hub listen address")
	flags.Int("port", 5003, "Hub port")
	flags.Int("subapp-port", 5004, "Port shared by all apps")
	flags.String("python", "", "Interpreter for apps without a virtualenv")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(appsCmd)
	rootCmd.AddCommand(launchCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(boardCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(watchdogCmd)
}

// loadConfig reads settings with the command's flags taking precedence.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	file, _ := cmd.Flags().GetString("config")
	baseDir, _ := cmd.Flags().GetString("base-dir")
	return config.Load(config.Options{File: file, BaseDir: baseDir, Flags: cmd.Flags()})
}

func loadRegistry(cfg *config.Config) (*registry.Registry, error) {
	reg, err := registry.Load(cfg.AppsFile, cfg.BaseDir, cfg.Subapp.Port)
	if err != nil {
		return nil, fmt.Errorf("load apps: %w", err)
	}
	return reg, nil
}

// hubURL is --hub, or the hub the settings describe.
func hubURL(cmd *cobra.Command, cfg *config.Config) string {
	if url, _ := cmd.Flags().GetString("hub"); url != "" {
		return url
	}
	return cfg.HubURL()
}

func hubClient(cmd *cobra.Command, cfg *config.Config) *hub.Client {
	return hub.NewClient(hubURL(cmd, cfg))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
