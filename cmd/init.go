package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/debutade/debutade-hub/internal/config"
	"github.com/debutade/debutade-hub/internal/registry"
	"github.com/debutade/debutade-hub/internal/ui"
)

// settingsTemplate documents every setting with its default value.
const settingsTemplate = `# Debutade hub settings. Flags and DEBUTADE_* environment variables win.
apps_file: apps.yaml
shared_config: config.json

hub:
  host: 127.0.0.1
  port: 5003

subapp:
  port: 5004

launch:
  start_timeout: 60     # seconds
  poll_interval: 400ms
  settle_delay: 600ms
  grace_period: 4s
  kill_grace_period: 2s
  kill_on_timeout: true
  python: ""            # interpreter for apps without a virtualenv

log:
  level: info
  format: text
  file: debutade.log

metrics:
  enabled: true
  namespace: debutade
`

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write an editable apps catalog and settings file",
	Long: `The init command writes the built-in app catalog to the apps file and a
commented ` + config.FileName + ` with every default, both in the base directory.
Edit them to add apps or move them elsewhere.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolP("force", "f", false, "Overwrite existing files")
}

func runInit(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	force, _ := cmd.Flags().GetBool("force")

	reg, err := registry.Default(cfg.BaseDir, cfg.Subapp.Port)
	if err != nil {
		return err
	}

	if err := writeOnce(cfg.AppsFile, force, func(path string) error {
		return registry.Write(path, reg)
	}); err != nil {
		return err
	}
	ui.PrintSuccess(fmt.Sprintf("Wrote %d apps to %s", reg.Len(), cfg.AppsFile))

	settings := filepath.Join(cfg.BaseDir, config.FileName)
	if err := writeOnce(settings, force, func(path string) error {
		return os.WriteFile(path, []byte(settingsTemplate), 0o644)
	}); err != nil {
		return err
	}
	ui.PrintSuccess("Wrote " + settings)

	fmt.Println()
	ui.PrintInfo("Check the apps with: debutade doctor")
	return nil
}

func writeOnce(path string, force bool, write func(string) error) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists. Use --force to overwrite", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", path, err)
	}
	if err := write(path); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
