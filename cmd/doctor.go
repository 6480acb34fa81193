package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/debutade/debutade-hub/internal/doctor"
	"github.com/debutade/debutade-hub/internal/registry"
	"github.com/debutade/debutade-hub/internal/ui"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor [app]",
	Short: "Check interpreters and packages of every app",
	Long: `The doctor command checks, per app, that the entry script exists, which
interpreter a launch would use, whether the packages in requirements.txt
are installed and who holds the shared port.

With --fix, missing packages are installed with the app's own interpreter.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDoctor,
}

func init() {
	doctorCmd.Flags().Bool("fix", false, "Install missing packages")
	doctorCmd.Flags().BoolP("yes", "y", false, "Do not ask before installing")
	doctorCmd.Flags().Bool("skip-packages", false, "Do not ask pip about installed packages")
}

func runDoctor(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	reg, err := loadRegistry(cfg)
	if err != nil {
		return err
	}

	fix, _ := cmd.Flags().GetBool("fix")
	yes, _ := cmd.Flags().GetBool("yes")
	skip, _ := cmd.Flags().GetBool("skip-packages")

	apps := reg.List()
	if len(args) == 1 {
		app, ok := reg.Get(args[0])
		if !ok {
			return fmt.Errorf("unknown app %q", args[0])
		}
		apps = []registry.AppDescriptor{app}
	}

	ui.PrintHeader("Debutade doctor")
	if doctor.HubPortFree(cfg.Hub.Port) {
		ui.PrintInfo(fmt.Sprintf("Hub port %d is free", cfg.Hub.Port))
	} else {
		ui.PrintInfo(fmt.Sprintf("Hub port %d is in use, probably by a running hub", cfg.Hub.Port))
	}
	ui.PrintDivider()

	opts := doctor.Options{FallbackInterpreter: cfg.Launch.Python, SkipPackages: skip}
	unhealthy := 0
	for _, app := range apps {
		d := doctor.Diagnose(cmd.Context(), app, opts)
		ui.PrintDiagnosis(d)

		if fix && d.Runtime.Installed && len(d.Dependencies.MissingPackages) > 0 {
			installed, all, err := installPackages(cmd, app, d, yes)
			yes = yes || all
			if err != nil {
				ui.PrintError("Install failed: " + err.Error())
			} else if installed {
				d = doctor.Diagnose(cmd.Context(), app, opts)
				ui.PrintSuccess("Packages installed for " + app.ID)
			}
		}

		if !d.Healthy {
			unhealthy++
		}
		ui.PrintDivider()
	}

	if unhealthy > 0 {
		return fmt.Errorf("%d of %d apps cannot be launched", unhealthy, len(apps))
	}
	ui.PrintSuccess("All apps can be launched")
	return nil
}

// installPackages asks before installing unless yes is set. It reports whether
// packages were installed and whether later apps should be installed without
// asking.
func installPackages(cmd *cobra.Command, app registry.AppDescriptor, d doctor.Diagnosis, yes bool) (installed, all bool, err error) {
	if !yes {
		choice, err := ui.RunInstallPrompt(d)
		if err != nil {
			return false, false, err
		}
		if choice == ui.InstallSkip {
			return false, false, nil
		}
		all = choice == ui.InstallAll
	}

	if err := doctor.InstallDependencies(cmd.Context(), app, d.Runtime.Path, os.Stdout); err != nil {
		return false, all, fmt.Errorf("pip install in %s: %w", app.Dir, err)
	}
	return true, all, nil
}
