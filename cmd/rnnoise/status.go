package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/k4yt3x/rnnoise-pulseaudio-control/internal/config"
	"github.com/k4yt3x/rnnoise-pulseaudio-control/internal/installer"
	"github.com/k4yt3x/rnnoise-pulseaudio-control/internal/pulse"
	"github.com/k4yt3x/rnnoise-pulseaudio-control/internal/routing"
)

// StatusCmd creates the status command.
func StatusCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show plugin install state and topology state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := installPath(cfg)
			if err != nil {
				return err
			}

			pluginPath := installer.PluginPath(dir)
			if _, err := os.Stat(pluginPath); err == nil {
				fmt.Printf("\033[32m✓\033[0m plugin installed: %s\n", pluginPath)
			} else {
				fmt.Printf("\033[31m✗\033[0m plugin not installed (expected at %s)\n", pluginPath)
			}

			ctrl, _, err := newController(cfg)
			if err != nil {
				return err
			}

			report, err := ctrl.Status(cmd.Context())
			if errors.Is(err, pulse.ErrServerUnreachable) {
				fmt.Printf("\033[31m✗\033[0m audio server unreachable: %v\n", err)
				return nil
			}
			if err != nil {
				return err
			}

			if report.Enabled {
				fmt.Printf("\033[32m✓\033[0m denoising enabled since %s (modules %v)\n",
					report.EnabledAt.Local().Format(time.RFC3339), report.Modules)
				if report.Monitor {
					fmt.Printf("\033[32m✓\033[0m monitor loopback active\n")
				}
				for _, index := range report.Missing {
					fmt.Printf("\033[33m⚠\033[0m module %d is recorded but no longer loaded (server restarted?)\n", index)
				}
				if report.DefaultSource != routing.SourceName {
					fmt.Printf("\033[33m⚠\033[0m default source is %q, expected %q\n",
						report.DefaultSource, routing.SourceName)
				}
			} else {
				fmt.Printf("\033[33m-\033[0m denoising disabled (default source: %s)\n", report.DefaultSource)
			}
			return nil
		},
	}
}
