package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/k4yt3x/rnnoise-pulseaudio-control/internal/config"
	"github.com/k4yt3x/rnnoise-pulseaudio-control/internal/installer"
)

// InstallCmd creates the install command.
func InstallCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "install",
		Short: "Download and install the RNNoise LADSPA plugin",
		Long: `Fetch the latest linux release of werman/noise-suppression-for-voice
from GitHub and unpack it under the install path, replacing any
existing install.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := installPath(cfg)
			if err != nil {
				return err
			}

			fmt.Println("Downloading the latest RNNoise release from GitHub...")
			err = installer.New().Install(cmd.Context(), dir, func(downloaded, total int64) {
				if total > 0 {
					fmt.Printf("\r  %d/%d bytes (%d%%)", downloaded, total, downloaded*100/total)
				}
			})
			fmt.Println()
			if err != nil {
				return err
			}

			fmt.Printf("RNNoise installed to %s\n", dir)
			return nil
		},
	}
}

// UninstallCmd creates the uninstall command.
func UninstallCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall",
		Short: "Remove the installed RNNoise plugin",
		Long: `Disable the denoising topology if it is active, then delete the
install directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := installPath(cfg)
			if err != nil {
				return err
			}

			// Best-effort disable before pulling the plugin out from
			// under a loaded LADSPA sink.
			if ctrl, store, err := newController(cfg); err == nil {
				if lock, err := acquireLock(store.Dir()); err == nil {
					_ = ctrl.Disable(cmd.Context())
					releaseLock(lock)
				}
			}

			if err := installer.Uninstall(dir); err != nil {
				return err
			}

			fmt.Printf("Removed %s\n", dir)
			return nil
		},
	}
}
