package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/k4yt3x/rnnoise-pulseaudio-control/internal/config"
	"github.com/k4yt3x/rnnoise-pulseaudio-control/internal/routing"
)

// EnableCmd creates the enable command.
func EnableCmd(cfg *config.Config) *cobra.Command {
	var monitor bool

	cmd := &cobra.Command{
		Use:   "enable",
		Short: "Route the default microphone through the RNNoise plugin",
		Long: `Create the denoising topology on the PulseAudio server and set the
default source to the new virtual microphone "denoised". If any step
fails, everything created so far is torn down again.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctrl, store, err := newController(cfg)
			if err != nil {
				return err
			}

			lock, err := acquireLock(store.Dir())
			if err != nil {
				return err
			}
			defer releaseLock(lock)

			if err := ctrl.Enable(cmd.Context(), routing.Options{Monitor: monitor}); err != nil {
				return err
			}

			fmt.Println("RNNoise enabled: default source is now \"denoised\"")
			if monitor {
				fmt.Println("Monitor mode on: denoised audio is routed to the default output")
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&monitor, "monitor", "m", false,
		"also route the denoised audio to the default output sink")

	return cmd
}
