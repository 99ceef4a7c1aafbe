package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/k4yt3x/rnnoise-pulseaudio-control/internal/config"
	"github.com/k4yt3x/rnnoise-pulseaudio-control/internal/routing"
)

// DisableCmd creates the disable command.
func DisableCmd(cfg *config.Config) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "disable",
		Short: "Tear down the denoising topology",
		Long: `Unload the modules recorded at enable time and restore the previous
default source. With --all, instead unload every loaded module of the
four involved types (loopback, null sink, LADSPA sink, remap source) —
use this to recover when the state file is lost, but note it also
removes matching modules loaded by other programs.`,
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

			if all {
				err = ctrl.DisableAll(cmd.Context())
			} else {
				err = ctrl.Disable(cmd.Context())
			}

			switch {
			case errors.Is(err, routing.ErrNothingToDisable):
				fmt.Println("RNNoise is not enabled; nothing to do")
				return nil
			case err != nil:
				var uerr *routing.UnloadError
				if errors.As(err, &uerr) {
					// Best-effort teardown: report, but exit 0.
					fmt.Fprintf(os.Stderr, "Warning: %v\n", uerr)
					fmt.Println("RNNoise disabled (with warnings)")
					return nil
				}
				return err
			}

			fmt.Println("RNNoise disabled")
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false,
		"unload all modules of the involved types instead of the recorded handles")

	return cmd
}
