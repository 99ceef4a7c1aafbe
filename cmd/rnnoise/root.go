// Package cli implements the rnnoise command tree.
package cli

import (
	"fmt"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/k4yt3x/rnnoise-pulseaudio-control/internal/config"
	"github.com/k4yt3x/rnnoise-pulseaudio-control/internal/installer"
	"github.com/k4yt3x/rnnoise-pulseaudio-control/internal/pulse"
	"github.com/k4yt3x/rnnoise-pulseaudio-control/internal/routing"
	"github.com/k4yt3x/rnnoise-pulseaudio-control/internal/state"
)

// SetupRootCmd builds the root command with all subcommands attached.
func SetupRootCmd(cfg *config.Config) *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:   "rnnoise",
		Short: "Noise suppression for the PulseAudio microphone",
		Long: `rnnoise installs the RNNoise LADSPA plugin and routes the default
microphone through it, exposing a denoised virtual source named "denoised".

Do not run two rnnoise commands at once: the PulseAudio module graph is
shared state and concurrent enable/disable calls will corrupt it. A lock
file guards against this.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				logrus.SetLevel(logrus.DebugLevel)
			} else {
				logrus.SetLevel(logrus.WarnLevel)
			}
		},
	}

	root.PersistentFlags().StringVarP(&cfg.InstallPath, "path", "p",
		cfg.InstallPath, "directory the RNNoise plugin is installed under")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"enable debug logging")

	root.AddCommand(
		EnableCmd(cfg),
		DisableCmd(cfg),
		InstallCmd(cfg),
		UninstallCmd(cfg),
		StatusCmd(cfg),
	)
	return root
}

// installPath expands a leading ~ in the configured install path.
func installPath(cfg *config.Config) (string, error) {
	path, err := homedir.Expand(cfg.InstallPath)
	if err != nil {
		return "", fmt.Errorf("expand install path: %w", err)
	}
	return path, nil
}

// newController wires a routing controller from config.
func newController(cfg *config.Config) (*routing.Controller, *state.Store, error) {
	dir, err := installPath(cfg)
	if err != nil {
		return nil, nil, err
	}

	statePath, err := state.DefaultPath()
	if err != nil {
		return nil, nil, err
	}
	store := state.NewStore(statePath)

	client := pulse.NewClient(cfg.Pactl, cfg.Timeout())
	params := routing.Params{
		PluginPath:         installer.PluginPath(dir),
		Control:            cfg.Control,
		SampleRate:         cfg.SampleRate,
		MonitorLatencyMsec: cfg.MonitorLatencyMsec,
	}
	return routing.New(client, store, params), store, nil
}
