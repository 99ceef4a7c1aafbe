// Package routing drives the PulseAudio module lifecycle that routes
// the default microphone through the RNNoise LADSPA plugin.
//
// Enable builds this topology, in order:
//
//	null sink "mic_denoised_out"     denoised output bus
//	ladspa sink "mic_raw_in"         raw input bus, filtered into the null sink
//	loopback                         default source -> mic_raw_in
//	remap source "denoised"          mic_denoised_out.monitor as a new source
//
// plus, in monitor mode, a loopback from mic_denoised_out.monitor to
// the default sink. The module indices the server assigns are recorded
// so disable unloads exactly these modules and nothing else.
package routing

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/k4yt3x/rnnoise-pulseaudio-control/internal/pulse"
	"github.com/k4yt3x/rnnoise-pulseaudio-control/internal/state"
)

// Well-known names of the virtual devices this tool creates.
const (
	DenoisedSink = "mic_denoised_out"
	RawSink      = "mic_raw_in"
	SourceName   = "denoised"

	pluginLabel = "noise_suppressor_mono"
)

// sweepModuleNames are the module types the legacy disable sweep
// removes. Matching by type can take down unrelated modules, which is
// why the sweep is only a recovery path for a lost state file.
var sweepModuleNames = []string{
	"module-loopback",
	"module-null-sink",
	"module-ladspa-sink",
	"module-remap-source",
}

// Server is the slice of the pulse client the controller needs. The
// server's module graph is shared mutable state; passing it in
// explicitly keeps the controller testable against a fake.
type Server interface {
	ServerInfo(ctx context.Context) (pulse.Info, error)
	LoadModule(ctx context.Context, name string, args ...string) (uint32, error)
	UnloadModule(ctx context.Context, index uint32) error
	SetDefaultSource(ctx context.Context, name string) error
	Modules(ctx context.Context) ([]pulse.Module, error)
}

// Params are the topology parameters, normally taken from config.
type Params struct {
	// PluginPath is the LADSPA shared object to load.
	PluginPath string
	// Control is the suppression strength, 0-100.
	Control int
	// SampleRate of the null sink in Hz.
	SampleRate int
	// MonitorLatencyMsec is the latency of the monitor loopback.
	MonitorLatencyMsec int
}

// Options select per-enable behavior.
type Options struct {
	// Monitor also routes the denoised audio to the default sink so
	// the user can hear it.
	Monitor bool
}

// StatusReport describes the current lifecycle state.
type StatusReport struct {
	Enabled   bool
	Monitor   bool
	EnabledAt time.Time
	Modules   []uint32
	// Missing lists recorded modules no longer present on the server,
	// e.g. after a server restart.
	Missing       []uint32
	DefaultSource string
}

// Controller owns the enable/disable state machine.
type Controller struct {
	srv    Server
	store  *state.Store
	params Params
}

// New returns a Controller operating on the given server and state store.
func New(srv Server, store *state.Store, params Params) *Controller {
	return &Controller{srv: srv, store: store, params: params}
}

// Enable creates the routing topology and makes "denoised" the default
// source. If any load step fails, every module created earlier in the
// same call is unloaded before the error is returned, so a failed
// enable leaves no residue.
func (c *Controller) Enable(ctx context.Context, opts Options) error {
	fi, err := os.Stat(c.params.PluginPath)
	if err != nil || !fi.Mode().IsRegular() {
		return fmt.Errorf("%w: %s (run `rnnoise install` first)", ErrPluginNotFound, c.params.PluginPath)
	}

	prev, err := c.store.Load()
	if err != nil {
		return err
	}
	if prev != nil && len(prev.Modules) > 0 {
		return fmt.Errorf("%w (since %s)", ErrAlreadyEnabled, prev.EnabledAt.Format(time.RFC3339))
	}

	info, err := c.srv.ServerInfo(ctx)
	if err != nil {
		return &QueryError{Err: err}
	}
	logrus.WithFields(logrus.Fields{
		"source": info.DefaultSource,
		"sink":   info.DefaultSink,
	}).Debug("Resolved server defaults")

	var loaded []uint32
	load := func(step, module string, args ...string) error {
		index, err := c.srv.LoadModule(ctx, module, args...)
		if err != nil {
			c.rollback(ctx, loaded)
			return &EnableError{Step: step, Err: err}
		}
		loaded = append(loaded, index)
		return nil
	}

	if err := load("null-sink", "module-null-sink",
		"sink_name="+DenoisedSink,
		"rate="+strconv.Itoa(c.params.SampleRate),
	); err != nil {
		return err
	}

	if err := load("ladspa-sink", "module-ladspa-sink",
		"sink_name="+RawSink,
		"sink_master="+DenoisedSink,
		"label="+pluginLabel,
		"plugin="+c.params.PluginPath,
		"control="+strconv.Itoa(c.params.Control),
	); err != nil {
		return err
	}

	if err := load("loopback", "module-loopback",
		"source="+info.DefaultSource,
		"sink="+RawSink,
		"channels=1",
	); err != nil {
		return err
	}

	if err := load("remap-source", "module-remap-source",
		"source_name="+SourceName,
		"master="+DenoisedSink+".monitor",
		"channels=1",
	); err != nil {
		return err
	}

	if err := c.srv.SetDefaultSource(ctx, SourceName); err != nil {
		c.rollback(ctx, loaded)
		return &EnableError{Step: "set-default-source", Err: err}
	}

	if opts.Monitor {
		if err := load("monitor-loopback", "module-loopback",
			"latency_msec="+strconv.Itoa(c.params.MonitorLatencyMsec),
			"source="+DenoisedSink+".monitor",
			"sink="+info.DefaultSink,
		); err != nil {
			return err
		}
	}

	st := &state.State{
		Modules:        loaded,
		PreviousSource: info.DefaultSource,
		PreviousSink:   info.DefaultSink,
		Monitor:        opts.Monitor,
		EnabledAt:      time.Now().UTC(),
	}
	if err := c.store.Save(st); err != nil {
		// Without the state file a later disable cannot find the
		// handles, so tear the topology back down now.
		c.rollback(ctx, loaded)
		return fmt.Errorf("routing: record enabled state: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"modules": loaded,
		"monitor": opts.Monitor,
	}).Info("Denoised topology enabled")
	return nil
}

// rollback unloads, in reverse load order, the modules created by a
// partially completed enable. Failures are logged but not returned;
// the original error is the one that matters.
func (c *Controller) rollback(ctx context.Context, loaded []uint32) {
	for i := len(loaded) - 1; i >= 0; i-- {
		if err := c.srv.UnloadModule(ctx, loaded[i]); err != nil {
			logrus.WithFields(logrus.Fields{
				"index": loaded[i],
			}).Warnf("Rollback unload failed: %v", err)
		}
	}
}

// Disable unloads the modules recorded at enable time, in reverse load
// order, and restores the previous default source. Individual unload
// failures do not stop the teardown; they are aggregated into an
// UnloadError. The state file is removed regardless.
func (c *Controller) Disable(ctx context.Context) error {
	st, err := c.store.Load()
	if err != nil {
		return err
	}
	if st == nil || len(st.Modules) == 0 {
		return ErrNothingToDisable
	}

	var errs []error
	for i := len(st.Modules) - 1; i >= 0; i-- {
		if err := c.srv.UnloadModule(ctx, st.Modules[i]); err != nil {
			errs = append(errs, err)
		}
	}

	if st.PreviousSource != "" {
		if err := c.srv.SetDefaultSource(ctx, st.PreviousSource); err != nil {
			errs = append(errs, fmt.Errorf("restore default source: %w", err))
		}
	}

	if err := c.store.Clear(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return &UnloadError{Errs: errs}
	}
	logrus.WithField("modules", st.Modules).Info("Denoised topology disabled")
	return nil
}

// DisableAll removes every loaded module matching the well-known type
// names, regardless of who loaded it. This reproduces the blunt legacy
// teardown and exists to recover when the state file is gone; prefer
// Disable.
func (c *Controller) DisableAll(ctx context.Context) error {
	modules, err := c.srv.Modules(ctx)
	if err != nil {
		return &QueryError{Err: err}
	}

	var victims []uint32
	for _, m := range modules {
		for _, name := range sweepModuleNames {
			if m.Name == name {
				victims = append(victims, m.Index)
				break
			}
		}
	}
	if len(victims) == 0 {
		return ErrNothingToDisable
	}

	var errs []error
	for i := len(victims) - 1; i >= 0; i-- {
		if err := c.srv.UnloadModule(ctx, victims[i]); err != nil {
			errs = append(errs, err)
		}
	}

	if err := c.store.Clear(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return &UnloadError{Errs: errs}
	}
	logrus.WithField("modules", victims).Info("Swept denoise module types")
	return nil
}

// Status reports whether the topology is enabled and cross-checks the
// recorded modules against the server.
func (c *Controller) Status(ctx context.Context) (*StatusReport, error) {
	report := &StatusReport{}

	st, err := c.store.Load()
	if err != nil {
		return nil, err
	}
	if st != nil && len(st.Modules) > 0 {
		report.Enabled = true
		report.Monitor = st.Monitor
		report.EnabledAt = st.EnabledAt
		report.Modules = st.Modules
	}

	info, err := c.srv.ServerInfo(ctx)
	if err != nil {
		return nil, &QueryError{Err: err}
	}
	report.DefaultSource = info.DefaultSource

	if report.Enabled {
		loaded, err := c.srv.Modules(ctx)
		if err != nil {
			return nil, &QueryError{Err: err}
		}
		present := make(map[uint32]bool, len(loaded))
		for _, m := range loaded {
			present[m.Index] = true
		}
		for _, index := range report.Modules {
			if !present[index] {
				report.Missing = append(report.Missing, index)
			}
		}
	}
	return report, nil
}
