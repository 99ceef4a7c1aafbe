// Package pulse talks to the PulseAudio server through the pactl
// command-line client. All server access goes through a Client so that
// higher layers can be tested against a fake Runner.
package pulse

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrServerUnreachable indicates that the audio server could not be
// reached: pactl is missing, the call timed out, or the connection to
// the daemon failed.
var ErrServerUnreachable = errors.New("pulse: audio server unreachable")

// Info holds the server defaults reported by `pactl info`.
type Info struct {
	DefaultSource string
	DefaultSink   string
}

// Module is one row of `pactl list short modules`.
type Module struct {
	Index    uint32
	Name     string
	Argument string
}

// Runner executes an external command and returns its stdout.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
}

// execRunner runs commands with os/exec.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		// A context kill surfaces as an ExitError; report the
		// context's own error instead.
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			return stdout.String(), fmt.Errorf("%s: %s: %w", name, msg, err)
		}
		return stdout.String(), fmt.Errorf("%s: %w", name, err)
	}
	return stdout.String(), nil
}

// Client issues pactl commands with a bounded timeout per call.
type Client struct {
	runner  Runner
	pactl   string
	timeout time.Duration
}

// NewClient returns a Client that shells out to the given pactl binary.
// A zero timeout disables the per-call deadline.
func NewClient(pactl string, timeout time.Duration) *Client {
	return &Client{runner: execRunner{}, pactl: pactl, timeout: timeout}
}

// NewClientWithRunner returns a Client backed by a custom Runner. Used
// by tests to substitute a fake server.
func NewClientWithRunner(r Runner, pactl string, timeout time.Duration) *Client {
	return &Client{runner: r, pactl: pactl, timeout: timeout}
}

// run executes one pactl invocation and classifies transport-level
// failures as ErrServerUnreachable.
func (c *Client) run(ctx context.Context, args ...string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	logrus.WithFields(logrus.Fields{
		"command": c.pactl,
		"args":    strings.Join(args, " "),
	}).Debug("Running pactl")

	out, err := c.runner.Run(ctx, c.pactl, args...)
	if err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			return out, fmt.Errorf("%w: call timed out after %s", ErrServerUnreachable, c.timeout)
		case errors.Is(err, exec.ErrNotFound):
			return out, fmt.Errorf("%w: %s not found in PATH", ErrServerUnreachable, c.pactl)
		case isConnectionFailure(err):
			return out, fmt.Errorf("%w: %v", ErrServerUnreachable, err)
		}
		return out, err
	}
	return out, nil
}

// isConnectionFailure matches the messages pactl prints when the
// daemon is not running.
func isConnectionFailure(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection failure") ||
		strings.Contains(msg, "connection terminated")
}

// ServerInfo queries the server's current default source and sink.
func (c *Client) ServerInfo(ctx context.Context) (Info, error) {
	out, err := c.run(ctx, "info")
	if err != nil {
		return Info{}, err
	}

	var info Info
	for _, line := range strings.Split(out, "\n") {
		if v, ok := strings.CutPrefix(line, "Default Source: "); ok {
			info.DefaultSource = strings.TrimSpace(v)
		}
		if v, ok := strings.CutPrefix(line, "Default Sink: "); ok {
			info.DefaultSink = strings.TrimSpace(v)
		}
	}
	if info.DefaultSource == "" || info.DefaultSink == "" {
		return Info{}, fmt.Errorf("pulse: parse info: default source/sink not found in output")
	}
	return info, nil
}

// LoadModule loads a server module and returns the index the server
// assigned to it.
func (c *Client) LoadModule(ctx context.Context, name string, args ...string) (uint32, error) {
	out, err := c.run(ctx, append([]string{"load-module", name}, args...)...)
	if err != nil {
		return 0, fmt.Errorf("pulse: load %s: %w", name, err)
	}

	index, err := strconv.ParseUint(strings.TrimSpace(out), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("pulse: load %s: unexpected output %q", name, strings.TrimSpace(out))
	}

	logrus.WithFields(logrus.Fields{
		"module": name,
		"index":  index,
	}).Debug("Module loaded")
	return uint32(index), nil
}

// UnloadModule unloads the module with the given index.
func (c *Client) UnloadModule(ctx context.Context, index uint32) error {
	if _, err := c.run(ctx, "unload-module", strconv.FormatUint(uint64(index), 10)); err != nil {
		return fmt.Errorf("pulse: unload module %d: %w", index, err)
	}
	return nil
}

// UnloadModulesByName unloads every instance of the named module type.
func (c *Client) UnloadModulesByName(ctx context.Context, name string) error {
	if _, err := c.run(ctx, "unload-module", name); err != nil {
		return fmt.Errorf("pulse: unload %s: %w", name, err)
	}
	return nil
}

// SetDefaultSource changes the server's default input device.
func (c *Client) SetDefaultSource(ctx context.Context, name string) error {
	if _, err := c.run(ctx, "set-default-source", name); err != nil {
		return fmt.Errorf("pulse: set default source %s: %w", name, err)
	}
	return nil
}

// Modules lists the modules currently loaded on the server.
func (c *Client) Modules(ctx context.Context) ([]Module, error) {
	out, err := c.run(ctx, "list", "short", "modules")
	if err != nil {
		return nil, fmt.Errorf("pulse: list modules: %w", err)
	}

	var modules []Module
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.SplitN(line, "\t", 3)
		if len(fields) < 2 {
			continue
		}
		index, err := strconv.ParseUint(strings.TrimSpace(fields[0]), 10, 32)
		if err != nil {
			continue
		}
		m := Module{Index: uint32(index), Name: fields[1]}
		if len(fields) == 3 {
			m.Argument = fields[2]
		}
		modules = append(modules, m)
	}
	return modules, nil
}
