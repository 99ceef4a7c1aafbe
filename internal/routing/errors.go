package routing

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrPluginNotFound means the LADSPA plugin binary is missing;
	// enable refuses to touch the server in that case.
	ErrPluginNotFound = errors.New("routing: rnnoise plugin not found")

	// ErrAlreadyEnabled means a state file records an existing
	// topology. Run disable first.
	ErrAlreadyEnabled = errors.New("routing: denoised topology already enabled")

	// ErrNothingToDisable means no topology is recorded (or, for the
	// sweep, no matching modules are loaded). Non-fatal.
	ErrNothingToDisable = errors.New("routing: no denoise modules to unload")
)

// QueryError wraps a failure to read the server's defaults.
type QueryError struct {
	Err error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("routing: query server defaults: %v", e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// EnableError reports which load step failed. By the time it is
// returned, every module loaded earlier in the same enable has been
// rolled back.
type EnableError struct {
	Step string
	Err  error
}

func (e *EnableError) Error() string {
	return fmt.Sprintf("routing: enable failed at %s: %v", e.Step, e.Err)
}

func (e *EnableError) Unwrap() error { return e.Err }

// UnloadError aggregates per-module failures during disable. Teardown
// is best-effort: remaining modules are still unloaded and the default
// source is still restored.
type UnloadError struct {
	Errs []error
}

func (e *UnloadError) Error() string {
	msgs := make([]string, len(e.Errs))
	for i, err := range e.Errs {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("routing: %d unload error(s): %s", len(e.Errs), strings.Join(msgs, "; "))
}

func (e *UnloadError) Unwrap() []error { return e.Errs }
