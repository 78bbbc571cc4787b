// Package hook runs user commands configured for repository events.
//
// Hooks for an event come from two places: the hook.<event>.command values
// of the configuration, in order, and a legacy executable named after the
// event in the hook directory. Legacy hooks are gated by a run policy.
package hook

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/odvcencio/treemerge/pkg/config"
)

// Policy decides whether hooks from the hook directory run.
type Policy int

const (
	PolicyYes Policy = iota
	PolicyNo
	PolicyWarn
	PolicyInteractive
	PolicyUnknown
)

// ParsePolicy maps a hook.runhookdir value to a Policy. The empty value is
// PolicyYes; unrecognized values are PolicyUnknown.
func ParsePolicy(s string) Policy {
	switch s {
	case "", "yes":
		return PolicyYes
	case "no":
		return PolicyNo
	case "warn":
		return PolicyWarn
	case "interactive":
		return PolicyInteractive
	}
	return PolicyUnknown
}

func (p Policy) String() string {
	switch p {
	case PolicyYes:
		return "yes"
	case PolicyNo:
		return "no"
	case PolicyWarn:
		return "warn"
	case PolicyInteractive:
		return "interactive"
	case PolicyUnknown:
		return "unknown"
	}
	return fmt.Sprintf("Policy(%d)", int(p))
}

// Hook is one command to run for an event.
type Hook struct {
	Command     string
	FromHookDir bool // an executable path rather than a shell command
}

// Runner lists and runs hooks.
type Runner struct {
	Config  config.Hooks
	HookDir string // directory searched for legacy hooks; empty disables them
	Dir     string // working directory for hook processes

	Stdin  io.Reader // answers for interactive prompts
	Stderr io.Writer // hook output and notices
	Env    []string  // added to the process environment of every hook

	Logger *slog.Logger

	prompt *bufio.Reader
}

func (r *Runner) stderr() io.Writer {
	if r.Stderr != nil {
		return r.Stderr
	}
	return os.Stderr
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// legacyHook returns the absolute path of the executable hook for event in
// HookDir, or "".
func (r *Runner) legacyHook(event string) string {
	if r.HookDir == "" {
		return ""
	}
	p, err := filepath.Abs(filepath.Join(r.HookDir, event))
	if err != nil {
		return ""
	}
	info, err := os.Stat(p)
	if err != nil || !info.Mode().IsRegular() || info.Mode()&0o111 == 0 {
		return ""
	}
	return p
}

// List returns the hooks for event in run order.
func (r *Runner) List(event string) []Hook {
	var hooks []Hook
	find := func(cmd string) int {
		for i, h := range hooks {
			if h.Command == cmd {
				return i
			}
		}
		return -1
	}
	appendOrMove := func(h Hook) {
		if i := find(h.Command); i >= 0 {
			hooks = append(hooks[:i], hooks[i+1:]...)
		}
		hooks = append(hooks, h)
	}

	for _, value := range r.Config.Events[event] {
		cmd := value
		hc, named := r.Config.Commands[value]
		if named && hc.Command != "" {
			cmd = hc.Command
		}
		if named && hc.Skip {
			if i := find(cmd); i >= 0 {
				hooks = append(hooks[:i], hooks[i+1:]...)
			}
			continue
		}
		appendOrMove(Hook{Command: cmd})
	}

	if p := r.legacyHook(event); p != "" {
		appendOrMove(Hook{Command: p, FromHookDir: true})
	}
	return hooks
}

// Exists reports whether running event under policy could run anything.
func (r *Runner) Exists(event string, policy Policy) bool {
	if len(r.Config.Events[event]) > 0 {
		return true
	}
	switch policy {
	case PolicyYes, PolicyWarn, PolicyInteractive:
		return r.legacyHook(event) != ""
	}
	return false
}

// shouldRunLegacy applies policy to the legacy hook at path.
func (r *Runner) shouldRunLegacy(path string, policy Policy) bool {
	switch policy {
	case PolicyNo:
		return false
	case PolicyUnknown:
		fmt.Fprint(r.stderr(), "Unrecognized value for 'hook.runhookdir'. Is there a typo? ")
		fallthrough
	case PolicyWarn:
		fmt.Fprintf(r.stderr(), "Running legacy hook at '%s'\n", path)
		return true
	case PolicyInteractive:
		if r.prompt == nil {
			in := r.Stdin
			if in == nil {
				in = os.Stdin
			}
			r.prompt = bufio.NewReader(in)
		}
		for {
			fmt.Fprintf(r.stderr(), "Run '%s'? [Yn] ", path)
			line, err := r.prompt.ReadString('\n')
			answer := strings.ToLower(strings.TrimSpace(line))
			switch {
			case strings.HasPrefix(answer, "n"):
				return false
			case strings.HasPrefix(answer, "y"), answer == "":
				return true
			}
			if err != nil {
				// No more input to ask again with.
				return true
			}
		}
	}
	return true
}

// Run runs every hook for event with args appended to its command line and
// returns the bitwise OR of their exit statuses. Hooks that could not be
// started count as status 1 and are reported in the returned error.
func (r *Runner) Run(ctx context.Context, event string, args []string, policy Policy) (int, error) {
	var (
		rc   int
		errs *multierror.Error
	)
	for _, h := range r.List(event) {
		if h.FromHookDir && !r.shouldRunLegacy(h.Command, policy) {
			continue
		}

		var cmd *exec.Cmd
		if h.FromHookDir {
			cmd = exec.CommandContext(ctx, h.Command, args...)
		} else {
			shArgs := append([]string{"-c", h.Command + ` "$@"`, h.Command}, args...)
			cmd = exec.CommandContext(ctx, "sh", shArgs...)
		}
		cmd.Dir = r.Dir
		cmd.Env = append(os.Environ(), r.Env...)
		cmd.Stdout = r.stderr()
		cmd.Stderr = r.stderr()

		r.logger().Debug("run hook", "event", event, "command", h.Command, "hookdir", h.FromHookDir)
		err := cmd.Run()
		var exitErr *exec.ExitError
		switch {
		case err == nil:
		case errors.As(err, &exitErr):
			rc |= exitErr.ExitCode()
		default:
			rc |= 1
			errs = multierror.Append(errs, fmt.Errorf("hook %s: %w", h.Command, err))
		}
	}
	return rc, errs.ErrorOrNil()
}
