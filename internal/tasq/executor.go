// Package tasq runs the external tasq program and classifies its failures.
package tasq

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/tasq/tasqmcp/internal/core"
	"github.com/tasq/tasqmcp/internal/telemetry"
)

const DefaultProgram = "tasq"

// Executor runs one tasq invocation and returns its trimmed stdout.
type Executor interface {
	Execute(ctx context.Context, args []string, dir string) (string, error)
}

type Config struct {
	// Program is the executable name or path. Defaults to "tasq".
	Program string
	// SearchPath is a PATH-style list used to locate Program when it has no
	// directory component. Empty means the process PATH.
	SearchPath string
	Logger     *slog.Logger
}

// Runner is the os/exec backed Executor.
type Runner struct {
	cfg Config
}

func NewRunner(cfg Config) *Runner {
	if strings.TrimSpace(cfg.Program) == "" {
		cfg.Program = DefaultProgram
	}
	if cfg.SearchPath == "" {
		cfg.SearchPath = os.Getenv("PATH")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	return &Runner{cfg: cfg}
}

func (r *Runner) Program() string { return r.cfg.Program }

// Execute blocks until the subprocess exits. There is no timeout; ctx
// cancellation is the only way to stop a hung tasq.
func (r *Runner) Execute(ctx context.Context, args []string, dir string) (string, error) {
	subcommand := "none"
	if len(args) > 0 {
		subcommand = args[0]
	}

	path, err := LookPath(r.cfg.Program, r.cfg.SearchPath)
	if err != nil {
		telemetry.IncTasqExec(subcommand, telemetry.OutcomeNotFound)
		return "", r.notFound(err)
	}

	cmd := exec.CommandContext(ctx, path, args...)
	cmd.Dir = dir
	var stdoutBuf bytes.Buffer
	var stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)

	if runErr == nil {
		telemetry.IncTasqExec(subcommand, telemetry.OutcomeOK)
		r.cfg.Logger.Debug("tasq command completed",
			"program", path,
			"args", args,
			"dir", dir,
			"duration_ms", duration.Milliseconds(),
		)
		return strings.TrimSpace(stdoutBuf.String()), nil
	}

	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		telemetry.IncTasqExec(subcommand, telemetry.OutcomeFailed)
		r.cfg.Logger.Debug("tasq command failed",
			"program", path,
			"args", args,
			"dir", dir,
			"exit_code", exitErr.ExitCode(),
			"duration_ms", duration.Milliseconds(),
		)
		msg := strings.TrimSpace(stderrBuf.String())
		if msg == "" {
			msg = fmt.Sprintf("command %q exited with status %d", strings.Join(append([]string{r.cfg.Program}, args...), " "), exitErr.ExitCode())
		}
		return "", core.CommandFailed(runErr, "TasQ command failed: %s", msg)
	}

	var execErr *exec.Error
	var pathErr *fs.PathError
	if errors.As(runErr, &execErr) || (errors.As(runErr, &pathErr) && pathErr.Op == "fork/exec") {
		telemetry.IncTasqExec(subcommand, telemetry.OutcomeNotFound)
		return "", r.notFound(runErr)
	}

	// On Unix a missing working directory also fails as fork/exec and lands
	// in the not-found branch above. Remaining start failures, such as a
	// cancelled context, are command failures.
	telemetry.IncTasqExec(subcommand, telemetry.OutcomeFailed)
	return "", core.CommandFailed(runErr, "TasQ command failed: %v", runErr)
}

func (r *Runner) notFound(err error) error {
	return core.ExecutableNotFound(err, "TasQ binary not found. Please ensure '%s' is installed and in your PATH.", r.cfg.Program)
}

// LookPath resolves program against searchPath. A program containing a path
// separator is checked directly. The result is always absolute: relative
// candidates are resolved against the process working directory, since the
// command itself runs in the project directory.
func LookPath(program, searchPath string) (string, error) {
	if strings.ContainsRune(program, filepath.Separator) || strings.Contains(program, "/") {
		if err := checkExecutable(program); err != nil {
			return "", &exec.Error{Name: program, Err: err}
		}
		abs, err := filepath.Abs(program)
		if err != nil {
			return "", &exec.Error{Name: program, Err: err}
		}
		return abs, nil
	}
	for _, dir := range filepath.SplitList(searchPath) {
		if dir == "" {
			dir = "."
		}
		candidate := filepath.Join(dir, program)
		if checkExecutable(candidate) != nil {
			continue
		}
		abs, err := filepath.Abs(candidate)
		if err != nil {
			continue
		}
		return abs, nil
	}
	return "", &exec.Error{Name: program, Err: exec.ErrNotFound}
}

func checkExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fs.ErrPermission
	}
	if info.Mode()&0o111 == 0 {
		return fs.ErrPermission
	}
	return nil
}
