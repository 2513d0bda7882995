package jobs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"voxrecipe/internal/logging"
	"voxrecipe/internal/services"
)

var commandContext = exec.CommandContext

// Job describes one tool invocation.
type Job struct {
	// Name identifies the tool in logs and errors, e.g. "make_fbank".
	Name   string
	Binary string
	Args   []string
	// LogPath receives the combined stdout/stderr. Empty discards output.
	LogPath string
}

// Argv returns the command line without any wrapper.
func (j Job) Argv() []string {
	return append([]string{j.Binary}, j.Args...)
}

// Launcher runs a job to completion.
type Launcher interface {
	Launch(ctx context.Context, job Job) error
}

// LauncherFunc adapts a function to the Launcher interface.
type LauncherFunc func(ctx context.Context, job Job) error

// Launch calls f.
func (f LauncherFunc) Launch(ctx context.Context, job Job) error {
	return f(ctx, job)
}

// ExitError reports a tool that ran but exited non-zero.
type ExitError struct {
	Name string
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with status %d", e.Name, e.Code)
}

// ProcessLauncher executes jobs as local processes.
type ProcessLauncher struct {
	wrapper []string
	logger  *slog.Logger
}

// Option configures a ProcessLauncher.
type Option func(*ProcessLauncher)

// WithWrapper prefixes every command with argv, e.g. a queue submitter.
func WithWrapper(argv []string) Option {
	return func(l *ProcessLauncher) {
		l.wrapper = append([]string(nil), argv...)
	}
}

// WithLogger sets the logger used for launch diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(l *ProcessLauncher) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewProcessLauncher constructs a launcher.
func NewProcessLauncher(opts ...Option) *ProcessLauncher {
	l := &ProcessLauncher{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Launch runs job and blocks until it exits. A non-zero exit is reported as an
// *ExitError wrapped with services.ErrExternalTool.
func (l *ProcessLauncher) Launch(ctx context.Context, job Job) error {
	if strings.TrimSpace(job.Binary) == "" {
		return services.Wrap(services.ErrConfiguration, job.Name, "launch", "No executable configured for tool", nil)
	}
	argv := append(append([]string(nil), l.wrapper...), job.Argv()...)

	out, closeLog, err := openJobLog(job.LogPath)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, job.Name, "open log", "Unable to create sub-job log", err)
	}
	defer closeLog()

	started := time.Now()
	fmt.Fprintf(out, "# %s\n# Started at %s\n#\n", strings.Join(argv, " "), started.UTC().Format(time.RFC3339))

	cmd := commandContext(ctx, argv[0], argv[1:]...) //nolint:gosec
	cmd.Stdout = out
	cmd.Stderr = out

	logger := logging.WithContext(ctx, l.logger)
	logger.Debug("launching tool",
		logging.String("tool", job.Name),
		logging.String("command", strings.Join(argv, " ")),
		logging.String("log", job.LogPath),
	)

	runErr := cmd.Run()
	code := exitCode(runErr)
	fmt.Fprintf(out, "# Accounting: time=%d\n# Ended (code %d) at %s, elapsed time %.0f seconds\n",
		int(time.Since(started).Seconds()), code, time.Now().UTC().Format(time.RFC3339), time.Since(started).Seconds())

	if runErr == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", job.Name, ctxErr)
	}
	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		return services.Wrap(services.ErrExternalTool, job.Name, "run", "Tool exited non-zero; see "+displayLog(job.LogPath),
			&ExitError{Name: job.Name, Code: code})
	}
	return services.Wrap(services.ErrExternalTool, job.Name, "start", "Unable to start tool", runErr)
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func openJobLog(path string) (io.Writer, func(), error) {
	if strings.TrimSpace(path) == "" {
		return io.Discard, func() {}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { _ = f.Close() }, nil
}

func displayLog(path string) string {
	if path == "" {
		return "tool output"
	}
	return path
}
