package steamcmd

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/updateio/updateio/internal/model"
)

// waitDelay bounds how long Wait keeps copying output after steamcmd has
// been killed.
const waitDelay = 5 * time.Second

// Runner starts steamcmd operations. Launcher is the os/exec implementation.
type Runner interface {
	// Start spawns a streaming operation. The caller must drain both
	// streams of the returned Process before calling Wait.
	Start(ctx context.Context, op Operation, id model.AppID) (*Process, error)
	// Run executes an operation to completion and collects its output.
	Run(ctx context.Context, op Operation, id model.AppID) (Result, error)
}

// Process is a running steamcmd with its output streams.
type Process struct {
	Stdout io.Reader
	Stderr io.Reader
	wait   func() error
}

// NewProcess wraps streams and a wait function, so Runner implementations
// other than Launcher can produce a Process.
func NewProcess(stdout, stderr io.Reader, wait func() error) *Process {
	return &Process{Stdout: stdout, Stderr: stderr, wait: wait}
}

// Wait blocks until the process exits. A non-zero exit is reported as
// *model.ProcessError.
func (p *Process) Wait() error {
	if p.wait == nil {
		return nil
	}
	return p.wait()
}

// Result of a completed Run.
type Result struct {
	Args     []string // password redacted
	Started  time.Time
	Stopped  time.Time
	Stdout   string
	Stderr   string
	ExitCode int
}

type Launcher struct {
	path    string
	creds   Credentials
	timeout time.Duration
}

// NewLauncher resolves the steamcmd binary once; the resolved path is used
// for the lifetime of the Launcher.
func NewLauncher(cfg model.SteamCmd) (*Launcher, error) {
	path, err := Locate(cfg.Path)
	if err != nil {
		return nil, err
	}
	l := &Launcher{path: path, timeout: cfg.Timeout}
	if cfg.HasCredentials() {
		l.creds = Credentials{Username: cfg.Username, Password: cfg.Password}
	} else if cfg.Username != "" || cfg.Password != "" {
		slog.Warn("incomplete steamcmd credentials, logging in anonymously")
	}
	return l, nil
}

func (l *Launcher) Path() string {
	return l.path
}

func (l *Launcher) command(ctx context.Context, args []string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, l.path, args...)
	cmd.Dir = filepath.Dir(l.path)
	cmd.WaitDelay = waitDelay
	killProcessGroup(cmd)
	return cmd
}

func (l *Launcher) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if l.timeout == 0 {
		slog.DebugContext(ctx, "steamcmd has no timeout", "path", l.path)
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, l.timeout)
}

func (l *Launcher) Start(ctx context.Context, op Operation, id model.AppID) (*Process, error) {
	args := Args(l.creds, op, id)
	ctx, cancel := l.withTimeout(ctx)

	cmd := l.command(ctx, args)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, &model.SpawnError{Path: l.path, Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return nil, &model.SpawnError{Path: l.path, Err: err}
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, &model.SpawnError{Path: l.path, Err: err}
	}
	slog.DebugContext(ctx, "steamcmd started", "pid", cmd.Process.Pid, "args", RedactArgs(args))

	return NewProcess(stdout, stderr, func() error {
		defer cancel()
		return exitError(ctx, cmd.Wait(), "")
	}), nil
}

func (l *Launcher) Run(ctx context.Context, op Operation, id model.AppID) (Result, error) {
	args := Args(l.creds, op, id)
	ctx, cancel := l.withTimeout(ctx)
	defer cancel()

	cmd := l.command(ctx, args)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	res := Result{
		Args:     RedactArgs(args),
		Started:  time.Now().UTC(),
		ExitCode: -1,
	}
	if err := cmd.Start(); err != nil {
		res.Stopped = time.Now().UTC()
		return res, &model.SpawnError{Path: l.path, Err: err}
	}
	err := cmd.Wait()
	res.Stopped = time.Now().UTC()
	res.Stdout = Decode(stdout.Bytes())
	res.Stderr = Decode(stderr.Bytes())
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}
	slog.DebugContext(ctx, "steamcmd finished",
		"op", op.String(),
		"exit_code", res.ExitCode,
		"elapsed", res.Stopped.Sub(res.Started).String(),
	)
	return res, exitError(ctx, err, lastLine(res.Stderr))
}

// Decode converts steamcmd output to text, replacing invalid UTF-8.
func Decode(b []byte) string {
	return strings.ToValidUTF8(string(b), "�")
}

func exitError(ctx context.Context, err error, message string) error {
	if err == nil {
		return nil
	}
	perr := &model.ProcessError{ExitCode: -1, Message: message, Err: err}
	if ctxErr := ctx.Err(); ctxErr != nil {
		perr.Err = ctxErr
		return perr
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		perr.ExitCode = exitErr.ExitCode()
	}
	return perr
}

func lastLine(s string) string {
	s = strings.TrimRight(s, "\r\n")
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(s)
}

var _ Runner = (*Launcher)(nil)
