package steamcmd_test

import (
	"bufio"
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/updateio/updateio/internal/model"
	"github.com/updateio/updateio/internal/steamcmd"
)

// fakeTool writes a shell script standing in for steamcmd.
func fakeTool(t *testing.T, body string) string {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skipf("skipped, binary sh not available: %v", err)
	}
	path := filepath.Join(t.TempDir(), "steamcmd.sh")
	err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755)
	require.NoError(t, err)
	return path
}

func TestLauncherRun(t *testing.T) {
	t.Parallel()

	tool := fakeTool(t, `echo "$@"; echo "App '740' Up to date"; echo 'ERROR! nothing' 1>&2`)
	l, err := steamcmd.NewLauncher(model.SteamCmd{Path: tool, Username: "gaben", Password: "hunter2"})
	require.NoError(t, err)

	res, err := l.Run(t.Context(), steamcmd.OpCheckStatus, 740)
	require.NoError(t, err)
	require.Equal(t, "+login gaben hunter2 +app_status 740 +quit\nApp '740' Up to date\n", res.Stdout)
	require.Equal(t, "ERROR! nothing\n", res.Stderr)
	require.Equal(t, 0, res.ExitCode)
	require.Equal(t, "***", res.Args[2])
	require.False(t, res.Stopped.Before(res.Started))
}

func TestLauncherIncompleteCredentials(t *testing.T) {
	t.Parallel()

	tool := fakeTool(t, `echo "$@"`)
	l, err := steamcmd.NewLauncher(model.SteamCmd{Path: tool, Username: "gaben"})
	require.NoError(t, err)

	res, err := l.Run(t.Context(), steamcmd.OpCheckStatus, 740)
	require.NoError(t, err)
	require.Equal(t, "+login anonymous +app_status 740 +quit\n", res.Stdout)
}

func TestLauncherRunExitCode(t *testing.T) {
	t.Parallel()

	tool := fakeTool(t, `echo 'Loading Steam API...OK'; echo 'ERROR! Not logged on' 1>&2; exit 5`)
	l, err := steamcmd.NewLauncher(model.SteamCmd{Path: tool})
	require.NoError(t, err)

	res, err := l.Run(t.Context(), steamcmd.OpListInstalled, 0)
	require.Error(t, err)
	var perr *model.ProcessError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, 5, perr.ExitCode)
	require.Equal(t, "ERROR! Not logged on", perr.Message)
	require.Equal(t, 5, res.ExitCode)
	require.Equal(t, "Loading Steam API...OK\n", res.Stdout)
}

func TestLauncherTimeout(t *testing.T) {
	t.Parallel()

	tool := fakeTool(t, `sleep 10`)
	l, err := steamcmd.NewLauncher(model.SteamCmd{Path: tool, Timeout: 100 * time.Millisecond})
	require.NoError(t, err)

	start := time.Now()
	_, err = l.Run(t.Context(), steamcmd.OpCheckStatus, 740)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(start), 5*time.Second)
}

func TestLauncherSpawnError(t *testing.T) {
	t.Parallel()

	// a regular file without the exec bit can be located but not started
	path := filepath.Join(t.TempDir(), "steamcmd.sh")
	require.NoError(t, os.WriteFile(path, []byte("not a program"), 0o644))
	l, err := steamcmd.NewLauncher(model.SteamCmd{Path: path})
	require.NoError(t, err)

	_, err = l.Start(t.Context(), steamcmd.OpUpdate, 740)
	var serr *model.SpawnError
	require.ErrorAs(t, err, &serr)
	require.Equal(t, path, serr.Path)

	_, err = l.Run(t.Context(), steamcmd.OpUpdate, 740)
	require.ErrorAs(t, err, &serr)
}

func TestLauncherStart(t *testing.T) {
	t.Parallel()

	tool := fakeTool(t, `echo "$@"; echo 'Update: 1/2'; echo 'ERROR! late' 1>&2; exit 3`)
	l, err := steamcmd.NewLauncher(model.SteamCmd{Path: tool})
	require.NoError(t, err)

	proc, err := l.Start(t.Context(), steamcmd.OpUpdate, 740)
	require.NoError(t, err)

	stdout := lines(t, proc.Stdout)
	stderr := lines(t, proc.Stderr)
	require.Equal(t, []string{"+login anonymous +app_update 740 validate +quit", "Update: 1/2"}, stdout)
	require.Equal(t, []string{"ERROR! late"}, stderr)

	err = proc.Wait()
	var perr *model.ProcessError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, 3, perr.ExitCode)
}

func TestLauncherStartCancel(t *testing.T) {
	t.Parallel()

	// the child sleep keeps the pipes open unless the whole group is killed
	tool := fakeTool(t, `echo started; sleep 30; echo never`)
	l, err := steamcmd.NewLauncher(model.SteamCmd{Path: tool})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	proc, err := l.Start(ctx, steamcmd.OpUpdate, 740)
	require.NoError(t, err)

	sc := bufio.NewScanner(proc.Stdout)
	require.True(t, sc.Scan())
	require.Equal(t, "started", sc.Text())

	start := time.Now()
	cancel()
	for sc.Scan() {
	}
	_, _ = io.Copy(io.Discard, proc.Stderr)
	err = proc.Wait()
	require.ErrorIs(t, err, context.Canceled)
	require.Less(t, time.Since(start), 10*time.Second)
}

func lines(t *testing.T, r io.Reader) []string {
	t.Helper()
	b, err := io.ReadAll(r)
	require.NoError(t, err)
	return strings.Split(strings.TrimRight(string(b), "\n"), "\n")
}
