package service

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/updateio/updateio/internal/model"
	"github.com/updateio/updateio/internal/steamcmd"
)

const (
	eventBuffer = 64
	maxLineSize = 1 << 20
)

// outcome is what the event pipeline observed during one update.
type outcome struct {
	terminal     model.UpdateStatus // zero when no terminal event arrived
	last         model.UpdateStatus
	lastWasError bool
	stderrLine   string // first error line on stderr, even if not delivered
	stdoutError  string // last error line on stdout
}

// consume runs one reader per stream, both feeding a single channel, and
// delivers events to progress until the first terminal one. It returns once
// both streams reached EOF.
func consume(ctx context.Context, proc *steamcmd.Process, progress model.ProgressFunc) outcome {
	events := make(chan model.UpdateStatus, eventBuffer)
	done := make(chan struct{})

	var stdoutError, stderrLine string
	var wg sync.WaitGroup
	wg.Go(func() {
		stdoutError = readStdout(ctx, proc.Stdout, events, done)
	})
	wg.Go(func() {
		stderrLine = readStderr(ctx, proc.Stderr, events, done)
	})
	go func() {
		wg.Wait()
		close(events)
	}()

	var out outcome
	for ev := range events {
		progress(ev)
		out.last = ev
		if ev.State.IsTerminal() {
			out.terminal = ev
			break
		}
	}
	close(done)
	for range events {
		// dropped, the consumer has stopped
	}

	out.lastWasError = out.last.State == model.StateError
	out.stdoutError = stdoutError
	out.stderrLine = stderrLine
	return out
}

// err decides the result of an update from the observed events and the exit
// status of the process.
func (o outcome) err(waitErr error) error {
	if waitErr == nil && o.terminal.State == model.StateComplete {
		return nil
	}

	perr := &model.ProcessError{}
	var werr *model.ProcessError
	switch {
	case errors.As(waitErr, &werr):
		perr.ExitCode = werr.ExitCode
		perr.Message = werr.Message
		perr.Err = werr.Err
	case waitErr != nil:
		perr.ExitCode = -1
		perr.Err = waitErr
	}
	if msg := o.message(); msg != "" {
		perr.Message = msg
	}
	return perr
}

func (o outcome) message() string {
	switch {
	case o.terminal.State == model.StateError && o.terminal.Error != "":
		return o.terminal.Error
	case o.stderrLine != "":
		return o.stderrLine
	default:
		return o.stdoutError
	}
}

func readStdout(ctx context.Context, r io.Reader, events chan<- model.UpdateStatus, done <-chan struct{}) string {
	var errorLine string
	scanner := newScanner(r)
	for scanner.Scan() {
		line := steamcmd.Decode(scanner.Bytes())
		if strings.TrimSpace(line) == "" {
			continue
		}
		if steamcmd.IsErrorLine(line) {
			errorLine = strings.TrimSpace(line)
		}
		send(events, done, steamcmd.ParseStatus(line))
	}
	drain(ctx, r, scanner.Err(), "stdout")
	return errorLine
}

func readStderr(ctx context.Context, r io.Reader, events chan<- model.UpdateStatus, done <-chan struct{}) string {
	var first string
	scanner := newScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(steamcmd.Decode(scanner.Bytes()))
		if !steamcmd.IsErrorLine(line) {
			continue
		}
		if first == "" {
			first = line
		}
		send(events, done, model.UpdateStatus{
			State:  model.StateError,
			Status: line,
			Error:  line,
		})
	}
	drain(ctx, r, scanner.Err(), "stderr")
	return first
}

func newScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return scanner
}

// send never blocks once the consumer has stopped.
func send(events chan<- model.UpdateStatus, done <-chan struct{}, ev model.UpdateStatus) {
	select {
	case events <- ev:
	case <-done:
	}
}

// drain reads r to EOF after a scanner error so the process never blocks on
// a full pipe.
func drain(ctx context.Context, r io.Reader, err error, stream string) {
	if err == nil {
		return
	}
	slog.WarnContext(ctx, "reading steamcmd output", "stream", stream, "error", err)
	_, _ = io.Copy(io.Discard, r)
}
