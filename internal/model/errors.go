package model

import (
	"errors"
	"fmt"
)

var (
	ErrToolNotFound     = errors.New("steamcmd not found")
	ErrUndetermined     = errors.New("could not determine update status")
	ErrCacheUnavailable = errors.New("cache unavailable")
	ErrUpdateInProgress = errors.New("update in progress")
)

// SpawnError reports that the operating system could not start steamcmd.
type SpawnError struct {
	Path string
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("starting %s: %v", e.Path, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}

// ProcessError reports a failed update: a non-zero exit, an error line on
// stderr or a process that ended without a terminal event.
// ExitCode is -1 when the exit status is unknown or irrelevant.
type ProcessError struct {
	ExitCode int
	Message  string
	Err      error
}

func (e *ProcessError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "process failed"
	}
	if e.ExitCode > 0 {
		msg = fmt.Sprintf("%s (exit code %d)", msg, e.ExitCode)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}
