package service

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"

	"github.com/updateio/updateio/internal/model"
)

// LogSink logs update events: terminal ones at info or error level, the rest
// at debug.
func LogSink(ctx context.Context, logger *slog.Logger, id model.AppID) model.ProgressFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(s model.UpdateStatus) {
		attrs := []any{
			"app_id", id,
			"state", s.State.String(),
			"progress", s.Progress,
			"status", s.Status,
		}
		switch s.State {
		case model.StateError:
			logger.ErrorContext(ctx, "update event", append(attrs, "error", s.Error)...)
		case model.StateComplete, model.StateStarting:
			logger.InfoContext(ctx, "update event", attrs...)
		default:
			logger.DebugContext(ctx, "update event", attrs...)
		}
	}
}

type jsonEvent struct {
	AppID model.AppID `json:"app_id"`
	model.UpdateStatus
}

// JSONSink writes one JSON object per event, newline delimited.
type JSONSink struct {
	mx  sync.Mutex
	enc *json.Encoder
	id  model.AppID
	err error
}

func NewJSONSink(w io.Writer, id model.AppID) *JSONSink {
	return &JSONSink{enc: json.NewEncoder(w), id: id}
}

// Progress is the model.ProgressFunc of the sink. Writing stops at the first
// error, see Err.
func (s *JSONSink) Progress(status model.UpdateStatus) {
	s.mx.Lock()
	defer s.mx.Unlock()
	if s.err != nil {
		return
	}
	s.err = s.enc.Encode(jsonEvent{AppID: s.id, UpdateStatus: status})
}

// Err returns the first write error.
func (s *JSONSink) Err() error {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.err
}

// Tee forwards every event to all non-nil sinks in order.
func Tee(sinks ...model.ProgressFunc) model.ProgressFunc {
	return func(s model.UpdateStatus) {
		for _, sink := range sinks {
			if sink != nil {
				sink(s)
			}
		}
	}
}
