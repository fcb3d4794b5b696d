package model

import (
	"fmt"
	"strings"
)

type UpdateState int

const (
	StateUnknown UpdateState = iota
	StateStarting
	StateDownloading
	StateVerifying
	StateExtracting
	StateInstalling
	StateComplete
	StateError
)

var stateNames = [...]string{
	StateUnknown:     "unknown",
	StateStarting:    "starting",
	StateDownloading: "downloading",
	StateVerifying:   "verifying",
	StateExtracting:  "extracting",
	StateInstalling:  "installing",
	StateComplete:    "complete",
	StateError:       "error",
}

func (s UpdateState) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("UpdateState(%d)", int(s))
	}
	return stateNames[s]
}

// IsTerminal reports whether no further events are expected after s.
func (s UpdateState) IsTerminal() bool {
	return s == StateComplete || s == StateError
}

func (s UpdateState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *UpdateState) UnmarshalText(b []byte) error {
	name := strings.ToLower(string(b))
	for i, n := range stateNames {
		if n == name {
			*s = UpdateState(i)
			return nil
		}
	}
	return fmt.Errorf("unknown update state %q", string(b))
}

// UpdateStatus is one progress event of an update. Error is empty unless
// State is StateError.
type UpdateStatus struct {
	Progress float64     `json:"progress"`
	Status   string      `json:"status"`
	State    UpdateState `json:"state"`
	Error    string      `json:"error,omitempty"`
}

// ProgressFunc receives update events in delivery order.
type ProgressFunc func(UpdateStatus)

// Percent returns 100*current/total clamped to [0,100]; zero total yields 0.
func Percent(current, total uint64) float64 {
	if total == 0 {
		return 0
	}
	p := float64(current) / float64(total) * 100
	return min(max(p, 0), 100)
}
