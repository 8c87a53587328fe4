package lifecycle

import (
	"fmt"

	"trafficanalyzer/internal/model"
)

// State is the position of a controller in the upload lifecycle.
type State int

const (
	// StateIdle: nothing selected, nothing analyzed yet.
	StateIdle State = iota
	// StateReady: a video is selected and no request has been issued for it.
	StateReady
	// StateAnalyzing: exactly one request is in flight.
	StateAnalyzing
	// StateComplete: the latest request settled, successfully or not.
	StateComplete
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReady:
		return "ready"
	case StateAnalyzing:
		return "analyzing"
	case StateComplete:
		return "complete"
	}
	return "unknown"
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	for _, st := range []State{StateIdle, StateReady, StateAnalyzing, StateComplete} {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", text)
}

// Trigger button labels.
const (
	LabelStart     = "Start Analysis"
	LabelAnalyzing = "Analyzing…"
)

// Snapshot is a consistent, read-only copy of a controller.
type Snapshot struct {
	State            State        `json:"state"`
	Loading          bool         `json:"loading"`
	FileName         string       `json:"fileName,omitempty"`
	FileSize         int64        `json:"fileSize,omitempty"`
	Counts           model.Counts `json:"counts"`
	VideoURL         string       `json:"videoUrl,omitempty"`
	TriggerLabel     string       `json:"triggerLabel"`
	CanAnalyze       bool         `json:"canAnalyze"`
	CanExportCSV     bool         `json:"canExportCsv"`
	CanDownloadVideo bool         `json:"canDownloadVideo"`
	// Failures counts failed requests; LastError is set until the next start.
	Failures  uint64 `json:"failures"`
	LastError string `json:"lastError,omitempty"`
}

// Event is pushed to a Notifier whenever the controller changes or a
// request fails.
type Event struct {
	Type    string    `json:"type"`
	State   *Snapshot `json:"state,omitempty"`
	Message string    `json:"message,omitempty"`
	Detail  string    `json:"detail,omitempty"`
}

// Event types.
const (
	EventState = "state"
	EventAlert = "alert"
)

// FailureMessage is the alert shown to the user when analysis fails.
const FailureMessage = "Upload or processing failed."
