package control

import (
	"encoding/json"
	"time"

	"github.com/elata-labs/eegpipe"
	"github.com/elata-labs/eegpipe/internal/config"
)

// EventType enumerates the lifecycle event taxonomy the control plane
// broadcasts over its event bus.
type EventType int

const (
	// EventSourceReady fires once an eeg_source stage's driver is
	// initialized and acquiring, carrying its SensorMeta snapshot.
	EventSourceReady EventType = iota
	// EventPipelineStarted fires once start_pipeline succeeds.
	EventPipelineStarted
	// EventPipelineStopped fires once stop_pipeline completes.
	EventPipelineStopped
	// EventPipelineFailed fires when the executor's fatal_error_rx
	// delivers a fatal stage error; the control plane stops the
	// pipeline before emitting this.
	EventPipelineFailed
	// EventStage carries a stage-specific event (e.g. a test fixture's
	// TestStateChanged) that does not fit the four lifecycle kinds
	// above; StageName and Payload identify and carry it.
	EventStage
)

func (t EventType) String() string {
	switch t {
	case EventSourceReady:
		return "SourceReady"
	case EventPipelineStarted:
		return "PipelineStarted"
	case EventPipelineStopped:
		return "PipelineStopped"
	case EventPipelineFailed:
		return "PipelineFailed"
	case EventStage:
		return "StageEvent"
	default:
		return "unknown"
	}
}

// Event is the broadcast unit on the control plane's event bus, and the
// shape serialized onto the SSE stream at GET /api/events.
type Event struct {
	Type EventType `json:"type"`
	At   time.Time `json:"at"`

	PipelineID string          `json:"pipeline_id,omitempty"`
	SessionID  uint64          `json:"session_id,omitempty"`
	Config     *config.Document `json:"config,omitempty"`
	Meta       *eegpipe.SensorMeta `json:"meta,omitempty"`
	Error      string          `json:"error,omitempty"`

	StageName string          `json:"stage_name,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}
