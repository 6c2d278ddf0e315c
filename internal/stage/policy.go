package stage

// FailurePolicy governs what the executor does when a Worker.Process or
// Producer.Produce call returns a non-sentinel error.
type FailurePolicy int

const (
	// PolicySkipPacket logs the error, drops the offending packet (or
	// produce attempt) and continues running the stage.
	PolicySkipPacket FailurePolicy = iota
	// PolicyDrainThenStop stops reacting to stop and control messages, keeps
	// processing packets queued on the stage's inputs, and halts the stage
	// once no packet arrives for one constants.StopPollInterval.
	PolicyDrainThenStop
	// PolicyFatal propagates the error on the runtime's fatal-error
	// channel, triggering a full pipeline stop.
	PolicyFatal
)

func (p FailurePolicy) String() string {
	switch p {
	case PolicySkipPacket:
		return "skip_packet"
	case PolicyDrainThenStop:
		return "drain_then_stop"
	case PolicyFatal:
		return "fatal"
	default:
		return "unknown"
	}
}
