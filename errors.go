package eegpipe

import (
	"errors"
	"fmt"
)

// ErrCode classifies runtime failures into the categories the control
// plane and stage policies branch on.
type ErrCode int

const (
	ErrCodeUnknown ErrCode = iota

	// Configuration errors: malformed pipeline YAML/JSON, unknown stage
	// type, a graph that is not a DAG, a stage param that fails its schema.
	ErrCodeBadConfig
	ErrCodeUnknownStageType
	ErrCodeDuplicateStageName
	ErrCodeCircularDependency
	ErrCodeStageNotFound

	// Hardware errors: the sensor driver's state machine or SPI/GPIO layer.
	ErrCodeDriverNotReady
	ErrCodeDRDYTimeout
	ErrCodeSPIFailure
	ErrCodeInvalidStateTransition

	// Runtime-stage errors: a worker/producer's Process returned a failure.
	ErrCodeStageProcessFailed
	ErrCodeStagePanicked
	// ErrCodeBadParam is a control-plane SetParameter call naming an unknown
	// or malformed parameter, distinct from ErrCodeBadConfig's
	// load/validate-time failures.
	ErrCodeBadParam

	// Pool errors.
	ErrCodePoolExhausted

	// Control-plane errors.
	ErrCodePipelineConflict
	ErrCodePipelineNotRunning
)

func (c ErrCode) String() string {
	switch c {
	case ErrCodeBadConfig:
		return "bad_config"
	case ErrCodeUnknownStageType:
		return "unknown_stage_type"
	case ErrCodeDuplicateStageName:
		return "duplicate_stage_name"
	case ErrCodeCircularDependency:
		return "circular_dependency"
	case ErrCodeStageNotFound:
		return "stage_not_found"
	case ErrCodeDriverNotReady:
		return "driver_not_ready"
	case ErrCodeDRDYTimeout:
		return "drdy_timeout"
	case ErrCodeSPIFailure:
		return "spi_failure"
	case ErrCodeInvalidStateTransition:
		return "invalid_state_transition"
	case ErrCodeStageProcessFailed:
		return "stage_process_failed"
	case ErrCodeStagePanicked:
		return "stage_panicked"
	case ErrCodeBadParam:
		return "bad_param"
	case ErrCodePoolExhausted:
		return "pool_exhausted"
	case ErrCodePipelineConflict:
		return "pipeline_conflict"
	case ErrCodePipelineNotRunning:
		return "pipeline_not_running"
	default:
		return "unknown"
	}
}

// Error is the structured error type returned throughout the runtime. Op
// names the failing operation, StageName/SourceID identify the subject
// when applicable, and Inner carries the wrapped cause.
type Error struct {
	Op        string
	StageName string
	SourceID  string
	Code      ErrCode
	Inner     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Op, e.Code)
	if e.StageName != "" {
		msg = fmt.Sprintf("%s (stage=%s)", msg, e.StageName)
	}
	if e.SourceID != "" {
		msg = fmt.Sprintf("%s (source=%s)", msg, e.SourceID)
	}
	if e.Inner != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Inner)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Inner }

// Is supports errors.Is comparisons against sentinel codes: errors.Is(err,
// &Error{Code: ErrCodePoolExhausted}) matches any *Error with that code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Code != ErrCodeUnknown && t.Code != e.Code {
		return false
	}
	return true
}

// IsPoolExhausted reports whether err is (or wraps) a pool-exhaustion error.
func IsPoolExhausted(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == ErrCodePoolExhausted
	}
	return false
}

// IsCircularDependency reports whether err is (or wraps) a graph-cycle error.
func IsCircularDependency(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == ErrCodeCircularDependency
	}
	return false
}
