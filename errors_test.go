package eegpipe

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	err := &Error{Op: "Graph.Build", Code: ErrCodeCircularDependency, StageName: "gain"}

	assert.True(t, errors.Is(err, &Error{Code: ErrCodeCircularDependency}))
	assert.False(t, errors.Is(err, &Error{Code: ErrCodeBadConfig}))
	assert.True(t, IsCircularDependency(err))
	assert.False(t, IsPoolExhausted(err))
}

func TestErrorUnwrapExposesInner(t *testing.T) {
	inner := fmt.Errorf("spi bus timeout")
	err := &Error{Op: "Driver.Read", Code: ErrCodeSPIFailure, Inner: inner}

	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "spi bus timeout")
}

func TestErrorMessageIncludesSubjectFields(t *testing.T) {
	err := &Error{Op: "Executor.Run", Code: ErrCodeStageProcessFailed, StageName: "triple_iir", SourceID: "eeg_source.raw_data"}
	msg := err.Error()
	assert.Contains(t, msg, "triple_iir")
	assert.Contains(t, msg, "eeg_source.raw_data")
}
