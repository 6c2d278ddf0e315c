package graph

import (
	"context"
	"testing"

	"github.com/elata-labs/eegpipe"
	"github.com/elata-labs/eegpipe/internal/stage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type passthroughStage struct{ name string }

func (s *passthroughStage) Name() string         { return s.name }
func (s *passthroughStage) Init(stage.Config) error { return nil }
func (s *passthroughStage) Mode() stage.Mode        { return stage.ModeWorker }
func (s *passthroughStage) Close() error            { return nil }
func (s *passthroughStage) Process(ctx context.Context, pool *eegpipe.MemoryPool, in eegpipe.Packet) (eegpipe.Packet, error) {
	return in, nil
}

func init() {
	stage.Register("graphtest.passthrough", func() stage.Stage { return &passthroughStage{} })
}

func TestBuildLinearPipeline(t *testing.T) {
	configs := []stage.Config{
		{Name: "source", Type: "graphtest.passthrough", Outputs: []string{"source.out"}},
		{Name: "filter", Type: "graphtest.passthrough", Inputs: []string{"source.out"}, Outputs: []string{"filter.out"}},
		{Name: "sink", Type: "graphtest.passthrough", Inputs: []string{"filter.out"}},
	}

	g, err := Build(configs)
	require.NoError(t, err)
	assert.Equal(t, []string{"source", "filter", "sink"}, g.Order)
	assert.Len(t, g.Out["source"], 1)
	assert.Len(t, g.In["sink"], 1)
}

func TestBuildRejectsCycle(t *testing.T) {
	configs := []stage.Config{
		{Name: "a", Type: "graphtest.passthrough", Inputs: []string{"b.out"}, Outputs: []string{"a.out"}},
		{Name: "b", Type: "graphtest.passthrough", Inputs: []string{"a.out"}, Outputs: []string{"b.out"}},
	}

	_, err := Build(configs)
	require.Error(t, err)
	assert.True(t, eegpipe.IsCircularDependency(err))
}

func TestBuildRejectsUnknownStageType(t *testing.T) {
	configs := []stage.Config{
		{Name: "source", Type: "graphtest.does_not_exist"},
	}
	_, err := Build(configs)
	require.Error(t, err)

	var e *eegpipe.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, eegpipe.ErrCodeUnknownStageType, e.Code)
}

func TestBuildRejectsDuplicateStageName(t *testing.T) {
	configs := []stage.Config{
		{Name: "dup", Type: "graphtest.passthrough"},
		{Name: "dup", Type: "graphtest.passthrough"},
	}
	_, err := Build(configs)
	require.Error(t, err)

	var e *eegpipe.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, eegpipe.ErrCodeDuplicateStageName, e.Code)
}

func TestBuildRejectsDanglingInput(t *testing.T) {
	configs := []stage.Config{
		{Name: "sink", Type: "graphtest.passthrough", Inputs: []string{"nowhere.out"}},
	}
	_, err := Build(configs)
	require.Error(t, err)

	var e *eegpipe.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, eegpipe.ErrCodeStageNotFound, e.Code)
}

func TestBuildSkipsDisabledStages(t *testing.T) {
	disabled := false
	configs := []stage.Config{
		{Name: "source", Type: "graphtest.passthrough", Outputs: []string{"source.out"}},
		{Name: "optional", Type: "graphtest.passthrough", Inputs: []string{"source.out"}, Enabled: &disabled},
	}
	g, err := Build(configs)
	require.NoError(t, err)
	assert.NotContains(t, g.Order, "optional")
}

func TestBuildRejectsDuplicateOutputName(t *testing.T) {
	configs := []stage.Config{
		{Name: "a", Type: "graphtest.passthrough", Outputs: []string{"shared.out"}},
		{Name: "b", Type: "graphtest.passthrough", Outputs: []string{"shared.out"}},
	}
	_, err := Build(configs)
	require.Error(t, err)

	var e *eegpipe.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, eegpipe.ErrCodeBadConfig, e.Code)
}
