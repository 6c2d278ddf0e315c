package stages

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elata-labs/eegpipe"
	"github.com/elata-labs/eegpipe/internal/driver"
	"github.com/elata-labs/eegpipe/internal/stage"
)

func sourceConfig() stage.Config {
	return stage.Config{
		Name: "src",
		Type: "eeg_source",
		Params: map[string]any{
			"sensor_id":     "mock-0",
			"channel_names": []string{"Fp1", "Fp2"},
			"sample_rate":   250.0,
			"batch_size":    16,
			"v_ref":         4.5,
			"adc_bits":      24,
			"gain":          1.0,
		},
	}
}

func TestEEGSourceDefaultsToMockDriver(t *testing.T) {
	var s EEGSource
	require.NoError(t, s.Init(sourceConfig()))
	defer s.Close()

	pool := eegpipe.NewMemoryPool(4)
	out, err := s.Produce(context.Background(), pool)
	require.NoError(t, err)
	require.NotNil(t, out)
	defer out.Release()

	raw, ok := out.(*eegpipe.RawI32Packet)
	require.True(t, ok)
	assert.Equal(t, 2, raw.Header().NumChannels)
	assert.Len(t, raw.Samples(), 16*2)
	assert.Equal(t, uint64(1), raw.Header().FrameID)
}

func TestEEGSourceRejectsUnknownDriverType(t *testing.T) {
	var s EEGSource
	cfg := sourceConfig()
	cfg.Params["driver_type"] = "does-not-exist"
	err := s.Init(cfg)
	require.Error(t, err)
}

func TestEEGSourceWithExplicitDriverSkipsFactoryLookup(t *testing.T) {
	s := NewEEGSourceWithDriver("src", driver.NewMockDriver())
	require.NoError(t, s.Init(sourceConfig()))
	defer s.Close()

	pool := eegpipe.NewMemoryPool(4)
	out, err := s.Produce(context.Background(), pool)
	require.NoError(t, err)
	out.Release()
}

func TestEEGSourceReconfigureBumpsMetaRev(t *testing.T) {
	var s EEGSource
	require.NoError(t, s.Init(sourceConfig()))
	defer s.Close()

	before := s.drv.Meta().MetaRev
	newMeta := s.drv.Meta().Clone()
	newMeta.Gain = 12
	require.NoError(t, s.Reconfigure(newMeta))
	assert.Greater(t, s.drv.Meta().MetaRev, before)
}
