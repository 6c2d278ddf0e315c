package stages

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elata-labs/eegpipe"
	"github.com/elata-labs/eegpipe/internal/stage"
)

func TestTripleIIRRequiresHighAndLowPass(t *testing.T) {
	var s TripleIIR
	err := s.Init(stage.Config{Name: "f", Params: map[string]any{"high_pass_hz": 1.0}})
	require.Error(t, err)
}

func TestTripleIIRAttenuatesOutOfBandSine(t *testing.T) {
	var s TripleIIR
	require.NoError(t, s.Init(stage.Config{Name: "f", Params: map[string]any{
		"high_pass_hz": 1.0,
		"low_pass_hz":  40.0,
	}}))

	pool := eegpipe.NewMemoryPool(4)
	meta := &eegpipe.SensorMeta{ChannelNames: []string{"Fp1"}, SampleRate: 250}

	const n = 512
	samples := make([]float32, n)
	for i := range samples {
		// 120 Hz sine, well above the 40 Hz low-pass cutoff.
		samples[i] = float32(math.Sin(2 * math.Pi * 120 * float64(i) / 250))
	}
	in := voltagePacket(pool, meta, samples, n)

	out, err := s.Process(context.Background(), pool, in)
	require.NoError(t, err)
	defer out.Release()

	filtered := out.(*eegpipe.VoltagePacket).Samples()
	inputRMS := rms(samples)
	outputRMS := rms(filtered)
	assert.Less(t, outputRMS, inputRMS*0.5, "120 Hz content should be attenuated by a 40 Hz low-pass")
}

func TestTripleIIRRebuildsOnSampleRateChange(t *testing.T) {
	var s TripleIIR
	require.NoError(t, s.Init(stage.Config{Name: "f", Params: map[string]any{
		"high_pass_hz": 1.0,
		"low_pass_hz":  40.0,
	}}))

	pool := eegpipe.NewMemoryPool(4)
	meta250 := &eegpipe.SensorMeta{ChannelNames: []string{"Fp1"}, SampleRate: 250}
	meta500 := &eegpipe.SensorMeta{ChannelNames: []string{"Fp1"}, SampleRate: 500}

	in1 := voltagePacket(pool, meta250, []float32{0.1, 0.2}, 2)
	out1, err := s.Process(context.Background(), pool, in1)
	require.NoError(t, err)
	out1.Release()
	assert.Equal(t, 250.0, s.sampleRate)

	in2 := voltagePacket(pool, meta500, []float32{0.1, 0.2}, 2)
	out2, err := s.Process(context.Background(), pool, in2)
	require.NoError(t, err)
	out2.Release()
	assert.Equal(t, 500.0, s.sampleRate)
}

func rms(samples []float32) float64 {
	var sum float64
	for _, v := range samples {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum / float64(len(samples)))
}
