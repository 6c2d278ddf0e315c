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

func TestHannWindowEdgeCases(t *testing.T) {
	assert.Nil(t, hannWindow(0))
	assert.Equal(t, []float32{1}, hannWindow(1))

	w := hannWindow(4)
	require.Len(t, w, 4)
	assert.InDelta(t, 0, w[0], 1e-6)
	assert.InDelta(t, 0, w[3], 1e-6)
}

func TestFFTDetectsSineWavePeakFrequency(t *testing.T) {
	var s FFT
	require.NoError(t, s.Init(stage.Config{Name: "fft", Params: map[string]any{
		"window_seconds": 1.0,
		"slide_seconds":  1.0,
	}}))

	pool := eegpipe.NewMemoryPool(4)
	const sampleRate = 256.0
	meta := &eegpipe.SensorMeta{ChannelNames: []string{"Fp1"}, SampleRate: sampleRate}

	const n = 256 // exactly one window's worth
	samples := make([]float32, n)
	const toneHz = 10.0
	for i := range samples {
		samples[i] = float32(math.Sin(2 * math.Pi * toneHz * float64(i) / sampleRate))
	}
	in := voltagePacket(pool, meta, samples, n)

	out, err := s.Process(context.Background(), pool, in)
	require.NoError(t, err)
	require.NotNil(t, out, "one full window should immediately produce a packet")
	defer out.Release()

	fft := out.(*eegpipe.FftPacket)
	psd := fft.PSD()[0]
	freqRes := fft.FreqResolutionHz()

	peakBin := 0
	for k := 1; k < len(psd); k++ {
		if psd[k] > psd[peakBin] {
			peakBin = k
		}
	}
	peakHz := float64(peakBin) * float64(freqRes)
	assert.InDelta(t, toneHz, peakHz, float64(freqRes), "peak PSD bin should fall at the tone's frequency")
}

func TestFFTAccumulatesAcrossMultiplePackets(t *testing.T) {
	var s FFT
	require.NoError(t, s.Init(stage.Config{Name: "fft", Params: map[string]any{
		"window_seconds": 1.0,
		"slide_seconds":  1.0,
	}}))

	pool := eegpipe.NewMemoryPool(4)
	meta := &eegpipe.SensorMeta{ChannelNames: []string{"Fp1"}, SampleRate: 256}

	half := make([]float32, 128)
	in1 := voltagePacket(pool, meta, half, 128)
	out1, err := s.Process(context.Background(), pool, in1)
	require.NoError(t, err)
	assert.Nil(t, out1, "half a window should not emit yet")

	in2 := voltagePacket(pool, meta, half, 128)
	out2, err := s.Process(context.Background(), pool, in2)
	require.NoError(t, err)
	require.NotNil(t, out2, "the second half completes the window")
	out2.Release()
}

func TestFFTBandPowersReduceAcrossCanonicalBands(t *testing.T) {
	var s FFT
	require.NoError(t, s.Init(stage.Config{Name: "fft", Params: map[string]any{
		"window_seconds": 1.0,
		"slide_seconds":  1.0,
		"band_powers":    true,
	}}))

	pool := eegpipe.NewMemoryPool(4)
	const sampleRate = 256.0
	meta := &eegpipe.SensorMeta{ChannelNames: []string{"Fp1"}, SampleRate: sampleRate}

	const n = 256
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = float32(math.Sin(2 * math.Pi * 10 * float64(i) / sampleRate)) // alpha band
	}
	in := voltagePacket(pool, meta, samples, n)

	out, err := s.Process(context.Background(), pool, in)
	require.NoError(t, err)
	require.NotNil(t, out)
	defer out.Release()

	fft := out.(*eegpipe.FftPacket)
	bands := fft.BandPowers()[0]
	require.Len(t, bands, len(canonicalBands))

	alphaIdx := 2 // delta, theta, alpha, beta, gamma
	for i, p := range bands {
		if i != alphaIdx {
			assert.Less(t, p, bands[alphaIdx], "alpha band should dominate for a 10 Hz tone")
		}
	}
}

func TestFFTDegenerateTwoSampleWindowHasZeroWindowEnergy(t *testing.T) {
	// The Hann window for N=2 is [0, 0]; every PSD bin collapses to zero
	// rather than dividing by zero, since the window itself zeroes the data.
	w := hannWindow(2)
	assert.Equal(t, []float32{0, 0}, w)
}
