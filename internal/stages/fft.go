package stages

import (
	"context"
	"encoding/json"
	"math"

	"github.com/elata-labs/eegpipe"
	"github.com/elata-labs/eegpipe/internal/constants"
	"github.com/elata-labs/eegpipe/internal/stage"
)

func init() {
	stage.Register("fft", func() stage.Stage { return &FFT{} })
}

// FFTParams configures the fft worker.
type FFTParams struct {
	WindowSeconds float64 `json:"window_seconds"`
	SlideSeconds  float64 `json:"slide_seconds"`
	BandPowers    bool    `json:"band_powers"`
}

const fftSchema = `{
  "type": "object",
  "properties": {
    "window_seconds": {"type": "number", "exclusiveMinimum": 0},
    "slide_seconds": {"type": "number", "exclusiveMinimum": 0},
    "band_powers": {"type": "boolean"}
  }
}`

type band struct {
	name           string
	lowHz, highHz  float32
}

// canonical EEG bands, in the order FFT.BandPowers output slices use.
var canonicalBands = []band{
	{"delta", 0.5, 4},
	{"theta", 4, 8},
	{"alpha", 8, 13},
	{"beta", 13, 30},
	{"gamma", 30, 45},
}

// FFT maintains a per-channel sliding accumulation buffer and emits an
// FftPacket each time every channel has at least one full window's worth
// of samples, applying a Hann window and normalizing to a one-sided power
// spectral density in (µV)²/Hz.
type FFT struct {
	name   string
	params FFTParams

	sampleRate    float64
	numChannels   int
	windowSamples int
	slideSamples  int
	buffers       [][]float32
}

func (s *FFT) Name() string     { return s.name }
func (s *FFT) Mode() stage.Mode { return stage.ModeWorker }
func (s *FFT) Close() error     { return nil }

func (s *FFT) Init(cfg stage.Config) error {
	s.name = cfg.Name
	var p FFTParams
	if err := remarshalParams(cfg.Params, &p); err != nil {
		return &eegpipe.Error{Op: "FFT.Init", Code: eegpipe.ErrCodeBadConfig, StageName: cfg.Name, Inner: err}
	}
	if p.WindowSeconds <= 0 {
		p.WindowSeconds = constants.DefaultFFTWindowSeconds
	}
	if p.SlideSeconds <= 0 {
		p.SlideSeconds = constants.DefaultFFTSlideSeconds
	}
	s.params = p
	return nil
}

func (s *FFT) ParamSchema() json.RawMessage { return json.RawMessage(fftSchema) }

func (s *FFT) rebuild(sampleRate float64, numChannels int) {
	s.windowSamples = int(math.Round(sampleRate * s.params.WindowSeconds))
	s.slideSamples = int(math.Round(sampleRate * s.params.SlideSeconds))
	s.buffers = make([][]float32, numChannels)
	for i := range s.buffers {
		s.buffers[i] = make([]float32, 0, s.windowSamples)
	}
	s.sampleRate = sampleRate
	s.numChannels = numChannels
}

// hannWindow mirrors the N==0/N==1 special cases the original
// implementation carves out (a single-point window is 1.0, since the
// (N-1)-denominator formula is undefined there).
func hannWindow(n int) []float32 {
	if n == 0 {
		return nil
	}
	if n == 1 {
		return []float32{1}
	}
	w := make([]float32, n)
	for i := range w {
		w[i] = float32(0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1))))
	}
	return w
}

// dft is a direct O(n^2) discrete Fourier transform. FFT windows are a few
// hundred to a couple thousand samples at typical EEG sample rates, well
// within the range where the naive transform's simplicity outweighs a
// radix-2 implementation's constraint to power-of-two lengths.
func dft(x []complex128) []complex128 {
	n := len(x)
	out := make([]complex128, n)
	for k := 0; k < n; k++ {
		var sum complex128
		for t := 0; t < n; t++ {
			angle := -2 * math.Pi * float64(k) * float64(t) / float64(n)
			sum += x[t] * complex(math.Cos(angle), math.Sin(angle))
		}
		out[k] = sum
	}
	return out
}

// channelPSD applies a Hann window, scales volts to microvolts, and
// computes the one-sided (µV)²/Hz power spectral density.
func (s *FFT) channelPSD(data []float32) ([]float32, float32) {
	n := len(data)
	window := hannWindow(n)
	windowSumSq := 0.0
	for _, w := range window {
		windowSumSq += float64(w) * float64(w)
	}

	x := make([]complex128, n)
	for i, v := range data {
		x[i] = complex(float64(v)*float64(window[i])*1e6, 0)
	}
	spectrum := dft(x)

	specLen := n/2 + 1
	psd := make([]float32, specLen)
	denom := s.sampleRate * windowSumSq
	if denom == 0 {
		return psd, float32(s.sampleRate / float64(n))
	}
	for k := 0; k < specLen; k++ {
		mag2 := real(spectrum[k])*real(spectrum[k]) + imag(spectrum[k])*imag(spectrum[k])
		val := mag2 / denom
		if !(k == 0 || (n%2 == 0 && k == n/2)) {
			val *= 2
		}
		psd[k] = float32(val)
	}
	return psd, float32(s.sampleRate / float64(n))
}

func reduceBandPowers(psd []float32, freqResolutionHz float32) []float32 {
	powers := make([]float32, len(canonicalBands))
	for i, b := range canonicalBands {
		var sum float32
		for k, v := range psd {
			f := float32(k) * freqResolutionHz
			if f >= b.lowHz && f < b.highHz {
				sum += v
			}
		}
		powers[i] = sum
	}
	return powers
}

func (s *FFT) Process(ctx context.Context, pool *eegpipe.MemoryPool, in eegpipe.Packet) (eegpipe.Packet, error) {
	voltage, ok := in.(*eegpipe.VoltagePacket)
	if !ok {
		in.Release()
		return nil, &eegpipe.Error{Op: "FFT.Process", Code: eegpipe.ErrCodeStageProcessFailed, StageName: s.name}
	}
	header := voltage.Header()
	if header.Meta.SampleRate != s.sampleRate || header.NumChannels != s.numChannels {
		s.rebuild(header.Meta.SampleRate, header.NumChannels)
	}

	samples := voltage.Samples()
	for ch := 0; ch < header.NumChannels; ch++ {
		base := ch * header.BatchSize
		s.buffers[ch] = append(s.buffers[ch], samples[base:base+header.BatchSize]...)
	}
	voltage.Release()

	if s.windowSamples <= 0 {
		return nil, nil
	}
	ready := s.numChannels > 0
	for ch := 0; ch < s.numChannels; ch++ {
		if len(s.buffers[ch]) < s.windowSamples {
			ready = false
			break
		}
	}
	if !ready {
		return nil, nil
	}

	psdMap := make(map[int]*eegpipe.Float32Buffer, s.numChannels)
	var bandPowers map[int][]float32
	if s.params.BandPowers {
		bandPowers = make(map[int][]float32, s.numChannels)
	}
	var freqRes float32

	for ch := 0; ch < s.numChannels; ch++ {
		window := s.buffers[ch][:s.windowSamples]
		psd, fr := s.channelPSD(window)
		freqRes = fr

		buf, err := pool.AcquireF32(len(psd), eegpipe.AcquireBlocking)
		if err != nil {
			for _, b := range psdMap {
				b.Release()
			}
			return nil, err
		}
		buf.Append(psd...)
		psdMap[ch] = buf

		if s.params.BandPowers {
			bandPowers[ch] = reduceBandPowers(psd, fr)
		}

		if s.slideSamples > 0 && len(s.buffers[ch]) >= s.slideSamples {
			remaining := append([]float32(nil), s.buffers[ch][s.slideSamples:]...)
			s.buffers[ch] = remaining
		} else {
			s.buffers[ch] = s.buffers[ch][:0]
		}
	}

	return eegpipe.NewFftPacket(header, psdMap, freqRes, bandPowers), nil
}
