package stages

import (
	"context"
	"encoding/json"
	"math"

	"github.com/elata-labs/eegpipe"
	"github.com/elata-labs/eegpipe/internal/stage"
)

func init() {
	stage.Register("triple_iir", func() stage.Stage { return &TripleIIR{} })
}

// biquadCoeffs holds a normalized (a0 == 1) biquad's numerator/denominator
// coefficients.
type biquadCoeffs struct {
	b0, b1, b2, a1, a2 float64
}

// biquad is a Direct-Form-II-Transposed biquad section: two delay
// registers, one multiply-add per coefficient, numerically well-behaved
// for the cascades built here.
type biquad struct {
	c      biquadCoeffs
	z1, z2 float64
}

func (f *biquad) process(x float64) float64 {
	y := f.c.b0*x + f.z1
	f.z1 = f.c.b1*x - f.c.a1*y + f.z2
	f.z2 = f.c.b2*x - f.c.a2*y
	return y
}

func highpassCoeffs(sampleRate, cutoff float64) biquadCoeffs {
	const q = 0.7071067811865476 // Butterworth Q, 1/sqrt(2)
	omega := 2 * math.Pi * cutoff / sampleRate
	alpha := math.Sin(omega) / (2 * q)
	cosOmega := math.Cos(omega)
	a0 := 1 + alpha
	return biquadCoeffs{
		b0: (1 + cosOmega) / 2 / a0,
		b1: -(1 + cosOmega) / a0,
		b2: (1 + cosOmega) / 2 / a0,
		a1: -2 * cosOmega / a0,
		a2: (1 - alpha) / a0,
	}
}

func lowpassCoeffs(sampleRate, cutoff float64) biquadCoeffs {
	const q = 0.7071067811865476
	omega := 2 * math.Pi * cutoff / sampleRate
	alpha := math.Sin(omega) / (2 * q)
	cosOmega := math.Cos(omega)
	a0 := 1 + alpha
	return biquadCoeffs{
		b0: (1 - cosOmega) / 2 / a0,
		b1: (1 - cosOmega) / a0,
		b2: (1 - cosOmega) / 2 / a0,
		a1: -2 * cosOmega / a0,
		a2: (1 - alpha) / a0,
	}
}

func notchCoeffs(sampleRate, freq, q float64) biquadCoeffs {
	omega := 2 * math.Pi * freq / sampleRate
	alpha := math.Sin(omega) / (2 * q)
	cosOmega := math.Cos(omega)
	a0 := 1 + alpha
	return biquadCoeffs{
		b0: 1 / a0,
		b1: -2 * cosOmega / a0,
		b2: 1 / a0,
		a1: -2 * cosOmega / a0,
		a2: (1 - alpha) / a0,
	}
}

// channelChain is one channel's HP -> optional notch -> LP cascade.
type channelChain struct {
	hp    biquad
	notch *biquad
	lp    biquad
}

func (c *channelChain) process(x float64) float64 {
	y := c.hp.process(x)
	if c.notch != nil {
		y = c.notch.process(y)
	}
	return c.lp.process(y)
}

// TripleIIRParams configures the triple_iir worker.
// NotchHz of 0 disables the notch stage entirely.
type TripleIIRParams struct {
	HighPassHz float64 `json:"high_pass_hz"`
	LowPassHz  float64 `json:"low_pass_hz"`
	NotchHz    float64 `json:"notch_hz"`
	NotchQ     float64 `json:"notch_q"`
}

const tripleIIRSchema = `{
  "type": "object",
  "properties": {
    "high_pass_hz": {"type": "number", "exclusiveMinimum": 0},
    "low_pass_hz": {"type": "number", "exclusiveMinimum": 0},
    "notch_hz": {"type": "number", "minimum": 0},
    "notch_q": {"type": "number", "exclusiveMinimum": 0}
  },
  "required": ["high_pass_hz", "low_pass_hz"]
}`

// TripleIIR is the per-channel HP -> notch -> LP biquad cascade, direct-form-II-transposed, rebuilt whenever the
// incoming sample rate or channel count changes.
type TripleIIR struct {
	name   string
	params TripleIIRParams

	sampleRate  float64
	numChannels int
	chains      []channelChain
}

func (s *TripleIIR) Name() string     { return s.name }
func (s *TripleIIR) Mode() stage.Mode { return stage.ModeWorker }
func (s *TripleIIR) Close() error     { return nil }

func (s *TripleIIR) Init(cfg stage.Config) error {
	s.name = cfg.Name
	var p TripleIIRParams
	if err := remarshalParams(cfg.Params, &p); err != nil {
		return &eegpipe.Error{Op: "TripleIIR.Init", Code: eegpipe.ErrCodeBadConfig, StageName: cfg.Name, Inner: err}
	}
	if p.HighPassHz <= 0 || p.LowPassHz <= 0 {
		return &eegpipe.Error{Op: "TripleIIR.Init", Code: eegpipe.ErrCodeBadConfig, StageName: cfg.Name}
	}
	if p.NotchQ == 0 {
		p.NotchQ = 30
	}
	s.params = p
	return nil
}

func (s *TripleIIR) ParamSchema() json.RawMessage { return json.RawMessage(tripleIIRSchema) }

// rebuild (re)constructs the per-channel filter chains for sampleRate and
// numChannels, resetting every delay register (a sample-rate or
// channel-count change invalidates in-flight filter state anyway).
func (s *TripleIIR) rebuild(sampleRate float64, numChannels int) {
	chains := make([]channelChain, numChannels)
	for i := range chains {
		chains[i].hp = biquad{c: highpassCoeffs(sampleRate, s.params.HighPassHz)}
		chains[i].lp = biquad{c: lowpassCoeffs(sampleRate, s.params.LowPassHz)}
		if s.params.NotchHz > 0 {
			n := biquad{c: notchCoeffs(sampleRate, s.params.NotchHz, s.params.NotchQ)}
			chains[i].notch = &n
		}
	}
	s.chains = chains
	s.sampleRate = sampleRate
	s.numChannels = numChannels
}

func (s *TripleIIR) Process(ctx context.Context, pool *eegpipe.MemoryPool, in eegpipe.Packet) (eegpipe.Packet, error) {
	voltage, ok := in.(*eegpipe.VoltagePacket)
	if !ok {
		in.Release()
		return nil, &eegpipe.Error{Op: "TripleIIR.Process", Code: eegpipe.ErrCodeStageProcessFailed, StageName: s.name}
	}
	header := voltage.Header()
	if header.Meta.SampleRate != s.sampleRate || header.NumChannels != s.numChannels {
		s.rebuild(header.Meta.SampleRate, header.NumChannels)
	}

	samples := voltage.Samples()
	if header.NumChannels == 0 || header.BatchSize == 0 {
		return voltage, nil
	}
	for ch := 0; ch < header.NumChannels; ch++ {
		chain := &s.chains[ch]
		base := ch * header.BatchSize
		for t := 0; t < header.BatchSize; t++ {
			samples[base+t] = float32(chain.process(float64(samples[base+t])))
		}
	}
	return voltage, nil
}
