package stages

import (
	"context"
	"encoding/json"
	"math"

	"github.com/elata-labs/eegpipe"
	"github.com/elata-labs/eegpipe/internal/stage"
)

func init() {
	stage.Register("dc_block", func() stage.Stage { return &DCBlock{} })
}

// DCBlockParams configures the dc_block worker.
type DCBlockParams struct {
	CutoffHz float64 `json:"cutoff_hz"`
}

const dcBlockSchema = `{
  "type": "object",
  "properties": {"cutoff_hz": {"type": "number", "exclusiveMinimum": 0}},
  "required": ["cutoff_hz"]
}`

type dcBlockState struct {
	r     float64
	prevX float64
	prevY float64
}

// DCBlock is a single-pole high-pass filter, a lighter-weight alternative
// to triple_iir for callers that only need DC-offset removal without a
// notch or low-pass stage. y[n] = x[n] - x[n-1] + r*y[n-1]; r is derived
// from CutoffHz and the sample rate carried in SensorMeta, rebuilt
// whenever either changes.
type DCBlock struct {
	name   string
	params DCBlockParams

	sampleRate  float64
	numChannels int
	channels    []dcBlockState
}

func (s *DCBlock) Name() string     { return s.name }
func (s *DCBlock) Mode() stage.Mode { return stage.ModeWorker }
func (s *DCBlock) Close() error     { return nil }

func (s *DCBlock) Init(cfg stage.Config) error {
	s.name = cfg.Name
	var p DCBlockParams
	if err := remarshalParams(cfg.Params, &p); err != nil {
		return &eegpipe.Error{Op: "DCBlock.Init", Code: eegpipe.ErrCodeBadConfig, StageName: cfg.Name, Inner: err}
	}
	if p.CutoffHz <= 0 {
		p.CutoffHz = 0.5
	}
	s.params = p
	return nil
}

func (s *DCBlock) ParamSchema() json.RawMessage { return json.RawMessage(dcBlockSchema) }

func (s *DCBlock) rebuild(sampleRate float64, numChannels int) {
	r := 1 - (2 * math.Pi * s.params.CutoffHz / sampleRate)
	channels := make([]dcBlockState, numChannels)
	for i := range channels {
		channels[i].r = r
	}
	s.channels = channels
	s.sampleRate = sampleRate
	s.numChannels = numChannels
}

func (s *DCBlock) Process(ctx context.Context, pool *eegpipe.MemoryPool, in eegpipe.Packet) (eegpipe.Packet, error) {
	voltage, ok := in.(*eegpipe.VoltagePacket)
	if !ok {
		in.Release()
		return nil, &eegpipe.Error{Op: "DCBlock.Process", Code: eegpipe.ErrCodeStageProcessFailed, StageName: s.name}
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
		st := &s.channels[ch]
		base := ch * header.BatchSize
		for t := 0; t < header.BatchSize; t++ {
			x := float64(samples[base+t])
			y := x - st.prevX + st.r*st.prevY
			st.prevX, st.prevY = x, y
			samples[base+t] = float32(y)
		}
	}
	return voltage, nil
}
