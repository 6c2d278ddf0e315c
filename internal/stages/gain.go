package stages

import (
	"context"
	"encoding/json"
	"math"
	"sync/atomic"

	"github.com/elata-labs/eegpipe"
	"github.com/elata-labs/eegpipe/internal/stage"
)

func init() {
	stage.Register("gain", func() stage.Stage { return &Gain{} })
}

// GainParams configures the gain worker.
type GainParams struct {
	Gain float64 `json:"gain"`
}

const gainSchema = `{
  "type": "object",
  "properties": {"gain": {"type": "number"}},
  "required": ["gain"]
}`

// Gain stores its float64 gain behind an atomic.Uint64 so UpdateParam
// can be applied from the control plane's goroutine while Process reads
// it concurrently from the stage's own OS thread, without a mutex on the
// hot per-packet path.
type Gain struct {
	name string
	bits atomic.Uint64
}

func (s *Gain) Name() string     { return s.name }
func (s *Gain) Mode() stage.Mode { return stage.ModeWorker }
func (s *Gain) Close() error     { return nil }

func (s *Gain) Init(cfg stage.Config) error {
	s.name = cfg.Name
	var p GainParams
	if err := remarshalParams(cfg.Params, &p); err != nil {
		return &eegpipe.Error{Op: "Gain.Init", Code: eegpipe.ErrCodeBadConfig, StageName: cfg.Name, Inner: err}
	}
	if p.Gain == 0 {
		p.Gain = 1.0
	}
	s.setGain(p.Gain)
	return nil
}

func (s *Gain) setGain(g float64) { s.bits.Store(math.Float64bits(g)) }
func (s *Gain) getGain() float64  { return math.Float64frombits(s.bits.Load()) }

func (s *Gain) ParamSchema() json.RawMessage { return json.RawMessage(gainSchema) }

// UpdateParam implements stage.ParamUpdater for the "gain" key.
func (s *Gain) UpdateParam(name string, value json.RawMessage) error {
	if name != "gain" {
		return &eegpipe.Error{Op: "Gain.UpdateParam", Code: eegpipe.ErrCodeBadParam, StageName: s.name}
	}
	var g float64
	if err := json.Unmarshal(value, &g); err != nil {
		return &eegpipe.Error{Op: "Gain.UpdateParam", Code: eegpipe.ErrCodeBadParam, StageName: s.name, Inner: err}
	}
	s.setGain(g)
	return nil
}

func (s *Gain) Process(ctx context.Context, pool *eegpipe.MemoryPool, in eegpipe.Packet) (eegpipe.Packet, error) {
	voltage, ok := in.(*eegpipe.VoltagePacket)
	if !ok {
		in.Release()
		return nil, &eegpipe.Error{Op: "Gain.Process", Code: eegpipe.ErrCodeStageProcessFailed, StageName: s.name}
	}
	g := float32(s.getGain())
	samples := voltage.Samples()
	for i, v := range samples {
		samples[i] = v * g
	}
	return voltage, nil
}
