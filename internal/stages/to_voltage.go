package stages

import (
	"context"
	"encoding/json"

	"github.com/elata-labs/eegpipe"
	"github.com/elata-labs/eegpipe/internal/stage"
)

func init() {
	stage.Register("to_voltage", func() stage.Stage { return &ToVoltage{} })
}

// ToVoltage converts RawI32 packets to Voltage packets using the
// calibration carried in each packet's SensorMeta. It takes no parameters.
type ToVoltage struct {
	name string
}

func (s *ToVoltage) Name() string     { return s.name }
func (s *ToVoltage) Mode() stage.Mode { return stage.ModeWorker }
func (s *ToVoltage) Close() error     { return nil }

func (s *ToVoltage) Init(cfg stage.Config) error {
	s.name = cfg.Name
	return nil
}

func (s *ToVoltage) ParamSchema() json.RawMessage {
	return json.RawMessage(`{"type": "object", "properties": {}}`)
}

func (s *ToVoltage) Process(ctx context.Context, pool *eegpipe.MemoryPool, in eegpipe.Packet) (eegpipe.Packet, error) {
	raw, ok := in.(*eegpipe.RawI32Packet)
	if !ok {
		in.Release()
		return nil, &eegpipe.Error{Op: "ToVoltage.Process", Code: eegpipe.ErrCodeStageProcessFailed, StageName: s.name}
	}
	header := raw.Header()
	samples := raw.Samples()

	out, err := pool.AcquireF32(len(samples), eegpipe.AcquireBlocking)
	if err != nil {
		raw.Release()
		return nil, err
	}
	out.SetLen(len(samples))
	eegpipe.ConvertBatch(samples, out.Slice(), header.Meta)
	raw.Release()

	return eegpipe.NewVoltagePacket(header, out), nil
}
