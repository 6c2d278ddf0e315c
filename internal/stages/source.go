package stages

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/elata-labs/eegpipe"
	"github.com/elata-labs/eegpipe/internal/driver"
	"github.com/elata-labs/eegpipe/internal/stage"
)

// EEGSourceParams configures the eeg_source producer.
type EEGSourceParams struct {
	DriverType   string   `json:"driver_type"`
	SensorID     string   `json:"sensor_id"`
	ChannelNames []string `json:"channel_names"`
	SampleRate   float64  `json:"sample_rate"`
	BatchSize    int      `json:"batch_size"`
	VRef         float64  `json:"v_ref"`
	ADCBits      uint8    `json:"adc_bits"`
	Gain         float64  `json:"gain"`
	OffsetCode   int32    `json:"offset_code"`
}

const eegSourceSchema = `{
  "type": "object",
  "properties": {
    "driver_type": {"type": "string", "default": "mock"},
    "sensor_id": {"type": "string"},
    "channel_names": {"type": "array", "items": {"type": "string"}},
    "sample_rate": {"type": "number", "exclusiveMinimum": 0},
    "batch_size": {"type": "integer", "exclusiveMinimum": 0},
    "v_ref": {"type": "number", "exclusiveMinimum": 0},
    "adc_bits": {"type": "integer", "minimum": 1},
    "gain": {"type": "number", "exclusiveMinimum": 0},
    "offset_code": {"type": "integer"}
  },
  "required": ["sensor_id", "channel_names", "sample_rate", "batch_size"]
}`

// driverFactories maps a driver_type string to a constructor; "mock" is
// registered by default, new types (e.g. a board-specific SPI wiring) are
// added via RegisterDriverFactory at process start-up, mirroring the stage
// registry's own open-ended factory pattern.
var (
	driverFactoriesMu sync.RWMutex
	driverFactories   = map[string]func() driver.Driver{
		"mock": func() driver.Driver { return driver.NewMockDriver() },
	}
)

// RegisterDriverFactory makes driverType available to eeg_source stages
// configured with that driver_type. Intended to be called from an init
// func in a package that knows how to open a real board (SPI port, GPIO
// DRDY pin, chip decoder) before the pipeline config is loaded.
func RegisterDriverFactory(driverType string, factory func() driver.Driver) {
	driverFactoriesMu.Lock()
	defer driverFactoriesMu.Unlock()
	driverFactories[driverType] = factory
}

// EEGSource is the producer stage wrapping a board driver, emitting RawI32
// packets on its single output.
type EEGSource struct {
	name    string
	drv     driver.Driver
	params  EEGSourceParams
	frameID uint64
}

// NewEEGSourceWithDriver builds an eeg_source instance around an
// already-constructed driver, bypassing the driver_type factory lookup.
// It serves callers that wire a hardware driver programmatically instead
// of through driver_type in YAML; only tests call it in this repository.
func NewEEGSourceWithDriver(name string, drv driver.Driver) *EEGSource {
	return &EEGSource{name: name, drv: drv}
}

func init() {
	stage.Register("eeg_source", func() stage.Stage { return &EEGSource{} })
}

func (s *EEGSource) Name() string    { return s.name }
func (s *EEGSource) Mode() stage.Mode { return stage.ModeProducer }

func (s *EEGSource) Init(cfg stage.Config) error {
	s.name = cfg.Name
	var p EEGSourceParams
	if err := remarshalParams(cfg.Params, &p); err != nil {
		return &eegpipe.Error{Op: "EEGSource.Init", Code: eegpipe.ErrCodeBadConfig, StageName: cfg.Name, Inner: err}
	}
	if p.DriverType == "" {
		p.DriverType = "mock"
	}
	if p.BatchSize <= 0 {
		p.BatchSize = 32
	}
	s.params = p

	if s.drv == nil {
		driverFactoriesMu.RLock()
		factory, ok := driverFactories[p.DriverType]
		driverFactoriesMu.RUnlock()
		if !ok {
			return &eegpipe.Error{Op: "EEGSource.Init", Code: eegpipe.ErrCodeBadConfig, StageName: cfg.Name}
		}
		s.drv = factory()
	}

	driverCfg := driver.Config{
		SensorID:     p.SensorID,
		ChannelNames: p.ChannelNames,
		SampleRate:   p.SampleRate,
		VRef:         p.VRef,
		ADCBits:      p.ADCBits,
		Gain:         p.Gain,
		OffsetCode:   p.OffsetCode,
	}
	if err := s.drv.Init(driverCfg); err != nil {
		return err
	}
	return s.drv.Start()
}

// SourceMeta exposes the driver's current calibration snapshot so the
// control plane can emit SourceReady once acquisition is live, without
// needing any other visibility into the stage's internals.
func (s *EEGSource) SourceMeta() *eegpipe.SensorMeta {
	if s.drv == nil {
		return nil
	}
	return s.drv.Meta()
}

func (s *EEGSource) Close() error {
	if s.drv == nil {
		return nil
	}
	if err := s.drv.Stop(); err != nil {
		return err
	}
	return s.drv.Terminate()
}

func (s *EEGSource) ParamSchema() json.RawMessage { return json.RawMessage(eegSourceSchema) }

// Produce acquires one batch from the driver and wraps it in a RawI32
// packet; it takes a fresh buffer from pool rather than reusing the
// driver's own slice, since the driver's slice is not pool-owned.
func (s *EEGSource) Produce(ctx context.Context, pool *eegpipe.MemoryPool) (eegpipe.Packet, error) {
	samples, meta, err := s.drv.AcquireBatched(ctx, s.params.BatchSize)
	if err != nil {
		return nil, err
	}

	numChannels := meta.NumChannels()
	buf, err := pool.AcquireI32(len(samples), eegpipe.AcquireBlocking)
	if err != nil {
		return nil, err
	}
	buf.Append(samples...)

	s.frameID++
	header := eegpipe.PacketHeader{
		SourceID:    s.name + ".raw_data",
		FrameID:     s.frameID,
		BatchSize:   s.params.BatchSize,
		NumChannels: numChannels,
		Meta:        meta,
	}
	return eegpipe.NewRawI32Packet(header, buf), nil
}

// Reconfigure implements stage.Reconfigurable by pushing new calibration
// parameters through to the underlying driver; the bumped SensorMeta it
// returns begins appearing on the next Produce call's packet header.
func (s *EEGSource) Reconfigure(meta *eegpipe.SensorMeta) error {
	cfg := driver.Config{
		SensorID:     meta.SensorID,
		ChannelNames: meta.ChannelNames,
		SampleRate:   meta.SampleRate,
		VRef:         meta.VRef,
		ADCBits:      meta.ADCBits,
		Gain:         meta.Gain,
		OffsetCode:   meta.OffsetCode,
	}
	_, err := s.drv.Reconfigure(cfg)
	return err
}
