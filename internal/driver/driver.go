package driver

import (
	"context"
	"time"

	"github.com/elata-labs/eegpipe"
)

// Config describes how to bring up a board driver: its channel layout,
// sample rate and the ADC calibration parameters needed to populate the
// SensorMeta every acquired batch carries.
type Config struct {
	SensorID     string
	ChannelNames []string
	SampleRate   float64
	VRef         float64
	ADCBits      uint8
	Gain         float64
	OffsetCode   int32
	DRDYTimeout  time.Duration
}

// Driver is the contract both the mock and SPI-backed board drivers
// implement. Callers drive the state machine explicitly: Init then Start
// before the first AcquireBatched, Stop to pause, Terminate to release
// hardware resources for good.
type Driver interface {
	State() State
	Init(cfg Config) error
	Start() error
	Stop() error
	Terminate() error

	// AcquireBatched blocks (honoring ctx) until batchSize samples per
	// channel are available, returning them interleaved channel-major
	// ([ch0_s0, ch0_s1, ..., ch1_s0, ch1_s1, ...]) along with the
	// SensorMeta in effect when the batch was captured.
	AcquireBatched(ctx context.Context, batchSize int) ([]int32, *eegpipe.SensorMeta, error)

	// Reconfigure applies new calibration/sample-rate parameters, pausing
	// acquisition for a brief quiescent window, and returns the new
	// SensorMeta (MetaRev bumped relative to the previous one).
	Reconfigure(cfg Config) (*eegpipe.SensorMeta, error)

	// Meta returns the SensorMeta currently in effect.
	Meta() *eegpipe.SensorMeta
}

func metaFromConfig(cfg Config, rev uint64, sourceType string) *eegpipe.SensorMeta {
	return &eegpipe.SensorMeta{
		SensorID:         cfg.SensorID,
		MetaRev:          rev,
		SourceType:       sourceType,
		VRef:             cfg.VRef,
		ADCBits:          cfg.ADCBits,
		Gain:             cfg.Gain,
		OffsetCode:       cfg.OffsetCode,
		IsTwosComplement: true,
		SampleRate:       cfg.SampleRate,
		ChannelNames:     append([]string(nil), cfg.ChannelNames...),
	}
}
