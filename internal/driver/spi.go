package driver

import (
	"context"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/spi"

	"github.com/elata-labs/eegpipe"
	"github.com/elata-labs/eegpipe/internal/constants"
	"github.com/elata-labs/eegpipe/internal/logging"
)

// Chip is the per-ADC-chip transfer contract a SPIBoardDriver drives. A
// concrete chip implementation (e.g. an ADS1299 driver) knows how to turn
// a raw SPI read into per-channel two's-complement codes.
type Chip interface {
	// ReadSamples performs one SPI transaction and returns numChannels
	// raw ADC codes, one per channel, in channel order.
	ReadSamples(conn spi.Conn) ([]int32, error)
	NumChannels() int
}

// SPIBoardDriver drives a real ADC front end over SPI, using a GPIO DRDY
// line to pace acquisition: it blocks on WaitForEdge up to DRDYTimeout,
// and re-waits (logging a non-fatal timeout) rather than polling the bus.
type SPIBoardDriver struct {
	mu    sync.RWMutex
	state State
	cfg   Config
	meta  *eegpipe.SensorMeta

	port spi.PortCloser
	conn spi.Conn
	drdy gpio.PinIn
	chip Chip
	log  *logging.Logger
}

// NewSPIBoardDriver constructs a driver over an already-opened SPI port
// and DRDY GPIO pin; periph.io/x/host.Init() must have been called by the
// caller before opening them.
func NewSPIBoardDriver(port spi.PortCloser, drdy gpio.PinIn, chip Chip, log *logging.Logger) *SPIBoardDriver {
	return &SPIBoardDriver{state: StateUninit, port: port, drdy: drdy, chip: chip, log: log}
}

func (d *SPIBoardDriver) State() State {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

func (d *SPIBoardDriver) Init(cfg Config) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := checkTransition(d.state, StateInitialized); err != nil {
		return err
	}
	conn, err := d.port.Connect(1*1000*1000, spi.Mode1, 8)
	if err != nil {
		return &eegpipe.Error{Op: "SPIBoardDriver.Init", Code: eegpipe.ErrCodeSPIFailure, Inner: err}
	}
	if err := d.drdy.In(gpio.PullNoChange, gpio.FallingEdge); err != nil {
		return &eegpipe.Error{Op: "SPIBoardDriver.Init", Code: eegpipe.ErrCodeSPIFailure, Inner: err}
	}
	d.conn = conn
	d.cfg = cfg
	d.meta = metaFromConfig(cfg, 1, "spi")
	d.state = StateInitialized
	return nil
}

func (d *SPIBoardDriver) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := checkTransition(d.state, StateRunning); err != nil {
		return err
	}
	d.state = StateRunning
	return nil
}

func (d *SPIBoardDriver) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := checkTransition(d.state, StateStopped); err != nil {
		return err
	}
	d.state = StateStopped
	return nil
}

func (d *SPIBoardDriver) Terminate() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := checkTransition(d.state, StateTerminated); err != nil {
		return err
	}
	if d.port != nil {
		_ = d.port.Close()
	}
	d.state = StateTerminated
	return nil
}

func (d *SPIBoardDriver) Meta() *eegpipe.SensorMeta {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.meta
}

// AcquireBatched waits for batchSize DRDY edges, reading one sample per
// edge, and interleaves the result channel-major to match Driver's
// contract.
func (d *SPIBoardDriver) AcquireBatched(ctx context.Context, batchSize int) ([]int32, *eegpipe.SensorMeta, error) {
	d.mu.RLock()
	if d.state != StateRunning {
		d.mu.RUnlock()
		return nil, nil, &eegpipe.Error{Op: "SPIBoardDriver.AcquireBatched", Code: eegpipe.ErrCodeDriverNotReady}
	}
	conn, meta, timeout := d.conn, d.meta, d.cfg.DRDYTimeout
	d.mu.RUnlock()
	if timeout <= 0 {
		timeout = constants.DefaultDRDYTimeout
	}

	numChannels := d.chip.NumChannels()
	perChannel := make([][]int32, numChannels)
	for i := range perChannel {
		perChannel[i] = make([]int32, 0, batchSize)
	}

	for i := 0; i < batchSize; i++ {
		waited := time.Duration(0)
		for {
			select {
			case <-ctx.Done():
				return nil, nil, ctx.Err()
			default:
			}
			if d.drdy.WaitForEdge(constants.StopPollInterval) {
				break
			}
			waited += constants.StopPollInterval
			if waited >= timeout && d.log != nil {
				d.log.Warn("DRDY wait timed out, retrying", "waited", waited)
				waited = 0
			}
		}

		samples, err := d.chip.ReadSamples(conn)
		if err != nil {
			return nil, nil, &eegpipe.Error{Op: "SPIBoardDriver.AcquireBatched", Code: eegpipe.ErrCodeSPIFailure, Inner: err}
		}
		for ch, v := range samples {
			perChannel[ch] = append(perChannel[ch], v)
		}
	}

	out := make([]int32, 0, batchSize*numChannels)
	for _, ch := range perChannel {
		out = append(out, ch...)
	}
	return out, meta, nil
}

// Reconfigure stores cfg (keeping the current channel names) and replaces
// the SensorMeta with a copy whose MetaRev is bumped and whose VRef, Gain,
// OffsetCode and SampleRate come from cfg. It does not stop acquisition,
// reopen the SPI connection or write any chip register; a batch already in
// progress finishes with the connection and meta it started with.
func (d *SPIBoardDriver) Reconfigure(cfg Config) (*eegpipe.SensorMeta, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	cfg.ChannelNames = d.cfg.ChannelNames
	d.cfg = cfg
	d.meta = d.meta.WithBumpedRevision()
	d.meta.VRef = cfg.VRef
	d.meta.Gain = cfg.Gain
	d.meta.OffsetCode = cfg.OffsetCode
	d.meta.SampleRate = cfg.SampleRate
	return d.meta, nil
}
