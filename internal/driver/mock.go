package driver

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/elata-labs/eegpipe"
)

// MockDriver synthesizes deterministic-ish sine+noise waveforms per
// channel instead of talking to real SPI hardware; it is the Driver used
// by every test that needs a Driver without a board attached.
//
// Per-channel oscillator phase is guarded by its own mutex (one shard per
// channel) rather than a single driver-wide lock, the same sharded-locking
// idiom the mock memory backend this is descended from used to let
// concurrent callers touch independent channels/shards without
// contending on each other.
type MockDriver struct {
	mu    sync.RWMutex // guards state/meta/cfg
	state State
	cfg   Config
	meta  *eegpipe.SensorMeta

	phaseMu []sync.Mutex
	phase   []float64

	frequencyHz []float64 // synthetic per-channel signal frequency
	rng         *rand.Rand
}

// NewMockDriver creates an uninitialized mock driver.
func NewMockDriver() *MockDriver {
	return &MockDriver{state: StateUninit, rng: rand.New(rand.NewSource(1))}
}

func (d *MockDriver) State() State {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

func (d *MockDriver) Init(cfg Config) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := checkTransition(d.state, StateInitialized); err != nil {
		return err
	}
	d.cfg = cfg
	d.meta = metaFromConfig(cfg, 1, "mock")
	n := len(cfg.ChannelNames)
	d.phaseMu = make([]sync.Mutex, n)
	d.phase = make([]float64, n)
	d.frequencyHz = make([]float64, n)
	for i := range d.frequencyHz {
		d.frequencyHz[i] = 8 + float64(i) // alpha-band-ish default, staggered per channel
	}
	d.state = StateInitialized
	return nil
}

func (d *MockDriver) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := checkTransition(d.state, StateRunning); err != nil {
		return err
	}
	d.state = StateRunning
	return nil
}

func (d *MockDriver) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := checkTransition(d.state, StateStopped); err != nil {
		return err
	}
	d.state = StateStopped
	return nil
}

func (d *MockDriver) Terminate() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := checkTransition(d.state, StateTerminated); err != nil {
		return err
	}
	d.state = StateTerminated
	return nil
}

func (d *MockDriver) Meta() *eegpipe.SensorMeta {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.meta
}

// AcquireBatched synthesizes batchSize samples per channel. It honors ctx
// cancellation between channels but otherwise never blocks, since there is
// no real DRDY line to wait on.
func (d *MockDriver) AcquireBatched(ctx context.Context, batchSize int) ([]int32, *eegpipe.SensorMeta, error) {
	d.mu.RLock()
	if d.state != StateRunning {
		d.mu.RUnlock()
		return nil, nil, &eegpipe.Error{Op: "MockDriver.AcquireBatched", Code: eegpipe.ErrCodeDriverNotReady}
	}
	meta := d.meta
	sampleRate := d.cfg.SampleRate
	numChannels := len(d.cfg.ChannelNames)
	d.mu.RUnlock()

	out := make([]int32, 0, batchSize*numChannels)
	fullScale := math.Pow(2, float64(meta.ADCBits)-1) - 1

	for ch := 0; ch < numChannels; ch++ {
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		default:
		}

		d.phaseMu[ch].Lock()
		phase := d.phase[ch]
		freq := d.frequencyHz[ch]
		for i := 0; i < batchSize; i++ {
			t := phase + float64(i)/sampleRate
			sample := math.Sin(2*math.Pi*freq*t) * 0.4
			sample += d.rng.NormFloat64() * 0.02
			code := int32(sample * fullScale)
			out = append(out, code)
		}
		d.phase[ch] = phase + float64(batchSize)/sampleRate
		d.phaseMu[ch].Unlock()
	}

	return out, meta, nil
}

// Reconfigure applies cfg, bumping MetaRev, after a brief simulated
// quiescent window during which AcquireBatched callers just see
// StateRunning continue uninterrupted (the mock has nothing to physically
// quiesce); the sleep stands in for the settling time a real ADC's PGA
// needs after a gain change.
func (d *MockDriver) Reconfigure(cfg Config) (*eegpipe.SensorMeta, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state != StateRunning && d.state != StateInitialized {
		return nil, &eegpipe.Error{Op: "MockDriver.Reconfigure", Code: eegpipe.ErrCodeDriverNotReady}
	}
	time.Sleep(time.Millisecond)
	cfg.ChannelNames = d.cfg.ChannelNames
	d.cfg = cfg
	d.meta = d.meta.WithBumpedRevision()
	d.meta.VRef = cfg.VRef
	d.meta.Gain = cfg.Gain
	d.meta.OffsetCode = cfg.OffsetCode
	d.meta.SampleRate = cfg.SampleRate
	return d.meta, nil
}
