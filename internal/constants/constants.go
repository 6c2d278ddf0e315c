// Package constants holds shared default values for the eegpipe runtime.
package constants

import "time"

// Edge and queue defaults.
const (
	// DefaultEdgeChannelCapacity is the bounded capacity of the channel
	// allocated for each graph edge. This is the back-pressure mechanism.
	DefaultEdgeChannelCapacity = 4

	// StopChannelCapacity is the capacity of every stage's stop channel.
	StopChannelCapacity = 1
)

// Driver timing defaults.
const (
	// DefaultDRDYTimeout is how long the acquisition thread waits for a
	// DRDY edge before logging a (non-fatal) timeout and re-waiting.
	DefaultDRDYTimeout = 1 * time.Second

	// StopPollInterval is how often a blocking driver read must check its
	// stop flag; kept well under 100ms so Stop() feels immediate.
	StopPollInterval = 50 * time.Millisecond

	// ExpectedStopLatency is the target upper bound on cooperative shutdown
	// latency.
	ExpectedStopLatency = 200 * time.Millisecond
)

// Memory pool defaults.
const (
	// DefaultPoolSize is the number of buffers held per (payload type,
	// capacity) pool bucket when not otherwise configured.
	DefaultPoolSize = 32

	// PoolMaxCapacityFactor bounds how much larger than its configured
	// capacity a returned buffer may be and still be recycled.
	PoolMaxCapacityFactor = 2
)

// CSV sink defaults.
const (
	// DefaultCSVFlushInterval is the timer cadence for flushing buffered
	// CSV writes.
	DefaultCSVFlushInterval = 5 * time.Second

	// DefaultMaxRecordingLengthMinutes is the default rotation period.
	DefaultMaxRecordingLengthMinutes = 60

	// MaxCSVChannels is the number of channel columns csv_sink pads/truncates to.
	MaxCSVChannels = 8
)

// FFT stage defaults.
const (
	DefaultFFTWindowSeconds = 2.0
	DefaultFFTSlideSeconds  = 1.0
)

// Control plane and API defaults.
const (
	// EventBusSubscriberCapacity is the per-subscriber buffered channel
	// size for the control plane's event bus; a subscriber that falls
	// behind has its oldest unread event dropped rather than blocking
	// publication to every other subscriber.
	EventBusSubscriberCapacity = 16

	// ConnectionSendBufferCapacity is the per-connection buffered channel
	// size internal/api's WebSocket hub uses, so one slow browser client
	// cannot block packet fan-out to others. SSE clients subscribe to the
	// event bus and get EventBusSubscriberCapacity instead.
	ConnectionSendBufferCapacity = 32

	// DefaultListenAddr is cmd/eeg-daemon's default HTTP bind address.
	DefaultListenAddr = ":8080"
)
