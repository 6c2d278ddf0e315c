package stage

import (
	"context"
	"encoding/json"

	"github.com/elata-labs/eegpipe"
)

// Mode distinguishes stages that drive themselves (Producer) from stages
// that react to an upstream packet (Worker).
type Mode int

const (
	ModeWorker Mode = iota
	ModeProducer
)

// Stage is the contract every built-in and user-registered stage type
// implements. Init is called once, by executor.New on the caller's
// goroutine, before any stage thread starts; Close is called once after the
// thread has stopped consuming new work.
type Stage interface {
	// Name returns the stage's configured instance name (Config.Name),
	// used in logs, metrics labels and error subjects.
	Name() string
	// Init prepares the stage to run, given its resolved configuration.
	Init(cfg Config) error
	// Mode reports whether the executor should drive this stage as a
	// Producer or a Worker.
	Mode() Mode
	// Close releases any resources the stage holds. It is called exactly
	// once, after the stage's thread has stopped.
	Close() error
}

// Producer is implemented by source stages with no upstream input; the
// executor calls Produce in a loop until it returns ErrNoMorePackets, its
// stop channel fires, or it returns an error that the stage's FailurePolicy
// does not skip.
type Producer interface {
	Stage
	// Produce emits the next packet, or (nil, nil) if no packet is ready
	// yet (the executor will poll again). ctx is cancelled on stop.
	Produce(ctx context.Context, pool *eegpipe.MemoryPool) (eegpipe.Packet, error)
}

// Worker is implemented by stages with at least one upstream input. The
// executor calls Process once per inbound packet; a nil output (with nil
// error) means the packet was consumed without producing output (e.g. a
// sink, or an FFT stage still accumulating a window). Process takes
// ownership of in: if it does not return in unchanged, it must Release in
// itself once done with it.
type Worker interface {
	Stage
	Process(ctx context.Context, pool *eegpipe.MemoryPool, in eegpipe.Packet) (eegpipe.Packet, error)
}

// ControlMessageType enumerates the control-plane message kinds a stage
// may receive while running.
type ControlMessageType int

const (
	ControlPause ControlMessageType = iota
	ControlResume
	ControlUpdateParam
)

// ControlMessage is delivered to a stage's control channel out-of-band
// from the packet data path.
type ControlMessage struct {
	Type  ControlMessageType
	Param string
	Value json.RawMessage
}

// Pausable is an optional capability: stages that can suspend packet
// production/consumption without tearing down state implement it.
type Pausable interface {
	Pause() error
	Resume() error
}

// ParamUpdater is an optional capability: stages that support hot
// parameter updates implement it.
type ParamUpdater interface {
	UpdateParam(name string, value json.RawMessage) error
}

// SchemaProvider is an optional capability: stages that expose a JSON
// schema describing their Params shape implement it. Neither the control
// plane, the config loader nor the executor calls ParamSchema, so Params
// are not validated against the schema.
type SchemaProvider interface {
	ParamSchema() json.RawMessage
}

// Reconfigurable is an optional capability for source stages whose
// upstream sensor metadata can change at runtime (a driver reconfigure);
// implementors receive the new SensorMeta and must bump packets' MetaRev
// accordingly going forward.
type Reconfigurable interface {
	Reconfigure(meta *eegpipe.SensorMeta) error
}
