package stages

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"math"
	"time"

	"github.com/elata-labs/eegpipe"
	"github.com/elata-labs/eegpipe/internal/stage"
)

func init() {
	stage.Register("websocket_sink", func() stage.Stage { return &WebsocketSink{} })
}

// Broadcaster is the narrow interface websocket_sink pushes encoded frames
// through; internal/api's connection hub implements it over
// gorilla/websocket, keeping this package free of any HTTP/transport
// concern of its own.
type Broadcaster interface {
	Broadcast(frame []byte)
}

// WebsocketSinkParams configures the websocket_sink worker.
type WebsocketSinkParams struct {
	Channel string `json:"channel"`
}

const websocketSinkSchema = `{
  "type": "object",
  "properties": {"channel": {"type": "string"}}
}`

// WebsocketSink serializes Voltage (and RawI32, promoted to float32)
// packets to the binary streaming frame format and hands the frame to a
// Broadcaster. It has no declared outputs.
type WebsocketSink struct {
	name    string
	params  WebsocketSinkParams
	bcaster Broadcaster
}

// NewWebsocketSink builds a websocket_sink bound to an already-constructed
// Broadcaster, for programmatic wiring (the registry factory below builds
// one with no Broadcaster; callers assembling a pipeline through
// internal/control are expected to set it via SetBroadcaster before Start).
func NewWebsocketSink(name string, bcaster Broadcaster) *WebsocketSink {
	return &WebsocketSink{name: name, bcaster: bcaster}
}

// SetBroadcaster wires the destination after construction, since the
// stage registry's factory signature has no room for out-of-band
// dependencies.
func (s *WebsocketSink) SetBroadcaster(b Broadcaster) { s.bcaster = b }

func (s *WebsocketSink) Name() string     { return s.name }
func (s *WebsocketSink) Mode() stage.Mode { return stage.ModeWorker }
func (s *WebsocketSink) Close() error     { return nil }

func (s *WebsocketSink) Init(cfg stage.Config) error {
	s.name = cfg.Name
	var p WebsocketSinkParams
	if err := remarshalParams(cfg.Params, &p); err != nil {
		return &eegpipe.Error{Op: "WebsocketSink.Init", Code: eegpipe.ErrCodeBadConfig, StageName: cfg.Name, Inner: err}
	}
	s.params = p
	return nil
}

func (s *WebsocketSink) ParamSchema() json.RawMessage { return json.RawMessage(websocketSinkSchema) }

// encodeFrame builds the binary streaming format:
// [u32 LE total_samples][u64 LE x total_samples timestamps][f32 LE x total_samples values].
// Samples are flattened channel-major, same as the packet's own layout;
// each flattened sample's timestamp is the header timestamp advanced by
// its time-slot within the batch (so every channel at slot t shares one
// timestamp, repeated once per channel it appears in).
func encodeFrame(header eegpipe.PacketHeader, samples []float32) []byte {
	total := len(samples)
	buf := make([]byte, 4+8*total+4*total)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(total))

	sampleIntervalNs := int64(0)
	if header.Meta != nil && header.Meta.SampleRate > 0 {
		sampleIntervalNs = int64(float64(time.Second) / header.Meta.SampleRate)
	}

	tsOff := 4
	valOff := 4 + 8*total
	batchSize := header.BatchSize
	if batchSize == 0 {
		batchSize = total
	}
	for i := 0; i < total; i++ {
		slot := i % batchSize
		ts := header.TSNanos + int64(slot)*sampleIntervalNs
		binary.LittleEndian.PutUint64(buf[tsOff+i*8:tsOff+i*8+8], uint64(ts))
		binary.LittleEndian.PutUint32(buf[valOff+i*4:valOff+i*4+4], math.Float32bits(samples[i]))
	}
	return buf
}

func (s *WebsocketSink) Process(ctx context.Context, pool *eegpipe.MemoryPool, in eegpipe.Packet) (eegpipe.Packet, error) {
	defer in.Release()

	var samples []float32
	header := in.Header()
	switch p := in.(type) {
	case *eegpipe.VoltagePacket:
		samples = p.Samples()
	case *eegpipe.RawI32Packet:
		raw := p.Samples()
		samples = make([]float32, len(raw))
		for i, v := range raw {
			samples[i] = float32(v)
		}
	default:
		return nil, &eegpipe.Error{Op: "WebsocketSink.Process", Code: eegpipe.ErrCodeStageProcessFailed, StageName: s.name}
	}

	if s.bcaster == nil {
		return nil, nil
	}
	s.bcaster.Broadcast(encodeFrame(header, samples))
	return nil, nil
}
