package stages

import (
	"context"
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elata-labs/eegpipe"
	"github.com/elata-labs/eegpipe/internal/stage"
)

type fakeBroadcaster struct {
	frames [][]byte
}

func (b *fakeBroadcaster) Broadcast(frame []byte) {
	b.frames = append(b.frames, frame)
}

func TestWebsocketSinkEncodesVoltageFrame(t *testing.T) {
	var s WebsocketSink
	require.NoError(t, s.Init(stage.Config{Name: "ws"}))
	bc := &fakeBroadcaster{}
	s.SetBroadcaster(bc)

	pool := eegpipe.NewMemoryPool(4)
	meta := testMeta()
	in := voltagePacket(pool, meta, []float32{1, 2, 3, 4}, 2)
	in.Header() // touch header before Process takes ownership, for clarity only

	out, err := s.Process(context.Background(), pool, in)
	require.NoError(t, err)
	assert.Nil(t, out)
	require.Len(t, bc.frames, 1)

	frame := bc.frames[0]
	total := binary.LittleEndian.Uint32(frame[0:4])
	assert.Equal(t, uint32(4), total)

	valOff := 4 + 8*int(total)
	var got []float32
	for i := 0; i < int(total); i++ {
		bits := binary.LittleEndian.Uint32(frame[valOff+i*4 : valOff+i*4+4])
		got = append(got, math.Float32frombits(bits))
	}
	assert.Equal(t, []float32{1, 2, 3, 4}, got)
}

func TestWebsocketSinkWithNoBroadcasterDoesNotPanic(t *testing.T) {
	var s WebsocketSink
	require.NoError(t, s.Init(stage.Config{Name: "ws"}))

	pool := eegpipe.NewMemoryPool(4)
	meta := testMeta()
	in := voltagePacket(pool, meta, []float32{1, 2}, 2)

	out, err := s.Process(context.Background(), pool, in)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestWebsocketSinkRejectsUnknownPacketType(t *testing.T) {
	var s WebsocketSink
	require.NoError(t, s.Init(stage.Config{Name: "ws"}))
	s.SetBroadcaster(&fakeBroadcaster{})

	pool := eegpipe.NewMemoryPool(4)
	psd := map[int]*eegpipe.Float32Buffer{}
	fft := eegpipe.NewFftPacket(eegpipe.PacketHeader{}, psd, 1.0, nil)

	_, err := s.Process(context.Background(), pool, fft)
	require.Error(t, err)
}
