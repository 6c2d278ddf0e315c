package stages

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elata-labs/eegpipe"
	"github.com/elata-labs/eegpipe/internal/stage"
)

func testMeta() *eegpipe.SensorMeta {
	return &eegpipe.SensorMeta{
		SensorID:     "mock-0",
		VRef:         4.5,
		ADCBits:      24,
		Gain:         1,
		ChannelNames: []string{"Fp1", "Fp2"},
		SampleRate:   250,
	}
}

func rawPacket(pool *eegpipe.MemoryPool, meta *eegpipe.SensorMeta, samples []int32, batchSize int) *eegpipe.RawI32Packet {
	buf, _ := pool.AcquireI32(len(samples), eegpipe.AcquireBlocking)
	buf.Append(samples...)
	header := eegpipe.PacketHeader{
		SourceID:    "test",
		BatchSize:   batchSize,
		NumChannels: meta.NumChannels(),
		Meta:        meta,
	}
	return eegpipe.NewRawI32Packet(header, buf)
}

func TestToVoltageConvertsRawToVoltage(t *testing.T) {
	var s ToVoltage
	require.NoError(t, s.Init(stage.Config{Name: "tv"}))

	pool := eegpipe.NewMemoryPool(4)
	meta := testMeta()
	in := rawPacket(pool, meta, []int32{0, 0, 0, 0}, 2)

	out, err := s.Process(context.Background(), pool, in)
	require.NoError(t, err)
	require.NotNil(t, out)
	defer out.Release()

	voltage, ok := out.(*eegpipe.VoltagePacket)
	require.True(t, ok)
	assert.Len(t, voltage.Samples(), 4)
	for _, v := range voltage.Samples() {
		assert.InDelta(t, float32(eegpipe.RawToVoltage(0, meta)), v, 1e-6)
	}
}

func TestToVoltageRejectsWrongPacketType(t *testing.T) {
	var s ToVoltage
	require.NoError(t, s.Init(stage.Config{Name: "tv"}))

	pool := eegpipe.NewMemoryPool(4)
	meta := testMeta()
	buf, _ := pool.AcquireF32(2, eegpipe.AcquireBlocking)
	buf.Append(1, 2)
	voltage := eegpipe.NewVoltagePacket(eegpipe.PacketHeader{Meta: meta}, buf)

	_, err := s.Process(context.Background(), pool, voltage)
	require.Error(t, err)
}
