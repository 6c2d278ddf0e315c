package eegpipe

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryPoolAcquireReleaseRoundTrip(t *testing.T) {
	p := NewMemoryPool(2)

	buf, err := p.AcquireI32(64, AcquireNonBlocking)
	require.NoError(t, err)
	assert.Equal(t, 0, len(buf.Slice()))
	assert.Equal(t, 64, buf.Cap())

	buf.Append(1, 2, 3)
	assert.Equal(t, []int32{1, 2, 3}, buf.Slice())

	buf.Release()

	buf2, err := p.AcquireI32(64, AcquireNonBlocking)
	require.NoError(t, err)
	assert.Equal(t, 0, len(buf2.Slice()), "released buffer must come back truncated to zero length")
}

func TestMemoryPoolExhaustionNonBlocking(t *testing.T) {
	p := NewMemoryPool(1)

	buf, err := p.AcquireF32(16, AcquireNonBlocking)
	require.NoError(t, err)

	_, err = p.AcquireF32(16, AcquireNonBlocking)
	require.Error(t, err)
	assert.True(t, IsPoolExhausted(err))

	buf.Release()
	_, err = p.AcquireF32(16, AcquireNonBlocking)
	assert.NoError(t, err, "releasing the only buffer must make the bucket available again")
}

func TestMemoryPoolBlockingAcquireWaitsForRelease(t *testing.T) {
	p := NewMemoryPool(1)

	buf, err := p.AcquireI32(8, AcquireNonBlocking)
	require.NoError(t, err)

	acquired := make(chan *Int32Buffer, 1)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		b, err := p.AcquireI32(8, AcquireBlocking)
		require.NoError(t, err)
		acquired <- b
	}()

	buf.Release()
	wg.Wait()
	select {
	case <-acquired:
	default:
		t.Fatal("blocking acquire never unblocked after release")
	}
}

func TestMemoryPoolDropsOversizedBufferOnRelease(t *testing.T) {
	p := NewMemoryPool(1)

	buf, err := p.AcquireI32(4, AcquireNonBlocking)
	require.NoError(t, err)

	// Grow well past the PoolMaxCapacityFactor bound; this should not be
	// recycled into the bucket.
	buf.Append(1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12)
	buf.Release()

	_, err = p.AcquireI32(4, AcquireNonBlocking)
	require.Error(t, err, "oversized buffer must be dropped, not returned to the bucket")
	assert.True(t, IsPoolExhausted(err))
}

func TestMemoryPoolDistinctCapacitiesAreIndependentBuckets(t *testing.T) {
	p := NewMemoryPool(1)

	small, err := p.AcquireF32(8, AcquireNonBlocking)
	require.NoError(t, err)
	large, err := p.AcquireF32(256, AcquireNonBlocking)
	require.NoError(t, err)

	assert.NotEqual(t, small.Cap(), large.Cap())
}
