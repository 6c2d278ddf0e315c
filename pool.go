package eegpipe

import (
	"sync"

	"github.com/elata-labs/eegpipe/internal/constants"
)

// AcquirePolicy controls what Acquire does when its bucket is empty.
type AcquirePolicy int

const (
	// AcquireBlocking waits cooperatively until a buffer is released back
	// to the pool.
	AcquireBlocking AcquirePolicy = iota
	// AcquireNonBlocking returns ErrPoolExhausted immediately instead of
	// waiting.
	AcquireNonBlocking
)

// Int32Buffer is a pool-owned, reusable []int32 buffer. It must be
// released back to its pool (Release) once the holder is done with it;
// failing to do so leaks that slot from the bucket's bounded free list.
type Int32Buffer struct {
	data   []int32
	pool   *MemoryPool
	bktCap int
}

// Slice returns the buffer's current contents.
func (b *Int32Buffer) Slice() []int32 { return b.data }

// SetLen truncates or extends the buffer's logical length within its
// capacity; n must not exceed cap(b.Slice()).
func (b *Int32Buffer) SetLen(n int) { b.data = b.data[:n] }

// Append grows the buffer, reallocating past its original pool capacity if
// necessary (the enlarged buffer may no longer be eligible for recycling;
// see releaseI32).
func (b *Int32Buffer) Append(v ...int32) { b.data = append(b.data, v...) }

// Cap returns the buffer's configured pool bucket capacity.
func (b *Int32Buffer) Cap() int { return b.bktCap }

// Release returns the buffer to its owning pool. Safe to call on a nil
// buffer or one with no owning pool.
func (b *Int32Buffer) Release() {
	if b == nil || b.pool == nil {
		return
	}
	b.pool.releaseI32(b)
}

// Float32Buffer is the float32 counterpart of Int32Buffer, used for
// voltage samples and FFT power values.
type Float32Buffer struct {
	data   []float32
	pool   *MemoryPool
	bktCap int
}

func (b *Float32Buffer) Slice() []float32     { return b.data }
func (b *Float32Buffer) SetLen(n int)         { b.data = b.data[:n] }
func (b *Float32Buffer) Append(v ...float32)  { b.data = append(b.data, v...) }
func (b *Float32Buffer) Cap() int             { return b.bktCap }
func (b *Float32Buffer) Release() {
	if b == nil || b.pool == nil {
		return
	}
	b.pool.releaseF32(b)
}

// MemoryPool is a bounded, per-(payload-type, capacity) recycling pool of
// sample buffers. Each distinct capacity requested gets its own bucket,
// lazily created and prefilled with bucketSize freshly allocated buffers on
// first acquire; Acquire never allocates beyond that initial fill, so a
// pool can be exhausted and callers must handle ErrPoolExhausted (or block,
// depending on AcquirePolicy).
type MemoryPool struct {
	mu         sync.Mutex
	bucketSize int
	i32        map[int]chan *Int32Buffer
	f32        map[int]chan *Float32Buffer
}

// NewMemoryPool creates a pool whose buckets hold bucketSize buffers each.
// A bucketSize <= 0 uses constants.DefaultPoolSize.
func NewMemoryPool(bucketSize int) *MemoryPool {
	if bucketSize <= 0 {
		bucketSize = constants.DefaultPoolSize
	}
	return &MemoryPool{
		bucketSize: bucketSize,
		i32:        make(map[int]chan *Int32Buffer),
		f32:        make(map[int]chan *Float32Buffer),
	}
}

func (p *MemoryPool) i32Bucket(capacity int) chan *Int32Buffer {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch, ok := p.i32[capacity]
	if ok {
		return ch
	}
	ch = make(chan *Int32Buffer, p.bucketSize)
	for i := 0; i < p.bucketSize; i++ {
		ch <- &Int32Buffer{data: make([]int32, 0, capacity), pool: p, bktCap: capacity}
	}
	p.i32[capacity] = ch
	return ch
}

func (p *MemoryPool) f32Bucket(capacity int) chan *Float32Buffer {
	p.mu.Lock()
	defer p.mu.Unlock()
	ch, ok := p.f32[capacity]
	if ok {
		return ch
	}
	ch = make(chan *Float32Buffer, p.bucketSize)
	for i := 0; i < p.bucketSize; i++ {
		ch <- &Float32Buffer{data: make([]float32, 0, capacity), pool: p, bktCap: capacity}
	}
	p.f32[capacity] = ch
	return ch
}

// AcquireI32 obtains a zero-length []int32 buffer with capacity at least
// capacity. Under AcquireNonBlocking, an empty bucket returns
// ErrPoolExhausted rather than waiting.
func (p *MemoryPool) AcquireI32(capacity int, policy AcquirePolicy) (*Int32Buffer, error) {
	ch := p.i32Bucket(capacity)
	if policy == AcquireBlocking {
		buf := <-ch
		buf.data = buf.data[:0]
		return buf, nil
	}
	select {
	case buf := <-ch:
		buf.data = buf.data[:0]
		return buf, nil
	default:
		return nil, &Error{Op: "MemoryPool.AcquireI32", Code: ErrCodePoolExhausted}
	}
}

// AcquireF32 is the float32 counterpart of AcquireI32.
func (p *MemoryPool) AcquireF32(capacity int, policy AcquirePolicy) (*Float32Buffer, error) {
	ch := p.f32Bucket(capacity)
	if policy == AcquireBlocking {
		buf := <-ch
		buf.data = buf.data[:0]
		return buf, nil
	}
	select {
	case buf := <-ch:
		buf.data = buf.data[:0]
		return buf, nil
	default:
		return nil, &Error{Op: "MemoryPool.AcquireF32", Code: ErrCodePoolExhausted}
	}
}

// releaseI32 returns buf to its bucket if its live capacity still falls
// within [bktCap, bktCap*PoolMaxCapacityFactor]; a buffer outside that range
// is dropped instead (garbage collected normally). The bucket does not
// allocate a replacement, so it holds one buffer fewer from then on.
func (p *MemoryPool) releaseI32(buf *Int32Buffer) {
	p.mu.Lock()
	ch, ok := p.i32[buf.bktCap]
	p.mu.Unlock()
	if !ok {
		return
	}
	c := cap(buf.data)
	if c < buf.bktCap || c > buf.bktCap*constants.PoolMaxCapacityFactor {
		return
	}
	buf.data = buf.data[:0]
	select {
	case ch <- buf:
	default:
	}
}

func (p *MemoryPool) releaseF32(buf *Float32Buffer) {
	p.mu.Lock()
	ch, ok := p.f32[buf.bktCap]
	p.mu.Unlock()
	if !ok {
		return
	}
	c := cap(buf.data)
	if c < buf.bktCap || c > buf.bktCap*constants.PoolMaxCapacityFactor {
		return
	}
	buf.data = buf.data[:0]
	select {
	case ch <- buf:
	default:
	}
}
