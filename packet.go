package eegpipe

import "sync/atomic"

// PacketType tags the payload variant carried by a Packet.
type PacketType int

const (
	PacketTypeRawI32 PacketType = iota
	PacketTypeVoltage
	PacketTypeFFT
)

func (t PacketType) String() string {
	switch t {
	case PacketTypeRawI32:
		return "raw_i32"
	case PacketTypeVoltage:
		return "voltage"
	case PacketTypeFFT:
		return "fft"
	default:
		return "unknown"
	}
}

// PacketHeader carries the fields common to every payload variant. It is
// copied by value into each Packet; Meta is shared by pointer and must be
// treated as immutable by everything downstream of the stage that set it.
type PacketHeader struct {
	SourceID    string
	PacketType  PacketType
	FrameID     uint64
	TSNanos     int64
	BatchSize   int
	NumChannels int
	Meta        *SensorMeta
}

// Packet is the tagged-union abstraction stages exchange over edges. A
// concrete Packet is exactly one of *RawI32Packet, *VoltagePacket or
// *FftPacket; callers use a type switch to reach the payload.
//
// Packets are reference-counted rather than copied. A stage that fans a
// packet out to multiple downstream edges must call Retain once per extra
// recipient before handing the pointer to additional channels; every
// recipient calls Release exactly once when done. The underlying pool
// buffer is returned to its pool when the count reaches zero.
type Packet interface {
	Header() PacketHeader
	Retain()
	Release()
}

// refCounted implements the shared count-to-zero-then-release behavior
// backing every Packet implementation.
type refCounted struct {
	count     atomic.Int32
	onRelease func()
}

func newRefCounted(onRelease func()) *refCounted {
	rc := &refCounted{onRelease: onRelease}
	rc.count.Store(1)
	return rc
}

func (r *refCounted) Retain() { r.count.Add(1) }

func (r *refCounted) Release() {
	if r.count.Add(-1) == 0 && r.onRelease != nil {
		r.onRelease()
	}
}

// RawI32Packet carries a batch of raw (uncalibrated) ADC codes.
type RawI32Packet struct {
	header PacketHeader
	buf    *Int32Buffer
	rc     *refCounted
}

// NewRawI32Packet builds a RawI32Packet over buf; releasing the packet's
// last reference releases buf back to its pool.
func NewRawI32Packet(header PacketHeader, buf *Int32Buffer) *RawI32Packet {
	header.PacketType = PacketTypeRawI32
	p := &RawI32Packet{header: header, buf: buf}
	p.rc = newRefCounted(func() { buf.Release() })
	return p
}

func (p *RawI32Packet) Header() PacketHeader { return p.header }
func (p *RawI32Packet) Samples() []int32     { return p.buf.Slice() }
func (p *RawI32Packet) Retain()              { p.rc.Retain() }
func (p *RawI32Packet) Release()             { p.rc.Release() }

// VoltagePacket carries a batch of calibrated voltage samples.
type VoltagePacket struct {
	header PacketHeader
	buf    *Float32Buffer
	rc     *refCounted
}

// NewVoltagePacket builds a VoltagePacket over buf.
func NewVoltagePacket(header PacketHeader, buf *Float32Buffer) *VoltagePacket {
	header.PacketType = PacketTypeVoltage
	p := &VoltagePacket{header: header, buf: buf}
	p.rc = newRefCounted(func() { buf.Release() })
	return p
}

func (p *VoltagePacket) Header() PacketHeader { return p.header }
func (p *VoltagePacket) Samples() []float32   { return p.buf.Slice() }
func (p *VoltagePacket) Retain()              { p.rc.Retain() }
func (p *VoltagePacket) Release()             { p.rc.Release() }

// FftPacket carries per-channel power-spectral-density estimates produced
// by the fft stage.
type FftPacket struct {
	header           PacketHeader
	psd              map[int]*Float32Buffer
	freqResolutionHz float32
	bandPowers       map[int][]float32
	rc               *refCounted
}

// NewFftPacket builds an FftPacket. psd maps channel index to its
// power-spectrum buffer; bandPowers is an optional per-band reduction and
// may be nil.
func NewFftPacket(header PacketHeader, psd map[int]*Float32Buffer, freqResolutionHz float32, bandPowers map[int][]float32) *FftPacket {
	header.PacketType = PacketTypeFFT
	p := &FftPacket{header: header, psd: psd, freqResolutionHz: freqResolutionHz, bandPowers: bandPowers}
	p.rc = newRefCounted(func() {
		for _, b := range psd {
			b.Release()
		}
	})
	return p
}

func (p *FftPacket) Header() PacketHeader { return p.header }

// PSD returns a per-channel view of the power spectrum. The returned
// slices alias pool-owned storage and are only valid until Release.
func (p *FftPacket) PSD() map[int][]float32 {
	out := make(map[int][]float32, len(p.psd))
	for ch, b := range p.psd {
		out[ch] = b.Slice()
	}
	return out
}

// FreqResolutionHz is the spacing between adjacent PSD bins.
func (p *FftPacket) FreqResolutionHz() float32 { return p.freqResolutionHz }

// BandPowers returns the optional reduced band-power summary, or nil.
func (p *FftPacket) BandPowers() map[int][]float32 { return p.bandPowers }

func (p *FftPacket) Retain()  { p.rc.Retain() }
func (p *FftPacket) Release() { p.rc.Release() }
