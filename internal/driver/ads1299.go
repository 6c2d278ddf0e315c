package driver

import (
	"fmt"

	"periph.io/x/conn/v3/spi"
)

// ADS1299Chip decodes RDATA frames from a TI ADS1299-family front end: a
// fixed 3-byte status word followed by one signed 24-bit two's-complement
// code per channel (datasheet §9.3 "Data Output").
type ADS1299Chip struct {
	numChannels int
}

// NewADS1299Chip builds a Chip for a device configured with numChannels
// active inputs (4 or 8 on the ADS1299/ADS1299-4).
func NewADS1299Chip(numChannels int) *ADS1299Chip {
	return &ADS1299Chip{numChannels: numChannels}
}

func (c *ADS1299Chip) NumChannels() int { return c.numChannels }

const ads1299StatusBytes = 3
const ads1299BytesPerChannel = 3

// ReadSamples clocks out one RDATA frame and sign-extends each channel's
// 24-bit code into an int32.
func (c *ADS1299Chip) ReadSamples(conn spi.Conn) ([]int32, error) {
	frameLen := ads1299StatusBytes + c.numChannels*ads1299BytesPerChannel
	tx := make([]byte, frameLen)
	rx := make([]byte, frameLen)
	if err := conn.Tx(tx, rx); err != nil {
		return nil, fmt.Errorf("ads1299 rdata transfer: %w", err)
	}

	out := make([]int32, c.numChannels)
	for ch := 0; ch < c.numChannels; ch++ {
		off := ads1299StatusBytes + ch*ads1299BytesPerChannel
		out[ch] = signExtend24(rx[off], rx[off+1], rx[off+2])
	}
	return out, nil
}

// signExtend24 turns a big-endian 24-bit two's-complement code into a
// correctly signed int32.
func signExtend24(b0, b1, b2 byte) int32 {
	v := int32(b0)<<16 | int32(b1)<<8 | int32(b2)
	if v&0x800000 != 0 {
		v |= ^int32(0xFFFFFF)
	}
	return v
}
