package eegpipe

// SensorMeta is an immutable snapshot of the calibration and shape
// parameters needed to interpret the raw samples emitted by a source.
// Every reconfigure of a driver or source stage produces a new SensorMeta
// with MetaRev incremented. Downstream stages read the SensorMeta carried in
// each packet's header; the filter and fft stages rebuild their state when
// the header's sample rate or channel count differs from the previous
// packet's.
type SensorMeta struct {
	// SensorID identifies the physical sensor/board this metadata describes.
	SensorID string
	// MetaRev increases monotonically every time the sensor is reconfigured.
	MetaRev uint64
	// SchemaVer is the wire/schema version of the metadata layout itself.
	SchemaVer uint32

	// SourceType names the driver family ("ads1299", "mock", ...).
	SourceType string

	// VRef is the ADC reference voltage in volts.
	VRef float64
	// ADCBits is the ADC resolution, including the sign bit.
	ADCBits uint8
	// Gain is the PGA gain applied before the ADC samples.
	Gain float64
	// OffsetCode is the raw-code zero offset (two's-complement midpoint
	// adjustment or measured DC offset, depending on SourceType).
	OffsetCode int32
	// IsTwosComplement indicates the raw sample encoding.
	IsTwosComplement bool

	// SampleRate is the nominal per-channel sample rate in Hz.
	SampleRate float64
	// ChannelNames labels each channel position, len == NumChannels for the
	// source that owns this metadata.
	ChannelNames []string
}

// Clone returns a deep copy of m suitable for mutating into a new revision.
// Callers bump MetaRev on the returned copy before publishing it.
func (m *SensorMeta) Clone() *SensorMeta {
	if m == nil {
		return nil
	}
	clone := *m
	clone.ChannelNames = append([]string(nil), m.ChannelNames...)
	return &clone
}

// WithBumpedRevision returns a clone of m with MetaRev incremented by one,
// used whenever a driver reconfiguration changes calibration parameters.
func (m *SensorMeta) WithBumpedRevision() *SensorMeta {
	c := m.Clone()
	c.MetaRev = m.MetaRev + 1
	return c
}

// NumChannels reports the channel count implied by ChannelNames.
func (m *SensorMeta) NumChannels() int {
	if m == nil {
		return 0
	}
	return len(m.ChannelNames)
}
