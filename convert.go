package eegpipe

import "math"

// RawToVoltage converts a raw ADC code to volts using the calibration
// parameters in meta: v = (raw - offset_code) * v_ref / (gain * 2^(bits-1)).
// When meta.IsTwosComplement is false, raw is an unsigned offset-binary
// code and is first re-centered around its mid-scale value before the
// same calibration is applied.
func RawToVoltage(raw int32, meta *SensorMeta) float32 {
	halfScale := math.Pow(2, float64(meta.ADCBits)-1)
	denom := meta.Gain * halfScale
	centered := float64(raw - meta.OffsetCode)
	if !meta.IsTwosComplement {
		centered -= halfScale
	}
	v := centered * meta.VRef / denom
	return float32(v)
}

// VoltageToRaw is the inverse of RawToVoltage, rounding to the nearest
// integer code. It is exact enough that RawToVoltage(VoltageToRaw(v, m), m)
// round-trips within one LSB for any v produced by RawToVoltage.
func VoltageToRaw(v float32, meta *SensorMeta) int32 {
	halfScale := math.Pow(2, float64(meta.ADCBits)-1)
	denom := meta.Gain * halfScale
	centered := float64(v) * denom / meta.VRef
	if !meta.IsTwosComplement {
		centered += halfScale
	}
	raw := centered + float64(meta.OffsetCode)
	return int32(math.Round(raw))
}

// ConvertBatch fills out with the voltage equivalents of in, using meta's
// calibration. out must have len(out) >= len(in).
func ConvertBatch(in []int32, out []float32, meta *SensorMeta) {
	for i, raw := range in {
		out[i] = RawToVoltage(raw, meta)
	}
}
