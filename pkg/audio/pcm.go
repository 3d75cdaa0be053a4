package audio

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
)

// DecodeError reports malformed input to one of the decode functions.
// Frame-level decode failures are recoverable: callers drop the frame
// and continue.
type DecodeError struct {
	Op  string // "base64" or "pcm"
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("audio: decode %s: %v", e.Op, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// FloatsToPCM16 converts float samples in [-1, 1] to little-endian
// 16-bit signed PCM. Samples outside the range are clamped first.
//
// Scaling is asymmetric on purpose: negative samples scale by 32768 and
// non-negative samples by 32767, so a full-scale positive sample cannot
// overflow int16. This matches the wire contract of the live service
// and must not be "fixed" to symmetric scaling.
func FloatsToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		var v int16
		if s < 0 {
			v = int16(s * 32768)
		} else {
			v = int16(s * 32767)
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}

// PCM16ToFloats converts little-endian 16-bit signed PCM to float
// samples by dividing by 32768, the exact inverse of [FloatsToPCM16]
// up to quantisation. A trailing odd byte is ignored.
func PCM16ToFloats(pcm []byte) []float32 {
	n := len(pcm) / 2
	out := make([]float32, n)
	for i := range n {
		v := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		out[i] = float32(v) / 32768
	}
	return out
}

// EncodeBase64 encodes raw bytes into the printable text form used for
// media chunks on the wire.
func EncodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeBase64 decodes the wire text form back into raw bytes. The
// round-trip through [EncodeBase64] is byte-exact for every input
// length. Malformed input yields a [*DecodeError].
func DecodeBase64(s string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, &DecodeError{Op: "base64", Err: err}
	}
	return data, nil
}
