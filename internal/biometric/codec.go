package biometric

import (
	"encoding/binary"
	"math"

	"github.com/classroll/rollcall/internal/errors"
)

// Stored vector layout, little-endian:
//
//	offset 0  magic "FV"
//	offset 2  version (uint8)
//	offset 3  element type (uint8)
//	offset 4  element count (uint32)
//	offset 8  count x float64
const (
	codecVersion    uint8 = 1
	elemTypeFloat64 uint8 = 1
	headerSize            = 8
	float64Size           = 8
)

var codecMagic = [2]byte{'F', 'V'}

// Encode serializes v into the versioned stored form.
func Encode(v FeatureVector) []byte {
	buf := make([]byte, headerSize+len(v)*float64Size)
	buf[0], buf[1] = codecMagic[0], codecMagic[1]
	buf[2] = codecVersion
	buf[3] = elemTypeFloat64
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(v))) //nolint:gosec // G115: embedding lengths are small

	off := headerSize
	for _, f := range v {
		binary.LittleEndian.PutUint64(buf[off:], math.Float64bits(f))
		off += float64Size
	}
	return buf
}

// Decode parses a stored vector produced by Encode.
func Decode(data []byte) (FeatureVector, error) {
	if len(data) < headerSize {
		return nil, decodeError("truncated header", len(data))
	}
	if data[0] != codecMagic[0] || data[1] != codecMagic[1] {
		return nil, decodeError("bad magic", len(data))
	}
	if data[2] != codecVersion {
		return nil, decodeError("unsupported version", len(data), "version", data[2])
	}
	if data[3] != elemTypeFloat64 {
		return nil, decodeError("unsupported element type", len(data), "element_type", data[3])
	}

	count := int(binary.LittleEndian.Uint32(data[4:8]))
	want := headerSize + count*float64Size
	switch {
	case len(data) < want:
		return nil, decodeError("truncated payload", len(data), "expected_bytes", want)
	case len(data) > want:
		return nil, decodeError("trailing data", len(data), "expected_bytes", want)
	}

	v := make(FeatureVector, count)
	off := headerSize
	for i := range v {
		v[i] = math.Float64frombits(binary.LittleEndian.Uint64(data[off:]))
		if math.IsNaN(v[i]) || math.IsInf(v[i], 0) {
			return nil, decodeError("non-finite element", len(data), "index", i)
		}
		off += float64Size
	}
	return v, nil
}

// decodeError builds a validation error; extra is key/value context pairs.
func decodeError(reason string, size int, extra ...any) error {
	b := errors.Newf("decode feature vector: %s", reason).
		Component("biometric").
		Category(errors.CategoryValidation).
		Context("operation", "decode_vector").
		Context("size", size)
	for i := 0; i+1 < len(extra); i += 2 {
		if key, ok := extra[i].(string); ok {
			b = b.Context(key, extra[i+1])
		}
	}
	return b.Build()
}
