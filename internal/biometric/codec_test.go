package biometric

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classroll/rollcall/internal/errors"
)

func TestEncodeLayout(t *testing.T) {
	t.Parallel()

	data := Encode(FeatureVector{1.5, -2})

	require.Len(t, data, 8+2*8)
	assert.Equal(t, []byte{'F', 'V', 1, 1}, data[:4])
	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(data[4:8]))
	assert.Equal(t, math.Float64bits(1.5), binary.LittleEndian.Uint64(data[8:16]))
	assert.Equal(t, math.Float64bits(-2), binary.LittleEndian.Uint64(data[16:24]))
}

func TestDecodeIsExactInverse(t *testing.T) {
	t.Parallel()

	in := FeatureVector{math.SmallestNonzeroFloat64, -0.0, math.MaxFloat64, 0.1 + 0.2}
	out, err := Decode(Encode(in))
	require.NoError(t, err)
	require.Len(t, out, len(in))
	for i := range in {
		assert.Equal(t, math.Float64bits(in[i]), math.Float64bits(out[i]), "element %d", i)
	}

	empty, err := Decode(Encode(FeatureVector{}))
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestDecodeRejectsMalformed(t *testing.T) {
	t.Parallel()

	valid := Encode(FeatureVector{1, 2, 3})
	mutate := func(fn func([]byte) []byte) []byte {
		c := append([]byte(nil), valid...)
		return fn(c)
	}

	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"empty", nil, "truncated header"},
		{"short header", valid[:5], "truncated header"},
		{"bad magic", mutate(func(b []byte) []byte { b[0] = 'X'; return b }), "bad magic"},
		{"future version", mutate(func(b []byte) []byte { b[2] = 2; return b }), "unsupported version"},
		{"float32 elements", mutate(func(b []byte) []byte { b[3] = 2; return b }), "unsupported element type"},
		{"truncated payload", valid[:len(valid)-1], "truncated payload"},
		{"trailing byte", append(mutate(func(b []byte) []byte { return b }), 0), "trailing data"},
		{"length too large", mutate(func(b []byte) []byte {
			binary.LittleEndian.PutUint32(b[4:8], 4)
			return b
		}), "truncated payload"},
		{"nan element", Encode(FeatureVector{1, math.NaN(), 3}), "non-finite element"},
		{"infinite element", Encode(FeatureVector{math.Inf(-1), 2, 3}), "non-finite element"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Decode(tt.data)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
		})
	}
}
