package codec

import (
	"bytes"
	"crypto/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelect(t *testing.T) {
	assert.Equal(t, Zstd, Select(nil, "text/plain; charset=utf-8"))
	assert.Equal(t, None, Select([]byte("whatever"), "image/png"))
	assert.Equal(t, None, Select(nil, "application/octet-stream"))

	random := make([]byte, 4096)
	_, err := rand.Read(random)
	require.NoError(t, err)
	assert.Equal(t, None, Select(random, "application/octet-stream"))

	repetitive := bytes.Repeat([]byte("abcdefgh"), 512)
	assert.Equal(t, Zstd, Select(repetitive, "application/octet-stream"))
}

func TestEncodeDecodeRestoresOriginal(t *testing.T) {
	text := []byte(strings.Repeat("the quick brown fox jumps over the lazy dog\n", 100))
	random := make([]byte, 2048)
	_, err := rand.Read(random)
	require.NoError(t, err)

	cases := []struct {
		name string
		data []byte
		mime string
	}{
		{"text", text, "text/plain"},
		{"random binary", random, "application/octet-stream"},
		{"empty", []byte{}, "text/plain"},
		{"image passthrough", random, "image/jpeg"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			payload, c, err := Encode(tc.data, tc.mime)
			require.NoError(t, err)
			out, err := Decode(payload, c, int64(len(tc.data)))
			require.NoError(t, err)
			assert.Equal(t, tc.data, out)
		})
	}
}

func TestLZ4Roundtrip(t *testing.T) {
	data := bytes.Repeat([]byte("0123456789"), 300)
	payload, err := compress(data, LZ4)
	require.NoError(t, err)
	assert.Less(t, len(payload), len(data))
	out, err := Decode(payload, LZ4, int64(len(data)))
	require.NoError(t, err)
	assert.Equal(t, data, out)
}

func TestDecodeRejectsSizeMismatch(t *testing.T) {
	_, err := Decode([]byte("abc"), None, 4)
	assert.Error(t, err)
}

func TestChecksumMatchesStreamingHasher(t *testing.T) {
	data := []byte("taskboard")
	h := NewHasher()
	_, err := h.Write(data[:4])
	require.NoError(t, err)
	_, err = h.Write(data[4:])
	require.NoError(t, err)
	assert.Equal(t, Checksum(data), h.Sum())
	assert.Len(t, Checksum(data), 64)
}

func TestParse(t *testing.T) {
	c, err := Parse("zstd")
	require.NoError(t, err)
	assert.Equal(t, Zstd, c)
	_, err = Parse("brotli")
	assert.Error(t, err)
}
