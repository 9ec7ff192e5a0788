// Package codec compresses and fingerprints blob payloads for storage.
package codec

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/zeebo/blake3"
)

// Compression names the algorithm a stored payload was written with.
type Compression string

const (
	None Compression = "none"
	LZ4  Compression = "lz4"
	Zstd Compression = "zstd"
)

func Parse(raw string) (Compression, error) {
	switch c := Compression(raw); c {
	case None, LZ4, Zstd:
		return c, nil
	case "":
		return None, nil
	}
	return "", fmt.Errorf("unknown compression %q", raw)
}

var errIncompressible = errors.New("payload is incompressible")

// zstd encoders and decoders are safe for concurrent EncodeAll/DecodeAll.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("codec: zstd encoder: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("codec: zstd decoder: " + err.Error())
	}
}

// Select picks a compression for data. Text-like types go straight to zstd
// and already-compressed media is stored as-is; anything else is probed.
func Select(data []byte, mimeType string) Compression {
	mimeType = strings.ToLower(strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0]))
	switch {
	case strings.HasPrefix(mimeType, "text/"),
		mimeType == "application/json",
		mimeType == "application/xml",
		mimeType == "image/svg+xml":
		return Zstd
	case mimeType == "image/jpeg", mimeType == "image/png", mimeType == "image/gif",
		mimeType == "image/webp", mimeType == "application/zip", mimeType == "application/x-gzip",
		mimeType == "application/pdf",
		strings.HasPrefix(mimeType, "video/"), strings.HasPrefix(mimeType, "audio/"):
		return None
	}
	if len(data) == 0 {
		return None
	}
	ratio := float64(len(data)) / float64(len(zstdEncoder.EncodeAll(data, nil)))
	switch {
	case ratio >= 1.5:
		return Zstd
	case ratio >= 1.1:
		return LZ4
	default:
		return None
	}
}

// Encode compresses data with the algorithm Select picks, falling back to
// None when compression would not shrink it.
func Encode(data []byte, mimeType string) ([]byte, Compression, error) {
	c := Select(data, mimeType)
	out, err := compress(data, c)
	if errors.Is(err, errIncompressible) {
		return data, None, nil
	}
	if err != nil {
		return nil, "", err
	}
	return out, c, nil
}

func compress(data []byte, c Compression) ([]byte, error) {
	switch c {
	case None:
		return data, nil
	case Zstd:
		out := zstdEncoder.EncodeAll(data, nil)
		if len(out) >= len(data) {
			return nil, errIncompressible
		}
		return out, nil
	case LZ4:
		dst := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, dst, nil)
		if err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		if n == 0 || n >= len(data) {
			return nil, errIncompressible
		}
		return dst[:n], nil
	}
	return nil, fmt.Errorf("unsupported compression %q", c)
}

// Decode restores a payload written with c. size is the original length.
func Decode(payload []byte, c Compression, size int64) ([]byte, error) {
	switch c {
	case None:
		if int64(len(payload)) != size {
			return nil, fmt.Errorf("stored payload has %d bytes, expected %d", len(payload), size)
		}
		return payload, nil
	case Zstd:
		out, err := zstdDecoder.DecodeAll(payload, make([]byte, 0, size))
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		if int64(len(out)) != size {
			return nil, fmt.Errorf("zstd decompress: got %d bytes, expected %d", len(out), size)
		}
		return out, nil
	case LZ4:
		out := make([]byte, size)
		n, err := lz4.UncompressBlock(payload, out)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		if int64(n) != size {
			return nil, fmt.Errorf("lz4 decompress: got %d bytes, expected %d", n, size)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported compression %q", c)
}

// Hasher computes the BLAKE3 checksum of a stream as it is read.
type Hasher struct {
	h *blake3.Hasher
}

func NewHasher() *Hasher {
	return &Hasher{h: blake3.New()}
}

func (h *Hasher) Write(p []byte) (int, error) {
	return h.h.Write(p)
}

// Sum returns the hex digest of everything written so far.
func (h *Hasher) Sum() string {
	return hex.EncodeToString(h.h.Sum(nil))
}

// Checksum returns the hex BLAKE3-256 digest of data.
func Checksum(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}
