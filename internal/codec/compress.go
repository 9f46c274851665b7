package codec

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

var (
	zOnce    sync.Once
	zEncoder *zstd.Encoder
	zDecoder *zstd.Decoder
	zErr     error
)

func zstdCoders() (*zstd.Encoder, *zstd.Decoder, error) {
	zOnce.Do(func() {
		zEncoder, zErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
		if zErr != nil {
			return
		}
		zDecoder, zErr = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(MaxPackageSize))
	})
	return zEncoder, zDecoder, zErr
}

// Compress zstd-compresses encoded package bytes for size-constrained
// proximity channels.
func Compress(data []byte) ([]byte, error) {
	enc, _, err := zstdCoders()
	if err != nil {
		return nil, fmt.Errorf("zstd init: %w", err)
	}
	return enc.EncodeAll(data, nil), nil
}

// Decompress reverses Compress.
func Decompress(data []byte) ([]byte, error) {
	_, dec, err := zstdCoders()
	if err != nil {
		return nil, fmt.Errorf("zstd init: %w", err)
	}
	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeserialization, err)
	}
	return out, nil
}

// MarshalCompact is Marshal followed by Compress.
func MarshalCompact(p *TransferPackage) ([]byte, error) {
	data, err := Marshal(p)
	if err != nil {
		return nil, err
	}
	return Compress(data)
}

// UnmarshalCompact is Decompress followed by Unmarshal.
func UnmarshalCompact(data []byte) (*TransferPackage, error) {
	raw, err := Decompress(data)
	if err != nil {
		return nil, err
	}
	return Unmarshal(raw)
}
