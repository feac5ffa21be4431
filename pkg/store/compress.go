package store

import (
	"errors"
	"fmt"

	"github.com/pierrec/lz4/v4"
)

// Payload codecs recorded next to each blob.
const (
	codecLZ4 = "lz4"
	codecRaw = "raw"
)

var errUnknownCodec = errors.New("unknown payload codec")

// compressPayload compresses data as a single LZ4 block. Data that LZ4
// cannot shrink is kept as is.
func compressPayload(data []byte) (blob []byte, codec string, err error) {
	compressed := make([]byte, lz4.CompressBlockBound(len(data)))

	written, err := lz4.CompressBlock(data, compressed, nil)
	if err != nil {
		return nil, "", fmt.Errorf("compress payload: %w", err)
	}

	if written == 0 || written >= len(data) {
		return data, codecRaw, nil
	}

	return compressed[:written], codecLZ4, nil
}

// decompressPayload restores a blob written by compressPayload. size is the
// uncompressed length.
func decompressPayload(blob []byte, codec string, size int) ([]byte, error) {
	switch codec {
	case codecRaw:
		return blob, nil
	case codecLZ4:
		data := make([]byte, size)

		read, err := lz4.UncompressBlock(blob, data)
		if err != nil {
			return nil, fmt.Errorf("decompress payload: %w", err)
		}

		return data[:read], nil
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownCodec, codec)
	}
}
