package store

import (
	"fmt"

	"github.com/golang/snappy"
)

// compressPayload snappy-encodes a canonical JSON payload for storage.
func compressPayload(payload []byte) []byte {
	return snappy.Encode(nil, payload)
}

// decompressPayload restores a stored payload.
func decompressPayload(blob []byte) ([]byte, error) {
	payload, err := snappy.Decode(nil, blob)
	if err != nil {
		return nil, fmt.Errorf("decompress payload: %w", err)
	}
	return payload, nil
}
