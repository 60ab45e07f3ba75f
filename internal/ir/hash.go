package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainPacket = "repgraph/packet/v1"
	DomainSchema = "repgraph/schema/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// PacketID computes the content-addressed ID of an encoded packet addressed
// to a follower. The payload must already be canonical JSON.
func PacketID(followerID string, payload []byte) string {
	data := make([]byte, 0, len(followerID)+1+len(payload))
	data = append(data, followerID...)
	data = append(data, 0x00)
	data = append(data, payload...)
	return hashWithDomain(DomainPacket, data)
}

// SchemaHash computes a stable hash over a set of compiled classes.
// Authority and follower compare schema hashes before exchanging packets.
func SchemaHash(classes []ClassSpec) (string, error) {
	list := make([]any, len(classes))
	for i, c := range classes {
		list[i] = c.canonicalMap()
	}
	canonical, err := MarshalCanonical(list)
	if err != nil {
		return "", fmt.Errorf("SchemaHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainSchema, canonical), nil
}
