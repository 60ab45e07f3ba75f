package ir

// NOTE: These are store-layer record types, not part of the packet format.

// PacketRecord is one generated packet as persisted in the packet log.
type PacketRecord struct {
	ID          string `json:"id"` // PacketID of (follower, payload)
	FollowerID  string `json:"follower_id"`
	FromVersion int64  `json:"from_version"`
	ToVersion   int64  `json:"to_version"`
	Payload     []byte `json:"payload"` // canonical JSON of the packet
}

// EntityRecord is one spawned root entity as persisted in the registry.
type EntityRecord struct {
	ID          string `json:"id"`
	Class       string `json:"class"`
	SpawnedAt   int64  `json:"spawned_at"`
	DespawnedAt int64  `json:"despawned_at,omitempty"` // 0 while alive
}
