// Package store provides SQLite-backed durable storage for the packets an
// authority sends.
//
// The store keeps:
//   - Packets: every non-empty packet generated for a follower
//   - Acks: the highest version each follower acknowledged
//   - Entities: the registry of spawned root entities
//   - Meta: the schema hash the log was produced with
//
// # Critical Patterns
//
// Logical Identity and Time
//   - Packet IDs are content hashes (ir.PacketID), so writing the same
//     packet twice is a no-op
//   - All ordering uses versions, NEVER timestamps
//
// Deterministic Query Results
//   - Every multi-row query has a total ORDER BY ending in id COLLATE BINARY
//
// Monotonic Acks
//   - WriteAck never lowers a stored ack
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//
// Payloads are stored snappy-compressed; callers always see canonical JSON.
package store
