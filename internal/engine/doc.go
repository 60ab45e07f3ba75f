// Package engine drives replication between one authority and its
// followers.
//
// ARCHITECTURE:
//
// The Replicator owns the authoritative root entities. Each entity is a
// replication.Node graph built from its compiled class (Schema.Build), so
// every declared property exists from the first packet on.
//
// Tick Flow:
//  1. Host code enqueues Mutations (spawn, set, despawn) from any goroutine
//  2. Tick drains the queue in FIFO order and applies each mutation
//  3. Tick issues ONE new version from the Clock
//  4. For every follower, GenDiff(lastAck, version) runs on every live root
//     and the diffs are bundled into a wire.Packet
//  5. Packets are optionally persisted through a PacketLog
//
// The Follower applies packets in order, mirrors spawns from the same
// schema, and reports the version to acknowledge. Until an ack arrives the
// authority keeps resending everything stamped at or after the last ack, so
// lost packets heal themselves. The packet after an ack repeats the acked
// version's changes once; followers apply it idempotently.
//
// CRITICAL PATTERNS:
//
// Logical Clock:
// Versions come from a monotonic counter. NEVER use wall-clock timestamps
// for ordering.
//
// Single Writer:
// Only the tick touches replication nodes. The graph is unsynchronized; the
// Replicator's mutex and queue are what make it safe to feed from many
// goroutines.
package engine
