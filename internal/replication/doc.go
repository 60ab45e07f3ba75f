// Package replication implements the change-tracking graph at the heart of
// repgraph.
//
// An authoritative object graph is described by Nodes. Each Node aggregates
// named Cells; a Cell holds either a leaf value (ir.IRValue) or a nested
// Node. Writes dirty Cells, and a Node that becomes dirty tells its parent
// once, so the owner re-checks the nested slot on the next flush.
//
// ARCHITECTURE:
//
// Write path:
//  1. Host code writes through a Prop binding (or Node.Set / Node.Attach)
//  2. The Cell is created lazily, or skipped if the value is the Same one
//  3. The first change in a dirty window notifies the parent slot
//
// Flush path:
//  1. The authority calls GenDiff(from, to) on a root Node, where from is the
//     follower's last acknowledged version and to is the next global version
//  2. Freshly changed cells are stamped with to; cells stamped inside the
//     window [from, to] are resent; older cells are skipped
//  3. The follower calls ApplyDiff(target, snapshot) against its mirror graph
//
// Versions are logical counters supplied by the caller, never wall-clock
// time. The same to value must be used for every root flushed in one pass.
//
// CONCURRENCY:
//
// Nothing in this package is synchronized. Writes and flushes of one graph
// must be serialized by the caller (see engine.Replicator.Tick). Flushing
// concurrently with writes breaks the once-per-window propagation invariant.
package replication
