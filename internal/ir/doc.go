// Package ir provides the value and schema types shared by every repgraph
// package.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal.
//
// Key design constraints:
//   - NO float types anywhere - use int64 for numbers, so that identical
//     state always produces identical packet bytes and hashes
//   - Leaf values are compared by identity (Same), never structurally
//   - All JSON tags use snake_case
//   - Versions are logical counters, never wall-clock timestamps
package ir
