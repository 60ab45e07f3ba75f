// Package harness provides a conformance testing framework for the
// replication engine.
//
// A scenario declares a schema, a set of followers and a sequence of steps.
// Steps mutate the authority directly or through its mutation queue, sync
// individual followers, or run whole ticks. Every packet travels through
// the wire codec and is persisted in an in-memory packet log, so a run
// exercises the same path a deployment does.
//
// Runs are deterministic: versions come from a DeterministicClock and entity
// IDs from SequentialIDs ("e-1", "e-2", ...). The persisted packet log is
// therefore byte-identical across runs and can be compared against golden
// files with RunWithGolden.
//
// Example scenario:
//
//	name: move_character
//	description: position changes reach the follower as nested diffs
//	specs: [../specs/game.cue]
//	followers: [client]
//	steps:
//	  - spawn: {class: Character, as: hero}
//	  - sync: {follower: client}
//	  - set: {entity: hero, path: pos.x, value: 5}
//	  - sync:
//	      follower: client
//	      expect:
//	        updates: {hero: {pos: {x: 5}}}
//	assertions:
//	  - type: in_sync
//	    follower: client
package harness
