// Package wire defines the byte format exchanged between an authority and
// its followers.
//
// A Packet carries everything a follower needs to move from the version it
// acknowledged to a newer one: root entities spawned or despawned inside the
// window, and one replication.Snapshot per entity that changed.
//
// Snapshots are encoded in a tagged form so that a leaf object value and a
// nested diff remain distinguishable after a round trip:
//
//	{"nested":{"pos":{"set":{"x":5}}},"set":{"health":80}}
//
// All encoding goes through ir.MarshalCanonical, so two equal packets are
// byte-identical and can be content-addressed with ir.PacketID.
package wire
