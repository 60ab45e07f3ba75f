package ir

// Version constants for the packet format and engine.
const (
	// WireVersion is the packet encoding version.
	WireVersion = "1"

	// EngineVersion is the repgraph engine version.
	EngineVersion = "0.1.0"
)
