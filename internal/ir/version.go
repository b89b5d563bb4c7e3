package ir

// Version constants for the event log schema and engine.
const (
	// RecordVersion is the event record schema version.
	RecordVersion = "1"

	// EngineVersion is the weave engine version.
	EngineVersion = "0.1.0"
)
