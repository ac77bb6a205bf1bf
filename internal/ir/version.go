package ir

// Version constants for the module and its journal format.
const (
	// ModuleVersion is the registry module version.
	ModuleVersion = "0.1.0"

	// JournalVersion is the schema version of journaled call payloads.
	JournalVersion = "1"
)
