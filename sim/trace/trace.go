package trace

import "sync"

// TraceLevel controls what the command channel records.
type TraceLevel string

const (
	// TraceLevelNone disables recording.
	TraceLevelNone TraceLevel = "none"
	// TraceLevelCommands records every executed command.
	TraceLevelCommands TraceLevel = "commands"
)

var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:     true,
	TraceLevelCommands: true,
	"":                 true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// TraceConfig controls trace collection behavior.
type TraceConfig struct {
	Level TraceLevel
	// Limit caps the records kept; older records are dropped first. Zero
	// keeps everything.
	Limit int
}

// CommandTrace collects command records. Connections record concurrently,
// so all access goes through its methods.
type CommandTrace struct {
	Config TraceConfig

	mu       sync.Mutex
	commands []CommandRecord
	dropped  int
}

// NewCommandTrace creates a CommandTrace ready for recording.
func NewCommandTrace(config TraceConfig) *CommandTrace {
	return &CommandTrace{Config: config, commands: make([]CommandRecord, 0)}
}

// Record appends a command record unless tracing is off. Safe on nil.
func (ct *CommandTrace) Record(record CommandRecord) {
	if ct == nil || ct.Config.Level != TraceLevelCommands {
		return
	}
	ct.mu.Lock()
	defer ct.mu.Unlock()
	ct.commands = append(ct.commands, record)
	if ct.Config.Limit > 0 && len(ct.commands) > ct.Config.Limit {
		over := len(ct.commands) - ct.Config.Limit
		ct.commands = append(ct.commands[:0], ct.commands[over:]...)
		ct.dropped += over
	}
}

// Commands returns a copy of the kept records, oldest first.
func (ct *CommandTrace) Commands() []CommandRecord {
	if ct == nil {
		return nil
	}
	ct.mu.Lock()
	defer ct.mu.Unlock()
	return append([]CommandRecord(nil), ct.commands...)
}

// Dropped counts records discarded by Limit.
func (ct *CommandTrace) Dropped() int {
	if ct == nil {
		return 0
	}
	ct.mu.Lock()
	defer ct.mu.Unlock()
	return ct.dropped
}
