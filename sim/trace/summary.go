package trace

// TraceSummary aggregates statistics from a CommandTrace.
type TraceSummary struct {
	TotalCommands    int
	SucceededCount   int
	FailedCount      int
	DroppedCount     int
	UniqueVerbs      int
	UniqueRemotes    int
	VerbDistribution map[string]int // verb → count of commands
}

// Summarize computes aggregate statistics from a CommandTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(ct *CommandTrace) *TraceSummary {
	summary := &TraceSummary{
		VerbDistribution: make(map[string]int),
	}
	if ct == nil {
		return summary
	}

	commands := ct.Commands()
	summary.TotalCommands = len(commands)
	summary.DroppedCount = ct.Dropped()
	remotes := make(map[string]bool)
	for _, c := range commands {
		if c.Succeeded {
			summary.SucceededCount++
		} else {
			summary.FailedCount++
		}
		summary.VerbDistribution[c.Verb]++
		remotes[c.Remote] = true
	}

	summary.UniqueVerbs = len(summary.VerbDistribution)
	summary.UniqueRemotes = len(remotes)

	return summary
}
