// Package trace records what remote clients did to a running simulation,
// for post-run inspection. It stores pure data and depends on nothing else
// in sim/.
package trace

// CommandRecord captures a single command received on the command channel.
type CommandRecord struct {
	Remote    string   // peer address
	Verb      string   // lower-cased verb
	Args      []string // arguments after the verb
	Iteration int64    // clock iterations when the command ran
	Succeeded bool
	Reason    string // error text when !Succeeded
}
