package world

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Namer hands out agent names: first from a supplied list, then Person<N>.
// Each world owns its own Namer, so concurrent runs never share a counter.
type Namer struct {
	names    []string
	next     int
	fallback int
}

// NewNamer reads one name per line from r. Blank lines and lines starting
// with '#' are skipped. A nil reader yields only generated names.
func NewNamer(r io.Reader) (*Namer, error) {
	n := &Namer{}
	if r == nil {
		return n, nil
	}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		n.names = append(n.names, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading names: %w", err)
	}
	return n, nil
}

func (n *Namer) Next() string {
	if n.next < len(n.names) {
		name := n.names[n.next]
		n.next++
		return name
	}
	n.fallback++
	return fmt.Sprintf("Person%d", n.fallback)
}
