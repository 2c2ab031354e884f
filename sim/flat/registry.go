package flat

import (
	"fmt"
	"slices"
	"sync"
)

// Parser rebuilds a Datum from its flat form.
type Parser func(string) (Datum, error)

// As adapts a typed parser to a Parser.
func As[T Datum](parse func(string) (T, error)) Parser {
	return func(s string) (Datum, error) {
		v, err := parse(s)
		if err != nil {
			return nil, err
		}
		return v, nil
	}
}

// Registry maps short tags to parsers. The zero value is not usable; call
// NewRegistry.
type Registry struct {
	mu      sync.RWMutex
	parsers map[string]Parser
}

func NewRegistry() *Registry {
	return &Registry{parsers: make(map[string]Parser)}
}

// Register binds tag to p. Registering a tag twice is a programming error
// and panics.
func (r *Registry) Register(tag string, p Parser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.parsers[tag]; dup {
		panic(fmt.Sprintf("flat: tag %q registered twice", tag))
	}
	r.parsers[tag] = p
}

// Rebuild reads the tag of s and dispatches to the registered parser.
// Qualified tags are accepted.
func (r *Registry) Rebuild(s string) (Datum, error) {
	tag, err := Tag(s)
	if err != nil {
		return nil, err
	}
	r.mu.RLock()
	p, ok := r.parsers[tag]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTag, tag)
	}
	return p(s)
}

// Tags lists the registered tags in sorted order.
func (r *Registry) Tags() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tags := make([]string, 0, len(r.parsers))
	for t := range r.parsers {
		tags = append(tags, t)
	}
	slices.Sort(tags)
	return tags
}

// Default holds the built-in value types.
var Default = NewBuiltinRegistry()

// NewBuiltinRegistry returns a fresh registry preloaded with the built-in
// value types. Scenarios extend their own copy with domain types.
func NewBuiltinRegistry() *Registry {
	r := NewRegistry()
	r.Register("Text", As(ParseText))
	r.Register("BooleanType", As(ParseBooleanType))
	r.Register("IntegerNumber", As(ParseIntegerNumber))
	r.Register("FloatNumber", As(ParseFloatNumber))
	r.Register("EasyTime", As(ParseEasyTime))
	r.Register("TimePeriod", As(ParseTimePeriod))
	r.Register("TextList", As(ParseTextList))
	r.Register("Position", As(ParsePosition))
	r.Register("Place", As(ParsePlaceRecord))
	return r
}

// Rebuild uses Default.
func Rebuild(s string) (Datum, error) {
	return Default.Rebuild(s)
}
