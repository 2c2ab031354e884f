// Package flat implements the FlatDatum text encoding: a compact, tagged,
// delimiter-separated representation used for every value that leaves the
// simulation process (command channel replies, CSV telemetry, context fields).
//
// A FlatDatum looks like
//
//	<Tag>:<field>#<field>#...#<field>
//
// The tag names the producing type, either by its short name ("EasyTime") or
// qualified with Namespace ("siafu.types.EasyTime") for mirrors living outside
// this module. Composite types concatenate the fields of their children; the
// tag appears once.
package flat

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// TagSeparator ends the tag. The first occurrence wins.
	TagSeparator = ":"
	// FieldSeparator separates fields after the tag.
	FieldSeparator = "#"
	// Namespace qualifies tags for cross-namespace mirrors.
	Namespace = "siafu.types"
)

var (
	// ErrFormat reports a tag mismatch or a malformed field.
	ErrFormat = errors.New("flat: malformed datum")
	// ErrUnknownTag reports a tag with no registered parser.
	ErrUnknownTag = errors.New("flat: unknown tag")
)

// Datum is any value with a canonical flat form.
type Datum interface {
	Flatten() string
}

// Qualify returns the flat form of d with its tag qualified by Namespace.
func Qualify(d Datum) string {
	return Namespace + "." + d.Flatten()
}

// Split breaks s on FieldSeparator. A string without any separator is a
// single field, even when empty. Otherwise empty segments are dropped, so
// leading and trailing separators are tolerated and "####" has no fields.
func Split(s string) []string {
	if !strings.Contains(s, FieldSeparator) {
		return []string{s}
	}
	parts := strings.Split(s, FieldSeparator)
	fields := parts[:0]
	for _, p := range parts {
		if p != "" {
			fields = append(fields, p)
		}
	}
	return fields
}

// Join is the inverse of Split for non-empty fields.
func Join(tag string, fields ...string) string {
	return tag + TagSeparator + strings.Join(fields, FieldSeparator)
}

// Tag returns the short tag of a flat string, stripping Namespace if present.
func Tag(s string) (string, error) {
	tag, _, ok := strings.Cut(s, TagSeparator)
	if !ok {
		return "", fmt.Errorf("%w: no tag in %q", ErrFormat, s)
	}
	return shortTag(tag), nil
}

func shortTag(tag string) string {
	return strings.TrimPrefix(tag, Namespace+".")
}

// payload checks that s carries the expected tag and returns what follows it.
func payload(s, want string) (string, error) {
	tag, rest, ok := strings.Cut(s, TagSeparator)
	if !ok {
		return "", fmt.Errorf("%w: no tag in %q", ErrFormat, s)
	}
	if shortTag(tag) != want {
		return "", fmt.Errorf("%w: expected tag %s, got %s", ErrFormat, want, tag)
	}
	return rest, nil
}

// fields checks the tag of s and splits its payload into exactly n fields.
func fields(s, want string, n int) ([]string, error) {
	rest, err := payload(s, want)
	if err != nil {
		return nil, err
	}
	f := Split(rest)
	if len(f) != n {
		return nil, fmt.Errorf("%w: %s needs %d fields, got %d in %q", ErrFormat, want, n, len(f), s)
	}
	return f, nil
}
