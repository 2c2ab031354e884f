package flat

import (
	"fmt"
	"slices"
	"strings"
)

// Text is a free-form string. Everything after the first TagSeparator is
// the value, separators included.
type Text struct {
	Value string
}

func (t Text) Flatten() string {
	return "Text" + TagSeparator + t.Value
}

func ParseText(s string) (Text, error) {
	rest, err := payload(s, "Text")
	if err != nil {
		return Text{}, err
	}
	return Text{Value: rest}, nil
}

// BooleanType is a flat-encoded bool.
type BooleanType struct {
	Value bool
}

func (b BooleanType) Flatten() string {
	if b.Value {
		return "BooleanType:true"
	}
	return "BooleanType:false"
}

func ParseBooleanType(s string) (BooleanType, error) {
	f, err := fields(s, "BooleanType", 1)
	if err != nil {
		return BooleanType{}, err
	}
	switch strings.ToLower(f[0]) {
	case "true":
		return BooleanType{Value: true}, nil
	case "false":
		return BooleanType{Value: false}, nil
	}
	return BooleanType{}, fmt.Errorf("%w: bad boolean %q", ErrFormat, f[0])
}

// TextList is an ordered list of strings. Items must be non-empty and must
// not contain FieldSeparator, or they will not survive a round trip.
type TextList struct {
	Items []string
}

func NewTextList(items ...string) (TextList, error) {
	for _, it := range items {
		if it == "" || strings.Contains(it, FieldSeparator) {
			return TextList{}, fmt.Errorf("%w: list item %q not encodable", ErrFormat, it)
		}
	}
	return TextList{Items: slices.Clone(items)}, nil
}

func (l TextList) Flatten() string {
	return Join("TextList", l.Items...)
}

func (l TextList) Equal(o TextList) bool {
	return slices.Equal(l.Items, o.Items)
}

func ParseTextList(s string) (TextList, error) {
	rest, err := payload(s, "TextList")
	if err != nil {
		return TextList{}, err
	}
	if rest == "" {
		return TextList{}, nil
	}
	return TextList{Items: Split(rest)}, nil
}
