package grant

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// ListSeparator joins list answers whenever a single string form is needed.
const ListSeparator = "; "

// Answer holds either a single string or an ordered list of strings.
// The list form is only meaningful for multi_choice questions.
type Answer struct {
	values []string
	list   bool
}

// TextAnswer builds a single-string answer
func TextAnswer(s string) Answer {
	return Answer{values: []string{s}}
}

// ListAnswer builds a list answer
func ListAnswer(values ...string) Answer {
	return Answer{values: append([]string{}, values...), list: true}
}

// IsList reports whether the answer is in list form
func (a Answer) IsList() bool {
	return a.list
}

// Values returns the non-blank answer values in order
func (a Answer) Values() []string {
	out := make([]string, 0, len(a.values))
	for _, v := range a.values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}

// String returns the single string form of the answer
func (a Answer) String() string {
	if a.list {
		return strings.Join(a.Values(), ListSeparator)
	}
	if len(a.values) == 0 {
		return ""
	}
	return a.values[0]
}

// IsEmpty reports whether there is nothing to write: a blank string or a
// list without any non-blank value.
func (a Answer) IsEmpty() bool {
	return len(a.Values()) == 0
}

// MarshalJSON encodes list answers as arrays and text answers as strings
func (a Answer) MarshalJSON() ([]byte, error) {
	if a.list {
		return json.Marshal(a.Values())
	}
	return json.Marshal(a.String())
}

// UnmarshalJSON accepts a string, an array, null, or a scalar number/bool
func (a *Answer) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*a = Answer{}
		return nil
	}

	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*a = TextAnswer(s)
	case '[':
		var raw []interface{}
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return err
		}
		values := make([]string, 0, len(raw))
		for _, item := range raw {
			if item == nil {
				continue
			}
			values = append(values, fmt.Sprint(item))
		}
		*a = ListAnswer(values...)
	default:
		var v interface{}
		if err := json.Unmarshal(trimmed, &v); err != nil {
			return fmt.Errorf("unsupported answer value: %w", err)
		}
		*a = TextAnswer(fmt.Sprint(v))
	}
	return nil
}
