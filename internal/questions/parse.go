package questions

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ErrNoArray is returned when a model reply holds no JSON array
var ErrNoArray = errors.New("no JSON array found in response")

// rawQuestion is one question as the model reports it
type rawQuestion struct {
	QuestionText string   `json:"question_text"`
	Type         string   `json:"type"`
	Options      []string `json:"options"`
	Required     bool     `json:"required"`
	CharLimit    int      `json:"char_limit"`
}

// ParseArray locates the outermost JSON array in a model reply. A reply
// cut off mid-array is repaired by closing it after the last complete
// object.
func ParseArray(reply string) ([]json.RawMessage, error) {
	start := strings.Index(reply, "[")
	if start < 0 {
		return nil, ErrNoArray
	}

	var items []json.RawMessage
	if end := strings.LastIndex(reply, "]"); end > start {
		if err := json.Unmarshal([]byte(reply[start:end+1]), &items); err == nil {
			return items, nil
		}
	}

	last := strings.LastIndex(reply, "}")
	if last < start {
		return nil, ErrNoArray
	}
	repaired := reply[start:last+1] + "]"
	if err := json.Unmarshal([]byte(repaired), &items); err != nil {
		return nil, fmt.Errorf("failed to repair JSON array: %w", err)
	}
	return items, nil
}

// validator checks array items against itemSchema
type validator struct {
	schema *gojsonschema.Schema
}

func newValidator() (*validator, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(itemSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile question schema: %w", err)
	}
	return &validator{schema: schema}, nil
}

// decode validates one item and decodes it
func (v *validator) decode(item json.RawMessage) (rawQuestion, error) {
	result, err := v.schema.Validate(gojsonschema.NewBytesLoader(item))
	if err != nil {
		return rawQuestion{}, fmt.Errorf("validation error: %w", err)
	}
	if !result.Valid() {
		errs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			errs[i] = desc.String()
		}
		return rawQuestion{}, fmt.Errorf("question validation failed: %v", errs)
	}

	var q rawQuestion
	if err := json.Unmarshal(item, &q); err != nil {
		return rawQuestion{}, fmt.Errorf("failed to decode question: %w", err)
	}
	return q, nil
}
