package grant

import (
	"errors"
	"fmt"
	"strings"
)

// QuestionType is the semantic type of the answer a question expects
type QuestionType string

const (
	TypeText         QuestionType = "text"
	TypeTextarea     QuestionType = "textarea"
	TypeSingleChoice QuestionType = "single_choice"
	TypeMultiChoice  QuestionType = "multi_choice"
	TypeYesNo        QuestionType = "yes_no"
	TypeNumber       QuestionType = "number"
	TypeDate         QuestionType = "date"
	TypeOther        QuestionType = "other"
)

// YesNoOptions is the fixed option pair every yes_no question chooses from.
var YesNoOptions = []string{"Yes", "No"}

// Valid reports whether t is one of the known question types
func (t QuestionType) Valid() bool {
	switch t {
	case TypeText, TypeTextarea, TypeSingleChoice, TypeMultiChoice,
		TypeYesNo, TypeNumber, TypeDate, TypeOther:
		return true
	}
	return false
}

// Effective returns the type used when filling. Questions typed "other",
// or carrying an unknown type, are filled as plain text.
func (t QuestionType) Effective() QuestionType {
	if t == TypeOther || !t.Valid() {
		return TypeText
	}
	return t
}

// IsChoice reports whether answers are picked from a fixed option list
func (t QuestionType) IsChoice() bool {
	return t == TypeSingleChoice || t == TypeMultiChoice || t == TypeYesNo
}

// Question is one unit of information a grant form requests, together with
// its current answer.
type Question struct {
	ID               string       `json:"question_id"`
	Text             string       `json:"question_text"`
	Type             QuestionType `json:"type"`
	Options          []string     `json:"options,omitempty"`
	Answer           Answer       `json:"answer"`
	Required         bool         `json:"required,omitempty"`
	CharLimit        int          `json:"char_limit,omitempty"`
	DependsOn        string       `json:"depends_on,omitempty"`
	DependsValue     string       `json:"depends_value,omitempty"`
	Reviewed         bool         `json:"reviewed"`
	NeedsManualInput bool         `json:"needs_manual_input,omitempty"`
}

// EffectiveOptions returns the option list answers are chosen from.
// yes_no questions always use YesNoOptions.
func (q Question) EffectiveOptions() []string {
	if q.Type == TypeYesNo {
		return YesNoOptions
	}
	return q.Options
}

// EmptyAnswer returns the blank answer matching the question type
func (q Question) EmptyAnswer() Answer {
	if q.Type == TypeMultiChoice {
		return ListAnswer()
	}
	return TextAnswer("")
}

// Validate checks the structural invariants of a question
func (q Question) Validate() error {
	if strings.TrimSpace(q.ID) == "" {
		return errors.New("question_id cannot be empty")
	}
	if !q.Type.Valid() {
		return fmt.Errorf("question %s: invalid type %q", q.ID, q.Type)
	}
	if (q.Type == TypeSingleChoice || q.Type == TypeMultiChoice) && len(q.Options) == 0 {
		return fmt.Errorf("question %s: %s requires options", q.ID, q.Type)
	}
	if q.Answer.IsList() && q.Type != TypeMultiChoice {
		return fmt.Errorf("question %s: list answer on %s question", q.ID, q.Type)
	}
	if q.CharLimit < 0 {
		return fmt.Errorf("question %s: negative char_limit", q.ID)
	}
	return nil
}
