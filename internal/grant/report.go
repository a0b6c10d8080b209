package grant

// FillMapping records one answer written into one control
type FillMapping struct {
	QuestionID   string  `json:"question_id"`
	QuestionText string  `json:"question_text"`
	Answer       string  `json:"answer"`
	Selector     string  `json:"selector"`
	Confidence   float64 `json:"confidence"`
	Page         int     `json:"page,omitempty"`
}

// SkipReason explains why a question ended a run unfilled
type SkipReason string

const (
	SkipEmptyAnswer  SkipReason = "empty_answer"
	SkipNoFieldFound SkipReason = "no_field_found"
	SkipNoOption     SkipReason = "no_option_matched"
	SkipWriteFailed  SkipReason = "write_failed"
)

// SkipRecord is the final outcome of a question that was never filled
type SkipRecord struct {
	QuestionID   string     `json:"question_id"`
	QuestionText string     `json:"question_text"`
	Reason       SkipReason `json:"reason"`
	Detail       string     `json:"detail,omitempty"`
}

// FillReport is the terminal output of one fill run
type FillReport struct {
	RunID         string        `json:"run_id"`
	FieldsFilled  int           `json:"fieldsFilled"`
	FieldsSkipped int           `json:"fieldsSkipped"`
	Mappings      []FillMapping `json:"mappings"`
	Skipped       []SkipRecord  `json:"skipped,omitempty"`
	PagesVisited  int           `json:"pagesVisited"`
}
