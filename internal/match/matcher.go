package match

import (
	"sort"

	"github.com/a3tai/mcp-grant-filler/internal/grant"
)

// Default confidence thresholds
const (
	DefaultFieldThreshold  = 0.5
	DefaultOptionThreshold = 0.6
	DefaultPDFThreshold    = 0.4
)

// Thresholds holds the minimum scores that matching and option picking accept
type Thresholds struct {
	Field  float64
	Option float64
	PDF    float64
}

// DefaultThresholds returns the stock thresholds
func DefaultThresholds() Thresholds {
	return Thresholds{
		Field:  DefaultFieldThreshold,
		Option: DefaultOptionThreshold,
		PDF:    DefaultPDFThreshold,
	}
}

// Candidate is one scored field for one question. Pos indexes the field
// slice the candidate was drawn from.
type Candidate struct {
	Pos   int
	Field Field
	Score float64
}

// Matcher selects the best field for a question
type Matcher struct {
	threshold float64
}

// NewMatcher creates a matcher accepting candidates at or above threshold
func NewMatcher(threshold float64) *Matcher {
	return &Matcher{threshold: threshold}
}

// Rank scores every unused, type-compatible field and returns them best
// first. Equal scores keep extraction order.
func (m *Matcher) Rank(q grant.Question, fields []Field) []Candidate {
	var out []Candidate
	for i, f := range fields {
		if f.Used || !Compatible(q, f) {
			continue
		}
		out = append(out, Candidate{Pos: i, Field: f, Score: Score(q, f)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out
}

// Best returns the highest scoring candidate that clears the threshold
func (m *Matcher) Best(q grant.Question, fields []Field) (Candidate, bool) {
	ranked := m.Rank(q, fields)
	if len(ranked) == 0 || ranked[0].Score < m.threshold {
		return Candidate{}, false
	}
	return ranked[0], true
}

// PickOption returns the position of the first option whose text scores at
// least threshold against answer.
func PickOption(answer string, options []string, threshold float64) (int, bool) {
	for i, opt := range options {
		if TextSim(answer, opt) >= threshold {
			return i, true
		}
	}
	return -1, false
}
