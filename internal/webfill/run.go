package webfill

import (
	"strconv"

	"github.com/a3tai/mcp-grant-filler/internal/grant"
)

// run is the state of one fill invocation. Nothing in it is shared with
// other runs.
type run struct {
	id        string
	questions []grant.Question
	satisfied map[string]bool
	settled   map[string]bool
	reasons   map[string]grant.SkipRecord
	mappings  []grant.FillMapping
	page      int
}

func newRun(id string, questions []grant.Question) *run {
	return &run{
		id:        id,
		questions: questions,
		satisfied: make(map[string]bool),
		settled:   make(map[string]bool),
		reasons:   make(map[string]grant.SkipRecord),
	}
}

// key identifies a question by its id, or by position when it has none
func (r *run) key(i int) string {
	if id := r.questions[i].ID; id != "" {
		return id
	}
	return "#" + strconv.Itoa(i)
}

// pending reports whether the question may still be attempted
func (r *run) pending(key string) bool {
	return !r.satisfied[key] && !r.settled[key]
}

// complete reports whether no question is left to attempt
func (r *run) complete() bool {
	for i := range r.questions {
		if r.pending(r.key(i)) {
			return false
		}
	}
	return true
}

func (r *run) fill(key string, m grant.FillMapping) {
	r.satisfied[key] = true
	delete(r.reasons, key)
	r.mappings = append(r.mappings, m)
}

// note records why a question was not filled on the current page. A
// later page may still fill it.
func (r *run) note(key string, q grant.Question, reason grant.SkipReason, detail string) {
	r.reasons[key] = grant.SkipRecord{
		QuestionID:   q.ID,
		QuestionText: q.Text,
		Reason:       reason,
		Detail:       detail,
	}
}

// settle marks a question as finally skipped without further attempts
func (r *run) settle(key string, q grant.Question, reason grant.SkipReason) {
	r.note(key, q, reason, "")
	r.settled[key] = true
}

// report builds the final report. Every question that was never filled is
// counted as skipped exactly once.
func (r *run) report() *grant.FillReport {
	rep := &grant.FillReport{
		RunID:        r.id,
		Mappings:     append([]grant.FillMapping{}, r.mappings...),
		PagesVisited: r.page,
	}
	for i, q := range r.questions {
		key := r.key(i)
		if r.satisfied[key] {
			continue
		}
		rec, ok := r.reasons[key]
		if !ok {
			rec = grant.SkipRecord{QuestionID: q.ID, QuestionText: q.Text, Reason: grant.SkipNoFieldFound}
		}
		rep.Skipped = append(rep.Skipped, rec)
	}
	rep.FieldsFilled = len(rep.Mappings)
	rep.FieldsSkipped = len(rep.Skipped)
	return rep
}
