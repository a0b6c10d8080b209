package webfill

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/a3tai/mcp-grant-filler/internal/grant"
	"github.com/a3tai/mcp-grant-filler/internal/match"
)

// written describes a successful write
type written struct {
	answer   string
	selector string
}

var errNoOption = errors.New("no option matches the answer")

// write places q's answer into the candidate field and marks the consumed
// fields used. Errors carry KindWriteFailure, or KindNoFieldFound when the
// control offers no acceptable option.
func (e *Engine) write(ctx context.Context, s Surface, fields []match.Field, q grant.Question, c match.Candidate) (written, error) {
	f := c.Field
	wctx, cancel := context.WithTimeout(ctx, e.cfg.FieldTimeout)
	defer cancel()

	var (
		w   written
		err error
	)
	switch f.Type.Kind() {
	case match.KindTextLike, match.KindTextarea, match.KindContentEditable:
		w, err = e.writeText(wctx, s, q, f)
		if err == nil {
			fields[c.Pos].Used = true
		}
	case match.KindRadio:
		w, err = e.writeRadio(wctx, s, q, f)
		if err == nil {
			markGroupUsed(fields, f)
		}
	case match.KindSelect:
		w, err = e.writeSelect(wctx, s, q, f)
		if err == nil {
			fields[c.Pos].Used = true
		}
	case match.KindCheckbox:
		// one checked box consumes the whole group
		w, err = e.writeCheckboxes(wctx, s, q, f)
		if err == nil {
			markGroupUsed(fields, f)
		}
	default:
		err = fmt.Errorf("unsupported control type %q", f.Type)
	}

	if err == nil {
		return w, nil
	}
	if errors.Is(err, errNoOption) {
		return written{}, grant.NewError(grant.KindNoFieldFound, "write", f.Selector(), err)
	}
	return written{}, grant.NewError(grant.KindWriteFailure, "write", f.Selector(), err)
}

// TextValue converts an answer into the string written to a text control
func TextValue(q grant.Question) string {
	value := q.Answer.String()
	if q.Type.Effective() == grant.TypeDate {
		value = NormalizeDate(value)
	}
	return value
}

func (e *Engine) writeText(ctx context.Context, s Surface, q grant.Question, f match.Field) (written, error) {
	value := TextValue(q)
	if err := s.Fill(ctx, f, value); err != nil {
		return written{}, err
	}
	return written{answer: value, selector: f.Selector()}, nil
}

// optionScore compares an answer with both the value and the visible label
func optionScore(answer string, opt Option) float64 {
	score := match.TextSim(answer, opt.Value)
	if l := match.TextSim(answer, opt.Label); l > score {
		score = l
	}
	return score
}

func (e *Engine) firstOption(answer string, opts []Option) (Option, bool) {
	for _, opt := range opts {
		if optionScore(answer, opt) >= e.cfg.Thresholds.Option {
			return opt, true
		}
	}
	return Option{}, false
}

func (e *Engine) writeRadio(ctx context.Context, s Surface, q grant.Question, f match.Field) (written, error) {
	opts, err := s.Options(ctx, f)
	if err != nil {
		return written{}, err
	}
	answer := q.Answer.String()
	opt, ok := e.firstOption(answer, opts)
	if !ok {
		return written{}, fmt.Errorf("%w: %q", errNoOption, answer)
	}
	if err := s.Check(ctx, f, opt); err != nil {
		return written{}, err
	}
	member := f
	member.Index, member.Value, member.ID = opt.Index, opt.Value, ""
	return written{answer: opt.Value, selector: member.Selector()}, nil
}

func (e *Engine) writeSelect(ctx context.Context, s Surface, q grant.Question, f match.Field) (written, error) {
	opts, err := s.Options(ctx, f)
	if err != nil {
		return written{}, err
	}

	answers := []string{q.Answer.String()}
	if f.Type == match.ControlSelectMultiple {
		answers = q.Answer.Values()
	}

	var values []string
	seen := make(map[string]bool)
	for _, a := range answers {
		if f.Type == match.ControlSelectMultiple {
			for _, opt := range opts {
				if !seen[opt.Value] && optionScore(a, opt) >= e.cfg.Thresholds.Option {
					seen[opt.Value] = true
					values = append(values, opt.Value)
				}
			}
			continue
		}
		if opt, ok := e.firstOption(a, opts); ok {
			values = append(values, opt.Value)
		}
	}
	if len(values) == 0 {
		return written{}, fmt.Errorf("%w: %q", errNoOption, q.Answer.String())
	}

	if err := s.Select(ctx, f, values); err != nil {
		return written{}, err
	}
	return written{answer: strings.Join(values, grant.ListSeparator), selector: f.Selector()}, nil
}

func (e *Engine) writeCheckboxes(ctx context.Context, s Surface, q grant.Question, f match.Field) (written, error) {
	opts, err := s.Options(ctx, f)
	if err != nil {
		return written{}, err
	}

	var (
		checked []string
		lastErr error
	)
	done := make(map[string]bool)
	for _, a := range q.Answer.Values() {
		for _, opt := range opts {
			if done[opt.Index] || optionScore(a, opt) < e.cfg.Thresholds.Option {
				continue
			}
			if err := s.Check(ctx, f, opt); err != nil {
				lastErr = err
				continue
			}
			done[opt.Index] = true
			checked = append(checked, opt.Value)
		}
	}

	if len(checked) == 0 {
		if lastErr != nil {
			return written{}, lastErr
		}
		return written{}, fmt.Errorf("%w: %q", errNoOption, q.Answer.String())
	}

	selector := f.Selector()
	if f.Name != "" {
		selector = match.AttrSelector("name", f.Name)
	}
	return written{answer: strings.Join(checked, grant.ListSeparator), selector: selector}, nil
}

// markGroupUsed consumes every field sharing f's radio/checkbox group
func markGroupUsed(fields []match.Field, f match.Field) {
	key := f.GroupKey()
	for i := range fields {
		if fields[i].GroupKey() == key {
			fields[i].Used = true
		}
	}
}
