package webfill

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/a3tai/mcp-grant-filler/internal/grant"
	"github.com/a3tai/mcp-grant-filler/internal/match"
)

type fakePage struct {
	fields   []match.Field
	options  map[string][]Option
	controls []Control
	next     int
}

type fakeSurface struct {
	pages       []*fakePage
	current     int
	openErr     error
	activateErr error
	fillErr     map[string]error
	blockFill   bool

	filled      map[string]string
	checked     []string
	selected    map[string][]string
	activations int
	scans       int
}

func newFakeSurface(pages ...*fakePage) *fakeSurface {
	return &fakeSurface{
		pages:    pages,
		filled:   make(map[string]string),
		selected: make(map[string][]string),
		fillErr:  make(map[string]error),
	}
}

func (s *fakeSurface) page() *fakePage { return s.pages[s.current] }

func (s *fakeSurface) Open(ctx context.Context, url string) error { return s.openErr }

func (s *fakeSurface) Fields(ctx context.Context) ([]match.Field, error) {
	s.scans++
	return append([]match.Field{}, s.page().fields...), nil
}

func (s *fakeSurface) Options(ctx context.Context, f match.Field) ([]Option, error) {
	if f.Type.Kind() == match.KindSelect {
		return s.page().options[f.Index], nil
	}
	return s.page().options[f.Name], nil
}

func (s *fakeSurface) Fill(ctx context.Context, f match.Field, value string) error {
	if s.blockFill {
		<-ctx.Done()
		return ctx.Err()
	}
	if err := s.fillErr[f.Index]; err != nil {
		return err
	}
	s.filled[f.Index] = value
	return nil
}

func (s *fakeSurface) Check(ctx context.Context, f match.Field, opt Option) error {
	s.checked = append(s.checked, opt.Index)
	return nil
}

func (s *fakeSurface) Select(ctx context.Context, f match.Field, values []string) error {
	s.selected[f.Index] = values
	return nil
}

func (s *fakeSurface) Controls(ctx context.Context) ([]Control, error) {
	return s.page().controls, nil
}

func (s *fakeSurface) Activate(ctx context.Context, c Control) error {
	if s.activateErr != nil {
		return s.activateErr
	}
	s.activations++
	s.current = s.page().next
	return nil
}

func (s *fakeSurface) Settle(ctx context.Context, d time.Duration) error { return nil }

func (s *fakeSurface) Content(ctx context.Context) (string, error) { return "", nil }

func (s *fakeSurface) Close() error { return nil }

func testEngine(t *testing.T, maxPages int) *Engine {
	cfg := DefaultConfig()
	cfg.MaxPages = maxPages
	cfg.WritePause = 0
	cfg.SettleDelay = 0
	return NewEngine(cfg, zaptest.NewLogger(t))
}

func textQuestion(id, text, answer string) grant.Question {
	return grant.Question{ID: id, Text: text, Type: grant.TypeText, Answer: grant.TextAnswer(answer)}
}

var orgField = match.Field{Index: "0", ID: "org", Name: "org", Type: match.ControlText, Label: "Organization Name"}

func TestFillSinglePage(t *testing.T) {
	s := newFakeSurface(&fakePage{fields: []match.Field{orgField}})
	e := testEngine(t, 20)

	rep, err := e.Fill(context.Background(), s, "https://example.org/apply",
		[]grant.Question{textQuestion("q1", "Organization Name", "Acme Corp")})
	require.NoError(t, err)

	assert.Equal(t, 1, rep.FieldsFilled)
	assert.Equal(t, 0, rep.FieldsSkipped)
	assert.Equal(t, 1, rep.PagesVisited)
	assert.NotEmpty(t, rep.RunID)
	assert.Equal(t, "Acme Corp", s.filled["0"])
	require.Len(t, rep.Mappings, 1)
	assert.Equal(t, "#org", rep.Mappings[0].Selector)
	assert.Equal(t, "Acme Corp", rep.Mappings[0].Answer)
	assert.GreaterOrEqual(t, rep.Mappings[0].Confidence, DefaultConfig().Thresholds.Field)
}

func TestFillEmptyAnswerIsSkipped(t *testing.T) {
	s := newFakeSurface(&fakePage{fields: []match.Field{orgField}})
	e := testEngine(t, 20)

	rep, err := e.Fill(context.Background(), s, "u", []grant.Question{textQuestion("q1", "Organization Name", "")})
	require.NoError(t, err)

	assert.Equal(t, 0, rep.FieldsFilled)
	assert.Equal(t, 1, rep.FieldsSkipped)
	require.Len(t, rep.Skipped, 1)
	assert.Equal(t, grant.SkipEmptyAnswer, rep.Skipped[0].Reason)
	assert.Empty(t, s.filled)
}

func TestFillCheckboxGroup(t *testing.T) {
	group := func(idx, value string) match.Field {
		return match.Field{Index: idx, Name: "areas", Type: match.ControlCheckbox, Value: value, Label: value, GroupLabel: "Program areas"}
	}
	s := newFakeSurface(&fakePage{
		fields: []match.Field{group("a", "A"), group("b", "B"), group("c", "C")},
		options: map[string][]Option{
			"areas": {{Index: "a", Value: "A"}, {Index: "b", Value: "B"}, {Index: "c", Value: "C"}},
		},
	})
	e := testEngine(t, 1)

	questions := []grant.Question{
		{ID: "q1", Text: "Program areas", Type: grant.TypeMultiChoice, Options: []string{"A", "B", "C"}, Answer: grant.ListAnswer("A", "B")},
		{ID: "q2", Text: "Program areas", Type: grant.TypeMultiChoice, Options: []string{"A", "B", "C"}, Answer: grant.ListAnswer("C")},
	}
	rep, err := e.Fill(context.Background(), s, "u", questions)
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, s.checked)
	assert.Equal(t, 1, rep.FieldsFilled)
	require.Len(t, rep.Mappings, 1)
	assert.Equal(t, "A; B", rep.Mappings[0].Answer)
	assert.Equal(t, `[name="areas"]`, rep.Mappings[0].Selector)

	// the whole group was consumed, so the second question finds nothing
	require.Len(t, rep.Skipped, 1)
	assert.Equal(t, "q2", rep.Skipped[0].QuestionID)
	assert.Equal(t, grant.SkipNoFieldFound, rep.Skipped[0].Reason)
}

func TestFillCheckboxGroupWithoutMatchStaysAvailable(t *testing.T) {
	group := func(idx, value string) match.Field {
		return match.Field{Index: idx, Name: "areas", Type: match.ControlCheckbox, Value: value, Label: value, GroupLabel: "Program areas"}
	}
	s := newFakeSurface(&fakePage{
		fields: []match.Field{group("a", "Arts"), group("h", "Health")},
		options: map[string][]Option{
			"areas": {{Index: "a", Value: "Arts"}, {Index: "h", Value: "Health"}},
		},
	})
	e := testEngine(t, 1)

	questions := []grant.Question{
		{ID: "q1", Text: "Program areas", Type: grant.TypeMultiChoice, Options: []string{"Zoology"}, Answer: grant.ListAnswer("Zoology")},
		{ID: "q2", Text: "Program areas", Type: grant.TypeMultiChoice, Options: []string{"Arts", "Health"}, Answer: grant.ListAnswer("Arts")},
	}
	rep, err := e.Fill(context.Background(), s, "u", questions)
	require.NoError(t, err)

	assert.Equal(t, []string{"a"}, s.checked)
	assert.Equal(t, 1, rep.FieldsFilled)
	require.Len(t, rep.Mappings, 1)
	assert.Equal(t, "q2", rep.Mappings[0].QuestionID)
	require.Len(t, rep.Skipped, 1)
	assert.Equal(t, "q1", rep.Skipped[0].QuestionID)
	assert.Equal(t, grant.SkipNoOption, rep.Skipped[0].Reason)
}

func TestFillRadioGroup(t *testing.T) {
	radio := func(idx, value string) match.Field {
		return match.Field{Index: idx, Name: "nonprofit", Type: match.ControlRadio, Value: value, Label: value,
			GroupLabel: "Are you a registered nonprofit?"}
	}
	s := newFakeSurface(&fakePage{
		fields: []match.Field{radio("r0", "Yes"), radio("r1", "No")},
		options: map[string][]Option{
			"nonprofit": {{Index: "r0", Value: "Yes", Label: "Yes"}, {Index: "r1", Value: "No", Label: "No"}},
		},
	})
	e := testEngine(t, 1)

	q := grant.Question{ID: "q1", Text: "Are you a registered nonprofit?", Type: grant.TypeYesNo, Answer: grant.TextAnswer("No")}
	rep, err := e.Fill(context.Background(), s, "u", []grant.Question{q})
	require.NoError(t, err)

	assert.Equal(t, []string{"r1"}, s.checked)
	require.Len(t, rep.Mappings, 1)
	assert.Equal(t, `[name="nonprofit"][value="No"]`, rep.Mappings[0].Selector)
	assert.Equal(t, "No", rep.Mappings[0].Answer)
}

func TestFillRadioWithoutMatchingOption(t *testing.T) {
	s := newFakeSurface(&fakePage{
		fields: []match.Field{{Index: "r0", Name: "nonprofit", Type: match.ControlRadio, Value: "Yes", GroupLabel: "Registered nonprofit"}},
		options: map[string][]Option{
			"nonprofit": {{Index: "r0", Value: "Yes"}},
		},
	})
	e := testEngine(t, 1)

	q := grant.Question{ID: "q1", Text: "Registered nonprofit", Type: grant.TypeYesNo, Answer: grant.TextAnswer("No")}
	rep, err := e.Fill(context.Background(), s, "u", []grant.Question{q})
	require.NoError(t, err)

	assert.Empty(t, s.checked)
	require.Len(t, rep.Skipped, 1)
	assert.Equal(t, grant.SkipNoOption, rep.Skipped[0].Reason)
}

func TestFillSelect(t *testing.T) {
	s := newFakeSurface(&fakePage{
		fields: []match.Field{{Index: "s0", ID: "orgtype", Type: match.ControlSelectOne, Label: "Organization type"}},
		options: map[string][]Option{
			"s0": {
				{Index: "s0-0", Value: "np", Label: "Nonprofit"},
				{Index: "s0-1", Value: "fp", Label: "For-profit"},
			},
		},
	})
	e := testEngine(t, 1)

	q := grant.Question{ID: "q1", Text: "Organization type", Type: grant.TypeSingleChoice,
		Options: []string{"Nonprofit", "For-profit"}, Answer: grant.TextAnswer("For-profit")}
	rep, err := e.Fill(context.Background(), s, "u", []grant.Question{q})
	require.NoError(t, err)

	assert.Equal(t, []string{"fp"}, s.selected["s0"])
	assert.Equal(t, 1, rep.FieldsFilled)
}

func TestFillDateIsNormalized(t *testing.T) {
	s := newFakeSurface(&fakePage{
		fields: []match.Field{{Index: "d0", ID: "start", Type: match.ControlDate, Label: "Project start date"}},
	})
	e := testEngine(t, 1)

	q := grant.Question{ID: "q1", Text: "Project start date", Type: grant.TypeDate, Answer: grant.TextAnswer("March 5, 2024")}
	rep, err := e.Fill(context.Background(), s, "u", []grant.Question{q})
	require.NoError(t, err)

	assert.Equal(t, 1, rep.FieldsFilled)
	assert.Equal(t, "2024-03-05", s.filled["d0"])
}

func TestFillSatisfiedQuestionIsNotRetried(t *testing.T) {
	page1 := &fakePage{
		fields:   []match.Field{{Index: "p1", ID: "organization", Type: match.ControlText, Label: "Organization"}},
		controls: []Control{{Index: "n", Text: "Next"}},
		next:     1,
	}
	page2 := &fakePage{
		fields: []match.Field{
			{Index: "p2", ID: "org_name", Type: match.ControlText, Label: "Organization Name"},
			{Index: "p2-date", ID: "start", Type: match.ControlDate, Label: "Project start date"},
		},
	}
	s := newFakeSurface(page1, page2)
	e := testEngine(t, 20)

	questions := []grant.Question{
		textQuestion("q1", "Organization Name", "Acme Corp"),
		{ID: "q2", Text: "Project start date", Type: grant.TypeDate, Answer: grant.TextAnswer("2024-01-01")},
	}
	rep, err := e.Fill(context.Background(), s, "u", questions)
	require.NoError(t, err)

	assert.Equal(t, 2, rep.PagesVisited)
	assert.Equal(t, 2, rep.FieldsFilled)
	assert.Equal(t, 0, rep.FieldsSkipped)
	assert.Equal(t, "Acme Corp", s.filled["p1"])
	assert.NotContains(t, s.filled, "p2", "a satisfied question must not be written again")
	assert.Equal(t, "2024-01-01", s.filled["p2-date"])

	require.Len(t, rep.Mappings, 2)
	assert.Equal(t, 1, rep.Mappings[0].Page)
	assert.Equal(t, 2, rep.Mappings[1].Page)
}

func TestFillStopsAtPageCeiling(t *testing.T) {
	loop := &fakePage{
		fields:   []match.Field{{Index: "z", ID: "zip", Type: match.ControlText, Label: "Zip code"}},
		controls: []Control{{Index: "n", Text: "Continue"}},
		next:     0,
	}
	s := newFakeSurface(loop)
	e := testEngine(t, 3)

	done := make(chan struct{})
	var rep *grant.FillReport
	var err error
	go func() {
		defer close(done)
		rep, err = e.Fill(context.Background(), s, "u", []grant.Question{textQuestion("q1", "Mission statement", "We help")})
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("pagination did not terminate")
	}

	require.NoError(t, err)
	assert.Equal(t, 3, rep.PagesVisited)
	assert.Equal(t, 3, s.scans)
	assert.Equal(t, 2, s.activations)
	assert.Equal(t, 1, rep.FieldsSkipped)
}

func TestFillStopsWhenEverythingIsSatisfied(t *testing.T) {
	s := newFakeSurface(&fakePage{
		fields:   []match.Field{orgField},
		controls: []Control{{Index: "n", Text: "Next"}},
	})
	e := testEngine(t, 20)

	rep, err := e.Fill(context.Background(), s, "u", []grant.Question{textQuestion("q1", "Organization Name", "Acme Corp")})
	require.NoError(t, err)
	assert.Equal(t, 1, rep.PagesVisited)
	assert.Zero(t, s.activations)
}

func TestFillAdvancesWhenCompleteIfAsked(t *testing.T) {
	s := newFakeSurface(
		&fakePage{fields: []match.Field{orgField}, controls: []Control{{Index: "n", Text: "Next"}}, next: 1},
		&fakePage{controls: []Control{{Index: "n", Text: "Continue"}}, next: 2},
		&fakePage{controls: []Control{{Index: "s", Text: "Submit application"}}},
	)
	cfg := DefaultConfig()
	cfg.WritePause, cfg.SettleDelay = 0, 0
	cfg.AdvanceWhenComplete = true
	e := NewEngine(cfg, zaptest.NewLogger(t))

	rep, err := e.Fill(context.Background(), s, "u", []grant.Question{textQuestion("q1", "Organization Name", "Acme Corp")})
	require.NoError(t, err)
	assert.Equal(t, 1, rep.FieldsFilled)
	assert.Equal(t, 3, rep.PagesVisited)
	assert.Equal(t, 2, s.activations)
	assert.Equal(t, 2, s.current)
}

func TestFillNavigation(t *testing.T) {
	tests := []struct {
		name        string
		controls    []Control
		activateErr error
		wantPages   int
	}{
		{name: "no controls", wantPages: 1},
		{name: "submit control ignored", controls: []Control{{Index: "s", Text: "Submit application"}}, wantPages: 1},
		{name: "ambiguous control ignored", controls: []Control{{Index: "s", Text: "Save and continue to send"}}, wantPages: 1},
		{name: "activation failure ends run", controls: []Control{{Index: "n", Text: "Next"}}, activateErr: errors.New("detached"), wantPages: 1},
		{name: "next control followed", controls: []Control{{Index: "n", Text: "Siguiente"}}, wantPages: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first := &fakePage{controls: tt.controls, next: 1}
			last := &fakePage{}
			s := newFakeSurface(first, last)
			s.activateErr = tt.activateErr
			e := testEngine(t, 20)

			rep, err := e.Fill(context.Background(), s, "u", []grant.Question{textQuestion("q1", "Mission statement", "We help")})
			require.NoError(t, err)
			assert.Equal(t, tt.wantPages, rep.PagesVisited)
		})
	}
}

func TestFillOpenFailureIsFatal(t *testing.T) {
	s := newFakeSurface(&fakePage{})
	s.openErr = errors.New("net::ERR_NAME_NOT_RESOLVED")
	e := testEngine(t, 20)

	rep, err := e.Fill(context.Background(), s, "https://nowhere.invalid", nil)
	require.Error(t, err)
	assert.Nil(t, rep)
	assert.True(t, grant.IsKind(err, grant.KindSurfaceUnreachable))
}

func TestFillWriteFailureContinues(t *testing.T) {
	s := newFakeSurface(&fakePage{fields: []match.Field{
		orgField,
		{Index: "1", ID: "email", Type: match.ControlEmail, Label: "Contact email"},
	}})
	s.fillErr["0"] = errors.New("element is detached")
	e := testEngine(t, 1)

	questions := []grant.Question{
		textQuestion("q1", "Organization Name", "Acme Corp"),
		textQuestion("q2", "Contact email", "info@acme.org"),
	}
	rep, err := e.Fill(context.Background(), s, "u", questions)
	require.NoError(t, err)

	assert.Equal(t, 1, rep.FieldsFilled)
	assert.Equal(t, 1, rep.FieldsSkipped)
	assert.Equal(t, grant.SkipWriteFailed, rep.Skipped[0].Reason)
	assert.Equal(t, "info@acme.org", s.filled["1"])
}

func TestFillFieldTimeout(t *testing.T) {
	s := newFakeSurface(&fakePage{fields: []match.Field{orgField}})
	s.blockFill = true
	cfg := DefaultConfig()
	cfg.FieldTimeout = 20 * time.Millisecond
	cfg.WritePause = 0
	e := NewEngine(cfg, zaptest.NewLogger(t))

	rep, err := e.Fill(context.Background(), s, "u", []grant.Question{textQuestion("q1", "Organization Name", "Acme Corp")})
	require.NoError(t, err)
	assert.Equal(t, 0, rep.FieldsFilled)
	assert.Equal(t, 1, rep.FieldsSkipped)
	assert.Equal(t, grant.SkipWriteFailed, rep.Skipped[0].Reason)
}

func TestIsNextControl(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"Next", true},
		{"CONTINUE »", true},
		{"Próximo", true},
		{"Weiter zur Seite 2", true},
		{"Submit", false},
		{"Continue and submit", false},
		{"Enviar y continuar", false},
		{"Back", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, IsNextControl(tt.text))
		})
	}
}

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"2024-03-05", "2024-03-05"},
		{"2024-3-5", "2024-03-05"},
		{"03/05/2024", "2024-03-05"},
		{"March 5, 2024", "2024-03-05"},
		{"5 March 2024", "2024-03-05"},
		{"2024-03-05T10:00:00Z", "2024-03-05"},
		{"next spring", "next spring"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeDate(tt.input))
		})
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "SCANNING", StateScanning.String())
	assert.Equal(t, "SEEKING_NEXT", StateSeekingNext.String())
	assert.Equal(t, "NAVIGATING", StateNavigating.String())
	assert.Equal(t, "DONE", StateDone.String())
}
