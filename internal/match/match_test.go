package match

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-grant-filler/internal/grant"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Organization Name", "organizationname"},
		{"  E-mail (primary) ", "emailprimary"},
		{"EIN #12-3456789", "ein123456789"},
		{"Próximo paso", "prximopaso"},
		{"", ""},
		{"!!!", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := Normalize(tt.input)
			assert.Equal(t, tt.expected, got)
			assert.Equal(t, got, Normalize(got), "normalize must be idempotent")
		})
	}
}

func TestNameTokens(t *testing.T) {
	tests := []struct {
		input    string
		expected []string
	}{
		{"org_name", []string{"org", "name"}},
		{"orgName", []string{"org", "name"}},
		{"ABCName", []string{"abc", "name"}},
		{"form1[0].page1Name", []string{"form1", "0", "page1", "name"}},
		{"Tax-ID", []string{"tax", "id"}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, NameTokens(tt.input))
		})
	}
}

func TestTextSim(t *testing.T) {
	tests := []struct {
		name     string
		a, b     string
		expected float64
	}{
		{"identical after normalize", "Organization Name", "organization name", 1.0},
		{"containment", "Name", "Organization Name", 0.85},
		{"word overlap", "Project budget total", "Total budget for project", 1.0},
		{"partial overlap", "Describe program outcomes clearly", "program outcomes", 0.85},
		{"unrelated", "Mission statement", "Annual revenue", 0},
		{"short words only", "a", "b", 0},
		{"empty side", "", "Organization", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, TextSim(tt.a, tt.b), 0.0001)
		})
	}
}

func TestTextSimWordFraction(t *testing.T) {
	// two of the three long words of a appear in b
	got := TextSim("Annual operating budget", "operating costs and budget lines")
	assert.InDelta(t, 2.0/3.0, got, 0.0001)
}

func TestSemSim(t *testing.T) {
	tests := []struct {
		name     string
		a, b     string
		expected float64
	}{
		{"shared keyword", "Organization Name", "Company name", 0.9},
		{"same category different keywords", "Company", "Legal entity", 0.7},
		{"no common category", "Favorite color", "Shoe size", 0},
		{"empty", "", "Company", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SemSim(tt.a, tt.b))
		})
	}
}

func TestTypeCompat(t *testing.T) {
	tests := []struct {
		answer   grant.QuestionType
		control  ControlType
		length   int
		expected float64
	}{
		{grant.TypeText, ControlEmail, 10, 1.0},
		{grant.TypeText, ControlTextarea, 10, 0.9},
		{grant.TypeText, ControlContentEditable, 10, 0.9},
		{grant.TypeTextarea, ControlTextarea, 500, 1.0},
		{grant.TypeTextarea, ControlText, 50, 0.7},
		{grant.TypeTextarea, ControlText, 150, 0},
		{grant.TypeNumber, ControlNumber, 3, 1.0},
		{grant.TypeNumber, ControlText, 3, 0.8},
		{grant.TypeDate, ControlText, 10, 0.8},
		{grant.TypeDate, ControlEmail, 10, 0},
		{grant.TypeSingleChoice, ControlRadio, 3, 1.0},
		{grant.TypeYesNo, ControlSelectOne, 3, 1.0},
		{grant.TypeMultiChoice, ControlCheckbox, 3, 1.0},
		{grant.TypeMultiChoice, ControlRadio, 3, 0},
		{grant.TypeSingleChoice, ControlText, 3, 0},
		{grant.TypeOther, ControlEmail, 3, 1.0},
	}

	for _, tt := range tests {
		t.Run(string(tt.answer)+"->"+string(tt.control), func(t *testing.T) {
			assert.Equal(t, tt.expected, TypeCompat(tt.answer, tt.control, tt.length))
		})
	}
}

func TestIdentityBoost(t *testing.T) {
	q := grant.Question{ID: "q1", Text: "Organization Legal Name", Type: grant.TypeText, Answer: grant.TextAnswer("Acme")}
	f := Field{Index: "0", ID: "org_name", Type: ControlText}

	assert.Equal(t, IdentityBoost, IdentityBoostFor(q.Text, f))
	assert.InDelta(t, 0.4/3.0+0.27+0.3+0.15, Score(q, f), 0.0001)

	short := Field{Index: "1", ID: "org", Type: ControlText}
	assert.Zero(t, IdentityBoostFor(q.Text, short), "ids of 3 characters never boost")

	both := Field{Index: "2", ID: "legal_name", Name: "organization", Type: ControlText}
	assert.Equal(t, IdentityBoost, IdentityBoostFor(q.Text, both), "id and name boosts do not add up")
}

func TestScoreBounds(t *testing.T) {
	questions := []grant.Question{
		{Text: "Organization Name", Type: grant.TypeText, Answer: grant.TextAnswer("Acme Corp")},
		{Text: "", Type: grant.TypeText},
		{Text: "Select all program areas", Type: grant.TypeMultiChoice, Answer: grant.ListAnswer("A")},
		{Text: "Describe the project budget and future sustainability", Type: grant.TypeTextarea},
	}
	fields := []Field{
		{Index: "0", ID: "organizationname", Name: "organization_name", Label: "Organization Name", Type: ControlText},
		{Index: "1", Type: ControlCheckbox, Name: "areas", Value: "A"},
		{Index: "2", Type: "file"},
		{Index: "3", Label: "Project budget, future plans", Helper: "Describe sustainability", Type: ControlTextarea},
		{Index: "4"},
	}

	for _, q := range questions {
		for _, f := range fields {
			s := Score(q, f)
			assert.GreaterOrEqual(t, s, 0.0)
			assert.LessOrEqual(t, s, 1.0)
		}
	}

	assert.Equal(t, 1.0, Score(questions[0], fields[0]), "boosted score is capped")
}

func TestMatcherBest(t *testing.T) {
	m := NewMatcher(DefaultFieldThreshold)
	q := grant.Question{ID: "q1", Text: "Organization Name", Type: grant.TypeText, Answer: grant.TextAnswer("Acme Corp")}

	t.Run("ties keep extraction order", func(t *testing.T) {
		fields := []Field{
			{Index: "0", Label: "Organization Name", Type: ControlText},
			{Index: "1", Label: "Organization Name", Type: ControlText},
		}
		c, ok := m.Best(q, fields)
		require.True(t, ok)
		assert.Equal(t, 0, c.Pos)
	})

	t.Run("used fields are never candidates", func(t *testing.T) {
		fields := []Field{
			{Index: "0", Label: "Organization Name", Type: ControlText, Used: true},
			{Index: "1", Label: "Organization Name", Type: ControlText},
		}
		c, ok := m.Best(q, fields)
		require.True(t, ok)
		assert.Equal(t, 1, c.Pos)

		fields[1].Used = true
		_, ok = m.Best(q, fields)
		assert.False(t, ok)
	})

	t.Run("incompatible types are filtered", func(t *testing.T) {
		fields := []Field{{Index: "0", Label: "Organization Name", Type: ControlCheckbox}}
		assert.Empty(t, m.Rank(q, fields))
	})

	t.Run("below threshold is skipped", func(t *testing.T) {
		mission := grant.Question{ID: "q2", Text: "Mission statement", Type: grant.TypeText, Answer: grant.TextAnswer("x")}
		fields := []Field{{Index: "0", Label: "Zip code", Type: ControlText}}
		ranked := m.Rank(mission, fields)
		require.Len(t, ranked, 1)
		assert.InDelta(t, 0.3, ranked[0].Score, 0.0001)
		_, ok := m.Best(mission, fields)
		assert.False(t, ok)
	})

	t.Run("best score wins", func(t *testing.T) {
		fields := []Field{
			{Index: "0", Label: "Contact email", Type: ControlEmail},
			{Index: "1", Label: "Organization Name", Type: ControlText},
		}
		c, ok := m.Best(q, fields)
		require.True(t, ok)
		assert.Equal(t, "1", c.Field.Index)
	})
}

func TestPickOption(t *testing.T) {
	pos, ok := PickOption("B", []string{"A", "B", "C"}, DefaultOptionThreshold)
	require.True(t, ok)
	assert.Equal(t, 1, pos)

	pos, ok = PickOption("Yes", grant.YesNoOptions, DefaultOptionThreshold)
	require.True(t, ok)
	assert.Equal(t, 0, pos)

	_, ok = PickOption("Maybe", grant.YesNoOptions, DefaultOptionThreshold)
	assert.False(t, ok)

	_, ok = PickOption("A", []string{"", " "}, DefaultOptionThreshold)
	assert.False(t, ok, "blank options never match")
}

func TestFieldNameScore(t *testing.T) {
	tests := []struct {
		name     string
		field    string
		question string
		expected float64
	}{
		{"exact", "org_name", "Org Name", 1.0},
		{"containment", "name", "Organization Name", 0.9},
		{"token share", "applicant_email_addr", "What is the applicant email?", 2.0 / 3.0},
		{"short tokens discarded", "zz", "Organization", 0},
		{"empty field", "", "Organization", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, FieldNameScore(tt.field, tt.question), 0.0001)
		})
	}
}

func TestFieldSelector(t *testing.T) {
	assert.Equal(t, "#org", Field{ID: "org", Name: "x"}.Selector())
	assert.Equal(t, `[id="1st"]`, Field{ID: "1st"}.Selector())
	assert.Equal(t, `[name="areas"][value="A"]`, Field{Name: "areas", Type: ControlCheckbox, Value: "A"}.Selector())
	assert.Equal(t, `[name="org"]`, Field{Name: "org", Type: ControlText}.Selector())
	assert.Equal(t, `[data-field-index="contenteditable-2"]`, Field{Index: "contenteditable-2"}.Selector())
	assert.Equal(t, `[name="say \"hi\""]`, Field{Name: `say "hi"`}.Selector())
}

func TestFieldBundle(t *testing.T) {
	f := Field{Label: "Name", Helper: " ", GroupLabel: "Applicant", ID: "n1", Placeholder: "Jane"}
	assert.Equal(t, "Name Applicant n1 Jane", f.Bundle())
}

func TestParseControlType(t *testing.T) {
	assert.Equal(t, ControlText, ParseControlType("input", "", false))
	assert.Equal(t, ControlEmail, ParseControlType("INPUT", "Email", false))
	assert.Equal(t, ControlSelectMultiple, ParseControlType("select", "", true))
	assert.Equal(t, ControlTextarea, ParseControlType("textarea", "", false))
	assert.Equal(t, ControlContentEditable, ParseControlType("div", "", false))
	assert.Equal(t, KindUnsupported, ParseControlType("input", "file", false).Kind())
	assert.Equal(t, KindTextLike, ControlDate.Kind())
}
