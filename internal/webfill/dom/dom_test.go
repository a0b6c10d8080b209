package dom

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/a3tai/mcp-grant-filler/internal/grant"
	"github.com/a3tai/mcp-grant-filler/internal/match"
	"github.com/a3tai/mcp-grant-filler/internal/webfill"
)

const formURL = "https://grants.example.org/apply"

func newEngine(t *testing.T, maxPages int) *webfill.Engine {
	t.Helper()
	return webfill.NewEngine(webfill.Config{
		MaxPages:     maxPages,
		FieldTimeout: time.Second,
	}, zaptest.NewLogger(t))
}

func openSurface(t *testing.T, pages MapLoader) *Surface {
	t.Helper()
	s := New(pages, zaptest.NewLogger(t))
	require.NoError(t, s.Open(context.Background(), formURL))
	return s
}

func parseContent(t *testing.T, s *Surface) *goquery.Document {
	t.Helper()
	content, err := s.Content(context.Background())
	require.NoError(t, err)
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	require.NoError(t, err)
	return doc
}

func TestFillSinglePage(t *testing.T) {
	pages := MapLoader{formURL: `<html><body><form>
		<label for="org">Organization Name</label>
		<input id="org" name="org_name" type="text">
	</form></body></html>`}
	s := New(pages, zaptest.NewLogger(t))

	questions := []grant.Question{{
		ID: "q1", Text: "Organization Name", Type: grant.TypeText, Answer: grant.TextAnswer("Acme Corp"),
	}}
	report, err := newEngine(t, 5).Fill(context.Background(), s, formURL, questions)
	require.NoError(t, err)

	assert.Equal(t, 1, report.FieldsFilled)
	assert.Equal(t, 0, report.FieldsSkipped)
	require.Len(t, report.Mappings, 1)
	assert.Equal(t, "#org", report.Mappings[0].Selector)
	assert.Equal(t, 1, report.PagesVisited)

	value, _ := parseContent(t, s).Find("#org").Attr("value")
	assert.Equal(t, "Acme Corp", value)
}

func TestFillLegalNameByIdentity(t *testing.T) {
	pages := MapLoader{formURL: `<form>
		<label for="org">Organization Name</label>
		<input id="org" name="org_name" type="text">
	</form>`}
	s := New(pages, zaptest.NewLogger(t))

	questions := []grant.Question{{
		ID: "q1", Text: "Organization Legal Name", Type: grant.TypeText, Answer: grant.TextAnswer("Acme Corp"),
	}}
	report, err := newEngine(t, 5).Fill(context.Background(), s, formURL, questions)
	require.NoError(t, err)
	assert.Equal(t, 1, report.FieldsFilled)
}

func TestFillEmptyAnswerLeavesFieldUntouched(t *testing.T) {
	pages := MapLoader{formURL: `<form>
		<label for="org">Organization Name</label>
		<input id="org" type="text">
	</form>`}
	s := New(pages, zaptest.NewLogger(t))

	questions := []grant.Question{{ID: "q1", Text: "Organization Name", Type: grant.TypeText}}
	report, err := newEngine(t, 5).Fill(context.Background(), s, formURL, questions)
	require.NoError(t, err)

	assert.Equal(t, 0, report.FieldsFilled)
	assert.Equal(t, 1, report.FieldsSkipped)
	require.Len(t, report.Skipped, 1)
	assert.Equal(t, grant.SkipEmptyAnswer, report.Skipped[0].Reason)

	_, hasValue := parseContent(t, s).Find("#org").Attr("value")
	assert.False(t, hasValue)
}

func TestFillStopsAtPageCeiling(t *testing.T) {
	pages := MapLoader{formURL: `<form>
		<label for="city">City</label><input id="city" type="text">
		<a role="button" href="/apply">Next</a>
	</form>`}
	s := New(pages, zaptest.NewLogger(t))

	questions := []grant.Question{{
		ID: "q1", Text: "Annual revenue in dollars", Type: grant.TypeNumber, Answer: grant.TextAnswer("5000"),
	}}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	report, err := newEngine(t, 3).Fill(ctx, s, formURL, questions)
	require.NoError(t, err)
	assert.Equal(t, 3, report.PagesVisited)
	assert.Equal(t, 1, report.FieldsSkipped)
}

func TestFillFollowsLinksAcrossPages(t *testing.T) {
	pages := MapLoader{
		formURL: `<form>
			<label for="org">Organization Name</label><input id="org" type="text">
			<a role="button" href="/apply/step-2">Continue</a>
		</form>`,
		formURL + "/step-2": `<form>
			<label for="mission">Mission statement</label><textarea id="mission"></textarea>
			<button type="submit">Submit</button>
		</form>`,
	}
	s := New(pages, zaptest.NewLogger(t))

	questions := []grant.Question{
		{ID: "q1", Text: "Organization Name", Type: grant.TypeText, Answer: grant.TextAnswer("Acme Corp")},
		{ID: "q2", Text: "Mission statement", Type: grant.TypeTextarea, Answer: grant.TextAnswer("We plant trees.")},
	}
	report, err := newEngine(t, 5).Fill(context.Background(), s, formURL, questions)
	require.NoError(t, err)

	assert.Equal(t, 2, report.FieldsFilled)
	assert.Equal(t, 2, report.PagesVisited)
	require.Len(t, report.Mappings, 2)
	assert.Equal(t, 1, report.Mappings[0].Page)
	assert.Equal(t, 2, report.Mappings[1].Page)

	assert.Equal(t, "We plant trees.", parseContent(t, s).Find("#mission").Text())
}

func TestFillRevealsInPageSteps(t *testing.T) {
	pages := MapLoader{formURL: `<form>
		<section id="step1">
			<label for="org">Organization Name</label><input id="org" type="text">
			<button type="button" aria-controls="step2">Next</button>
		</section>
		<section id="step2" hidden>
			<label for="ein">Employer Identification Number</label><input id="ein" type="text">
		</section>
	</form>`}
	s := New(pages, zaptest.NewLogger(t))

	questions := []grant.Question{
		{ID: "q1", Text: "Organization Name", Type: grant.TypeText, Answer: grant.TextAnswer("Acme Corp")},
		{ID: "q2", Text: "Employer Identification Number (EIN)", Type: grant.TypeText, Answer: grant.TextAnswer("12-3456789")},
	}
	report, err := newEngine(t, 5).Fill(context.Background(), s, formURL, questions)
	require.NoError(t, err)

	assert.Equal(t, 2, report.FieldsFilled)
	assert.Equal(t, 2, report.PagesVisited)
	doc := parseContent(t, s)
	value, _ := doc.Find("#ein").Attr("value")
	assert.Equal(t, "12-3456789", value)
	_, hidden := doc.Find("#step1").Attr("hidden")
	assert.True(t, hidden)
}

func TestFillChoiceControls(t *testing.T) {
	pages := MapLoader{formURL: `<form>
		<fieldset><legend>Are you a registered nonprofit?</legend>
			<label><input type="radio" name="nonprofit" value="Yes"> Yes</label>
			<label><input type="radio" name="nonprofit" value="No" checked> No</label>
		</fieldset>
		<label for="kind">Organization type</label>
		<select id="kind" name="kind">
			<option value="">Choose one</option>
			<option value="np">Nonprofit</option>
			<option value="fp">For-profit</option>
		</select>
	</form>`}
	s := New(pages, zaptest.NewLogger(t))

	questions := []grant.Question{
		{ID: "q1", Text: "Are you a registered nonprofit?", Type: grant.TypeYesNo, Answer: grant.TextAnswer("Yes")},
		{ID: "q2", Text: "Organization type", Type: grant.TypeSingleChoice,
			Options: []string{"Nonprofit", "For-profit"}, Answer: grant.TextAnswer("Nonprofit")},
	}
	report, err := newEngine(t, 5).Fill(context.Background(), s, formURL, questions)
	require.NoError(t, err)
	assert.Equal(t, 2, report.FieldsFilled)

	doc := parseContent(t, s)
	_, yes := doc.Find(`input[value="Yes"]`).Attr("checked")
	_, no := doc.Find(`input[value="No"]`).Attr("checked")
	assert.True(t, yes)
	assert.False(t, no)
	_, selected := doc.Find(`option[value="np"]`).Attr("selected")
	assert.True(t, selected)
}

func TestFillCheckboxGroup(t *testing.T) {
	pages := MapLoader{formURL: `<form>
		<fieldset><legend>Focus areas</legend>
			<label><input type="checkbox" name="focus" value="education"> Education</label>
			<label><input type="checkbox" name="focus" value="health"> Health</label>
			<label><input type="checkbox" name="focus" value="arts"> Arts</label>
		</fieldset>
	</form>`}
	s := New(pages, zaptest.NewLogger(t))

	questions := []grant.Question{{
		ID: "q1", Text: "Focus areas", Type: grant.TypeMultiChoice,
		Options: []string{"Education", "Health", "Arts"},
		Answer:  grant.ListAnswer("Education", "Arts"),
	}}
	report, err := newEngine(t, 5).Fill(context.Background(), s, formURL, questions)
	require.NoError(t, err)
	require.Equal(t, 1, report.FieldsFilled)
	assert.Equal(t, `[name="focus"]`, report.Mappings[0].Selector)

	doc := parseContent(t, s)
	for value, want := range map[string]bool{"education": true, "health": false, "arts": true} {
		_, checked := doc.Find(`input[value="` + value + `"]`).Attr("checked")
		assert.Equal(t, want, checked, value)
	}
}

func TestFieldsDescribeLabels(t *testing.T) {
	s := openSurface(t, MapLoader{formURL: `<form>
		<fieldset><legend>Contact</legend>
			<label for="email">Email address</label>
			<input id="email" name="contact_email" type="email" required placeholder="you@example.org"
				aria-describedby="email-help">
			<p id="email-help">We only use this to send award notices.</p>
		</fieldset>
		<label>Budget summary
			<small>Summarize how the requested funds will be used.</small>
			<textarea name="budget"></textarea>
		</label>
		<label>Website</label><input name="site" type="url" aria-required="true">
		<div contenteditable="true" aria-label="Project narrative"></div>
	</form>`})

	fields, err := s.Fields(context.Background())
	require.NoError(t, err)
	require.Len(t, fields, 4)

	email := fields[0]
	assert.Equal(t, "email", email.ID)
	assert.Equal(t, match.ControlType("email"), email.Type)
	assert.Equal(t, "Email address", email.Label)
	assert.Equal(t, "We only use this to send award notices.", email.Helper)
	assert.Equal(t, "Contact", email.GroupLabel)
	assert.Equal(t, "you@example.org", email.Placeholder)
	assert.True(t, email.Required)

	budget := fields[1]
	assert.Equal(t, match.ControlTextarea, budget.Type)
	assert.Equal(t, "Budget summary Summarize how the requested funds will be used.", budget.Label)
	assert.Equal(t, "Summarize how the requested funds will be used.", budget.Helper)

	site := fields[2]
	assert.Equal(t, "Website", site.Label)
	assert.True(t, site.Required)

	narrative := fields[3]
	assert.Equal(t, match.ControlContentEditable, narrative.Type)
	assert.Equal(t, "Project narrative", narrative.AriaLabel)
	assert.Equal(t, "contenteditable-0", narrative.Index)
}

func TestFieldsExcludeHiddenAndDisabled(t *testing.T) {
	s := openSurface(t, MapLoader{formURL: `<form>
		<input type="hidden" name="token" value="abc">
		<input type="text" name="a" hidden>
		<div style="display: none"><input type="text" name="b"></div>
		<input type="text" name="c" style="visibility:hidden">
		<input type="text" name="d" style="opacity: 0">
		<input type="text" name="e" disabled>
		<input type="text" name="f" readonly>
		<fieldset disabled><input type="text" name="g"></fieldset>
		<input type="submit" value="Send">
		<input type="text" name="visible">
	</form>`})

	fields, err := s.Fields(context.Background())
	require.NoError(t, err)
	require.Len(t, fields, 1)
	assert.Equal(t, "visible", fields[0].Name)
}

func TestFieldsFromFrames(t *testing.T) {
	pages := MapLoader{
		formURL: `<body>
			<iframe srcdoc="&lt;label for=&quot;org&quot;&gt;Organization Name&lt;/label&gt;&lt;input id=&quot;org&quot;&gt;"></iframe>
			<iframe src="/embedded"></iframe>
			<iframe src="https://forms.thirdparty.example/grant"></iframe>
		</body>`,
		"https://grants.example.org/embedded":     `<input name="city" type="text">`,
		"https://forms.thirdparty.example/grant": `<input name="secret" type="text">`,
	}
	s := openSurface(t, pages)

	fields, err := s.Fields(context.Background())
	require.NoError(t, err)
	require.Len(t, fields, 2)

	assert.Equal(t, 1, fields[0].Frame)
	assert.Equal(t, "f1-0", fields[0].Index)
	assert.Equal(t, "Organization Name", fields[0].Label)
	assert.Equal(t, 2, fields[1].Frame)
	assert.Equal(t, "city", fields[1].Name)

	require.NoError(t, s.Fill(context.Background(), fields[0], "Acme Corp"))
	content, err := s.FrameContent(1)
	require.NoError(t, err)
	assert.Contains(t, content, `value="Acme Corp"`)
}

func TestCrossOriginFrameYieldsNoFields(t *testing.T) {
	s := openSurface(t, MapLoader{
		formURL:                                  `<iframe src="https://forms.thirdparty.example/grant"></iframe>`,
		"https://forms.thirdparty.example/grant": `<input name="org" type="text">`,
	})

	fields, err := s.Fields(context.Background())
	require.NoError(t, err)
	assert.Empty(t, fields)
}

func TestActivate(t *testing.T) {
	tests := []struct {
		name    string
		page    string
		wantErr bool
	}{
		{name: "link", page: `<a role="button" href="/apply">Next</a>`},
		{name: "form action", page: `<form action="/apply"><button>Next</button></form>`},
		{name: "formaction", page: `<button formaction="/apply">Next</button>`},
		{name: "javascript link", page: `<a role="button" href="javascript:void(0)">Next</a>`, wantErr: true},
		{name: "bare button", page: `<button type="button">Next</button>`, wantErr: true},
		{name: "disabled", page: `<button disabled formaction="/apply">Next</button>`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := openSurface(t, MapLoader{formURL: tt.page})
			controls, err := s.Controls(context.Background())
			require.NoError(t, err)
			require.Len(t, controls, 1)
			assert.True(t, webfill.IsNextControl(controls[0].Text))

			err = s.Activate(context.Background(), controls[0])
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestOpenUnreachable(t *testing.T) {
	s := New(MapLoader{}, zaptest.NewLogger(t))
	_, err := newEngine(t, 5).Fill(context.Background(), s, formURL, nil)
	require.Error(t, err)
	assert.True(t, grant.IsKind(err, grant.KindSurfaceUnreachable))
}
