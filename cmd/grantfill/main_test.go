package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-grant-filler/internal/grant"
	"github.com/a3tai/mcp-grant-filler/internal/pdf/pdftest"
)

func newTestApp() (*app, *bytes.Buffer) {
	var out bytes.Buffer
	return &app{stdout: &out, stderr: &bytes.Buffer{}}, &out
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestDispatch(t *testing.T) {
	a, out := newTestApp()
	require.NoError(t, a.dispatch(context.Background(), nil))
	assert.Contains(t, out.String(), "fill-web")

	err := a.dispatch(context.Background(), []string{"submit"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown command "submit"`)
}

func TestFieldsCommand(t *testing.T) {
	dir := t.TempDir()
	form := writeFile(t, dir, "form.pdf", pdftest.Form())
	blank := writeFile(t, dir, "blank.pdf", pdftest.Blank())

	a, out := newTestApp()
	require.NoError(t, a.dispatch(context.Background(), []string{"fields", form}))
	assert.Contains(t, out.String(), "org_name")
	assert.Contains(t, out.String(), "max 10")
	assert.Contains(t, out.String(), "read-only")

	a, out = newTestApp()
	require.NoError(t, a.dispatch(context.Background(), []string{"fields", "--format=json", form}))
	var fields []map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &fields))
	assert.Len(t, fields, 4)

	a, out = newTestApp()
	require.NoError(t, a.dispatch(context.Background(), []string{"fields", blank}))
	assert.Contains(t, out.String(), "has no form fields")

	a, _ = newTestApp()
	assert.Error(t, a.dispatch(context.Background(), []string{"fields"}))
	assert.Error(t, a.dispatch(context.Background(), []string{"fields", "--format=xml", form}))
}

func TestFillWebStaticDump(t *testing.T) {
	dir := t.TempDir()
	page := writeFile(t, dir, "form.html", []byte(`<html><body><form>
		<label for="org">Organization Name</label>
		<input id="org" name="org_name" type="text">
	</form></body></html>`))
	questions, err := json.Marshal([]grant.Question{
		{ID: "q1", Text: "Organization Name", Type: grant.TypeText, Answer: grant.TextAnswer("Acme Corp")},
		{ID: "q2", Text: "Annual budget", Type: grant.TypeNumber},
	})
	require.NoError(t, err)
	qpath := writeFile(t, dir, "questions.json", questions)
	dump := filepath.Join(dir, "filled.html")

	a, out := newTestApp()
	require.NoError(t, a.dispatch(context.Background(), []string{
		"fill-web", "--questions", qpath, "--surface", "static", "--dump", dump, "file://" + page,
	}))

	var report grant.FillReport
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	assert.Equal(t, 1, report.FieldsFilled)
	assert.Equal(t, 1, report.FieldsSkipped)

	markup, err := os.ReadFile(dump)
	require.NoError(t, err)
	assert.Contains(t, string(markup), "Acme Corp")
}

func TestFillWebErrors(t *testing.T) {
	dir := t.TempDir()
	qpath := writeFile(t, dir, "grant.json", []byte(`{"grant_id":"g1","status":"draft","responses":[]}`))

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no questions", []string{"fill-web", "https://example.org"}, "--questions is required"},
		{"no url", []string{"fill-web", "--questions", qpath}, "expected exactly one URL"},
		{"bad surface", []string{"fill-web", "--questions", qpath, "--surface", "lynx", "https://example.org"}, "unknown surface"},
		{"unreachable", []string{"fill-web", "--questions", qpath, "file://" + filepath.Join(dir, "missing.html")}, "cannot load"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, _ := newTestApp()
			err := a.dispatch(context.Background(), tt.args)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestFillPDFRequiresOutput(t *testing.T) {
	dir := t.TempDir()
	form := writeFile(t, dir, "form.pdf", pdftest.Form())
	a, _ := newTestApp()
	err := a.dispatch(context.Background(), []string{"fill-pdf", "--questions", "q.json", form})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--out is required")
}

func TestFillPDFNothingMatched(t *testing.T) {
	dir := t.TempDir()
	blank := writeFile(t, dir, "blank.pdf", pdftest.Blank())
	qpath := writeFile(t, dir, "q.json", []byte(`[{"question_id":"q1","question_text":"Organization Name","type":"text","answer":"Acme"}]`))
	out := filepath.Join(dir, "out.pdf")

	a, stdout := newTestApp()
	require.NoError(t, a.dispatch(context.Background(), []string{"fill-pdf", "--questions", qpath, "--out", out, blank}))
	assert.Contains(t, stdout.String(), "Nothing filled")
	_, err := os.Stat(out)
	assert.True(t, os.IsNotExist(err))
}

func TestReadCommand(t *testing.T) {
	dir := t.TempDir()
	page := writeFile(t, dir, "apply.html", []byte(`<html><body><h1>Apply</h1><p>Describe your mission.</p></body></html>`))

	a, out := newTestApp()
	require.NoError(t, a.dispatch(context.Background(), []string{"read", page}))
	assert.True(t, strings.HasPrefix(out.String(), "html document, 1 chunk(s)"))
	assert.Contains(t, out.String(), "Describe your mission.")
}

func TestReadQuestionsValidates(t *testing.T) {
	dir := t.TempDir()
	bad := writeFile(t, dir, "bad.json", []byte(`[{"question_id":"q1","question_text":"Pick","type":"single_choice"}]`))
	_, err := readQuestions(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires options")
}
