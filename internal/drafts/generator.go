// Package drafts writes draft answers to grant questions from the
// organization profile.
package drafts

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/a3tai/mcp-grant-filler/internal/grant"
	"github.com/a3tai/mcp-grant-filler/internal/llm"
)

// Defaults for batching model calls
const (
	DefaultBatchSize  = 5
	DefaultBatchDelay = 200 * time.Millisecond
)

// Insufficient is the reply that marks a question the profile cannot answer
const Insufficient = "INSUFFICIENT_INFO"

const (
	maxSectionChars = 800
	draftMaxTokens  = 4000
)

// Draft is the generated answer for one question
type Draft struct {
	Answer           grant.Answer
	NeedsManualInput bool
}

// Generator drafts answers with a language model
type Generator struct {
	client     llm.Client
	batchSize  int
	batchDelay time.Duration
	logger     *zap.Logger
}

// NewGenerator creates a draft generator
func NewGenerator(client llm.Client, batchSize int, batchDelay time.Duration, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if batchDelay <= 0 {
		batchDelay = DefaultBatchDelay
	}
	return &Generator{client: client, batchSize: batchSize, batchDelay: batchDelay, logger: logger}
}

// Generate drafts every question of g and marks the grant ready. Questions
// are answered in batches; a failed question gets an empty answer flagged
// for manual input rather than failing the grant.
func (gen *Generator) Generate(ctx context.Context, g *grant.Grant, profile grant.OrganizationProfile) error {
	if gen.client == nil {
		return grant.NewError(grant.KindInvalidInput, "generate drafts", "no language model configured", llm.ErrNotConfigured)
	}

	logger := gen.logger.With(zap.String("grant_id", g.ID))
	profileText := profilePrompt(profile)
	manual := 0

	for start := 0; start < len(g.Responses); start += gen.batchSize {
		if start > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(gen.batchDelay):
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		end := min(start+gen.batchSize, len(g.Responses))
		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(q *grant.Question) {
				defer wg.Done()
				d := gen.Draft(ctx, *q, profileText)
				q.Answer = d.Answer
				q.NeedsManualInput = d.NeedsManualInput
			}(&g.Responses[i])
		}
		wg.Wait()
	}

	for _, q := range g.Responses {
		if q.NeedsManualInput {
			manual++
		}
	}
	g.Status = grant.StatusReady
	logger.Info("drafts generated",
		zap.Int("questions", len(g.Responses)),
		zap.Int("needs_manual_input", manual))
	return nil
}

// Draft answers one question. profileText is the rendered profile block.
func (gen *Generator) Draft(ctx context.Context, q grant.Question, profileText string) Draft {
	reply, err := gen.client.Generate(ctx, llm.Request{
		Prompt:    profileText + questionPrompt(q),
		MaxTokens: draftMaxTokens,
	})
	if err != nil {
		gen.logger.Warn("draft request failed", zap.String("question_id", q.ID), zap.Error(err))
		return Draft{Answer: q.EmptyAnswer(), NeedsManualInput: true}
	}
	return Interpret(q, reply)
}

// Interpret turns a model reply into an answer of the question's type
func Interpret(q grant.Question, reply string) Draft {
	text := strings.TrimSpace(reply)
	if isInsufficient(text) {
		return Draft{Answer: q.EmptyAnswer(), NeedsManualInput: true}
	}

	options := q.EffectiveOptions()
	switch q.Type {
	case grant.TypeMultiChoice:
		picked, ok := parseChoices(text, options)
		if !ok {
			return Draft{Answer: grant.ListAnswer(), NeedsManualInput: true}
		}
		return Draft{Answer: grant.ListAnswer(picked...)}

	case grant.TypeSingleChoice, grant.TypeYesNo:
		lower := strings.ToLower(text)
		for _, opt := range options {
			if strings.Contains(lower, strings.ToLower(opt)) {
				return Draft{Answer: grant.TextAnswer(opt)}
			}
		}
		return Draft{Answer: grant.TextAnswer(text), NeedsManualInput: true}
	}

	if q.CharLimit > 0 {
		text = truncate(text, q.CharLimit)
	}
	return Draft{Answer: grant.TextAnswer(text)}
}

func isInsufficient(text string) bool {
	upper := strings.ToUpper(text)
	return upper == Insufficient || (len(text) < 50 && strings.Contains(upper, "INSUFFICIENT"))
}

// parseChoices reads a JSON array of option texts, keeping the ones that
// are exactly allowed
func parseChoices(text string, options []string) ([]string, bool) {
	start, end := strings.Index(text, "["), strings.LastIndex(text, "]")
	if start < 0 || end <= start {
		return nil, false
	}
	var raw []string
	if err := json.Unmarshal([]byte(text[start:end+1]), &raw); err != nil {
		return nil, false
	}

	allowed := make(map[string]bool, len(options))
	for _, o := range options {
		allowed[o] = true
	}
	picked := make([]string, 0, len(raw))
	for _, r := range raw {
		if allowed[r] {
			picked = append(picked, r)
		}
	}
	return picked, true
}

func profilePrompt(p grant.OrganizationProfile) string {
	orDefault := func(s string) string {
		if strings.TrimSpace(s) == "" {
			return "Not provided"
		}
		return s
	}

	var b strings.Builder
	b.WriteString("You are helping draft a grant application answer based on the organization's profile information.\n\n")
	b.WriteString("Organization Profile:\n")
	fmt.Fprintf(&b, "- Legal Name: %s\n", orDefault(p.LegalName))
	fmt.Fprintf(&b, "- Mission: %s\n", orDefault(p.MissionShort))
	if p.MissionLong != "" {
		fmt.Fprintf(&b, "- Detailed Mission: %s\n", p.MissionLong)
	}
	if p.Address != "" {
		fmt.Fprintf(&b, "- Address: %s\n", p.Address)
	}

	wroteHeader := false
	for _, s := range p.ExtraSections {
		if s.Title == "" || s.Content == "" {
			continue
		}
		if !wroteHeader {
			b.WriteString("\nAdditional Information:\n")
			wroteHeader = true
		}
		content := s.Content
		if len(content) > maxSectionChars {
			content = truncate(content, maxSectionChars) + "..."
		}
		fmt.Fprintf(&b, "\n%s:\n%s\n", s.Title, content)
	}
	return b.String()
}

func questionPrompt(q grant.Question) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\nQuestion: %s\nQuestion Type: %s\n", q.Text, q.Type)
	if opts := q.EffectiveOptions(); len(opts) > 0 {
		b.WriteString("Available Options:\n")
		for i, o := range opts {
			fmt.Fprintf(&b, "%d. %s\n", i+1, o)
		}
	}
	if q.CharLimit > 0 {
		fmt.Fprintf(&b, "Character Limit: %d\n", q.CharLimit)
	}

	b.WriteString(`
RULES:
- Answer directly as if you are the organization filling out this application
- For factual questions (names, numbers, dates, contact info, EIN, specific amounts): respond "INSUFFICIENT_INFO" if not explicitly stated
- For descriptive questions: craft answers based on the mission and information provided
- Do NOT include meta-commentary like "based on the profile" or "according to the information"
- Do NOT invent specific facts, numbers, dates, names, or contact information
- Write in first person as the organization (e.g., "Our mission is..." not "The organization's mission is...")
`)

	switch q.Type {
	case grant.TypeSingleChoice:
		b.WriteString("\nIf you can answer: Select EXACTLY ONE option. Return ONLY the exact option text, nothing else.")
	case grant.TypeMultiChoice:
		b.WriteString("\nIf you can answer: Select one or more options. Return ONLY a JSON array: [\"Option 1\",\"Option 2\"]")
	case grant.TypeYesNo:
		b.WriteString("\nIf you can answer: Respond with EXACTLY \"Yes\" or \"No\", nothing else.")
	case grant.TypeNumber:
		b.WriteString("\nIf you have the exact number: Provide ONLY the numeric value, nothing else.")
	case grant.TypeDate:
		b.WriteString("\nIf you have the date: Provide in YYYY-MM-DD format only.")
	default:
		b.WriteString("\nIf you can answer: Write a direct, professional response as the organization. No meta-commentary.")
	}
	b.WriteString("\nOtherwise: Respond with \"" + Insufficient + "\"")
	return b.String()
}

// truncate cuts s to at most limit runes
func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
