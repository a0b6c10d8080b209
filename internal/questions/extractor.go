// Package questions extracts grant questions from documents and web forms
// with a language model.
package questions

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/a3tai/mcp-grant-filler/internal/grant"
	"github.com/a3tai/mcp-grant-filler/internal/llm"
	"github.com/a3tai/mcp-grant-filler/internal/match"
	"github.com/a3tai/mcp-grant-filler/internal/source"
	"github.com/a3tai/mcp-grant-filler/internal/webfill"
)

// Defaults for batching model calls
const (
	DefaultBatchSize  = 5
	DefaultBatchDelay = 200 * time.Millisecond
)

const (
	documentMaxTokens = 16000
	pageMaxTokens     = 8000
)

// Config tunes an extractor
type Config struct {
	BatchSize   int
	BatchDelay  time.Duration
	MaxPages    int
	SettleDelay time.Duration
}

// Extractor turns source chunks into questions
type Extractor struct {
	client    llm.Client
	cfg       Config
	validator *validator
	logger    *zap.Logger
}

// NewExtractor creates an extractor
func NewExtractor(client llm.Client, cfg Config, logger *zap.Logger) (*Extractor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BatchDelay <= 0 {
		cfg.BatchDelay = DefaultBatchDelay
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = webfill.DefaultMaxPages
	}
	v, err := newValidator()
	if err != nil {
		return nil, err
	}
	return &Extractor{client: client, cfg: cfg, validator: v, logger: logger}, nil
}

// FromDocument extracts the questions of a document. It never fails: when
// nothing can be extracted the fallback questions are returned.
func (e *Extractor) FromDocument(ctx context.Context, doc *source.Document) []grant.Question {
	prompt := documentPrompt
	maxTokens := int32(documentMaxTokens)
	if doc.Kind == source.KindHTML {
		prompt, maxTokens = pagePrompt, pageMaxTokens
	}
	return e.extract(ctx, doc.Chunks, prompt, maxTokens)
}

// FromWeb walks a web form page by page, following next controls up to the
// page ceiling, and extracts the questions of every page. Only a failure to
// open url is returned.
func (e *Extractor) FromWeb(ctx context.Context, s webfill.Surface, url string) ([]grant.Question, error) {
	if err := s.Open(ctx, url); err != nil {
		return nil, grant.NewError(grant.KindSurfaceUnreachable, "open", "cannot load "+url, err)
	}

	var chunks []string
	pager := &webfill.Paginator{
		MaxPages:    e.cfg.MaxPages,
		SettleDelay: e.cfg.SettleDelay,
		Logger:      e.logger.With(zap.String("url", url)),
	}
	pages, err := pager.Run(ctx, s, func(ctx context.Context, page int) (bool, error) {
		markup, err := s.Content(ctx)
		if err != nil {
			e.logger.Warn("reading page content failed", zap.Int("page", page), zap.Error(err))
			return false, nil
		}
		cleaned, err := source.CleanHTML(markup, source.MaxHTMLChars)
		if err != nil {
			e.logger.Warn("cleaning page markup failed", zap.Int("page", page), zap.Error(err))
			return false, nil
		}
		chunks = append(chunks, cleaned)
		return false, nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("web form walked", zap.String("url", url), zap.Int("pages", pages))
	return e.extract(ctx, chunks, pagePrompt, pageMaxTokens), nil
}

// extract sends chunks to the model in batches and assembles the result
func (e *Extractor) extract(ctx context.Context, chunks []string, prompt string, maxTokens int32) []grant.Question {
	if e.client == nil || len(chunks) == 0 {
		e.logger.Warn("nothing to extract from, using fallback questions", zap.Int("chunks", len(chunks)))
		return Fallback()
	}

	results := make([][]rawQuestion, len(chunks))
	for start := 0; start < len(chunks); start += e.cfg.BatchSize {
		if start > 0 && e.cfg.BatchDelay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(e.cfg.BatchDelay):
			}
		}
		if ctx.Err() != nil {
			break
		}

		end := min(start+e.cfg.BatchSize, len(chunks))
		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i] = e.extractChunk(ctx, i, chunks[i], prompt, maxTokens)
			}(i)
		}
		wg.Wait()
	}

	var raw []rawQuestion
	for _, r := range results {
		raw = append(raw, r...)
	}
	questions := build(raw)
	if len(questions) == 0 {
		e.logger.Warn("no questions extracted, using fallback questions")
		return Fallback()
	}

	e.logger.Info("questions extracted",
		zap.Int("chunks", len(chunks)),
		zap.Int("raw", len(raw)),
		zap.Int("unique", len(questions)))
	return questions
}

func (e *Extractor) extractChunk(ctx context.Context, i int, chunk, prompt string, maxTokens int32) []rawQuestion {
	logger := e.logger.With(zap.Int("chunk", i))

	reply, err := e.client.Generate(ctx, llm.Request{Prompt: prompt + chunk, JSON: true, MaxTokens: maxTokens})
	if err != nil {
		logger.Warn("question extraction request failed", zap.Error(err))
		return nil
	}
	items, err := ParseArray(reply)
	if err != nil {
		logger.Warn("unparseable extraction reply", zap.Error(err), zap.String("reply", preview(reply)))
		return nil
	}

	out := make([]rawQuestion, 0, len(items))
	for j, item := range items {
		q, err := e.validator.decode(item)
		if err != nil {
			logger.Debug("dropping invalid question", zap.Int("item", j), zap.Error(err))
			continue
		}
		out = append(out, q)
	}
	logger.Debug("chunk extracted", zap.Int("questions", len(out)))
	return out
}

// build de-duplicates by normalized question text and assigns ids and
// blank answers
func build(raw []rawQuestion) []grant.Question {
	seen := make(map[string]bool)
	var out []grant.Question
	for _, r := range raw {
		text := strings.TrimSpace(r.QuestionText)
		key := match.Normalize(text)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true

		q := grant.Question{
			ID:        uuid.NewString(),
			Text:      text,
			Type:      questionType(r),
			Options:   cleanOptions(r.Options),
			Required:  r.Required,
			CharLimit: r.CharLimit,
		}
		if (q.Type == grant.TypeSingleChoice || q.Type == grant.TypeMultiChoice) && len(q.Options) == 0 {
			q.Type = grant.TypeText
		}
		q.Answer = q.EmptyAnswer()
		out = append(out, q)
	}
	return out
}

func questionType(r rawQuestion) grant.QuestionType {
	t := grant.QuestionType(strings.ToLower(strings.TrimSpace(r.Type)))
	if t == "" || !t.Valid() {
		return grant.TypeTextarea
	}
	return t
}

func cleanOptions(options []string) []string {
	var out []string
	for _, o := range options {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// Fallback returns the generic questions used when extraction yields
// nothing
func Fallback() []grant.Question {
	texts := []string{
		"Describe your organization and its mission.",
		"What is the purpose of this grant request?",
		"How will the funds be used?",
	}
	out := make([]grant.Question, len(texts))
	for i, text := range texts {
		out[i] = grant.Question{
			ID:     uuid.NewString(),
			Text:   text,
			Type:   grant.TypeTextarea,
			Answer: grant.TextAnswer(""),
		}
	}
	return out
}

func preview(s string) string {
	const n = 200
	if len(s) <= n {
		return s
	}
	return fmt.Sprintf("%s... (%d bytes)", s[:n], len(s))
}
