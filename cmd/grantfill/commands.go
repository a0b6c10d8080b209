package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/a3tai/mcp-grant-filler/internal/config"
	"github.com/a3tai/mcp-grant-filler/internal/grant"
	"github.com/a3tai/mcp-grant-filler/internal/logging"
	"github.com/a3tai/mcp-grant-filler/internal/match"
	"github.com/a3tai/mcp-grant-filler/internal/pdf/extraction"
	"github.com/a3tai/mcp-grant-filler/internal/pdf/formfill"
	"github.com/a3tai/mcp-grant-filler/internal/source"
	"github.com/a3tai/mcp-grant-filler/internal/webfill"
	"github.com/a3tai/mcp-grant-filler/internal/webfill/browser"
	"github.com/a3tai/mcp-grant-filler/internal/webfill/dom"
)

// flagSet creates a subcommand flag set with the logging flags every
// command shares
func (a *app) flagSet(name string) (*pflag.FlagSet, *string) {
	f := pflag.NewFlagSet(name, pflag.ContinueOnError)
	f.SetOutput(a.stderr)
	level := f.String("log-level", "warn", "Log level (debug, info, warn, error)")
	return f, level
}

func (a *app) logger(level string) (*zap.Logger, error) {
	return logging.New(level, "console")
}

// target parses args and returns the single positional argument
func target(f *pflag.FlagSet, args []string, what string) (string, error) {
	if err := f.Parse(args); err != nil {
		return "", err
	}
	if f.NArg() != 1 {
		return "", fmt.Errorf("expected exactly one %s, got %d arguments", what, f.NArg())
	}
	return f.Arg(0), nil
}

func runFields(_ context.Context, a *app, args []string) error {
	f, level := a.flagSet("fields")
	format := f.String("format", "text", "Output format: text, json")
	path, err := target(f, args, "PDF file")
	if errors.Is(err, pflag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}
	logger, err := a.logger(*level)
	if err != nil {
		return err
	}

	fields, err := extraction.NewExtractor(logger).ExtractFromFile(path)
	if err != nil {
		return fmt.Errorf("failed to read form fields: %w", err)
	}

	switch *format {
	case "json":
		return a.writeJSON(fields)
	case "text":
		if len(fields) == 0 {
			fmt.Fprintf(a.stdout, "%s has no form fields\n", path)
			return nil
		}
		w := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tTYPE\tVALUE\tOPTIONS\tFLAGS")
		for _, field := range fields {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				field.Name, field.Type, field.Value, strings.Join(field.Options, "|"), fieldFlags(field))
		}
		return w.Flush()
	default:
		return fmt.Errorf("unknown format %q", *format)
	}
}

func fieldFlags(f extraction.Field) string {
	var flags []string
	if f.Required {
		flags = append(flags, "required")
	}
	if f.ReadOnly {
		flags = append(flags, "read-only")
	}
	if f.MaxLen > 0 {
		flags = append(flags, fmt.Sprintf("max %d", f.MaxLen))
	}
	return strings.Join(flags, ",")
}

func runFillPDF(ctx context.Context, a *app, args []string) error {
	f, level := a.flagSet("fill-pdf")
	questionsPath := f.String("questions", "", "JSON file with the questions and answers (a grant record or a list of questions)")
	out := f.String("out", "", "Where to write the filled PDF")
	threshold := f.Float64("pdf-threshold", match.DefaultPDFThreshold, "Minimum field name score to fill a PDF field")
	path, err := target(f, args, "PDF file")
	if errors.Is(err, pflag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}
	if *out == "" {
		return errors.New("--out is required")
	}
	logger, err := a.logger(*level)
	if err != nil {
		return err
	}

	questions, err := readQuestions(*questionsPath)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read PDF: %w", err)
	}

	thresholds := match.DefaultThresholds()
	thresholds.PDF = *threshold
	res, err := formfill.New(thresholds, logger).Fill(ctx, data, questions)
	if err != nil {
		return err
	}
	if !res.Filled {
		fmt.Fprintf(a.stdout, "Nothing filled: %d form field(s) found, none matched a question\n", res.FieldsFound)
		return nil
	}
	if err := os.WriteFile(*out, res.Bytes, 0o600); err != nil {
		return fmt.Errorf("failed to write filled PDF: %w", err)
	}

	fmt.Fprintf(a.stdout, "Filled %d of %d field(s) into %s\n", len(res.Mappings), res.FieldsFound, *out)
	for _, m := range res.Mappings {
		fmt.Fprintf(a.stdout, "  %s <- %q (confidence %.2f)\n", m.Selector, m.Answer, m.Confidence)
	}
	return nil
}

func runFillWeb(ctx context.Context, a *app, args []string) error {
	f, level := a.flagSet("fill-web")
	questionsPath := f.String("questions", "", "JSON file with the questions and answers (a grant record or a list of questions)")
	surfaceName := f.String("surface", config.SurfaceStatic, "Form surface: browser, static")
	maxPages := f.Int("max-pages", webfill.DefaultMaxPages, "Maximum pages to walk")
	headless := f.Bool("headless", true, "Run the browser without a window")
	highlight := f.Bool("highlight", false, "Outline filled fields in the browser")
	timeout := f.Duration("timeout", 60*time.Second, "Page load timeout")
	dump := f.String("dump", "", "Write the filled page markup to this file (static surface only)")
	formURL, err := target(f, args, "URL")
	if errors.Is(err, pflag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}
	logger, err := a.logger(*level)
	if err != nil {
		return err
	}

	questions, err := readQuestions(*questionsPath)
	if err != nil {
		return err
	}

	var (
		surface webfill.Surface
		static  *dom.Surface
	)
	switch *surfaceName {
	case config.SurfaceStatic:
		static = dom.New(dom.FileLoader{Next: dom.NewHTTPLoader(*timeout)}, logger)
		surface = static
	case config.SurfaceBrowser:
		launcher := browser.NewLauncher(browser.Options{
			Headless:          *headless,
			InstallDriver:     true,
			NavigationTimeout: *timeout,
			Highlight:         *highlight,
		}, logger)
		defer launcher.Close()
		bs, err := launcher.NewSurface(ctx)
		if err != nil {
			return fmt.Errorf("failed to start browser: %w", err)
		}
		surface = bs
	default:
		return fmt.Errorf("unknown surface %q", *surfaceName)
	}
	defer surface.Close()

	cfg := webfill.Config{
		MaxPages:    *maxPages,
		WritePause:  webfill.DefaultWritePause,
		SettleDelay: webfill.DefaultSettleDelay,
	}
	if static != nil {
		cfg.WritePause, cfg.SettleDelay = 0, 0
	}
	report, err := webfill.NewEngine(cfg, logger).Fill(ctx, surface, formURL, questions)
	if err != nil {
		return err
	}

	if *dump != "" {
		if static == nil {
			return errors.New("--dump needs the static surface")
		}
		markup, err := static.Content(ctx)
		if err != nil {
			return err
		}
		if err := os.WriteFile(*dump, []byte(markup), 0o600); err != nil {
			return fmt.Errorf("failed to write page markup: %w", err)
		}
	}
	return a.writeJSON(report)
}

func runRead(_ context.Context, a *app, args []string) error {
	f, level := a.flagSet("read")
	maxSize := f.Int64("max-file-size", config.DefaultMaxFileSize, "Maximum document size in bytes")
	path, err := target(f, args, "document")
	if errors.Is(err, pflag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}
	logger, err := a.logger(*level)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read document: %w", err)
	}
	doc, err := source.NewReader(*maxSize, logger).Read(path, data)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "%s document, %d chunk(s)\n", doc.Kind, len(doc.Chunks))
	for i, chunk := range doc.Chunks {
		fmt.Fprintf(a.stdout, "\n--- chunk %d ---\n%s\n", i+1, chunk)
	}
	return nil
}

// readQuestions loads questions from a grant record or a bare question list
func readQuestions(path string) ([]grant.Question, error) {
	if path == "" {
		return nil, errors.New("--questions is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read questions: %w", err)
	}

	var questions []grant.Question
	if strings.HasPrefix(strings.TrimSpace(string(data)), "[") {
		if err := json.Unmarshal(data, &questions); err != nil {
			return nil, fmt.Errorf("failed to parse questions: %w", err)
		}
	} else {
		var g grant.Grant
		if err := json.Unmarshal(data, &g); err != nil {
			return nil, fmt.Errorf("failed to parse grant record: %w", err)
		}
		questions = g.Responses
	}
	for _, q := range questions {
		if err := q.Validate(); err != nil {
			return nil, err
		}
	}
	return questions, nil
}

func (a *app) writeJSON(v any) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
