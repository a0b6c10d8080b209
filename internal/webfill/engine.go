package webfill

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/a3tai/mcp-grant-filler/internal/grant"
	"github.com/a3tai/mcp-grant-filler/internal/match"
)

// Default engine timings
const (
	DefaultMaxPages     = 20
	DefaultFieldTimeout = 5 * time.Second
	DefaultWritePause   = 200 * time.Millisecond
	DefaultSettleDelay  = 2 * time.Second
)

// Config tunes one engine
type Config struct {
	MaxPages     int
	FieldTimeout time.Duration
	WritePause   time.Duration
	SettleDelay  time.Duration
	Thresholds   match.Thresholds

	// AdvanceWhenComplete keeps paging to the last step after every
	// question is settled, leaving an open browser where the form ends.
	AdvanceWhenComplete bool
}

// DefaultConfig returns the stock engine configuration
func DefaultConfig() Config {
	return Config{
		MaxPages:     DefaultMaxPages,
		FieldTimeout: DefaultFieldTimeout,
		WritePause:   DefaultWritePause,
		SettleDelay:  DefaultSettleDelay,
		Thresholds:   match.DefaultThresholds(),
	}
}

// Engine fills web forms. It holds configuration only, so one engine can
// serve concurrent runs against different surfaces.
type Engine struct {
	cfg     Config
	matcher *match.Matcher
	logger  *zap.Logger
}

// NewEngine creates a fill engine
func NewEngine(cfg Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = DefaultMaxPages
	}
	if cfg.FieldTimeout <= 0 {
		cfg.FieldTimeout = DefaultFieldTimeout
	}
	if cfg.Thresholds == (match.Thresholds{}) {
		cfg.Thresholds = match.DefaultThresholds()
	}
	return &Engine{
		cfg:     cfg,
		matcher: match.NewMatcher(cfg.Thresholds.Field),
		logger:  logger,
	}
}

// Config returns the engine configuration
func (e *Engine) Config() Config {
	return e.cfg
}

// Fill opens url on the surface and writes every answer it can place,
// page after page. Only a failure to open the surface is returned as an
// error; everything else ends up in the report.
func (e *Engine) Fill(ctx context.Context, s Surface, url string, questions []grant.Question) (*grant.FillReport, error) {
	r := newRun(uuid.NewString(), questions)
	logger := e.logger.With(zap.String("run_id", r.id), zap.String("url", url))

	if err := s.Open(ctx, url); err != nil {
		return nil, grant.NewError(grant.KindSurfaceUnreachable, "open", "cannot load "+url, err)
	}

	logger.Info("fill run started", zap.Int("questions", len(questions)))

	pager := &Paginator{
		MaxPages:    e.cfg.MaxPages,
		SettleDelay: e.cfg.SettleDelay,
		Logger:      logger,
	}
	pages, err := pager.Run(ctx, s, func(ctx context.Context, page int) (bool, error) {
		r.page = page
		e.scanPage(ctx, s, r, logger.With(zap.Int("page", page)))
		return r.complete() && !e.cfg.AdvanceWhenComplete, nil
	})
	if err != nil {
		return nil, err
	}
	r.page = pages

	rep := r.report()
	logger.Info("fill run finished",
		zap.Int("pages", rep.PagesVisited),
		zap.Int("filled", rep.FieldsFilled),
		zap.Int("skipped", rep.FieldsSkipped))
	return rep, nil
}

// scanPage makes one pass over every pending question against the fields
// of the current page.
func (e *Engine) scanPage(ctx context.Context, s Surface, r *run, logger *zap.Logger) {
	fields, err := s.Fields(ctx)
	if err != nil {
		logger.Warn("field extraction failed, page yields no fields", zap.Error(err))
		fields = nil
	}
	logger.Debug("fields extracted", zap.Int("count", len(fields)))

	for i, q := range r.questions {
		key := r.key(i)
		if !r.pending(key) {
			continue
		}
		if q.Answer.IsEmpty() {
			r.settle(key, q, grant.SkipEmptyAnswer)
			continue
		}

		c, ok := e.matcher.Best(q, fields)
		if !ok {
			r.note(key, q, grant.SkipNoFieldFound, "")
			continue
		}

		written, err := e.write(ctx, s, fields, q, c)
		if err != nil {
			reason := grant.SkipWriteFailed
			if grant.IsKind(err, grant.KindNoFieldFound) {
				reason = grant.SkipNoOption
			}
			r.note(key, q, reason, err.Error())
			logger.Debug("question skipped on page",
				zap.String("question_id", q.ID),
				zap.String("selector", c.Field.Selector()),
				zap.Error(err))
			continue
		}

		r.fill(key, grant.FillMapping{
			QuestionID:   q.ID,
			QuestionText: q.Text,
			Answer:       written.answer,
			Selector:     written.selector,
			Confidence:   c.Score,
			Page:         r.page,
		})
		logger.Info("field filled",
			zap.String("question_id", q.ID),
			zap.String("selector", written.selector),
			zap.Float64("confidence", c.Score))
		pause(ctx, e.cfg.WritePause)
	}
}
