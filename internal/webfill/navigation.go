package webfill

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
)

// NextKeywords mark a control as advancing to the following page
var NextKeywords = []string{
	"next", "continue", "proceed", "forward", "siguiente", "suivant",
	"weiter", "avanti", "próximo", "continuar", "continuer",
}

// SubmitKeywords mark a control as final submission; such controls are
// never activated.
var SubmitKeywords = []string{"submit", "send", "enviar", "soumettre"}

// IsNextControl reports whether a control's combined text names a
// next-page action and no submit action.
func IsNextControl(text string) bool {
	lower := strings.ToLower(text)
	return containsAny(lower, NextKeywords) && !containsAny(lower, SubmitKeywords)
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// State is a pagination state
type State int

const (
	StateScanning State = iota
	StateSeekingNext
	StateNavigating
	StateDone
)

// String returns a string representation of the State
func (s State) String() string {
	switch s {
	case StateScanning:
		return "SCANNING"
	case StateSeekingNext:
		return "SEEKING_NEXT"
	case StateNavigating:
		return "NAVIGATING"
	case StateDone:
		return "DONE"
	default:
		return "UNKNOWN"
	}
}

// ScanFunc processes the current page. Returning stop ends pagination
// after this page; a non-nil error aborts it.
type ScanFunc func(ctx context.Context, page int) (stop bool, err error)

// Paginator walks a multi-page form: scan, look for a next control,
// activate it, settle, and scan again, until no next control is found or
// the page ceiling is reached.
type Paginator struct {
	MaxPages    int
	SettleDelay time.Duration
	Logger      *zap.Logger
}

// Run drives the state machine over an already opened surface and returns
// the number of pages scanned.
func (p *Paginator) Run(ctx context.Context, s Surface, scan ScanFunc) (int, error) {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	maxPages := p.MaxPages
	if maxPages < 1 {
		maxPages = 1
	}

	state := StateScanning
	page := 0
	var next Control

	for state != StateDone {
		switch state {
		case StateScanning:
			page++
			stop, err := scan(ctx, page)
			if err != nil {
				return page, err
			}
			switch {
			case stop:
				state = StateDone
			case page >= maxPages:
				logger.Info("page ceiling reached", zap.Int("page", page))
				state = StateDone
			default:
				state = StateSeekingNext
			}

		case StateSeekingNext:
			c, found := p.findNext(ctx, s, logger)
			if !found {
				logger.Debug("no next control found", zap.Int("page", page))
				state = StateDone
				break
			}
			next = c
			state = StateNavigating

		case StateNavigating:
			if err := s.Activate(ctx, next); err != nil {
				logger.Warn("next control could not be activated, treating page as last",
					zap.Int("page", page), zap.String("control", next.Text), zap.Error(err))
				state = StateDone
				break
			}
			if err := s.Settle(ctx, p.SettleDelay); err != nil {
				logger.Debug("settle did not complete", zap.Error(err))
			}
			state = StateScanning
		}
	}

	return page, nil
}

func (p *Paginator) findNext(ctx context.Context, s Surface, logger *zap.Logger) (Control, bool) {
	controls, err := s.Controls(ctx)
	if err != nil {
		logger.Warn("listing page controls failed", zap.Error(err))
		return Control{}, false
	}
	for _, c := range controls {
		if IsNextControl(c.Text) {
			return c, true
		}
	}
	return Control{}, false
}
