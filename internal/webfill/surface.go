// Package webfill drives a rendered web form: it extracts fields, matches
// them to grant questions, writes answers and pages through multi-step
// forms until no next control remains.
package webfill

import (
	"context"
	"time"

	"github.com/a3tai/mcp-grant-filler/internal/match"
)

// Option is one choice of a select, or one member of a radio/checkbox group
type Option struct {
	Index   string `json:"index"`
	Value   string `json:"value"`
	Label   string `json:"label"`
	Checked bool   `json:"checked,omitempty"`
}

// Control is a button-like element that may advance the form
type Control struct {
	Index string `json:"index"`
	Text  string `json:"text"`
}

// Surface is one rendered document the engine reads and writes. Field and
// option indexes are only valid for the page state that produced them.
type Surface interface {
	// Open loads url and waits for it to settle. Failure here is fatal.
	Open(ctx context.Context, url string) error
	// Fields returns the visible, enabled, editable controls of the page,
	// including those inside same-origin frames.
	Fields(ctx context.Context) ([]match.Field, error)
	// Options lists the options of a select, or every control sharing the
	// field's group name in the field's document.
	Options(ctx context.Context, f match.Field) ([]Option, error)
	// Fill writes a string value into a text-like, textarea or
	// contenteditable control.
	Fill(ctx context.Context, f match.Field, value string) error
	// Check checks one option of the field's radio or checkbox group.
	Check(ctx context.Context, f match.Field, opt Option) error
	// Select selects the options of a select control by value.
	Select(ctx context.Context, f match.Field, values []string) error
	// Controls returns the button-like controls of the page in document order.
	Controls(ctx context.Context) ([]Control, error)
	// Activate clicks a control.
	Activate(ctx context.Context, c Control) error
	// Settle waits for the page to finish reacting to the last action.
	Settle(ctx context.Context, d time.Duration) error
	// Content returns the current document markup.
	Content(ctx context.Context) (string, error)
	Close() error
}

// pause waits for d unless ctx ends first
func pause(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
