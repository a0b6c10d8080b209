package service

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/a3tai/mcp-grant-filler/internal/grant"
	"github.com/a3tai/mcp-grant-filler/internal/metrics"
	"github.com/a3tai/mcp-grant-filler/internal/source"
)

var contentTypes = map[source.Kind]string{
	source.KindPDF:  "application/pdf",
	source.KindDOCX: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	source.KindHTML: "text/html",
}

var sourceTypes = map[source.Kind]grant.SourceType{
	source.KindPDF:  grant.SourcePDF,
	source.KindDOCX: grant.SourceDOCX,
	source.KindHTML: grant.SourceWeb,
}

// ExtractQuestions replaces a grant's questions with the ones found in its
// source. The stored source file wins; otherwise a grant URL pointing at a
// PDF or DOCX is downloaded and stored first, and any other URL is walked
// as a web form.
func (s *Service) ExtractQuestions(ctx context.Context, grantID string) (*grant.Grant, error) {
	g, err := s.GetGrant(ctx, grantID)
	if err != nil {
		return nil, err
	}
	logger := s.logger.With(zap.String("grant_id", g.ID))

	if g.SourceFileKey == "" {
		if kind, ok := documentKind(g.GrantURL); ok {
			if err := s.download(ctx, g, kind); err != nil {
				logger.Warn("downloading grant document failed, walking the page instead", zap.Error(err))
			}
		}
	}

	var qs []grant.Question
	if g.SourceFileKey != "" {
		data, err := s.Objects.Get(ctx, g.SourceFileKey)
		if err != nil {
			return nil, fmt.Errorf("failed to download source file %s: %w", g.SourceFileKey, err)
		}
		doc, err := s.Sources.Read(g.SourceFileKey, data)
		if err != nil {
			return nil, err
		}
		qs = s.Questions.FromDocument(ctx, doc)
		g.SourceType = sourceTypes[doc.Kind]
	} else {
		target := strings.TrimSpace(g.GrantURL)
		if target == "" {
			return nil, grant.NewError(grant.KindInvalidInput, "extract questions", "grant "+g.ID+" has no source file or grant_url", nil)
		}
		surface, err := s.Surfaces.NewSurface(ctx)
		if err != nil {
			return nil, grant.NewError(grant.KindSurfaceUnreachable, "extract questions", "cannot start surface", err)
		}
		defer surface.Close()
		qs, err = s.Questions.FromWeb(ctx, surface, target)
		if err != nil {
			return nil, err
		}
		g.SourceType = grant.SourceWeb
	}

	g.Responses = qs
	if err := s.put(ctx, g); err != nil {
		return nil, err
	}
	logger.Info("questions extracted", zap.Int("questions", len(qs)), zap.String("source_type", string(g.SourceType)))
	return g, nil
}

// download fetches the grant URL into the object store and records it as
// the grant's source file
func (s *Service) download(ctx context.Context, g *grant.Grant, kind source.Kind) error {
	if s.Fetch == nil {
		return fmt.Errorf("no document fetcher configured")
	}
	data, err := s.Fetch.Load(ctx, g.GrantURL)
	if err != nil {
		return err
	}
	key := fmt.Sprintf("grants/%s.%s", uuid.NewString(), kind)
	if err := s.Objects.Put(ctx, key, data, contentTypes[kind]); err != nil {
		return err
	}
	g.SourceFileKey = key
	return nil
}

// documentKind reports whether rawURL names a PDF or DOCX document
func documentKind(rawURL string) (source.Kind, bool) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Path == "" {
		return "", false
	}
	switch strings.ToLower(path.Ext(u.Path)) {
	case ".pdf":
		return source.KindPDF, true
	case ".docx":
		return source.KindDOCX, true
	}
	return "", false
}

// GenerateDrafts writes draft answers for every question of a grant from
// the organization profile and marks the grant ready
func (s *Service) GenerateDrafts(ctx context.Context, grantID string) (*grant.Grant, error) {
	g, err := s.GetGrant(ctx, grantID)
	if err != nil {
		return nil, err
	}
	profile, err := s.GetProfile(ctx)
	if err != nil {
		return nil, err
	}

	err = s.Drafts.Generate(ctx, g, *profile)
	metrics.ObserveModel("drafts", err)
	if err != nil {
		return nil, err
	}
	if err := s.put(ctx, g); err != nil {
		return nil, err
	}
	return g, nil
}
