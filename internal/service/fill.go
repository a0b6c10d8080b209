package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/a3tai/mcp-grant-filler/internal/grant"
	"github.com/a3tai/mcp-grant-filler/internal/metrics"
	"github.com/a3tai/mcp-grant-filler/internal/pdf/extraction"
	"github.com/a3tai/mcp-grant-filler/internal/storage"
	"github.com/a3tai/mcp-grant-filler/internal/webfill"
)

// FillWebRequest asks for a web fill of a stored grant
type FillWebRequest struct {
	GrantID string
	// URL overrides the grant's fill target
	URL string
	// MaxPages overrides the configured page ceiling when positive
	MaxPages int
}

// ExportResult is the outcome of a PDF export
type ExportResult struct {
	Filled        bool                `json:"filled"`
	ExportFileKey string              `json:"export_file_key,omitempty"`
	DownloadURL   string              `json:"download_url,omitempty"`
	FieldsFound   int                 `json:"fields_found"`
	Mappings      []grant.FillMapping `json:"mappings,omitempty"`
}

// PDFFieldsResult lists the form fields of a PDF
type PDFFieldsResult struct {
	Path   string             `json:"path"`
	Fields []extraction.Field `json:"fields"`
}

// FillWeb fills a grant's web form. A run that writes at least one field
// marks the grant filled.
func (s *Service) FillWeb(ctx context.Context, req FillWebRequest) (*grant.FillReport, error) {
	g, err := s.GetGrant(ctx, req.GrantID)
	if err != nil {
		return nil, err
	}
	target := strings.TrimSpace(req.URL)
	if target == "" {
		target = g.FillTarget()
	}
	if target == "" {
		return nil, grant.NewError(grant.KindInvalidInput, "fill web", "grant "+g.ID+" has no portal_url or grant_url", nil)
	}

	// a request can lower the page ceiling, never raise it
	engine := s.Engine
	if req.MaxPages > 0 && req.MaxPages < engine.Config().MaxPages {
		cfg := engine.Config()
		cfg.MaxPages = req.MaxPages
		engine = webfill.NewEngine(cfg, s.logger)
	}

	surface, err := s.Surfaces.NewSurface(ctx)
	if err != nil {
		return nil, grant.NewError(grant.KindSurfaceUnreachable, "fill web", "cannot start surface", err)
	}
	defer func() {
		if err := surface.Close(); err != nil {
			s.logger.Warn("closing surface failed", zap.Error(err))
		}
	}()

	start := time.Now()
	report, err := engine.Fill(ctx, surface, target, g.Responses)
	metrics.ObserveFill(s.Surfaces.Name(), report, err, time.Since(start))
	if err != nil {
		return nil, err
	}

	if report.FieldsFilled > 0 && g.Status != grant.StatusSubmitted {
		g.Status = grant.StatusFilled
		if err := s.put(ctx, g); err != nil {
			return nil, err
		}
	}
	return report, nil
}

// ExportPDF fills the grant's source PDF and stores the result under the
// grant's export key. When the source is not a PDF or has nothing fillable
// the result is unfilled and nothing is stored, so the caller can render a
// document of its own.
func (s *Service) ExportPDF(ctx context.Context, grantID string) (*ExportResult, error) {
	g, err := s.GetGrant(ctx, grantID)
	if err != nil {
		return nil, err
	}
	logger := s.logger.With(zap.String("grant_id", g.ID))

	if g.SourceFileKey == "" || (g.SourceType != "" && g.SourceType != grant.SourcePDF) {
		logger.Info("grant has no source PDF, export left to the caller")
		return &ExportResult{Filled: false}, nil
	}

	data, err := s.Objects.Get(ctx, g.SourceFileKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, grant.NewError(grant.KindNotFound, "export pdf", "source file "+g.SourceFileKey+" not found", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to download source file: %w", err)
	}

	start := time.Now()
	res, err := s.PDF.Fill(ctx, data, g.Responses)
	var report *grant.FillReport
	if res != nil {
		report = &grant.FillReport{FieldsFilled: len(res.Mappings), FieldsSkipped: len(g.Responses) - len(res.Mappings), Mappings: res.Mappings}
	}
	metrics.ObserveFill("pdf", report, err, time.Since(start))
	if err != nil {
		return nil, err
	}
	if !res.Filled {
		return &ExportResult{Filled: false, FieldsFound: res.FieldsFound}, nil
	}

	key := storage.ExportKey(g.ID)
	if err := s.Objects.Put(ctx, key, res.Bytes, "application/pdf"); err != nil {
		return nil, fmt.Errorf("failed to upload export: %w", err)
	}
	g.ExportFileKey = key
	if err := s.put(ctx, g); err != nil {
		return nil, err
	}
	url, err := s.Objects.URL(ctx, key, storage.PresignExpiry)
	if err != nil {
		return nil, fmt.Errorf("failed to create download link: %w", err)
	}

	logger.Info("PDF exported", zap.String("key", key), zap.Int("filled", len(res.Mappings)))
	return &ExportResult{
		Filled:        true,
		ExportFileKey: key,
		DownloadURL:   url,
		FieldsFound:   res.FieldsFound,
		Mappings:      res.Mappings,
	}, nil
}

// PDFFields lists the AcroForm fields of a PDF under the data directory
func (s *Service) PDFFields(path string) (*PDFFieldsResult, error) {
	if s.Paths == nil {
		return nil, grant.NewError(grant.KindInvalidInput, "pdf fields", "no document directory configured", nil)
	}
	resolved, err := s.Paths.Resolve(path)
	if err != nil {
		return nil, grant.NewError(grant.KindInvalidInput, "pdf fields", "security validation failed", err)
	}
	fields, err := s.Fields.ExtractFromFile(resolved)
	if err != nil {
		return nil, grant.NewError(grant.KindMalformedSource, "pdf fields", "cannot read PDF form", err)
	}
	return &PDFFieldsResult{Path: resolved, Fields: fields}, nil
}
