// Package service orchestrates grant records, question extraction, draft
// generation and form filling behind one facade used by the MCP server and
// the CLI.
package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/a3tai/mcp-grant-filler/internal/descriptions"
	"github.com/a3tai/mcp-grant-filler/internal/drafts"
	"github.com/a3tai/mcp-grant-filler/internal/grant"
	"github.com/a3tai/mcp-grant-filler/internal/match"
	"github.com/a3tai/mcp-grant-filler/internal/pdf/extraction"
	"github.com/a3tai/mcp-grant-filler/internal/pdf/formfill"
	"github.com/a3tai/mcp-grant-filler/internal/pdf/security"
	"github.com/a3tai/mcp-grant-filler/internal/questions"
	"github.com/a3tai/mcp-grant-filler/internal/source"
	"github.com/a3tai/mcp-grant-filler/internal/storage"
	"github.com/a3tai/mcp-grant-filler/internal/webfill"
	"github.com/a3tai/mcp-grant-filler/internal/webfill/dom"
)

// Info describes the running server
type Info struct {
	ServerName      string           `json:"server_name"`
	Version         string           `json:"version"`
	Surface         string           `json:"surface"`
	GrantStore      string           `json:"grant_store"`
	ObjectStore     string           `json:"object_store"`
	ModelConfigured bool             `json:"model_configured"`
	MaxPages        int              `json:"max_pages"`
	MaxFileSize     int64            `json:"max_file_size"`
	Thresholds      match.Thresholds `json:"thresholds"`
	Tools           []ToolInfo       `json:"tools,omitempty"`
}

// ToolInfo names one MCP tool
type ToolInfo struct {
	Name    string `json:"name"`
	Summary string `json:"summary"`
}

// Deps are the collaborators of a Service. Grants, Objects, Engine and
// Surfaces are required.
type Deps struct {
	Grants    storage.GrantStore
	Objects   storage.ObjectStore
	Engine    *webfill.Engine
	PDF       *formfill.Filler
	Fields    *extraction.Extractor
	Sources   *source.Reader
	Questions *questions.Extractor
	Drafts    *drafts.Generator
	Surfaces  Surfaces
	// Fetch downloads grant documents referenced by URL
	Fetch dom.Loader
	// Paths bounds the files PDFFields may read
	Paths *security.PathValidator
	Info  Info
	Now   func() time.Time
}

// Service is the grant filler facade
type Service struct {
	Deps
	closers []func() error
	logger  *zap.Logger
}

// New creates a service
func New(deps Deps, logger *zap.Logger) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch {
	case deps.Grants == nil:
		return nil, fmt.Errorf("grant store cannot be nil")
	case deps.Objects == nil:
		return nil, fmt.Errorf("object store cannot be nil")
	case deps.Engine == nil:
		return nil, fmt.Errorf("fill engine cannot be nil")
	case deps.Surfaces == nil:
		return nil, fmt.Errorf("surface factory cannot be nil")
	}
	if deps.PDF == nil {
		deps.PDF = formfill.New(deps.Engine.Config().Thresholds, logger)
	}
	if deps.Fields == nil {
		deps.Fields = extraction.NewExtractor(logger)
	}
	if deps.Sources == nil {
		deps.Sources = source.NewReader(deps.Info.MaxFileSize, logger)
	}
	if deps.Questions == nil {
		q, err := questions.NewExtractor(nil, questions.Config{}, logger)
		if err != nil {
			return nil, err
		}
		deps.Questions = q
	}
	if deps.Drafts == nil {
		deps.Drafts = drafts.NewGenerator(nil, 0, 0, logger)
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Service{Deps: deps, logger: logger}, nil
}

// OnClose registers a cleanup run by Close, in reverse order
func (s *Service) OnClose(fn func() error) {
	s.closers = append(s.closers, fn)
}

// Close releases the store and anything registered with OnClose
func (s *Service) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.Grants.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// GetGrant loads a grant record
func (s *Service) GetGrant(ctx context.Context, id string) (*grant.Grant, error) {
	if err := storage.ValidateID(id); err != nil {
		return nil, grant.NewError(grant.KindInvalidInput, "get grant", err.Error(), nil)
	}
	g, err := s.Grants.GetGrant(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, grant.NewError(grant.KindNotFound, "get grant", "grant "+id+" not found", err)
	}
	if err != nil {
		return nil, err
	}
	return g, nil
}

// ListGrants returns every grant record
func (s *Service) ListGrants(ctx context.Context) ([]*grant.Grant, error) {
	return s.Grants.ListGrants(ctx)
}

// SaveGrant validates, stamps and upserts a grant record. A missing status
// becomes draft.
func (s *Service) SaveGrant(ctx context.Context, g *grant.Grant) (*grant.Grant, error) {
	if g == nil {
		return nil, grant.NewError(grant.KindInvalidInput, "save grant", "grant is required", nil)
	}
	if g.Status == "" {
		g.Status = grant.StatusDraft
	}
	if err := g.Validate(); err != nil {
		return nil, grant.NewError(grant.KindInvalidInput, "save grant", err.Error(), nil)
	}
	if err := storage.ValidateID(g.ID); err != nil {
		return nil, grant.NewError(grant.KindInvalidInput, "save grant", err.Error(), nil)
	}
	return g, s.put(ctx, g)
}

func (s *Service) put(ctx context.Context, g *grant.Grant) error {
	g.Touch(s.Now().UTC())
	if err := s.Grants.PutGrant(ctx, g); err != nil {
		return fmt.Errorf("failed to save grant %s: %w", g.ID, err)
	}
	return nil
}

// GetProfile loads the organization profile. A profile that was never
// saved comes back empty.
func (s *Service) GetProfile(ctx context.Context) (*grant.OrganizationProfile, error) {
	p, err := s.Grants.GetProfile(ctx, grant.DefaultOrgID)
	if errors.Is(err, storage.ErrNotFound) {
		return &grant.OrganizationProfile{OrgID: grant.DefaultOrgID}, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// SaveProfile upserts the organization profile
func (s *Service) SaveProfile(ctx context.Context, p *grant.OrganizationProfile) (*grant.OrganizationProfile, error) {
	if p == nil {
		return nil, grant.NewError(grant.KindInvalidInput, "save profile", "profile is required", nil)
	}
	if p.OrgID == "" {
		p.OrgID = grant.DefaultOrgID
	}
	if err := storage.ValidateID(p.OrgID); err != nil {
		return nil, grant.NewError(grant.KindInvalidInput, "save profile", err.Error(), nil)
	}
	if err := s.Grants.PutProfile(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to save profile: %w", err)
	}
	return p, nil
}

// ServerInfo describes the server and its tools
func (s *Service) ServerInfo() Info {
	info := s.Info
	info.Thresholds = s.Engine.Config().Thresholds
	info.MaxPages = s.Engine.Config().MaxPages
	info.Surface = s.Surfaces.Name()

	names := descriptions.GetAllToolNames()
	sort.Strings(names)
	info.Tools = make([]ToolInfo, 0, len(names))
	for _, name := range names {
		info.Tools = append(info.Tools, ToolInfo{Name: name, Summary: descriptions.GetToolSummary(name)})
	}
	return info
}
