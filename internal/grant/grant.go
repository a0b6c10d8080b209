package grant

import (
	"fmt"
	"strings"
	"time"
)

// Status is the lifecycle state of a grant application
type Status string

const (
	StatusDraft     Status = "draft"
	StatusReady     Status = "ready"
	StatusFilled    Status = "filled"
	StatusSubmitted Status = "submitted"
)

// SourceType identifies where a grant's questions came from
type SourceType string

const (
	SourcePDF  SourceType = "pdf"
	SourceWeb  SourceType = "web"
	SourceDOCX SourceType = "docx"
)

// Grant is one grant application instance and its question/answer set
type Grant struct {
	ID            string     `json:"grant_id"`
	Name          string     `json:"grant_name"`
	GrantURL      string     `json:"grant_url,omitempty"`
	PortalURL     string     `json:"portal_url,omitempty"`
	Status        Status     `json:"status"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	Responses     []Question `json:"responses"`
	SourceType    SourceType `json:"source_type,omitempty"`
	SourceFileKey string     `json:"source_file_key,omitempty"`
	ExportFileKey string     `json:"export_file_key,omitempty"`
}

// FillTarget returns the URL a web fill should open. The portal URL wins
// because the published grant URL is often a static document.
func (g *Grant) FillTarget() string {
	if strings.TrimSpace(g.PortalURL) != "" {
		return g.PortalURL
	}
	return g.GrantURL
}

// Touch stamps the record as modified
func (g *Grant) Touch(now time.Time) {
	if g.CreatedAt.IsZero() {
		g.CreatedAt = now
	}
	g.UpdatedAt = now
}

// Validate checks the record before it is persisted
func (g *Grant) Validate() error {
	if strings.TrimSpace(g.ID) == "" {
		return fmt.Errorf("grant_id cannot be empty")
	}
	switch g.Status {
	case StatusDraft, StatusReady, StatusFilled, StatusSubmitted:
	default:
		return fmt.Errorf("grant %s: invalid status %q", g.ID, g.Status)
	}
	for _, q := range g.Responses {
		if err := q.Validate(); err != nil {
			return fmt.Errorf("grant %s: %w", g.ID, err)
		}
	}
	return nil
}

// DefaultOrgID is the key of the single organization profile
const DefaultOrgID = "default-org"

// Section is a free-form titled block of profile information
type Section struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// OrganizationProfile is the applicant information drafts are generated from
type OrganizationProfile struct {
	OrgID         string    `json:"org_id"`
	LegalName     string    `json:"legal_name"`
	MissionShort  string    `json:"mission_short"`
	MissionLong   string    `json:"mission_long,omitempty"`
	Address       string    `json:"address,omitempty"`
	ExtraSections []Section `json:"extra_sections,omitempty"`
}

// Clone returns a copy that shares no slices with g
func (g *Grant) Clone() *Grant {
	c := *g
	if g.Responses != nil {
		c.Responses = make([]Question, len(g.Responses))
		for i, q := range g.Responses {
			q.Options = append([]string(nil), q.Options...)
			c.Responses[i] = q
		}
	}
	return &c
}

// Clone returns a copy that shares no slices with p
func (p *OrganizationProfile) Clone() *OrganizationProfile {
	c := *p
	if p.ExtraSections != nil {
		c.ExtraSections = append([]Section{}, p.ExtraSections...)
	}
	return &c
}
