// Package storage persists grant records, the organization profile, and
// source and export documents.
package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/a3tai/mcp-grant-filler/internal/grant"
)

// ErrNotFound is returned when a record or object does not exist
var ErrNotFound = errors.New("not found")

// GrantStore persists grant records and organization profiles
type GrantStore interface {
	GetGrant(ctx context.Context, id string) (*grant.Grant, error)
	PutGrant(ctx context.Context, g *grant.Grant) error
	ListGrants(ctx context.Context) ([]*grant.Grant, error)
	GetProfile(ctx context.Context, orgID string) (*grant.OrganizationProfile, error)
	PutProfile(ctx context.Context, p *grant.OrganizationProfile) error
	Close() error
}

var idPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// ValidateID rejects ids that are empty or could escape a key namespace
func ValidateID(id string) error {
	if !idPattern.MatchString(id) || id == "." || id == ".." {
		return fmt.Errorf("invalid id %q", id)
	}
	return nil
}
