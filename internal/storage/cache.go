package storage

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/a3tai/mcp-grant-filler/internal/grant"
)

// CachedStore is a read-through grant cache in front of another store.
// Cached records are copied on the way in and out.
type CachedStore struct {
	GrantStore
	grants *lru.Cache[string, *grant.Grant]
}

// NewCachedStore wraps next with an LRU cache of size grants
func NewCachedStore(next GrantStore, size int) (*CachedStore, error) {
	if size <= 0 {
		size = 256
	}
	cache, err := lru.New[string, *grant.Grant](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create grant cache: %w", err)
	}
	return &CachedStore{GrantStore: next, grants: cache}, nil
}

// GetGrant implements GrantStore
func (s *CachedStore) GetGrant(ctx context.Context, id string) (*grant.Grant, error) {
	if g, ok := s.grants.Get(id); ok {
		return g.Clone(), nil
	}
	g, err := s.GrantStore.GetGrant(ctx, id)
	if err != nil {
		return nil, err
	}
	s.grants.Add(id, g.Clone())
	return g, nil
}

// PutGrant implements GrantStore
func (s *CachedStore) PutGrant(ctx context.Context, g *grant.Grant) error {
	if err := s.GrantStore.PutGrant(ctx, g); err != nil {
		s.grants.Remove(g.ID)
		return err
	}
	s.grants.Add(g.ID, g.Clone())
	return nil
}
