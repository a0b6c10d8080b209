package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/a3tai/mcp-grant-filler/internal/grant"
)

// FileStore keeps one JSON document per record under a directory
type FileStore struct {
	dir string
	mu  sync.RWMutex
}

// NewFileStore creates a store rooted at dir, creating it if needed
func NewFileStore(dir string) (*FileStore, error) {
	for _, sub := range []string{"grants", "profiles"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(kind, id string) (string, error) {
	if err := ValidateID(id); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, kind, id+".json"), nil
}

// GetGrant implements GrantStore
func (s *FileStore) GetGrant(_ context.Context, id string) (*grant.Grant, error) {
	var g grant.Grant
	if err := s.read("grants", id, &g); err != nil {
		return nil, err
	}
	return &g, nil
}

// PutGrant implements GrantStore
func (s *FileStore) PutGrant(_ context.Context, g *grant.Grant) error {
	return s.write("grants", g.ID, g)
}

// ListGrants implements GrantStore. Records are ordered by id.
func (s *FileStore) ListGrants(_ context.Context) ([]*grant.Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(filepath.Join(s.dir, "grants"))
	if err != nil {
		return nil, fmt.Errorf("failed to list grants: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	out := make([]*grant.Grant, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(s.dir, "grants", name))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		var g grant.Grant
		if err := json.Unmarshal(data, &g); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", name, err)
		}
		out = append(out, &g)
	}
	return out, nil
}

// GetProfile implements GrantStore
func (s *FileStore) GetProfile(_ context.Context, orgID string) (*grant.OrganizationProfile, error) {
	var p grant.OrganizationProfile
	if err := s.read("profiles", orgID, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// PutProfile implements GrantStore
func (s *FileStore) PutProfile(_ context.Context, p *grant.OrganizationProfile) error {
	return s.write("profiles", p.OrgID, p)
}

// Close implements GrantStore
func (s *FileStore) Close() error { return nil }

func (s *FileStore) read(kind, id string, v any) error {
	path, err := s.path(kind, id)
	if err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to read %s %s: %w", kind, id, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode %s %s: %w", kind, id, err)
	}
	return nil
}

// write replaces the record atomically through a temporary file
func (s *FileStore) write(kind, id string, v any) error {
	path, err := s.path(kind, id)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s %s: %w", kind, id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+id+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s %s: %w", kind, id, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s %s: %w", kind, id, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s %s: %w", kind, id, err)
	}
	return nil
}
