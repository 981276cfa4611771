// Package local implements a filesystem-backed result store for completed
// crawls.
package local

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/boqlabs/catalog-crawler/internal/catalog"
)

// Config captures the parameters for the local result store.
type Config struct {
	// BaseDir is the root directory where crawl records are stored.
	BaseDir string `mapstructure:"base_dir" yaml:"base_dir"`
}

// ResultStore persists completed crawls as JSON files keyed by sanitized
// brand name plus timestamp.
type ResultStore struct {
	baseDir string
}

// New creates a filesystem-backed result store, creating the base directory
// when missing and verifying it is writable.
func New(cfg Config) (*ResultStore, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}

	info, err := os.Stat(cfg.BaseDir)
	switch {
	case os.IsNotExist(err):
		if mkErr := os.MkdirAll(cfg.BaseDir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("create base directory: %w", mkErr)
		}
	case err != nil:
		return nil, fmt.Errorf("stat base directory: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("base directory path is not a directory")
	}

	probe := filepath.Join(cfg.BaseDir, ".writable_test")
	if err := os.WriteFile(probe, []byte("test"), 0o600); err != nil {
		return nil, fmt.Errorf("base directory is not writable: %w", err)
	}
	if err := os.Remove(probe); err != nil {
		return nil, fmt.Errorf("clean up probe file: %w", err)
	}

	return &ResultStore{baseDir: cfg.BaseDir}, nil
}

// Save writes the record and returns its derived key.
func (s *ResultStore) Save(_ context.Context, brandName string, result catalog.SavedResult) (string, error) {
	key := DeriveKey(brandName, result.ScrapedAt)
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal result: %w", err)
	}
	if err := os.WriteFile(s.pathFor(key), data, 0o600); err != nil {
		return "", fmt.Errorf("write result: %w", err)
	}
	return key, nil
}

// List returns every saved key, sorted.
func (s *ResultStore) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("read base directory: %w", err)
	}
	var keys []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		keys = append(keys, strings.TrimSuffix(entry.Name(), ".json"))
	}
	sort.Strings(keys)
	return keys, nil
}

// Get loads one saved record by key.
func (s *ResultStore) Get(_ context.Context, key string) (catalog.SavedResult, error) {
	data, err := os.ReadFile(s.pathFor(key))
	if os.IsNotExist(err) {
		return catalog.SavedResult{}, catalog.ErrNotFound
	}
	if err != nil {
		return catalog.SavedResult{}, fmt.Errorf("read result: %w", err)
	}
	var result catalog.SavedResult
	if err := json.Unmarshal(data, &result); err != nil {
		return catalog.SavedResult{}, fmt.Errorf("unmarshal result: %w", err)
	}
	return result, nil
}

// Delete removes a saved record.
func (s *ResultStore) Delete(_ context.Context, key string) error {
	err := os.Remove(s.pathFor(key))
	if os.IsNotExist(err) {
		return catalog.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete result: %w", err)
	}
	return nil
}

func (s *ResultStore) pathFor(key string) string {
	// Keys are derived, but sanitize again in case a caller-supplied key
	// tries to escape the base directory.
	return filepath.Join(s.baseDir, filepath.Base(key)+".json")
}

// DeriveKey builds the storage key from a sanitized brand name plus
// timestamp, e.g. "herman-miller_20260831T120000".
func DeriveKey(brandName string, at time.Time) string {
	return SanitizeBrand(brandName) + "_" + at.UTC().Format("20060102T150405")
}

// SanitizeBrand lowercases the brand and collapses anything that is not a
// letter or digit into single hyphens.
func SanitizeBrand(brandName string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(strings.TrimSpace(brandName)) {
		isAlnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if isAlnum {
			b.WriteRune(r)
			lastHyphen = false
			continue
		}
		if !lastHyphen {
			b.WriteByte('-')
			lastHyphen = true
		}
	}
	out := strings.Trim(b.String(), "-")
	if out == "" {
		out = "unknown-brand"
	}
	return out
}
