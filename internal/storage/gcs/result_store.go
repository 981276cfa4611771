// Package gcs provides a ResultStore backed by Google Cloud Storage.
package gcs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/boqlabs/catalog-crawler/internal/catalog"
	"github.com/boqlabs/catalog-crawler/internal/storage/local"
)

// Config captures the parameters required to connect to GCS.
type Config struct {
	Bucket string
	Prefix string
}

// ResultStore persists completed crawls as JSON objects in a GCS bucket.
type ResultStore struct {
	client *storage.Client
	bucket string
	prefix string
}

// New creates a GCS-backed result store.
func New(client *storage.Client, cfg Config) (*ResultStore, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &ResultStore{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

// Save uploads the record and returns its derived key.
func (s *ResultStore) Save(ctx context.Context, brandName string, result catalog.SavedResult) (string, error) {
	key := local.DeriveKey(brandName, result.ScrapedAt)
	data, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("marshal result: %w", err)
	}

	writer := s.object(key).NewWriter(ctx)
	writer.ContentType = "application/json"
	if _, err := writer.Write(data); err != nil {
		closeErr := writer.Close()
		if closeErr != nil {
			return "", fmt.Errorf("write object: %w (close writer: %v)", err, closeErr)
		}
		return "", fmt.Errorf("write object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close writer: %w", err)
	}
	return key, nil
}

// List returns every saved key under the configured prefix.
func (s *ResultStore) List(ctx context.Context) ([]string, error) {
	query := &storage.Query{}
	if s.prefix != "" {
		query.Prefix = s.prefix + "/"
	}
	it := s.client.Bucket(s.bucket).Objects(ctx, query)

	var keys []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list objects: %w", err)
		}
		name := strings.TrimPrefix(attrs.Name, query.Prefix)
		keys = append(keys, strings.TrimSuffix(name, ".json"))
	}
	return keys, nil
}

// Get downloads one saved record by key.
func (s *ResultStore) Get(ctx context.Context, key string) (catalog.SavedResult, error) {
	reader, err := s.object(key).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return catalog.SavedResult{}, catalog.ErrNotFound
	}
	if err != nil {
		return catalog.SavedResult{}, fmt.Errorf("open object: %w", err)
	}
	defer reader.Close() //nolint:errcheck // read-only stream

	data, err := io.ReadAll(reader)
	if err != nil {
		return catalog.SavedResult{}, fmt.Errorf("read object: %w", err)
	}
	var result catalog.SavedResult
	if err := json.Unmarshal(data, &result); err != nil {
		return catalog.SavedResult{}, fmt.Errorf("unmarshal result: %w", err)
	}
	return result, nil
}

// Delete removes a saved record.
func (s *ResultStore) Delete(ctx context.Context, key string) error {
	err := s.object(key).Delete(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return catalog.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

func (s *ResultStore) object(key string) *storage.ObjectHandle {
	name := key + ".json"
	if s.prefix != "" {
		name = s.prefix + "/" + name
	}
	return s.client.Bucket(s.bucket).Object(name)
}
