// Package backup writes family snapshots to a blob sink (local directory or S3).
package backup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"pagecraft/internal/store"
)

var ErrBadSink = errors.New("unknown export driver")

// Sink stores one immutable object per key and returns where it landed.
type Sink interface {
	Driver() string
	Put(ctx context.Context, key string, body []byte, contentType string) (string, error)
}

// Open picks the sink named by cfg.Driver ("fs" when empty).
func Open(ctx context.Context, cfg store.ExportConfig) (Sink, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "fs", "file", "local":
		return NewFS(cfg.Root), nil
	case "s3":
		return NewS3(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("%w: %q", ErrBadSink, cfg.Driver)
	}
}

type FS struct {
	root string
}

func NewFS(root string) *FS {
	root = strings.TrimSpace(root)
	if root == "" {
		root = "exports"
	}
	return &FS{root: root}
}

func (s *FS) Driver() string { return "fs" }

func (s *FS) Put(ctx context.Context, key string, body []byte, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path := filepath.Join(s.root, filepath.FromSlash(key))
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("export %s already exists", path)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if err := store.AtomicWriteFile(dir, filepath.Base(path)+".*.tmp", path, body, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
