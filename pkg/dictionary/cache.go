package dictionary

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Cache хранит сырой payload справочника между запусками.
type Cache interface {
	// Load возвращает сохранённый payload или ErrCacheMiss.
	Load(ctx context.Context) ([]byte, error)
	// Save перезаписывает сохранённый payload.
	Save(ctx context.Context, raw []byte) error
	// Name — источник для Snapshot.Source (file, s3).
	Name() string
}

// FileCache — кэш справочника в JSON файле на диске.
type FileCache struct {
	path string
}

// NewFileCache создает кэш по пути path.
func NewFileCache(path string) *FileCache {
	return &FileCache{path: path}
}

// Name возвращает SourceFile.
func (c *FileCache) Name() string { return SourceFile }

// Load читает файл кэша.
func (c *FileCache) Load(ctx context.Context) ([]byte, error) {
	raw, err := os.ReadFile(c.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("read dictionary cache: %w", err)
	}
	return raw, nil
}

// Save пишет payload во временный файл и переименовывает его,
// чтобы параллельный Load не увидел недописанный файл.
func (c *FileCache) Save(ctx context.Context, raw []byte) error {
	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(c.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write dictionary cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close dictionary cache: %w", err)
	}

	if err := os.Rename(tmp.Name(), c.path); err != nil {
		return fmt.Errorf("replace dictionary cache: %w", err)
	}
	return nil
}
