package s3storage

import (
	"context"
	"errors"

	"github.com/ilkoid/eto-travel-mcp/pkg/dictionary"
)

// DictionaryCache хранит сырой payload справочника одним объектом.
//
// Реализует dictionary.Cache для dictionary.cache: s3.
type DictionaryCache struct {
	store ObjectStore
	key   string
}

var _ dictionary.Cache = (*DictionaryCache)(nil)

// NewDictionaryCache создает кэш справочника под ключом key.
func NewDictionaryCache(store ObjectStore, key string) *DictionaryCache {
	return &DictionaryCache{store: store, key: key}
}

// Name возвращает dictionary.SourceS3.
func (c *DictionaryCache) Name() string { return dictionary.SourceS3 }

// Load скачивает объект; отсутствующий объект — dictionary.ErrCacheMiss.
func (c *DictionaryCache) Load(ctx context.Context) ([]byte, error) {
	raw, err := c.store.DownloadFile(ctx, c.key)
	if errors.Is(err, ErrNotFound) {
		return nil, dictionary.ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, dictionary.ErrCacheMiss
	}
	return raw, nil
}

// Save перезаписывает объект.
func (c *DictionaryCache) Save(ctx context.Context, raw []byte) error {
	return c.store.UploadFile(ctx, c.key, raw, "application/json")
}
