package dictionary

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ilkoid/eto-travel-mcp/pkg/utils"
	"golang.org/x/sync/singleflight"
)

// Source — внешний источник справочника (tourvisor.Client).
type Source interface {
	FetchDictionary(ctx context.Context) ([]byte, error)
}

// LoaderOption настраивает Loader.
type LoaderOption func(*Loader)

// WithCache подключает кэш payload (файл или S3).
func WithCache(c Cache) LoaderOption {
	return func(l *Loader) {
		l.cache = c
	}
}

// WithFetchTimeout ограничивает одну загрузку справочника.
//
// Загрузка идёт в контексте, отвязанном от отмены вызывающего:
// её результат нужен всем ожидающим, а не только первому.
func WithFetchTimeout(d time.Duration) LoaderOption {
	return func(l *Loader) {
		l.fetchTimeout = d
	}
}

// WithClock подменяет источник времени для LoadedAt (для тестов).
func WithClock(now func() time.Time) LoaderOption {
	return func(l *Loader) {
		l.now = now
	}
}

// Loader загружает снимок справочника и устанавливает его в Store.
type Loader struct {
	store  *Store
	source Source
	cache  Cache

	fetchTimeout time.Duration
	now          func() time.Time

	group     singleflight.Group
	refreshMu sync.Mutex
}

// NewLoader создает Loader поверх store и source.
func NewLoader(store *Store, source Source, opts ...LoaderOption) *Loader {
	l := &Loader{
		store:        store,
		source:       source,
		fetchTimeout: 60 * time.Second,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Store возвращает Store, в который пишет Loader.
func (l *Loader) Store() *Store {
	return l.store
}

// EnsureLoaded возвращает текущий снимок, загружая его при первом обращении.
//
// Параллельные вызовы на пустом Store разделяют одну загрузку.
// Сначала пробуется кэш, затем ровно один запрос к upstream.
// Отмена ctx освобождает только этого вызывающего, загрузка продолжается.
func (l *Loader) EnsureLoaded(ctx context.Context) (*Snapshot, error) {
	if snap := l.store.Snapshot(); snap != nil {
		return snap, nil
	}

	ch := l.group.DoChan("ensure", func() (any, error) {
		// Пока ждали очереди, снимок мог установить Refresh
		if snap := l.store.Snapshot(); snap != nil {
			return snap, nil
		}

		fctx, cancel := l.fetchContext(ctx)
		defer cancel()

		// Refresh мог успеть раньше: первая загрузка не перетирает его снимок
		if snap, ok := l.loadCached(fctx); ok {
			snap, _ = l.store.SetIfEmpty(snap)
			return snap, nil
		}
		return l.fetchAndInstall(fctx, l.store.SetIfEmpty)
	})

	select {
	case <-ctx.Done():
		return nil, unavailable(ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Snapshot), nil
	}
}

// Refresh безусловно загружает справочник из upstream.
//
// При ошибке текущий снимок остаётся на месте.
// Параллельные Refresh выполняются по очереди, каждый со своим запросом.
func (l *Loader) Refresh(ctx context.Context) (*Snapshot, error) {
	type outcome struct {
		snap *Snapshot
		err  error
	}
	done := make(chan outcome, 1)

	go func() {
		l.refreshMu.Lock()
		defer l.refreshMu.Unlock()

		fctx, cancel := l.fetchContext(ctx)
		defer cancel()

		snap, err := l.fetchAndInstall(fctx, func(snap *Snapshot) (*Snapshot, bool) {
			l.store.Set(snap)
			return snap, true
		})
		done <- outcome{snap, err}
	}()

	select {
	case <-ctx.Done():
		return nil, unavailable(ctx.Err())
	case out := <-done:
		return out.snap, out.err
	}
}

func (l *Loader) fetchContext(ctx context.Context) (context.Context, context.CancelFunc) {
	base := context.WithoutCancel(ctx)
	if l.fetchTimeout <= 0 {
		return context.WithCancel(base)
	}
	return context.WithTimeout(base, l.fetchTimeout)
}

// loadCached пробует кэш. Промах и битый payload не ошибка: идём в upstream.
func (l *Loader) loadCached(ctx context.Context) (*Snapshot, bool) {
	if l.cache == nil {
		return nil, false
	}

	raw, err := l.cache.Load(ctx)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			utils.Warn("Dictionary cache read failed", "cache", l.cache.Name(), "error", err)
		}
		return nil, false
	}

	snap, err := Parse(raw)
	if err != nil {
		utils.Warn("Dictionary cache is unparseable, refetching", "cache", l.cache.Name(), "error", err)
		return nil, false
	}

	snap = snap.withOrigin(l.cache.Name(), l.now())
	utils.Info("Dictionary loaded from cache", "cache", l.cache.Name(),
		"countries", snap.Stats().Countries, "regions", snap.Stats().Regions)
	return snap, true
}

// fetchAndInstall делает один запрос к upstream, устанавливает снимок через install
// и сохраняет payload в кэш. Ошибка записи в кэш только логируется.
//
// install возвращает снимок, оказавшийся в Store, и false, если свежий снимок
// не установлен; тогда кэш не трогаем.
func (l *Loader) fetchAndInstall(ctx context.Context, install func(*Snapshot) (*Snapshot, bool)) (*Snapshot, error) {
	start := time.Now()

	raw, err := l.source.FetchDictionary(ctx)
	if err != nil {
		utils.Error("Dictionary fetch failed", "error", err, "duration", time.Since(start))
		return nil, unavailable(&UpstreamError{Op: "fetch_dictionary", Err: err})
	}

	snap, err := Parse(raw)
	if err != nil {
		utils.Error("Dictionary payload rejected", "error", err, "bytes", len(raw))
		return nil, unavailable(err)
	}

	snap = snap.withOrigin(SourceAPI, l.now())
	installed, ok := install(snap)
	if !ok {
		utils.Info("Dictionary already installed by refresh, fetched copy dropped",
			"duration", time.Since(start))
		return installed, nil
	}

	stats := snap.Stats()
	utils.Info("Dictionary loaded from upstream",
		"countries", stats.Countries, "regions", stats.Regions, "departures", stats.Departures,
		"duration", time.Since(start))

	if l.cache != nil {
		if err := l.cache.Save(ctx, raw); err != nil {
			utils.Warn("Dictionary cache write failed", "cache", l.cache.Name(), "error", err)
		}
	}

	return snap, nil
}
