package dictionary

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureLoaded_SingleFlight(t *testing.T) {
	src := newFakeSource(samplePayload)
	src.started = make(chan struct{})
	src.release = make(chan struct{})
	loader := NewLoader(NewStore(), src)

	const callers = 32
	results := make([]*Snapshot, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = loader.EnsureLoaded(context.Background())
		}(i)
	}

	<-src.started
	// Даем остальным горутинам встать в ожидание
	time.Sleep(20 * time.Millisecond)
	close(src.release)
	wg.Wait()

	assert.Equal(t, int32(1), src.calls.Load())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Same(t, results[0], results[i])
	}
	assert.Same(t, results[0], loader.Store().Snapshot())
}

func TestEnsureLoaded_ReturnsInstalledSnapshot(t *testing.T) {
	src := newFakeSource(samplePayload)
	loader := NewLoader(NewStore(), src)

	first, err := loader.EnsureLoaded(context.Background())
	require.NoError(t, err)
	second, err := loader.EnsureLoaded(context.Background())
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, int32(1), src.calls.Load())
	assert.Equal(t, SourceAPI, first.Source())
}

func TestEnsureLoaded_RetriesAfterFailure(t *testing.T) {
	src := newFakeSource(samplePayload)
	src.set("", errUpstreamDown)
	loader := NewLoader(NewStore(), src)

	_, err := loader.EnsureLoaded(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDictionaryUnavailable))

	var upErr *UpstreamError
	require.True(t, errors.As(err, &upErr))
	assert.Equal(t, "fetch_dictionary", upErr.Op)
	assert.True(t, errors.Is(err, errUpstreamDown))
	assert.Nil(t, loader.Store().Snapshot())

	src.set(samplePayload, nil)
	snap, err := loader.EnsureLoaded(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, snap)
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestEnsureLoaded_MalformedPayload(t *testing.T) {
	src := newFakeSource(`{"lists":{"allcountry":{"country":[{"id":1}]}}}`)
	loader := NewLoader(NewStore(), src)

	_, err := loader.EnsureLoaded(context.Background())
	assert.True(t, errors.Is(err, ErrDictionaryUnavailable))
	assert.True(t, errors.Is(err, ErrSchema))
	assert.Nil(t, loader.Store().Snapshot())
}

func TestEnsureLoaded_CallerCancelDoesNotAbortFetch(t *testing.T) {
	src := newFakeSource(samplePayload)
	src.started = make(chan struct{})
	src.release = make(chan struct{})
	loader := NewLoader(NewStore(), src)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := loader.EnsureLoaded(ctx)
		errCh <- err
	}()

	<-src.started
	cancel()
	err := <-errCh
	assert.True(t, errors.Is(err, ErrDictionaryUnavailable))
	assert.True(t, errors.Is(err, context.Canceled))

	close(src.release)
	require.Eventually(t, func() bool { return loader.Store().Snapshot() != nil },
		time.Second, 5*time.Millisecond)

	_, err = loader.EnsureLoaded(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestEnsureLoaded_FetchTimeout(t *testing.T) {
	src := newFakeSource(samplePayload)
	src.release = make(chan struct{}) // никогда не закрывается
	loader := NewLoader(NewStore(), src, WithFetchTimeout(20*time.Millisecond))

	_, err := loader.EnsureLoaded(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDictionaryUnavailable))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestRefresh_ReplacesSnapshot(t *testing.T) {
	src := newFakeSource(samplePayload)
	loader := NewLoader(NewStore(), src)

	first, err := loader.EnsureLoaded(context.Background())
	require.NoError(t, err)

	src.set(`{"lists":{"allcountry":{"country":[{"id":1,"name":"Египет"}]}}}`, nil)
	second, err := loader.Refresh(context.Background())
	require.NoError(t, err)

	assert.NotSame(t, first, second)
	assert.Same(t, second, loader.Store().Snapshot())
	assert.Equal(t, 1, second.Stats().Countries)
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestRefresh_FailureKeepsPreviousSnapshot(t *testing.T) {
	src := newFakeSource(samplePayload)
	loader := NewLoader(NewStore(), src)

	before, err := loader.EnsureLoaded(context.Background())
	require.NoError(t, err)

	src.set("", errUpstreamDown)
	_, err = loader.Refresh(context.Background())
	assert.True(t, errors.Is(err, ErrDictionaryUnavailable))
	assert.Same(t, before, loader.Store().Snapshot())

	src.set(`not json`, nil)
	_, err = loader.Refresh(context.Background())
	assert.True(t, errors.Is(err, ErrSchema))
	assert.Same(t, before, loader.Store().Snapshot())
}

func TestEnsureLoaded_UsesCacheFirst(t *testing.T) {
	cache := &memCache{raw: []byte(samplePayload)}
	src := newFakeSource(samplePayload)
	at := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	loader := NewLoader(NewStore(), src, WithCache(cache), WithClock(func() time.Time { return at }))

	snap, err := loader.EnsureLoaded(context.Background())
	require.NoError(t, err)

	assert.Zero(t, src.calls.Load())
	assert.Equal(t, SourceS3, snap.Source())
	assert.Equal(t, at, snap.LoadedAt())
}

func TestEnsureLoaded_CacheMissFetchesAndSaves(t *testing.T) {
	cache := &memCache{}
	src := newFakeSource(samplePayload)
	loader := NewLoader(NewStore(), src, WithCache(cache))

	snap, err := loader.EnsureLoaded(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(1), src.calls.Load())
	assert.Equal(t, SourceAPI, snap.Source())
	assert.Equal(t, 1, cache.saves)
	assert.JSONEq(t, samplePayload, string(cache.raw))
}

func TestEnsureLoaded_BrokenCacheFallsThrough(t *testing.T) {
	cache := &memCache{raw: []byte(`{"lists":`)}
	src := newFakeSource(samplePayload)
	loader := NewLoader(NewStore(), src, WithCache(cache))

	snap, err := loader.EnsureLoaded(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SourceAPI, snap.Source())
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestEnsureLoaded_CacheWriteFailureIsNotFatal(t *testing.T) {
	cache := &memCache{saveErr: errors.New("bucket is read-only")}
	src := newFakeSource(samplePayload)
	loader := NewLoader(NewStore(), src, WithCache(cache))

	snap, err := loader.EnsureLoaded(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, snap)
	assert.Equal(t, 1, cache.saves)
}

func TestRefresh_SkipsCache(t *testing.T) {
	cache := &memCache{raw: []byte(samplePayload)}
	src := newFakeSource(samplePayload)
	loader := NewLoader(NewStore(), src, WithCache(cache))

	snap, err := loader.Refresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SourceAPI, snap.Source())
	assert.Equal(t, int32(1), src.calls.Load())
	assert.Equal(t, 1, cache.saves)
}

func TestFileCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "travel-dictionary.json")
	cache := NewFileCache(path)
	ctx := context.Background()

	_, err := cache.Load(ctx)
	assert.True(t, errors.Is(err, ErrCacheMiss))

	require.NoError(t, cache.Save(ctx, []byte(samplePayload)))
	raw, err := cache.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, samplePayload, string(raw))

	require.NoError(t, cache.Save(ctx, []byte(`{}`)))
	raw, err = cache.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(raw))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestFileCache_SurvivesRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "travel-dictionary.json")

	src := newFakeSource(samplePayload)
	_, err := NewLoader(NewStore(), src, WithCache(NewFileCache(path))).EnsureLoaded(context.Background())
	require.NoError(t, err)

	// Новый процесс: пустой Store, тот же файл
	src2 := newFakeSource(samplePayload)
	snap, err := NewLoader(NewStore(), src2, WithCache(NewFileCache(path))).EnsureLoaded(context.Background())
	require.NoError(t, err)

	assert.Zero(t, src2.calls.Load())
	assert.Equal(t, SourceFile, snap.Source())
	assert.Equal(t, 5, snap.Stats().Countries)
}

const refreshedPayload = `{"lists":{"allcountry":{"country":[{"id":1,"name":"Египет"}]}}}`

// Первая загрузка, начатая до Refresh, не перетирает его свежий снимок.
func TestEnsureLoaded_CachedSnapshotDoesNotOverrideRefresh(t *testing.T) {
	cache := &blockingCache{
		memCache: memCache{raw: []byte(samplePayload)},
		started:  make(chan struct{}),
		release:  make(chan struct{}),
	}
	src := newFakeSource(refreshedPayload)
	loader := NewLoader(NewStore(), src, WithCache(cache))

	type result struct {
		snap *Snapshot
		err  error
	}
	ensured := make(chan result, 1)
	go func() {
		snap, err := loader.EnsureLoaded(context.Background())
		ensured <- result{snap, err}
	}()

	<-cache.started
	refreshed, err := loader.Refresh(context.Background())
	require.NoError(t, err)
	close(cache.release)

	res := <-ensured
	require.NoError(t, res.err)
	assert.Same(t, refreshed, res.snap)
	assert.Same(t, refreshed, loader.Store().Snapshot())
	assert.Equal(t, SourceAPI, loader.Store().Snapshot().Source())
	assert.Equal(t, 1, loader.Store().Snapshot().Stats().Countries)
}

func TestEnsureLoaded_FetchedSnapshotDoesNotOverrideRefresh(t *testing.T) {
	cache := &memCache{}
	src := &gatedSource{
		first:   []byte(samplePayload),
		rest:    []byte(refreshedPayload),
		started: make(chan struct{}),
		gate:    make(chan struct{}),
	}
	loader := NewLoader(NewStore(), src, WithCache(cache))

	type result struct {
		snap *Snapshot
		err  error
	}
	ensured := make(chan result, 1)
	go func() {
		snap, err := loader.EnsureLoaded(context.Background())
		ensured <- result{snap, err}
	}()

	<-src.started
	refreshed, err := loader.Refresh(context.Background())
	require.NoError(t, err)
	close(src.gate)

	res := <-ensured
	require.NoError(t, res.err)
	assert.Same(t, refreshed, res.snap)
	assert.Same(t, refreshed, loader.Store().Snapshot())
	assert.Equal(t, int32(2), src.calls.Load())
	// В кэше остается payload Refresh, опоздавшая загрузка его не перезаписывает
	assert.Equal(t, 1, cache.saves)
	assert.JSONEq(t, refreshedPayload, string(cache.raw))
}
