package dictionary

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// samplePayload — усечённый ответ listdev.php.
const samplePayload = `{
  "lists": {
    "departures": {"departure": [
      {"id": "1", "name": "Москва"},
      {"id": "5", "name": "Санкт-Петербург"}
    ]},
    "allcountry": {"country": [
      {"id": "1", "name": "Египет", "popular": "1"},
      {"id": "4", "name": "Турция", "popular": 1},
      {"id": "2", "name": "Таиланд", "popular": "0"},
      {"id": "9", "name": "ОАЭ", "popular": true},
      {"id": "13", "name": "Эквадор"}
    ]},
    "countries": {"country": [
      {"id": "1", "name": "Египет"},
      {"id": "4", "name": "Турция"}
    ]},
    "regions": {"region": [
      {"id": "5", "name": "Хургада", "country": "1"},
      {"id": "6", "name": "Шарм-Эль-Шейх", "country": "1"},
      {"id": "12", "name": "Стамбул", "country": "4"},
      {"id": "19", "name": "Кемер", "country": "4"},
      {"id": "30", "name": "Пхукет", "country": "2"},
      {"id": "31", "name": "Атлантида", "country": "777"}
    ]}
  }
}`

// fakeSource — управляемый источник справочника.
type fakeSource struct {
	mu      sync.Mutex
	payload []byte
	err     error

	calls   atomic.Int32
	started chan struct{} // закрывается при первом вызове, если не nil
	release chan struct{} // вызов ждет закрытия, если не nil
	once    sync.Once
}

func newFakeSource(payload string) *fakeSource {
	return &fakeSource{payload: []byte(payload)}
}

func (f *fakeSource) FetchDictionary(ctx context.Context) ([]byte, error) {
	f.calls.Add(1)
	if f.started != nil {
		f.once.Do(func() { close(f.started) })
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.payload, nil
}

func (f *fakeSource) set(payload string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payload = []byte(payload)
	f.err = err
}

var errUpstreamDown = errors.New("connection refused")

// memCache — кэш в памяти.
type memCache struct {
	mu      sync.Mutex
	raw     []byte
	saveErr error
	saves   int
}

func (c *memCache) Name() string { return SourceS3 }

func (c *memCache) Load(ctx context.Context) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.raw == nil {
		return nil, ErrCacheMiss
	}
	return c.raw, nil
}

func (c *memCache) Save(ctx context.Context, raw []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.saves++
	if c.saveErr != nil {
		return c.saveErr
	}
	c.raw = raw
	return nil
}

func intPtr(v int) *int { return &v }

// blockingCache — memCache, у которого Load ждет release.
type blockingCache struct {
	memCache
	started chan struct{}
	release chan struct{}
}

func (c *blockingCache) Load(ctx context.Context) ([]byte, error) {
	close(c.started)
	<-c.release
	return c.memCache.Load(ctx)
}

// gatedSource: первый вызов ждет gate и отдает first, остальные сразу отдают rest.
type gatedSource struct {
	first, rest []byte
	started     chan struct{}
	gate        chan struct{}
	calls       atomic.Int32
}

func (g *gatedSource) FetchDictionary(ctx context.Context) ([]byte, error) {
	if g.calls.Add(1) == 1 {
		close(g.started)
		<-g.gate
		return g.first, nil
	}
	return g.rest, nil
}
