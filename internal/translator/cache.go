package translator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/dimkroon/translate-subs/pkg/log"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/language"
)

// Cache stores translations by CacheKey.
type Cache interface {
	GetCachedTranslation(ctx context.Context, key string) (string, bool, error)
	PutCachedTranslation(ctx context.Context, key string, target string, text string) error
}

// CacheKey identifies a translation of text into target by one backend,
// so switching provider or model does not serve the old backend's output.
func CacheKey(backend string, text string, target language.Tag) string {
	h := sha256.New()
	h.Write([]byte(backend))
	h.Write([]byte{0})
	h.Write([]byte(target.String()))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// CachedClient answers repeated requests from a Cache and collapses
// identical concurrent requests into one call of the inner client.
type CachedClient struct {
	inner   Client
	cache   Cache
	backend string
	timeout time.Duration
	group   singleflight.Group
}

type CachedClientOption func(*CachedClient)

// WithBackend names the provider and model the inner client calls.
func WithBackend(name string) CachedClientOption {
	return func(c *CachedClient) {
		c.backend = name
	}
}

// WithCallTimeout bounds a shared call to the inner client.
func WithCallTimeout(timeout time.Duration) CachedClientOption {
	return func(c *CachedClient) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

func NewCachedClient(inner Client, cache Cache, opts ...CachedClientOption) *CachedClient {
	c := &CachedClient{inner: inner, cache: cache, timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Translate waits for the shared call only as long as ctx allows. The
// shared call is not bound to any one caller's ctx, so a caller that gives
// up does not fail the others waiting on the same text.
func (c *CachedClient) Translate(ctx context.Context, text string, target language.Tag) (string, error) {
	key := CacheKey(c.backend, text, target)

	if cached, ok, err := c.cache.GetCachedTranslation(ctx, key); err != nil {
		log.Warn("Translation cache lookup failed: %v", err)
	} else if ok {
		return cached, nil
	}

	ch := c.group.DoChan(key, func() (any, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()

		translated, err := c.inner.Translate(callCtx, text, target)
		if err != nil {
			return "", err
		}
		if err := c.cache.PutCachedTranslation(callCtx, key, target.String(), translated); err != nil {
			log.Warn("Translation cache store failed: %v", err)
		}
		return translated, nil
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// MemoryCache is a process-local Cache.
type MemoryCache struct {
	mu    sync.RWMutex
	items map[string]string
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{items: make(map[string]string)}
}

func (m *MemoryCache) GetCachedTranslation(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.items[key]
	return v, ok, nil
}

func (m *MemoryCache) PutCachedTranslation(_ context.Context, key string, _ string, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = text
	return nil
}

func (m *MemoryCache) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}
