package extraction

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/cepa-dev/cepa-chat/internal/core"
)

var _ core.TextExtractor = (*CachingExtractor)(nil)

type cacheEntry struct {
	modTime time.Time
	text    string
}

// CachingExtractor memoizes extraction results per file path, keyed on the
// file's modification time so edited documents are re-extracted.
type CachingExtractor struct {
	inner core.TextExtractor

	mu      sync.Mutex
	entries map[string]cacheEntry
}

func NewCachingExtractor(inner core.TextExtractor) *CachingExtractor {
	return &CachingExtractor{
		inner:   inner,
		entries: make(map[string]cacheEntry),
	}
}

func (c *CachingExtractor) ExtractText(ctx context.Context, path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		// Missing or unreadable file: let the inner extractor produce the
		// error so failures look the same cached or not.
		return c.inner.ExtractText(ctx, path)
	}

	c.mu.Lock()
	entry, ok := c.entries[path]
	c.mu.Unlock()
	if ok && entry.modTime.Equal(info.ModTime()) {
		return entry.text, nil
	}

	text, err := c.inner.ExtractText(ctx, path)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.entries[path] = cacheEntry{modTime: info.ModTime(), text: text}
	c.mu.Unlock()

	return text, nil
}

// Invalidate drops the cached text for path, if any.
func (c *CachingExtractor) Invalidate(path string) {
	c.mu.Lock()
	delete(c.entries, path)
	c.mu.Unlock()
}
