// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package cache

import (
	"context"
	"time"

	"github.com/meridianhealth/meridian-site/internal/content"
)

// sectionKeyPrefix namespaces page section-list entries in the backing cache.
const sectionKeyPrefix = "sections:page:"

// SectionLoader loads the ordered sections of a page from the content backend.
type SectionLoader func(ctx context.Context, pageID string) ([]content.Section, error)

// SectionCache caches the "list sections for page" read behind the page
// renderers. An entry is invalidated after any successful section write for
// that page so the next render observes the new value; entries otherwise
// expire on TTL.
type SectionCache struct {
	typed  *TypedCache[[]content.Section]
	loader SectionLoader
}

// NewSectionCache creates a section cache over the given backing cache.
func NewSectionCache(backing Cacher, ttl time.Duration, loader SectionLoader) *SectionCache {
	return &SectionCache{
		typed:  NewTypedCache[[]content.Section](backing, ttl),
		loader: loader,
	}
}

// pageKey builds the cache key for a page's section list.
func pageKey(pageID string) string {
	return sectionKeyPrefix + pageID
}

// PageSections returns the ordered sections of a page, loading from the
// backend on a cache miss.
func (c *SectionCache) PageSections(ctx context.Context, pageID string) ([]content.Section, error) {
	sections, err := c.typed.GetOrSet(ctx, pageKey(pageID), func() (*[]content.Section, error) {
		loaded, err := c.loader(ctx, pageID)
		if err != nil {
			return nil, err
		}
		return &loaded, nil
	})
	if err != nil {
		return nil, err
	}
	return *sections, nil
}

// InvalidatePage drops the cached section list for a page. A section saved
// without a known parent page skips invalidation; the stale entry then lives
// until its TTL, which is accepted.
func (c *SectionCache) InvalidatePage(ctx context.Context, pageID string) error {
	if pageID == "" {
		return nil
	}
	return c.typed.Delete(ctx, pageKey(pageID))
}

// Cached reports whether a page's section list is currently cached.
func (c *SectionCache) Cached(ctx context.Context, pageID string) bool {
	return c.typed.Has(ctx, pageKey(pageID))
}

// prefixDeleter is implemented by backends that can drop a key range in one
// call (both the memory and Redis backends do).
type prefixDeleter interface {
	DeleteByPrefix(ctx context.Context, prefix string) error
}

// InvalidateAll drops every cached section list. Entering edit mode calls
// this so the editor works against current backend content rather than
// entries cached up to a TTL ago.
func (c *SectionCache) InvalidateAll(ctx context.Context) error {
	if pd, ok := c.typed.cache.(prefixDeleter); ok {
		return pd.DeleteByPrefix(ctx, sectionKeyPrefix)
	}
	return c.typed.cache.Clear(ctx)
}
