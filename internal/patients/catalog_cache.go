package patients

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

const catalogKey = "symptom_catalog"

// CatalogSource loads the symptom catalog from storage.
type CatalogSource interface {
	ListSymptomCatalog(ctx context.Context) ([]Symptom, error)
}

// CachedCatalog keeps the symptom catalog in memory for ttl and collapses
// concurrent reloads into a single storage call.
type CachedCatalog struct {
	source CatalogSource
	cache  *cache.Cache
	group  singleflight.Group
}

func NewCachedCatalog(source CatalogSource, ttl time.Duration) *CachedCatalog {
	if source == nil {
		panic("patients: catalog source required")
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CachedCatalog{
		source: source,
		cache:  cache.New(ttl, 2*ttl),
	}
}

func (c *CachedCatalog) ListSymptomCatalog(ctx context.Context) ([]Symptom, error) {
	if x, found := c.cache.Get(catalogKey); found {
		return x.([]Symptom), nil
	}
	v, err, _ := c.group.Do(catalogKey, func() (any, error) {
		symptoms, err := c.source.ListSymptomCatalog(ctx)
		if err != nil {
			return nil, err
		}
		c.cache.Set(catalogKey, symptoms, cache.DefaultExpiration)
		return symptoms, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]Symptom), nil
}

// Invalidate drops the cached catalog, e.g. after seeding.
func (c *CachedCatalog) Invalidate() {
	c.cache.Delete(catalogKey)
}
