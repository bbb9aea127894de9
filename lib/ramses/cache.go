package ramses

import (
	"fmt"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/phil-mansfield/amrio/lib/octree"
)

// fieldCache holds filled field arrays. The cost of an entry is its size in
// bytes.
type fieldCache struct {
	c *ristretto.Cache[string, []float64]
}

func newFieldCache(maxBytes int64) (*fieldCache, error) {
	// Ristretto recommends ten counters per expected entry. Entries are
	// assumed to be at least a kilobyte.
	counters := 10 * (maxBytes/1024 + 1)
	c, err := ristretto.NewCache(&ristretto.Config[string, []float64]{
		NumCounters: counters,
		MaxCost:     maxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &fieldCache{c}, nil
}

// cacheKey returns the key for a field filled by a selector, or false if the
// selector has no stable key.
func cacheKey(domain int, sel octree.Selector, field FieldName) (string, bool) {
	keyer, ok := sel.(octree.Keyer)
	if !ok {
		return "", false
	}
	return fmt.Sprintf("%d|%s|%s", domain, keyer.Key(), field), true
}

// get and set copy their arrays, so callers own every slice they are
// handed and can never modify a cached entry.

func (c *fieldCache) get(key string) ([]float64, bool) {
	if c == nil {
		return nil, false
	}
	x, ok := c.c.Get(key)
	if !ok {
		return nil, false
	}
	return append([]float64(nil), x...), true
}

func (c *fieldCache) set(key string, x []float64) {
	if c == nil {
		return
	}
	c.c.Set(key, append([]float64(nil), x...), int64(8*len(x))+1)
}

// wait blocks until every pending set has been applied.
func (c *fieldCache) wait() {
	if c != nil {
		c.c.Wait()
	}
}

func (c *fieldCache) close() {
	if c != nil {
		c.c.Close()
	}
}
