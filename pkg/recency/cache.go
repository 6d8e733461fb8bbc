package recency

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// DefaultCapacity is the capacity used when none is configured.
const DefaultCapacity = 1024

// Cache is a bounded, insertion-ordered set of event identifiers.
type Cache struct {
	capacity int
	ids      *orderedmap.OrderedMap[string, struct{}]
}

// New creates a cache holding at most capacity identifiers.
// A capacity below 1 is raised to 1.
func New(capacity int) *Cache {
	if capacity < 1 {
		capacity = 1
	}
	return &Cache{
		capacity: capacity,
		ids:      orderedmap.New[string, struct{}](),
	}
}

// Contains reports whether id is currently remembered.
func (c *Cache) Contains(id string) bool {
	_, ok := c.ids.Get(id)
	return ok
}

// Record remembers id, evicting the oldest identifiers while the cache is
// over capacity. Recording a present id is a no-op.
func (c *Cache) Record(id string) {
	if c.Contains(id) {
		return
	}
	c.ids.Set(id, struct{}{})
	for c.ids.Len() > c.capacity {
		oldest := c.ids.Oldest()
		if oldest == nil {
			return
		}
		c.ids.Delete(oldest.Key)
	}
}

// Len returns the number of remembered identifiers.
func (c *Cache) Len() int {
	return c.ids.Len()
}

// Capacity returns the maximum number of identifiers the cache holds.
func (c *Cache) Capacity() int {
	return c.capacity
}

// IDs returns the remembered identifiers, oldest first.
func (c *Cache) IDs() []string {
	out := make([]string, 0, c.ids.Len())
	for pair := c.ids.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Key)
	}
	return out
}
