package postgres

import (
	"slices"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultTableCacheSize = 1024

// TableCache remembers the column sets of provisioned tables so that repeat
// inserts skip the information_schema lookup.
type TableCache struct {
	tables *lru.Cache[string, []string]
}

func NewTableCache(size int) *TableCache {
	if size <= 0 {
		size = defaultTableCacheSize
	}
	// lru.New only fails on a non-positive size.
	cache, _ := lru.New[string, []string](size)
	return &TableCache{tables: cache}
}

func (c *TableCache) Get(namespace, table string) ([]string, bool) {
	cols, ok := c.tables.Get(cacheKey(namespace, table))
	if !ok {
		return nil, false
	}
	return slices.Clone(cols), true
}

func (c *TableCache) Put(namespace, table string, cols []string) {
	c.tables.Add(cacheKey(namespace, table), slices.Clone(cols))
}

func (c *TableCache) Forget(namespace, table string) {
	c.tables.Remove(cacheKey(namespace, table))
}

// ForgetNamespace drops every table of a namespace.
func (c *TableCache) ForgetNamespace(namespace string) {
	prefix := namespace + "."
	for _, key := range c.tables.Keys() {
		if strings.HasPrefix(key, prefix) {
			c.tables.Remove(key)
		}
	}
}

func (c *TableCache) Len() int {
	return c.tables.Len()
}

func cacheKey(namespace, table string) string {
	return namespace + "." + table
}
