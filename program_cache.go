package graphstate

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru"
)

// ProgramCache stores compiled expression programs keyed by engine and
// expression.
type ProgramCache interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

// cacheKey keeps programs of different engines apart when one cache is shared.
func cacheKey(engine, expression string) string {
	return engine + ":" + expression
}

type lruProgramCache struct {
	cache *lru.Cache
}

// NewLRUProgramCache returns a ProgramCache holding at most size programs.
func NewLRUProgramCache(size int) (ProgramCache, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("graphstate: program cache: %w", err)
	}
	return &lruProgramCache{cache: cache}, nil
}

func (c *lruProgramCache) Get(key string) (any, bool) {
	return c.cache.Get(key)
}

func (c *lruProgramCache) Set(key string, value any) {
	c.cache.Add(key, value)
}
