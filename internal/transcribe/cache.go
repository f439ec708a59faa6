package transcribe

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"
)

// ModelCache keeps loaded model instances keyed by (model name, device) so
// repeated jobs for the same model skip the reload cost. Concurrent requests
// for the same key are collapsed into a single load; distinct keys load
// independently.
type ModelCache struct {
	engine Engine
	group  singleflight.Group

	mu     sync.RWMutex
	models map[string]Model
}

func NewModelCache(engine Engine) *ModelCache {
	return &ModelCache{
		engine: engine,
		models: make(map[string]Model),
	}
}

func cacheKey(modelName, device string) string {
	return modelName + "/" + device
}

// Get returns the cached model for (modelName, device), loading and caching
// it on first use. A failed load caches nothing, so a later call retries.
func (c *ModelCache) Get(ctx context.Context, modelName, device string) (Model, error) {
	key := cacheKey(modelName, device)

	c.mu.RLock()
	model, ok := c.models[key]
	c.mu.RUnlock()
	if ok {
		return model, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		c.mu.RLock()
		cached, ok := c.models[key]
		c.mu.RUnlock()
		if ok {
			return cached, nil
		}

		loaded, err := c.engine.Load(ctx, modelName, device)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.models[key] = loaded
		c.mu.Unlock()
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Model), nil
}

// Len reports how many model instances are currently cached.
func (c *ModelCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.models)
}
