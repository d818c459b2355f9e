package emote

import (
	"sync"

	"github.com/gogpu/emote/internal/cache"
)

// RenderCache holds the artifacts rendered from one image, keyed by
// effect name. Entries for any other image are refused, so the cache can
// never show an artifact of a replaced image.
type RenderCache struct {
	mu      sync.Mutex
	imageID uint64
	entries *cache.Cache[string, *Artifact]
}

// NewRenderCache creates an empty cache bound to no image.
func NewRenderCache() *RenderCache {
	return &RenderCache{entries: cache.New[string, *Artifact](0)}
}

// Reset drops every entry and binds the cache to imageID.
func (c *RenderCache) Reset(imageID uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries.Clear()
	c.imageID = imageID
}

// Get returns the artifact of effect for imageID.
func (c *RenderCache) Get(imageID uint64, effect string) (*Artifact, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if imageID != c.imageID {
		return nil, false
	}
	return c.entries.Get(effect)
}

// Put stores a for effect. It returns false, storing nothing, when
// imageID is not the image the cache is bound to.
func (c *RenderCache) Put(imageID uint64, effect string, a *Artifact) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if imageID != c.imageID {
		return false
	}
	c.entries.Set(effect, a)
	return true
}

// Len returns the number of cached artifacts.
func (c *RenderCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Len()
}

// Effects returns the names of the cached effects, in no particular order.
func (c *RenderCache) Effects() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries.Keys()
}
