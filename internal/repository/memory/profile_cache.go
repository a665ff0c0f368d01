package memory

import (
	"strings"
	"time"

	"ai-plugin-engine/pkg/rag/executor"

	"github.com/patrickmn/go-cache"
)

const ProfileTTL = 5 * time.Minute

// ProfileCache keeps resolved plugin profiles (plugin plus active decision
// tree) by slug so repeated queries skip the database.
type ProfileCache struct {
	cache *cache.Cache
}

func NewProfileCache(ttl time.Duration) *ProfileCache {
	if ttl <= 0 {
		ttl = ProfileTTL
	}
	return &ProfileCache{cache: cache.New(ttl, 2*ttl)}
}

func key(slug string) string {
	return strings.ToLower(strings.TrimSpace(slug))
}

func (c *ProfileCache) Get(slug string) (*executor.Profile, bool) {
	if x, found := c.cache.Get(key(slug)); found {
		return x.(*executor.Profile), true
	}
	return nil, false
}

func (c *ProfileCache) Set(slug string, profile *executor.Profile) {
	c.cache.Set(key(slug), profile, cache.DefaultExpiration)
}

// Invalidate drops a slug after its plugin, documents or tree changed.
func (c *ProfileCache) Invalidate(slug string) {
	c.cache.Delete(key(slug))
}

func (c *ProfileCache) Flush() {
	c.cache.Flush()
}
