package server

import (
	"strconv"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// senderCache remembers the last sender name seen on each connection so that
// a departure can be announced by name. Entries never expire on their own and
// are removed when the connection leaves.
type senderCache struct {
	cacheInstance *gocache.Cache
}

func newSenderCache() *senderCache {
	return &senderCache{cacheInstance: gocache.New(gocache.NoExpiration, 10*time.Minute)}
}

func (c *senderCache) put(connID uint64, sender string) {
	c.cacheInstance.Set(strconv.FormatUint(connID, 10), sender, gocache.NoExpiration)
}

// take returns the remembered sender for connID and forgets it.
func (c *senderCache) take(connID uint64) (string, bool) {
	key := strconv.FormatUint(connID, 10)
	v, ok := c.cacheInstance.Get(key)
	if !ok {
		return "", false
	}
	c.cacheInstance.Delete(key)
	return v.(string), true
}
