package util

import (
	"strings"
	"sync"
	"time"

	"github.com/A-tamer/hospital-management-system/model"
	cache "github.com/patrickmn/go-cache"
)

var (
	accountCache   *cache.Cache
	accountCacheMu sync.RWMutex
)

// InitAccountCache sets up the email -> account cache. A ttl <= 0 uses five
// minutes.
func InitAccountCache(ttl time.Duration) {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	accountCacheMu.Lock()
	defer accountCacheMu.Unlock()
	accountCache = cache.New(ttl, 2*ttl)
}

func accountKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// AccountCacheGet returns the cached account for email.
func AccountCacheGet(email string) (model.UserAccount, bool) {
	accountCacheMu.RLock()
	c := accountCache
	accountCacheMu.RUnlock()
	if c == nil {
		return model.UserAccount{}, false
	}
	if v, ok := c.Get(accountKey(email)); ok {
		if a, ok := v.(model.UserAccount); ok {
			return a, true
		}
	}
	return model.UserAccount{}, false
}

// AccountCacheSet caches a for its email.
func AccountCacheSet(a model.UserAccount) {
	accountCacheMu.RLock()
	c := accountCache
	accountCacheMu.RUnlock()
	if c == nil {
		return
	}
	c.SetDefault(accountKey(a.Email), a)
}

// AccountCacheInvalidate drops the cached entry for email.
func AccountCacheInvalidate(email string) {
	accountCacheMu.RLock()
	c := accountCache
	accountCacheMu.RUnlock()
	if c == nil {
		return
	}
	c.Delete(accountKey(email))
}
