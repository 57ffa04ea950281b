package trust

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/google/uuid"
)

// Decision is a cached assertEligibility outcome.
type Decision struct {
	Allowed bool
	Code    string
	Reason  string
}

// decisionCache holds recently-resolved (userID, taskID) eligibility
// decisions, cutting repeated-check latency under load the way the teacher's
// ledger-state caches avoid re-deriving hot state on every request. Entries
// are invalidated eagerly on any write that could change the answer (tier
// change, ban, hold); the cache has no TTL, so other entries stay until the
// LRU evicts them by size.
type decisionCache struct {
	cache *lru.Cache[string, Decision]
}

func newDecisionCache(size int) *decisionCache {
	if size <= 0 {
		size = 4096
	}
	c, _ := lru.New[string, Decision](size)
	return &decisionCache{cache: c}
}

func cacheKey(userID, taskID uuid.UUID) string {
	return fmt.Sprintf("%s:%s", userID, taskID)
}

func (d *decisionCache) get(userID, taskID uuid.UUID) (Decision, bool) {
	return d.cache.Get(cacheKey(userID, taskID))
}

func (d *decisionCache) put(userID, taskID uuid.UUID, dec Decision) {
	d.cache.Add(cacheKey(userID, taskID), dec)
}

// invalidateUser drops every cached decision for a user. The cache has no
// secondary index by user, so this purges the whole cache: correctness
// over a finer-grained invalidation scheme that isn't worth the complexity
// at this cache's size.
func (d *decisionCache) invalidateUser(userID uuid.UUID) {
	d.cache.Purge()
}
