package dnssec

// KeyEntry is a closed sum type — Good/Null/Bad — because proof correctness
// depends on distinguishing "proved insecure" from "validation failed" from
// "valid keys". It is never simulated with nil or sentinel values; callers
// must switch on Kind before touching the payload.

import (
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/miekg/dns"
)

// KeyEntryKind discriminates the three KeyEntry variants.
type KeyEntryKind int

const (
	// KeyEntryGood carries a validated DNSKEY set usable to verify child
	// signatures.
	KeyEntryGood KeyEntryKind = iota
	// KeyEntryNull proves the zone at Owner is provably unsigned (an
	// authenticated insecure delegation).
	KeyEntryNull
	// KeyEntryBad records that validating the key set failed.
	KeyEntryBad
)

// KeyEntry is the result of validating a zone's DNSKEY set: either a usable
// key set (Good), a proof of deliberate insecurity (Null), or a validation
// failure (Bad). Exactly one of Keys/BadReason is meaningful, selected by
// Kind.
type KeyEntry struct {
	Kind      KeyEntryKind
	Owner     string
	Keys      []*dns.DNSKEY // only meaningful when Kind == KeyEntryGood
	BadReason string        // only meaningful when Kind == KeyEntryBad
	expiresAt time.Time
}

func newGoodKeyEntry(owner string, keys []*dns.DNSKEY, ttl uint32, now time.Time) KeyEntry {
	return KeyEntry{
		Kind:      KeyEntryGood,
		Owner:     owner,
		Keys:      keys,
		expiresAt: now.Add(time.Duration(ttl) * time.Second),
	}
}

func newNullKeyEntry(owner string, ttl uint32, now time.Time) KeyEntry {
	return KeyEntry{
		Kind:      KeyEntryNull,
		Owner:     owner,
		expiresAt: now.Add(time.Duration(ttl) * time.Second),
	}
}

// badKeyEntryTTL bounds how long a Bad verdict is cached, deliberately much
// shorter than a Good/Null TTL, so a transient failure (e.g. an upstream
// hiccup during FINDKEY) does not wedge a zone into permanent BOGUS.
const badKeyEntryTTL = 30 * time.Second

func newBadKeyEntry(owner, reason string, now time.Time) KeyEntry {
	return KeyEntry{
		Kind:      KeyEntryBad,
		Owner:     owner,
		BadReason: reason,
		expiresAt: now.Add(badKeyEntryTTL),
	}
}

// KeyCache is a size-bounded, TTL-aware memoization of validated DNSKEY
// sets keyed by (owner name, class), backed by hashicorp/golang-lru for the
// eviction bookkeeping. Reads never block writers for long: the mutex only
// protects the single Get/Add call into
// the LRU, and staleness is resolved by checking expiresAt on read, so a
// stale hit just looks like a miss rather than blocking.
type KeyCache struct {
	mu    sync.Mutex
	lru   *lru.Cache
	nowFn func() time.Time
}

// NewKeyCache creates a KeyCache bounded to maxSize entries
// (keycache.max.entries, default 1000).
func NewKeyCache(maxSize int) *KeyCache {
	if maxSize <= 0 {
		maxSize = 1000
	}

	c, err := lru.New(maxSize)
	if err != nil {
		// Only returns an error for size <= 0, already guarded above.
		panic(err)
	}

	return &KeyCache{
		lru:   c,
		nowFn: time.Now,
	}
}

func cacheKey(owner string, class uint16) string {
	return strings.ToLower(dns.Fqdn(owner)) + "/" + dns.ClassToString[class]
}

// Get returns the cached entry for (owner, class), or false if absent or
// expired.
func (c *KeyCache) Get(owner string, class uint16) (KeyEntry, bool) {
	key := cacheKey(owner, class)

	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.lru.Get(key)
	if !ok {
		return KeyEntry{}, false
	}

	entry := v.(KeyEntry) //nolint:forcetypeassert

	if c.nowFn().After(entry.expiresAt) {
		c.lru.Remove(key)

		return KeyEntry{}, false
	}

	return entry, true
}

// Put inserts or replaces the entry for (owner, class). The underlying LRU
// evicts the least-recently-used entry once the cache is at capacity.
func (c *KeyCache) Put(owner string, class uint16, entry KeyEntry) {
	key := cacheKey(owner, class)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.lru.Add(key, entry)
}
