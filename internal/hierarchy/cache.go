package hierarchy

import "container/list"

type cacheEntry struct {
	fingerprint    Fingerprint
	hierarchy      *Hierarchy
	insertedAt     uint64
	lastAccessedAt uint64
}

// lru maps fingerprints to hierarchies. The list front is the most recently
// accessed entry. Callers hold the engine lock.
type lru struct {
	maxSize int
	ttl     uint64
	entries map[uint64]*list.Element
	order   *list.List
}

func newLRU(maxSize int, ttlNs uint64) *lru {
	return &lru{
		maxSize: maxSize,
		ttl:     ttlNs,
		entries: make(map[uint64]*list.Element, maxSize),
		order:   list.New(),
	}
}

func (c *lru) len() int { return len(c.entries) }

func (c *lru) expired(e *cacheEntry, now uint64) bool {
	return c.ttl > 0 && now > e.insertedAt && now-e.insertedAt > c.ttl
}

// get returns the live hierarchy for fp and refreshes its access time.
// Expired entries are dropped and reported as misses.
func (c *lru) get(fp Fingerprint, now uint64) (*Hierarchy, bool) {
	elem, ok := c.entries[fp.Hash]
	if !ok {
		return nil, false
	}
	entry := elem.Value.(*cacheEntry)
	if entry.fingerprint.key != fp.key {
		return nil, false
	}
	if c.expired(entry, now) {
		c.remove(elem)
		return nil, false
	}
	entry.lastAccessedAt = now
	c.order.MoveToFront(elem)
	return entry.hierarchy, true
}

// put stores h, evicting the least recently accessed entry when full.
// It returns the number of evicted entries.
func (c *lru) put(fp Fingerprint, h *Hierarchy, now uint64) int {
	if elem, ok := c.entries[fp.Hash]; ok {
		entry := elem.Value.(*cacheEntry)
		entry.fingerprint = fp
		entry.hierarchy = h
		entry.insertedAt = now
		entry.lastAccessedAt = now
		c.order.MoveToFront(elem)
		return 0
	}

	evicted := 0
	for c.maxSize > 0 && len(c.entries) >= c.maxSize {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.remove(oldest)
		evicted++
	}

	entry := &cacheEntry{fingerprint: fp, hierarchy: h, insertedAt: now, lastAccessedAt: now}
	c.entries[fp.Hash] = c.order.PushFront(entry)
	return evicted
}

// prune drops every expired entry.
func (c *lru) prune(now uint64) int {
	removed := 0
	for elem := c.order.Back(); elem != nil; {
		prev := elem.Prev()
		if c.expired(elem.Value.(*cacheEntry), now) {
			c.remove(elem)
			removed++
		}
		elem = prev
	}
	return removed
}

func (c *lru) clear() {
	c.entries = make(map[uint64]*list.Element, c.maxSize)
	c.order.Init()
}

func (c *lru) remove(elem *list.Element) {
	entry := c.order.Remove(elem).(*cacheEntry)
	delete(c.entries, entry.fingerprint.Hash)
}
