package vault

import (
	"container/list"
	"sync"
	"time"

	"github.com/itc-kingsavage/savage-scanner/internal/util"
	"github.com/itc-kingsavage/savage-scanner/storage"
)

// sessionCache is a bounded LRU of decrypted sessions. Capacity eviction
// wipes the evicted plaintext.
type sessionCache struct {
	mu       sync.Mutex
	capacity int
	order    *list.List // front = most recent
	items    map[string]*list.Element
}

type cacheEntry struct {
	id        string
	record    *storage.SessionRecord
	plaintext []byte
}

func newSessionCache(capacity int) *sessionCache {
	if capacity <= 0 {
		capacity = 1
	}
	return &sessionCache{
		capacity: capacity,
		order:    list.New(),
		items:    make(map[string]*list.Element),
	}
}

// get returns a copy of the cached session and records the access on the
// stored entry, so the sweep sees cache-served activity.
func (c *sessionCache) get(id string) (*storage.SessionRecord, []byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[id]
	if !ok {
		return nil, nil, false
	}
	c.order.MoveToFront(el)
	e := el.Value.(*cacheEntry)
	e.record.LastAccessedAt = time.Now().UTC()
	return e.record.Clone(), util.CopyBytes(e.plaintext), true
}

// peek returns a copy of the cached record without refreshing recency or
// access time.
func (c *sessionCache) peek(id string) (*storage.SessionRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[id]
	if !ok {
		return nil, false
	}
	return el.Value.(*cacheEntry).record.Clone(), true
}

func (c *sessionCache) put(id string, record *storage.SessionRecord, plaintext []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[id]; ok {
		e := el.Value.(*cacheEntry)
		util.WipeBytes(e.plaintext)
		e.record = record.Clone()
		e.plaintext = util.CopyBytes(plaintext)
		c.order.MoveToFront(el)
		return
	}
	el := c.order.PushFront(&cacheEntry{
		id:        id,
		record:    record.Clone(),
		plaintext: util.CopyBytes(plaintext),
	})
	c.items[id] = el
	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		e := oldest.Value.(*cacheEntry)
		util.WipeBytes(e.plaintext)
		c.order.Remove(oldest)
		delete(c.items, e.id)
	}
}

func (c *sessionCache) remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[id]
	if !ok {
		return
	}
	e := el.Value.(*cacheEntry)
	util.WipeBytes(e.plaintext)
	c.order.Remove(el)
	delete(c.items, id)
}

func (c *sessionCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
