// Package cache provides a thread-safe LRU cache for compiled programs.
//
// Compiling an expression walks the scanner, parser, canonicalizer,
// binder and evaluator compiler; the result only depends on the source
// text, the parameter signature, the result type and the checked flag.
// The cache keys programs on exactly that, so the same expression applied
// to many inputs is compiled once.
//
// # Example
//
//	c := cache.New(1024)
//	key := cache.NewKey("a + b", params, nil, false)
//	prog, err := c.GetOrCompile(key, compile)
package cache

import (
	"container/list"
	"reflect"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/binder"
	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/evaluator"
)

// DefaultCapacity is used when New is given a non-positive capacity.
const DefaultCapacity = 256

// Key identifies a compiled program.
type Key string

// NewKey builds the key of a program compiled from source with the given
// parameters, result type and default overflow checking.
func NewKey(source string, params []binder.Parameter, result reflect.Type, checked bool) Key {
	var b strings.Builder
	if checked {
		b.WriteString("checked;")
	} else {
		b.WriteString("unchecked;")
	}
	for _, p := range params {
		b.WriteString(p.Name)
		b.WriteByte(':')
		writeType(&b, p.Type)
		b.WriteByte(',')
	}
	b.WriteString("->")
	writeType(&b, result)
	b.WriteByte(';')
	b.WriteString(source)
	return Key(b.String())
}

// writeType writes a type with its package path so that equally named
// types of different packages do not collide.
func writeType(b *strings.Builder, t reflect.Type) {
	if t == nil {
		b.WriteString("<nil>")
		return
	}
	if pkg := t.PkgPath(); pkg != "" {
		b.WriteString(pkg)
		b.WriteByte('.')
	}
	b.WriteString(t.String())
}

// entry is a cache entry stored in the doubly-linked list.
type entry struct {
	key  Key
	prog *evaluator.Program
}

// Stats counts cache lookups.
type Stats struct {
	Hits   int64
	Misses int64
}

// Cache is a thread-safe LRU (Least Recently Used) cache for compiled
// programs. Once the capacity is reached, the least recently accessed
// entry is evicted.
type Cache struct {
	mu       sync.RWMutex
	capacity int
	ll       *list.List
	items    map[Key]*list.Element

	group  singleflight.Group
	hits   atomic.Int64
	misses atomic.Int64
}

// New creates a new LRU cache with the given capacity.
// capacity must be > 0; if <= 0, DefaultCapacity is used.
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{
		capacity: capacity,
		ll:       list.New(),
		items:    make(map[Key]*list.Element, capacity),
	}
}

// Get retrieves a program from the cache and marks it most recently used.
func (c *Cache) Get(key Key) (*evaluator.Program, bool) {
	c.mu.RLock()
	el, ok := c.items[key]
	var prog *evaluator.Program
	alreadyFront := false
	if ok {
		prog = el.Value.(*entry).prog
		// Skip the write lock when the element is already at the front.
		alreadyFront = c.ll.Front() == el
	}
	c.mu.RUnlock()
	if !ok {
		c.misses.Add(1)
		return nil, false
	}

	if !alreadyFront {
		c.mu.Lock()
		// Re-check in case of a concurrent eviction.
		if el, ok = c.items[key]; ok {
			c.ll.MoveToFront(el)
		}
		c.mu.Unlock()
	}
	c.hits.Add(1)
	return prog, true
}

// Set inserts or replaces a program.
// If at capacity, the least recently used entry is evicted first.
func (c *Cache) Set(key Key, prog *evaluator.Program) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		el.Value.(*entry).prog = prog
		c.ll.MoveToFront(el)
		return
	}

	if c.ll.Len() >= c.capacity {
		c.evictLocked()
	}

	el := c.ll.PushFront(&entry{key: key, prog: prog})
	c.items[key] = el
}

// GetOrCompile retrieves the program for key, or calls compile to create
// it and caches the result. Concurrent misses on one key share a single
// compile call. Errors are not cached. hit reports whether the program
// came from the cache.
func (c *Cache) GetOrCompile(key Key, compile func() (*evaluator.Program, error)) (prog *evaluator.Program, hit bool, err error) {
	if prog, ok := c.Get(key); ok {
		return prog, true, nil
	}
	v, err, _ := c.group.Do(string(key), func() (any, error) {
		if prog, ok := c.peek(key); ok {
			return prog, nil
		}
		prog, err := compile()
		if err != nil {
			return nil, err
		}
		c.Set(key, prog)
		return prog, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.(*evaluator.Program), false, nil
}

// peek looks a key up without touching the recency order or the stats.
func (c *Cache) peek(key Key) (*evaluator.Program, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if el, ok := c.items[key]; ok {
		return el.Value.(*entry).prog, true
	}
	return nil, false
}

// Len returns the number of entries currently in the cache.
func (c *Cache) Len() int {
	c.mu.RLock()
	n := len(c.items)
	c.mu.RUnlock()
	return n
}

// Capacity returns the maximum number of entries the cache can hold.
func (c *Cache) Capacity() int {
	return c.capacity
}

// Stats returns the lookup counters.
func (c *Cache) Stats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load()}
}

// Invalidate removes a single entry from the cache.
func (c *Cache) Invalidate(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.ll.Remove(el)
		delete(c.items, key)
	}
}

// Clear removes all entries from the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ll.Init()
	c.items = make(map[Key]*list.Element, c.capacity)
}

// evictLocked removes the least recently used entry.
// Must be called with c.mu held for writing.
func (c *Cache) evictLocked() {
	el := c.ll.Back()
	if el == nil {
		return
	}
	c.ll.Remove(el)
	delete(c.items, el.Value.(*entry).key)
}
