package cache_test

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/binder"
	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/cache"
	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/evaluator"
	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/parser"
	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/syntax"
	"github.com/deniszykov/csharp-eval-unity3d-sub003/pkg/typemodel"
)

func program(t *testing.T, src string) *evaluator.Program {
	t.Helper()
	root, err := parser.ParseString(src)
	require.NoError(t, err)
	node, err := syntax.Canonicalize(root, false)
	require.NoError(t, err)
	expr, err := binder.Bind(node, nil, nil, typemodel.NewKnownTypes())
	require.NoError(t, err)
	prog, err := evaluator.Compile(expr, nil)
	require.NoError(t, err)
	return prog
}

func TestCacheNew(t *testing.T) {
	c := cache.New(10)
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, 10, c.Capacity())
	assert.Equal(t, cache.DefaultCapacity, cache.New(0).Capacity())
}

func TestCacheSetGet(t *testing.T) {
	c := cache.New(4)
	prog := program(t, "1 + 1")
	c.Set("k", prog)
	assert.Equal(t, 1, c.Len())

	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Same(t, prog, got)

	_, ok = c.Get("missing")
	assert.False(t, ok)
	assert.Equal(t, cache.Stats{Hits: 1, Misses: 1}, c.Stats())
}

func TestCacheLRUEviction(t *testing.T) {
	c := cache.New(3)
	prog := program(t, "1")
	for _, k := range []cache.Key{"a", "b", "c"} {
		c.Set(k, prog)
	}
	// Touch "a" so that "b" becomes the least recently used.
	_, ok := c.Get("a")
	require.True(t, ok)
	c.Set("d", prog)

	assert.Equal(t, 3, c.Len())
	_, ok = c.Get("b")
	assert.False(t, ok, `expected "b" to be evicted`)
	_, ok = c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("d")
	assert.True(t, ok)
}

func TestCacheInvalidateAndClear(t *testing.T) {
	c := cache.New(4)
	prog := program(t, "1")
	c.Set("k", prog)
	c.Set("j", prog)
	c.Invalidate("k")
	_, ok := c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Len())

	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestCacheGetOrCompile(t *testing.T) {
	c := cache.New(4)
	prog := program(t, "2 * 3")
	var calls atomic.Int32
	compile := func() (*evaluator.Program, error) {
		calls.Add(1)
		return prog, nil
	}

	got, hit, err := c.GetOrCompile("k", compile)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Same(t, prog, got)

	got, hit, err = c.GetOrCompile("k", compile)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Same(t, prog, got)
	assert.Equal(t, int32(1), calls.Load())
}

func TestCacheGetOrCompileDoesNotCacheErrors(t *testing.T) {
	c := cache.New(4)
	boom := errors.New("boom")
	_, _, err := c.GetOrCompile("k", func() (*evaluator.Program, error) { return nil, boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, c.Len())
}

func TestCacheConcurrentAccess(t *testing.T) {
	c := cache.New(8)
	prog := program(t, "1")
	var wg sync.WaitGroup
	for i := range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			key := cache.Key(fmt.Sprintf("k%d", i%12))
			got, _, err := c.GetOrCompile(key, func() (*evaluator.Program, error) { return prog, nil })
			assert.NoError(t, err)
			assert.Same(t, prog, got)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Len(), 8)
}

func TestNewKey(t *testing.T) {
	params := []binder.Parameter{{Name: "a", Type: reflect.TypeFor[int32]()}}
	base := cache.NewKey("a + 1", params, nil, false)

	assert.Equal(t, base, cache.NewKey("a + 1", params, nil, false))
	assert.NotEqual(t, base, cache.NewKey("a + 1", params, nil, true))
	assert.NotEqual(t, base, cache.NewKey("a + 1", params, reflect.TypeFor[int64](), false))
	assert.NotEqual(t, base, cache.NewKey("a + 1",
		[]binder.Parameter{{Name: "a", Type: reflect.TypeFor[int64]()}}, nil, false))
	assert.NotEqual(t, base, cache.NewKey("a + 2", params, nil, false))
}
