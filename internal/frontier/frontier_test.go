package frontier

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrontier_Lifecycle(t *testing.T) {
	f := New(10, "a/root")
	assert.Equal(t, Queued, f.State("a/root"))
	assert.Equal(t, Unseen, f.State("b/x"))

	id, ok := f.Pop()
	require.True(t, ok)
	assert.Equal(t, "a/root", id)
	assert.Equal(t, Expanding, f.State("a/root"))
	assert.Equal(t, 1, f.Visited())

	f.Done(id)
	assert.Equal(t, Visited, f.State("a/root"))

	_, ok = f.Pop()
	assert.False(t, ok)
	assert.True(t, f.Exhausted())
}

func TestFrontier_PushDeduplicates(t *testing.T) {
	f := New(10, "a/root")

	assert.False(t, f.Push("a/root"), "already queued")
	assert.False(t, f.Push("A/Root"), "case-insensitive")
	assert.False(t, f.Push("  "))
	assert.True(t, f.Push("b/x"))
	assert.Equal(t, 2, f.Queued())

	id, _ := f.Pop()
	assert.Equal(t, "b/x", id, "last pushed pops first")
	assert.False(t, f.Push("b/x"), "expanding")
	f.Done(id)
	assert.False(t, f.Push("b/x"), "visited")
	assert.Equal(t, 1, f.Queued())
}

func TestFrontier_CapStopsPops(t *testing.T) {
	f := New(1, "a/root")
	f.Push("b/x")

	id, ok := f.Pop()
	require.True(t, ok)
	f.Done(id)

	_, ok = f.Pop()
	assert.False(t, ok)
	assert.True(t, f.CapReached())
	assert.Equal(t, 1, f.Queued(), "discovered but never visited")
	assert.Equal(t, Queued, f.State("a/root"))
}

func TestFrontier_DoneIgnoresNonExpanding(t *testing.T) {
	f := New(5, "a/root")
	f.Done("a/root")
	assert.Equal(t, Queued, f.State("a/root"))
}

func TestFrontier_ConcurrentPopsNeverDuplicate(t *testing.T) {
	for trial := 0; trial < 20; trial++ {
		maxRepos := rand.Intn(200) + 1
		f := New(maxRepos)
		for i := 0; i < 300; i++ {
			f.Push(fmt.Sprintf("o/r%d", i))
		}

		var mu sync.Mutex
		seen := make(map[string]int)
		var wg sync.WaitGroup
		for w := 0; w < 8; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					id, ok := f.Pop()
					if !ok {
						return
					}
					f.Push(id + "-child")
					mu.Lock()
					seen[id]++
					mu.Unlock()
					f.Done(id)
				}
			}()
		}
		wg.Wait()

		assert.LessOrEqual(t, len(seen), maxRepos)
		assert.Equal(t, f.Visited(), len(seen))
		for id, n := range seen {
			assert.Equal(t, 1, n, id)
			assert.Equal(t, Visited, f.State(id))
		}
	}
}
