package filters

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type commits struct {
	mu     sync.Mutex
	values []string
}

func (c *commits) add(v string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values = append(c.values, v)
}

func (c *commits) get() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string{}, c.values...)
}

func TestDebouncerCommitsTrailingValue(t *testing.T) {
	var got commits
	d := NewDebouncer(20*time.Millisecond, got.add)
	defer d.Stop()

	d.Push("a")
	d.Push("ab")
	d.Push("abc")

	assert.Eventually(t, func() bool { return len(got.get()) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, []string{"abc"}, got.get())
}

func TestDebouncerStopDropsPending(t *testing.T) {
	var got commits
	d := NewDebouncer(10*time.Millisecond, got.add)

	d.Push("x")
	d.Stop()
	d.Push("y")

	time.Sleep(40 * time.Millisecond)
	assert.Empty(t, got.get())
}

func TestDebouncerCancelAllowsLaterPushes(t *testing.T) {
	var got commits
	d := NewDebouncer(10*time.Millisecond, got.add)
	defer d.Stop()

	d.Push("x")
	d.Cancel()
	d.Push("y")

	assert.Eventually(t, func() bool { return len(got.get()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"y"}, got.get())
}

func TestDebouncerCancelWaitsForRunningCommit(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var got commits
	d := NewDebouncer(time.Millisecond, func(v string) {
		close(entered)
		<-release
		got.add(v)
	})
	defer d.Stop()

	d.Push("stale")
	<-entered

	var cancelled atomic.Bool
	go func() {
		d.Cancel()
		cancelled.Store(true)
	}()

	assert.Never(t, cancelled.Load, 30*time.Millisecond, 5*time.Millisecond)
	close(release)
	assert.Eventually(t, cancelled.Load, time.Second, time.Millisecond)
	assert.Equal(t, []string{"stale"}, got.get())
}

func TestClearAfterCommitIsNotOverwritten(t *testing.T) {
	store, _ := newTestStore(&stubCounter{}, nil)
	defer store.Close()

	for i := 0; i < 20; i++ {
		store.SetFilterSearchTerm("aws")
		time.Sleep(20 * time.Millisecond)
		store.ClearAllFilters()

		time.Sleep(25 * time.Millisecond)
		assert.Empty(t, store.DebouncedFilterSearchTerm())
	}
}
