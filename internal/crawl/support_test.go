package crawl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	crawlerrors "github.com/Aman-CERP/fieldcrawl/internal/errors"
)

func TestRevisionCache(t *testing.T) {
	c := NewRevisionCache(2)

	c.Remember("a", "1")
	assert.True(t, c.Unchanged("a", "1"))
	assert.False(t, c.Unchanged("a", "2"))
	assert.False(t, c.Unchanged("b", "1"))

	// Items without a revision are never cached.
	c.Remember("b", "")
	assert.False(t, c.Unchanged("b", ""))

	// Eviction keeps the most recent entries.
	c.Remember("b", "1")
	c.Remember("c", "1")
	assert.Equal(t, 2, c.Len())
	assert.False(t, c.Unchanged("a", "1"))

	c.Forget("c")
	assert.False(t, c.Unchanged("c", "1"))
}

func TestRevisionCache_Disabled(t *testing.T) {
	c := NewRevisionCache(0)
	require.Nil(t, c)

	c.Remember("a", "1")
	assert.False(t, c.Unchanged("a", "1"))
	assert.Zero(t, c.Len())
	c.Forget("a")
}

func TestIndexLock_ExclusiveAcrossHandles(t *testing.T) {
	// Given: one crawler holding the lock
	dir := t.TempDir()
	first := NewIndexLock(dir)
	require.NoError(t, first.Acquire())
	assert.True(t, first.IsLocked())
	assert.FileExists(t, first.Path())

	// When: a second crawler tries the same directory
	second := NewIndexLock(dir)
	err := second.Acquire()

	// Then: it is refused with ERR_204
	require.Error(t, err)
	assert.Equal(t, crawlerrors.ErrCodeIndexLocked, crawlerrors.GetCode(err))
	assert.False(t, second.IsLocked())

	// And: after release it succeeds
	require.NoError(t, first.Release())
	require.NoError(t, first.Release())
	require.NoError(t, second.Acquire())
	require.NoError(t, second.Release())
}

func TestProgress(t *testing.T) {
	p := NewProgress(4)
	p.ItemDone(false)
	p.ItemDone(true)

	snap := p.Snapshot()
	assert.Equal(t, "crawling", snap.Status)
	assert.Equal(t, 2, snap.ItemsProcessed)
	assert.Equal(t, 1, snap.ItemsFailed)
	assert.InDelta(t, 50.0, snap.ProgressPct, 0.001)

	p.Finish(StatusDone)
	assert.Equal(t, "done", p.Snapshot().Status)
}
