package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorRecordTiming(t *testing.T) {
	c := NewCollector()
	c.RecordTiming(OpResearch, 30*time.Millisecond)
	c.RecordTiming(OpResearch, 10*time.Millisecond)

	snap := c.Snapshot()
	require.NotNil(t, snap.Research)
	assert.Equal(t, int64(2), snap.Research.Count)
	assert.Equal(t, int64(10), snap.Research.MinTimeMs)
	assert.Equal(t, int64(30), snap.Research.MaxTimeMs)
	assert.Equal(t, int64(40), snap.Research.TotalTimeMs)
	assert.InDelta(t, 20.0, snap.Research.AvgTimeMs, 0.001)
	assert.Nil(t, snap.Research.TotalInputTokens, "plain timings carry no token stats")
	assert.Nil(t, snap.Discover, "operations without data are nil")
}

func TestCollectorLLMUsage(t *testing.T) {
	c := NewCollector()
	c.RecordLLMUsage(OpLLMGenerate, time.Second, 300, 40)
	c.RecordLLMUsage(OpLLMGenerate, time.Second, 100, 60)

	snap := c.Snapshot().LLMGenerate
	require.NotNil(t, snap)
	require.NotNil(t, snap.TotalInputTokens)
	assert.Equal(t, int64(400), *snap.TotalInputTokens)
	assert.Equal(t, int64(100), *snap.TotalOutputTokens)
	assert.Equal(t, int64(300), *snap.MaxInputTokens)
	assert.Equal(t, int64(60), *snap.MaxOutputTokens)
	assert.InDelta(t, 200.0, *snap.AvgInputTokens, 0.001)
}

func TestCollectorConcurrentUse(t *testing.T) {
	c := NewCollector()
	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.RecordTiming(OpIdentify, time.Millisecond)
			_ = c.Snapshot()
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(20), c.Snapshot().Identify.Count)
}

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector
	c.RecordTiming(OpExport, time.Millisecond)
	c.Since(OpExport, time.Now())
	c.RecordLLMUsage(OpLLMGenerate, time.Millisecond, 1, 1)
	assert.Equal(t, Snapshot{}, c.Snapshot())
}
