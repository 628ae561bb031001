package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRecordTiming(t *testing.T) {
	c := NewCollector()
	c.RecordTiming(OpEngineRun, 100*time.Millisecond)
	c.RecordTiming(OpEngineRun, 300*time.Millisecond)

	snap := c.Snapshot()
	if assert.NotNil(t, snap.EngineRun) {
		assert.Equal(t, int64(2), snap.EngineRun.Count)
		assert.Equal(t, int64(400), snap.EngineRun.TotalTimeMs)
		assert.Equal(t, 200.0, snap.EngineRun.AvgTimeMs)
		assert.Equal(t, int64(100), snap.EngineRun.MinTimeMs)
		assert.Equal(t, int64(300), snap.EngineRun.MaxTimeMs)
	}
	assert.Nil(t, snap.Submit, "unrecorded operations must be omitted")
	assert.Nil(t, snap.Download)
	assert.GreaterOrEqual(t, snap.UptimeSeconds, 0.0)
}

func TestRecordTimingConcurrent(t *testing.T) {
	c := NewCollector()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				c.RecordTiming(OpSubmit, time.Millisecond)
				c.Snapshot()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(800), c.Snapshot().Submit.Count)
}
