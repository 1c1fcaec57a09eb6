package log_test

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbkernel/ndbfs/log"
)

type captureOutputter struct {
	mu    sync.Mutex
	level log.Level
	lines []string
}

func (c *captureOutputter) Level() log.Level { return c.level }

func (c *captureOutputter) Output(level log.Level, s string) error {
	if level > c.level {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, s)
	return nil
}

func (c *captureOutputter) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.lines...)
}

func TestLevelGating(t *testing.T) {
	rec := &captureOutputter{level: log.Info}
	prev := log.SetOutputter(rec)
	defer log.SetOutputter(prev)

	log.DebugLog.Printf("worker %d idle", 3)
	log.InfoLog.Printf("opened %s", "/data/T0F0/S0P0.Data")
	log.ErrorLog.Printf("open failed: %v", "ENOENT")

	lines := rec.snapshot()
	require.Len(t, lines, 2)
	assert.True(t, strings.Contains(lines[0], "opened"))
	assert.True(t, strings.Contains(lines[1], "open failed"))
}

func TestAtReflectsInstalledOutputter(t *testing.T) {
	rec := &captureOutputter{level: log.Error}
	prev := log.SetOutputter(rec)
	defer log.SetOutputter(prev)

	assert.True(t, log.At(log.Error))
	assert.False(t, log.At(log.Info))
	assert.False(t, log.At(log.Debug))
}
