package rembg

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWatcher_InvalidSchedule(t *testing.T) {
	_, err := NewWatcher(newProcessor(t), "every so often", t.TempDir(), "")
	assert.Error(t, err)
}

func TestWatcher_Run(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "a.png"), white)

	p := newProcessor(t)
	w, err := NewWatcher(p, "@every 1s", dir, "")
	require.NoError(t, err)
	assert.Nil(t, w.LastReport())
	assert.False(t, p.skipUpToDate)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = w.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		return w.Runs() >= 2
	}, 5*time.Second, 50*time.Millisecond)
	cancel()
	wg.Wait()

	assert.FileExists(t, filepath.Join(dir, "a-nobg.png"))
	last := w.LastReport()
	require.NotNil(t, last)
	assert.Equal(t, 0, last.Succeeded)
	assert.Equal(t, 1, last.Skipped)
}
