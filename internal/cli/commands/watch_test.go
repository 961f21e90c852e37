package commands

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapetl/internal/engine"
	"github.com/leapstack-labs/leapetl/internal/testutil"
	"github.com/leapstack-labs/leapetl/pkg/compiler"
)

func TestFileWatcher(t *testing.T) {
	dir := t.TempDir()
	root := writeFile(t, filepath.Join(dir, "root.yaml"), "a")
	imported := filepath.Join(dir, "shared", "base.yaml")
	writeFile(t, imported, "b")
	sibling := writeFile(t, filepath.Join(dir, "notes.txt"), "c")

	fw, err := newFileWatcher(testutil.NewTestLogger(t), 20*time.Millisecond, []string{root})
	require.NoError(t, err)
	defer func() { _ = fw.Close() }()

	var calls atomic.Int32
	var mu sync.Mutex
	var seen [][]string
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = fw.loop(ctx, func(_ context.Context, changed []string) []string {
			mu.Lock()
			seen = append(seen, changed)
			mu.Unlock()
			calls.Add(1)
			// The re-run discovered an import.
			return []string{root, imported}
		})
	}()
	defer func() {
		cancel()
		wg.Wait()
	}()

	require.NoError(t, os.WriteFile(sibling, []byte("changed"), 0o644))
	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, calls.Load(), "unwatched files are ignored")

	// A burst of writes triggers one re-run.
	for i := range 3 {
		require.NoError(t, os.WriteFile(root, []byte{byte('a' + i)}, 0o644))
	}
	require.Eventually(t, func() bool { return calls.Load() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(imported, []byte("changed"), 0o644))
	require.Eventually(t, func() bool { return calls.Load() == 2 }, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, [][]string{{root}, {imported}}, seen)
}

func TestWatchedFiles_FallsBackToRoot(t *testing.T) {
	root := writeFile(t, filepath.Join(t.TempDir(), "root.yaml"), "a")
	assert.Equal(t, []string{root}, watchedFiles(root, nil))
}

func TestAffectedDocuments(t *testing.T) {
	last := &engine.Result{Plan: &compiler.Plan{
		Document: "/p/root.yaml",
		Files:    []string{"/p/root.yaml", "/p/mid.yaml", "/p/base.yaml"},
		Imports: []compiler.Import{
			{From: "/p/root.yaml", To: "/p/mid.yaml"},
			{From: "/p/mid.yaml", To: "/p/base.yaml"},
		},
	}}

	affected, ok := affectedDocuments(last, []string{"/p/base.yaml"})
	require.True(t, ok)
	assert.Equal(t, []string{"/p/base.yaml", "/p/mid.yaml", "/p/root.yaml"}, affected)

	affected, ok = affectedDocuments(last, []string{"/p/other.yaml"})
	require.True(t, ok)
	assert.Empty(t, affected, "files outside the import graph do not re-run")

	_, ok = affectedDocuments(&engine.Result{}, []string{"/p/root.yaml"})
	assert.False(t, ok, "without a compiled plan every change re-runs")
}
