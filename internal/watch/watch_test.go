package watch_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/graphlens"
	"github.com/aretw0/graphlens/internal/watch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLoader struct {
	mu    sync.Mutex
	names []string
	seen  chan string
}

func newRecordingLoader() *recordingLoader {
	return &recordingLoader{seen: make(chan string, 16)}
}

func (l *recordingLoader) Load(_ context.Context, filename string, _ []byte) (*graphlens.Snapshot, error) {
	l.mu.Lock()
	l.names = append(l.names, filename)
	l.mu.Unlock()
	l.seen <- filename
	return &graphlens.Snapshot{Filename: filename}, nil
}

func (l *recordingLoader) wait(t *testing.T) string {
	t.Helper()
	select {
	case name := <-l.seen:
		return name
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for a load")
		return ""
	}
}

func start(t *testing.T, w *watch.Watcher) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestWatcher_LoadsMatchingFiles(t *testing.T) {
	dir := t.TempDir()
	loader := newRecordingLoader()
	w, err := watch.New(dir, loader, watch.WithDebounce(20*time.Millisecond))
	require.NoError(t, err)
	start(t, w)
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "flow.json"), []byte(`{"nodes":[]}`), 0o644))

	assert.Equal(t, "flow.json", loader.wait(t))
}

func TestWatcher_NewSubdirectory(t *testing.T) {
	dir := t.TempDir()
	loader := newRecordingLoader()
	w, err := watch.New(dir, loader, watch.WithDebounce(20*time.Millisecond))
	require.NoError(t, err)
	start(t, w)
	time.Sleep(50 * time.Millisecond)

	sub := filepath.Join(dir, "renders")
	require.NoError(t, os.Mkdir(sub, 0o755))
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(sub, "out.png"), []byte("\x89PNG"), 0o644))

	assert.Equal(t, "renders/out.png", loader.wait(t))
}

func TestWatcher_DebouncesBursts(t *testing.T) {
	dir := t.TempDir()
	loader := newRecordingLoader()
	w, err := watch.New(dir, loader, watch.WithDebounce(100*time.Millisecond))
	require.NoError(t, err)
	start(t, w)
	time.Sleep(50 * time.Millisecond)

	path := filepath.Join(dir, "flow.json")
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte(`{"nodes":[]}`), 0o644))
	}

	assert.Equal(t, "flow.json", loader.wait(t))
	select {
	case name := <-loader.seen:
		t.Fatalf("unexpected second load of %s", name)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcher_InitialScan(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "old.json")
	recent := filepath.Join(dir, "recent.json")
	require.NoError(t, os.WriteFile(old, []byte(`{}`), 0o644))
	require.NoError(t, os.WriteFile(recent, []byte(`{}`), 0o644))
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))

	loader := newRecordingLoader()
	w, err := watch.New(dir, loader, watch.WithInitialScan(true), watch.WithPattern("*.json"))
	require.NoError(t, err)
	start(t, w)

	assert.Equal(t, "old.json", loader.wait(t))
	assert.Equal(t, "recent.json", loader.wait(t))
}

func TestWatcher_WithViewer(t *testing.T) {
	dir := t.TempDir()
	viewer := graphlens.New()
	w, err := watch.New(dir, viewer, watch.WithDebounce(20*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, _ := viewer.Subscribe(ctx)
	start(t, w)
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "flow.json"), []byte(`{"nodes":[{"id":1,"type":"A"}]}`), 0o644))

	select {
	case ev := <-events:
		assert.Equal(t, "flow.json", ev.Filename)
		assert.Equal(t, 1, ev.Nodes)
	case <-time.After(3 * time.Second):
		t.Fatal("viewer never loaded the file")
	}
}

func TestNew_InvalidPattern(t *testing.T) {
	_, err := watch.New(t.TempDir(), newRecordingLoader(), watch.WithPattern("[unclosed"))
	assert.Error(t, err)
}
