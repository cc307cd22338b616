package graphlens_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aretw0/graphlens"
	"github.com/aretw0/graphlens/internal/metrics"
	"github.com/aretw0/graphlens/pkg/adapters/memory"
	"github.com/aretw0/graphlens/pkg/domain"
	"github.com/aretw0/graphlens/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoNodes = `{
	"last_node_id": 2, "last_link_id": 1,
	"nodes": [
		{"id": 1, "type": "CheckpointLoaderSimple", "pos": [0, 0], "outputs": [{"name": "MODEL", "type": "MODEL"}]},
		{"id": 2, "type": "KSampler", "pos": [300, 0], "inputs": [{"name": "model", "type": "MODEL"}]}
	],
	"links": [[1, 1, 0, 2, 0, "MODEL"], [7, 1, 0, 99, 0, "MODEL"]]
}`

func fixedClock() func() time.Time {
	t := time.UnixMilli(1_700_000_000_000)
	return func() time.Time { return t }
}

func TestViewer_Load(t *testing.T) {
	store := memory.NewStore()
	viewer := graphlens.New(graphlens.WithStore(store), graphlens.WithClock(fixedClock()))
	ctx := context.Background()

	snap, err := viewer.Load(ctx, "flow.json", []byte(twoNodes))
	require.NoError(t, err)

	assert.Equal(t, "flow.json", snap.Filename)
	assert.Len(t, snap.Graph.Nodes, 2)
	assert.Len(t, snap.Graph.Links, 1, "link to a missing node is dropped")
	assert.Len(t, snap.Digest, 64)
	assert.Same(t, snap, viewer.Current())

	entry, err := store.Get(ctx, "flow.json")
	require.NoError(t, err)
	assert.Equal(t, int64(1_700_000_000_000), entry.Timestamp)
	assert.Equal(t, snap.Digest, entry.Digest)
	assert.JSONEq(t, twoNodes, entry.Content)
}

func TestViewer_FailedLoadKeepsCurrent(t *testing.T) {
	viewer := graphlens.New()
	ctx := context.Background()

	first, err := viewer.Load(ctx, "flow.json", []byte(twoNodes))
	require.NoError(t, err)

	_, err = viewer.Load(ctx, "broken.json", []byte("{nope"))
	assert.ErrorIs(t, err, domain.ErrMalformedJSON)

	_, err = viewer.Load(ctx, "notes.txt", []byte("{}"))
	assert.ErrorIs(t, err, domain.ErrUnsupportedFileType)

	assert.Same(t, first, viewer.Current())
	history, err := viewer.History(ctx)
	require.NoError(t, err)
	assert.Len(t, history, 1, "failed loads are not recorded")
}

func TestViewer_ReloadFromHistory(t *testing.T) {
	viewer := graphlens.New()
	ctx := context.Background()

	_, err := viewer.Load(ctx, "a.json", []byte(twoNodes))
	require.NoError(t, err)
	_, err = viewer.Load(ctx, "b.json", []byte(`{"nodes":[]}`))
	require.NoError(t, err)
	require.Equal(t, "b.json", viewer.Current().Filename)

	snap, err := viewer.Reload(ctx, "a.json")
	require.NoError(t, err)
	assert.Equal(t, "a.json", viewer.Current().Filename)
	assert.Len(t, snap.Graph.Nodes, 2)

	_, err = viewer.Reload(ctx, "missing.json")
	assert.ErrorIs(t, err, domain.ErrHistoryNotFound)
}

func TestViewer_ReloadPNGEntryAsJSON(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, domain.HistoryEntry{Filename: "image.png", Content: twoNodes, Timestamp: 1}))

	snap, err := graphlens.New(graphlens.WithStore(store)).Reload(ctx, "image.png")

	require.NoError(t, err)
	assert.Equal(t, "json", snap.Source)
	assert.NotEmpty(t, snap.Digest)
}

func TestViewer_Forget(t *testing.T) {
	viewer := graphlens.New()
	ctx := context.Background()
	_, err := viewer.Load(ctx, "a.json", []byte(twoNodes))
	require.NoError(t, err)

	require.NoError(t, viewer.Forget(ctx, "a.json"))
	require.NoError(t, viewer.Forget(ctx, "a.json"))

	history, err := viewer.History(ctx)
	require.NoError(t, err)
	assert.Empty(t, history)
	assert.NotNil(t, viewer.Current(), "forgetting does not clear the screen")
}

func TestViewer_ProjectCurrent(t *testing.T) {
	viewer := graphlens.New()
	_, err := viewer.ProjectCurrent(domain.Viewport{Width: 100, Height: 100})
	assert.ErrorIs(t, err, domain.ErrNoGraphLoaded)

	_, err = viewer.Load(context.Background(), "a.json", []byte(twoNodes))
	require.NoError(t, err)

	small, err := viewer.ProjectCurrent(domain.Viewport{Width: 100, Height: 100})
	require.NoError(t, err)
	assert.Equal(t, 0.8, small.Camera.Scale)
}

func TestViewer_Subscribe(t *testing.T) {
	viewer := graphlens.New(graphlens.WithMetrics(metrics.New()))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, unsubscribe := viewer.Subscribe(ctx)
	defer unsubscribe()

	_, err := viewer.Load(ctx, "a.json", []byte(twoNodes))
	require.NoError(t, err)
	_, _ = viewer.Load(ctx, "bad.json", []byte("["))
	require.NoError(t, viewer.Forget(ctx, "a.json"))

	var got []domain.LoadEvent
	for i := 0; i < 3; i++ {
		select {
		case ev := <-events:
			got = append(got, ev)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for event %d", i)
		}
	}

	assert.Equal(t, domain.EventLoaded, got[0].Type)
	assert.Equal(t, 2, got[0].Nodes)
	assert.Equal(t, 1, got[0].Dropped)
	assert.NotEmpty(t, got[0].ID)
	assert.Equal(t, domain.EventFailed, got[1].Type)
	assert.NotEmpty(t, got[1].Error)
	assert.Equal(t, domain.EventForgotten, got[2].Type)

	unsubscribe()
	_, open := <-events
	assert.False(t, open, "channel is closed after unsubscribe")
}

func TestViewer_SubscribeEndsWithContext(t *testing.T) {
	viewer := graphlens.New()
	ctx, cancel := context.WithCancel(context.Background())
	events, _ := viewer.Subscribe(ctx)

	cancel()

	select {
	case _, open := <-events:
		assert.False(t, open)
	case <-time.After(time.Second):
		t.Fatal("subscription did not end with its context")
	}
}

func TestViewer_LifecycleHooks(t *testing.T) {
	var loaded, failed []string
	viewer := graphlens.New(graphlens.WithLifecycleHooks(domain.LifecycleHooks{
		OnLoad:    func(_ context.Context, e *domain.LoadEvent) { loaded = append(loaded, e.Filename) },
		OnFailure: func(_ context.Context, e *domain.LoadEvent) { failed = append(failed, e.Filename) },
	}))
	ctx := context.Background()

	_, _ = viewer.Load(ctx, "ok.json", []byte(`{"nodes":[]}`))
	_, _ = viewer.Load(ctx, "bad.png", []byte("not a png"))

	assert.Equal(t, []string{"ok.json"}, loaded)
	assert.Equal(t, []string{"bad.png"}, failed)
}

type failingStore struct{ ports.HistoryStore }

func (failingStore) Put(context.Context, domain.HistoryEntry) error {
	return errors.New("disk full")
}

func TestViewer_StoreFailure(t *testing.T) {
	viewer := graphlens.New(graphlens.WithStore(failingStore{memory.NewStore()}))

	_, err := viewer.Load(context.Background(), "a.json", []byte(twoNodes))

	assert.ErrorContains(t, err, "disk full")
	assert.Nil(t, viewer.Current())
}

func TestViewer_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := graphlens.New().Load(ctx, "a.json", []byte(twoNodes))

	assert.ErrorIs(t, err, context.Canceled)
}

func TestDigest(t *testing.T) {
	assert.Equal(t, graphlens.Digest([]byte("{}")), graphlens.Digest([]byte("{}")))
	assert.NotEqual(t, graphlens.Digest([]byte("{}")), graphlens.Digest([]byte("[]")))
}

func TestVersion(t *testing.T) {
	assert.Equal(t, "0.1.0", graphlens.Version())
}
