package tests

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/aretw0/graphlens/pkg/domain"
	"github.com/aretw0/graphlens/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunHistoryStoreContract is a reusable test suite that verifies if an
// adapter complies with ports.HistoryStore. The store must start empty.
func RunHistoryStoreContract(t *testing.T, store ports.HistoryStore) {
	t.Helper()
	ctx := context.Background()

	t.Run("Put_And_Get", func(t *testing.T) {
		entry := domain.HistoryEntry{
			Filename:  "portrait.png",
			Content:   `{"nodes":[{"id":1,"type":"Note","widgets_values":["héllo"]}]}`,
			Timestamp: 1700000000000,
			Digest:    "abc123",
		}
		require.NoError(t, store.Put(ctx, entry))

		got, err := store.Get(ctx, "portrait.png")
		require.NoError(t, err)
		assert.Equal(t, entry, *got)
	})

	t.Run("Get_NotFound", func(t *testing.T) {
		_, err := store.Get(ctx, "missing.json")
		assert.ErrorIs(t, err, domain.ErrHistoryNotFound)
	})

	t.Run("Put_Overwrites", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, domain.HistoryEntry{Filename: "same.json", Content: `{"v":1}`, Timestamp: 1}))
		require.NoError(t, store.Put(ctx, domain.HistoryEntry{Filename: "same.json", Content: `{"v":2}`, Timestamp: 2}))

		got, err := store.Get(ctx, "same.json")
		require.NoError(t, err)
		assert.Equal(t, `{"v":2}`, got.Content)
		assert.Equal(t, int64(2), got.Timestamp)

		list, err := store.List(ctx)
		require.NoError(t, err)
		count := 0
		for _, e := range list {
			if e.Filename == "same.json" {
				count++
			}
		}
		assert.Equal(t, 1, count, "filename must appear once")
	})

	t.Run("List_MostRecentFirst", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, domain.HistoryEntry{Filename: "old.json", Content: "{}", Timestamp: 10}))
		require.NoError(t, store.Put(ctx, domain.HistoryEntry{Filename: "new.json", Content: "{}", Timestamp: 9_000_000_000_000}))
		require.NoError(t, store.Put(ctx, domain.HistoryEntry{Filename: "mid.json", Content: "{}", Timestamp: 5000}))

		list, err := store.List(ctx)
		require.NoError(t, err)
		require.NotEmpty(t, list)
		assert.Equal(t, "new.json", list[0].Filename)
		for i := 1; i < len(list); i++ {
			assert.GreaterOrEqual(t, list[i-1].Timestamp, list[i].Timestamp, "list must be sorted by timestamp descending")
		}
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, domain.HistoryEntry{Filename: "gone.json", Content: "{}", Timestamp: 3}))
		require.NoError(t, store.Delete(ctx, "gone.json"))

		_, err := store.Get(ctx, "gone.json")
		assert.ErrorIs(t, err, domain.ErrHistoryNotFound)

		list, err := store.List(ctx)
		require.NoError(t, err)
		for _, e := range list {
			assert.NotEqual(t, "gone.json", e.Filename)
		}
	})

	t.Run("Delete_Missing", func(t *testing.T) {
		assert.NoError(t, store.Delete(ctx, "never-stored.json"))
	})

	t.Run("Unusual_Filenames", func(t *testing.T) {
		names := []string{"dir/with/slash.json", "spaces and ümlauts.png", "a:b*c?.json", strings.Repeat("x", 200) + ".json"}
		for _, name := range names {
			require.NoError(t, store.Put(ctx, domain.HistoryEntry{Filename: name, Content: "{}", Timestamp: 4}))
			got, err := store.Get(ctx, name)
			require.NoError(t, err, name)
			assert.Equal(t, name, got.Filename)
			require.NoError(t, store.Delete(ctx, name))
		}
	})

	t.Run("Concurrent_Puts", func(t *testing.T) {
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_ = store.Put(ctx, domain.HistoryEntry{Filename: "race.json", Content: "{}", Timestamp: int64(100 + i)})
			}(i)
		}
		wg.Wait()

		got, err := store.Get(ctx, "race.json")
		require.NoError(t, err)
		assert.Equal(t, "race.json", got.Filename)
	})
}
