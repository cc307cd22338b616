package ports

import (
	"sort"

	"github.com/aretw0/graphlens/pkg/domain"
)

// SortHistory orders entries most recent first. Entries loaded in the same
// millisecond are ordered by filename so listings are stable.
func SortHistory(entries []domain.HistoryEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Timestamp != entries[j].Timestamp {
			return entries[i].Timestamp > entries[j].Timestamp
		}
		return entries[i].Filename < entries[j].Filename
	})
}
