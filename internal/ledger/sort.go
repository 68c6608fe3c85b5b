package ledger

import (
	"sort"

	"tesouraria/internal/core"
)

func sortEntries(entries []core.Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].Date.Equal(entries[j].Date.Time) {
			return entries[i].Date.Before(entries[j].Date.Time)
		}
		return entries[i].ID < entries[j].ID
	})
}
