package recommend

import (
	"sort"

	"undergroundfm/internal/core"
)

// sortStableByRank orders tracks by combined rank score, highest first.
func sortStableByRank(tracks []core.Track) {
	sort.SliceStable(tracks, func(i, j int) bool {
		return tracks[i].RankScore() > tracks[j].RankScore()
	})
}

// Paginate slices a ranked track list into 1-indexed pages. Pages past the
// end are empty, never an error.
func Paginate(tracks []core.Track, page, pageSize int) ([]core.Track, core.Page) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 1
	}

	meta := core.Page{
		Page:     page,
		PageSize: pageSize,
		Total:    len(tracks),
	}

	start := (page - 1) * pageSize
	if start >= len(tracks) {
		return []core.Track{}, meta
	}

	end := start + pageSize
	if end > len(tracks) {
		end = len(tracks)
	}

	return tracks[start:end], meta
}
