package dataset

import (
	"item-diversity/internal/purchases"
)

// Tables accumulates the output rows of a batch. Raw match documents are
// never retained, only the rows extracted from them.
type Tables struct {
	Mythics []purchases.MythicRow
	Items   []purchases.ItemRow

	Matches            int
	MalformedTimelines int
}

// Append adds the rows of one match, preserving per-player order
func (t *Tables) Append(f *purchases.MatchFeatures) {
	t.Mythics = append(t.Mythics, f.MythicRows()...)
	t.Items = append(t.Items, f.ItemRows()...)
	t.Matches++
	if f.TimelineErr != nil {
		t.MalformedTimelines++
	}
}

// Merge appends the rows of another batch. Batches must use disjoint match
// ordinals for the combined table to stay groupable.
func (t *Tables) Merge(other *Tables) {
	if other == nil {
		return
	}
	t.Mythics = append(t.Mythics, other.Mythics...)
	t.Items = append(t.Items, other.Items...)
	t.Matches += other.Matches
	t.MalformedTimelines += other.MalformedTimelines
}
