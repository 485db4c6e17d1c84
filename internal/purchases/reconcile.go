package purchases

import (
	"sort"

	"item-diversity/internal/catalog"
)

// MaxRetained is the number of significant items kept per player
const MaxRetained = 5

// Purchase is an item a player still owns as a genuine purchase
type Purchase struct {
	ItemID    int
	Timestamp int64
	Tier      catalog.Tier
	Position  int // 1-based position in the merged sequence, 0 before merging
}

// Result is the reconciled purchase history of one player
type Result struct {
	FirstMythic int        // 0 if none
	Retained    []Purchase // at most MaxRetained, in time order
}

type liveness uint8

const (
	live liveness = iota
	cancelled
)

// Reconcile resolves both tier streams of one player
func Reconcile(p PlayerEvents) Result {
	mythic := FirstMythic(p.Mythic)
	return Result{
		FirstMythic: mythic.ItemID,
		Retained:    Merge(RetainedLegendaries(p.Legendary), mythic, MaxRetained),
	}
}

// FirstMythic returns the mythic the player holds at the end of the observed
// purchase activity. Everything at or after the first sale is ignored, undos
// cancel their purchase and the latest surviving purchase wins. The zero
// Purchase means no mythic.
func FirstMythic(events []Event) Purchase {
	switch len(events) {
	case 0:
		return Purchase{}
	case 1:
		if events[0].IsPurchase() {
			return mythicPurchase(events[0])
		}
		return Purchase{}
	}

	sorted := sortedEvents(events)
	for i, ev := range sorted {
		if ev.IsSale() {
			sorted = sorted[:i]
			break
		}
	}

	survivors := cancelUndone(sorted)
	if len(survivors) == 0 {
		return Purchase{}
	}
	return mythicPurchase(survivors[len(survivors)-1])
}

// RetainedLegendaries returns the legendary purchases not cancelled by an undo,
// in time order. Sales are ignored.
func RetainedLegendaries(events []Event) []Purchase {
	switch len(events) {
	case 0:
		return nil
	case 1:
		if events[0].IsPurchase() {
			return []Purchase{legendaryPurchase(events[0])}
		}
		return nil
	}

	kept := make([]Event, 0, len(events))
	for _, ev := range events {
		if !ev.IsSale() {
			kept = append(kept, ev)
		}
	}

	survivors := cancelUndone(sortedEvents(kept))
	if len(survivors) == 0 {
		return nil
	}

	out := make([]Purchase, len(survivors))
	for i, ev := range survivors {
		out[i] = legendaryPurchase(ev)
	}
	return out
}

// Merge combines legendaries with the mythic (if ItemID != 0) by timestamp and
// keeps the first limit entries. Legendaries win timestamp ties.
func Merge(legendaries []Purchase, mythic Purchase, limit int) []Purchase {
	merged := make([]Purchase, 0, len(legendaries)+1)
	merged = append(merged, legendaries...)
	if mythic.ItemID != 0 {
		merged = append(merged, mythic)
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Timestamp < merged[j].Timestamp
	})

	if limit >= 0 && len(merged) > limit {
		merged = merged[:limit]
	}
	for i := range merged {
		merged[i].Position = i + 1
	}
	return merged
}

// cancelUndone pairs every undo in a time-sorted, sale-free stream with the
// nearest earlier live purchase of the same item and drops both. The live
// purchases are returned in order. An undo without a match is dropped alone.
func cancelUndone(sorted []Event) []Event {
	state := make([]liveness, len(sorted))

	for i, ev := range sorted {
		if ev.Kind != KindUndo {
			continue
		}
		state[i] = cancelled
		for j := i - 1; j >= 0; j-- {
			if state[j] == live && sorted[j].IsPurchase() && sorted[j].ItemID == ev.ItemID {
				state[j] = cancelled
				break
			}
		}
	}

	out := make([]Event, 0, len(sorted))
	for i, ev := range sorted {
		if state[i] == live && ev.IsPurchase() {
			out = append(out, ev)
		}
	}
	return out
}

// sortedEvents returns a copy ordered by (timestamp, kind, item id) so the
// result never depends on delivery order
func sortedEvents(events []Event) []Event {
	out := make([]Event, len(events))
	copy(out, events)
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Timestamp != b.Timestamp {
			return a.Timestamp < b.Timestamp
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.ItemID < b.ItemID
	})
	return out
}

func mythicPurchase(ev Event) Purchase {
	return Purchase{ItemID: ev.ItemID, Timestamp: ev.Timestamp, Tier: catalog.TierMythic}
}

func legendaryPurchase(ev Event) Purchase {
	return Purchase{ItemID: ev.ItemID, Timestamp: ev.Timestamp, Tier: catalog.TierLegendary}
}
