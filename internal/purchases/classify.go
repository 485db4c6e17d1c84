package purchases

import (
	"item-diversity/internal/catalog"
	"item-diversity/internal/storage"
)

// MaxPlayers is the number of participant slots in a match
const MaxPlayers = 10

// Kind is the normalized kind of an item event
type Kind int

const (
	KindPurchase Kind = iota
	KindUndo
	KindSale
)

func (k Kind) String() string {
	switch k {
	case KindPurchase:
		return "purchase"
	case KindUndo:
		return "undo"
	case KindSale:
		return "sale"
	default:
		return "unknown"
	}
}

// Event is a normalized item event of one player.
// For an undo, ItemID is the item being undone.
type Event struct {
	ItemID    int
	Timestamp int64
	Kind      Kind
}

func (e Event) IsPurchase() bool { return e.Kind == KindPurchase }
func (e Event) IsSale() bool     { return e.Kind == KindSale }

// PlayerEvents holds the two tier streams of one player in received order
type PlayerEvents struct {
	Legendary []Event
	Mythic    []Event
}

// Ledger holds the classified item events of one match by player slot
type Ledger struct {
	players [MaxPlayers]PlayerEvents
}

// Player returns the streams for slot 1..10. Out-of-range slots are empty.
func (l *Ledger) Player(slot int) PlayerEvents {
	if slot < 1 || slot > MaxPlayers {
		return PlayerEvents{}
	}
	return l.players[slot-1]
}

// Len returns the number of classified events across all players
func (l *Ledger) Len() int {
	n := 0
	for _, p := range l.players {
		n += len(p.Legendary) + len(p.Mythic)
	}
	return n
}

// Classify buckets the item events of a timeline by player slot and tier.
// Aliases are not resolved here: undo matching works on raw ids.
func Classify(tl storage.Timeline, cat *catalog.Catalog) *Ledger {
	ledger := &Ledger{}

	for _, frame := range tl.Frames {
		for _, raw := range frame.Events {
			ev, ok := normalize(raw)
			if !ok {
				continue
			}
			if raw.ParticipantID < 1 || raw.ParticipantID > MaxPlayers {
				continue
			}

			p := &ledger.players[raw.ParticipantID-1]
			switch cat.TierOf(ev.ItemID) {
			case catalog.TierLegendary:
				p.Legendary = append(p.Legendary, ev)
			case catalog.TierMythic:
				p.Mythic = append(p.Mythic, ev)
			}
		}
	}

	return ledger
}

// normalize maps a raw timeline event onto its effective item and kind
func normalize(raw storage.Event) (Event, bool) {
	switch raw.Type {
	case storage.EventItemPurchased:
		return Event{ItemID: raw.ItemID, Timestamp: raw.Timestamp, Kind: KindPurchase}, true
	case storage.EventItemUndo:
		return Event{ItemID: raw.BeforeID, Timestamp: raw.Timestamp, Kind: KindUndo}, true
	case storage.EventItemSold:
		return Event{ItemID: raw.ItemID, Timestamp: raw.Timestamp, Kind: KindSale}, true
	default:
		return Event{}, false
	}
}
