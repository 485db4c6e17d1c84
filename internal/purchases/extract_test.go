package purchases

import (
	"reflect"
	"testing"

	"item-diversity/internal/catalog"
	"item-diversity/internal/storage"
)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New(
		map[int]string{
			infinityEdge: "Infinity Edge",
			rabadon:      "Rabadon's Deathcap",
			botrk:        "Blade of The Ruined King",
			bloodthirst:  "The Bloodthirster",
			ldr:          "Lord Dominik's Regards",
			manamune:     "Manamune",
			muramana:     "Muramana",
		},
		map[int]string{
			kraken:  "Kraken Slayer",
			liandry: "Liandry's Anguish",
			trinity: "Trinity Force",
		},
		map[int]int{muramana: manamune},
	)
	if err != nil {
		t.Fatalf("catalog.New failed: %v", err)
	}
	return cat
}

func purchased(slot, item int, ts int64) storage.Event {
	return storage.Event{Type: storage.EventItemPurchased, ParticipantID: slot, ItemID: item, Timestamp: ts}
}

func undone(slot, before int, ts int64) storage.Event {
	return storage.Event{Type: storage.EventItemUndo, ParticipantID: slot, BeforeID: before, Timestamp: ts}
}

func sold(slot, item int, ts int64) storage.Event {
	return storage.Event{Type: storage.EventItemSold, ParticipantID: slot, ItemID: item, Timestamp: ts}
}

func testDocument(t *testing.T, events ...storage.Event) *storage.MatchDocument {
	t.Helper()
	doc := &storage.MatchDocument{
		MatchID:      "EUW1_5283912345",
		QueueID:      420,
		GameDuration: 1834,
	}
	for slot := 1; slot <= MaxPlayers; slot++ {
		doc.Participants = append(doc.Participants, storage.Participant{ParticipantID: slot, ChampionID: 100 + slot})
	}
	// split across two frames to exercise frame iteration
	half := len(events) / 2
	tl := storage.Timeline{Frames: []storage.Frame{
		{Timestamp: 0, Events: events[:half]},
		{Timestamp: 60000, Events: events[half:]},
	}}
	if err := doc.SetTimeline(tl); err != nil {
		t.Fatalf("SetTimeline failed: %v", err)
	}
	return doc
}

// TestClassify tests tier bucketing, undo id lookup and filtering of irrelevant events
func TestClassify(t *testing.T) {
	cat := testCatalog(t)
	tl := storage.Timeline{Frames: []storage.Frame{{Events: []storage.Event{
		purchased(1, infinityEdge, 10),
		purchased(1, kraken, 20),
		purchased(1, 1001, 30), // boots: no tier
		{Type: storage.EventItemUndo, ParticipantID: 1, ItemID: 9999, BeforeID: infinityEdge, Timestamp: 40},
		sold(2, rabadon, 50),
		purchased(0, infinityEdge, 60),  // not a player
		purchased(11, infinityEdge, 70), // out of range
		{Type: "ITEM_DESTROYED", ParticipantID: 3, ItemID: infinityEdge, Timestamp: 80},
		{Type: "item_purchased", ParticipantID: 3, ItemID: infinityEdge, Timestamp: 90},
	}}}}

	ledger := Classify(tl, cat)

	p1 := ledger.Player(1)
	wantLegendary := []Event{buy(infinityEdge, 10), undo(infinityEdge, 40)}
	if !reflect.DeepEqual(p1.Legendary, wantLegendary) {
		t.Errorf("Player 1 legendary = %+v, want %+v", p1.Legendary, wantLegendary)
	}
	if !reflect.DeepEqual(p1.Mythic, []Event{buy(kraken, 20)}) {
		t.Errorf("Player 1 mythic = %+v", p1.Mythic)
	}

	p2 := ledger.Player(2)
	if !reflect.DeepEqual(p2.Legendary, []Event{sell(rabadon, 50)}) {
		t.Errorf("Player 2 legendary = %+v", p2.Legendary)
	}

	if got := ledger.Len(); got != 4 {
		t.Errorf("Expected 4 classified events, got %d", got)
	}
	if len(ledger.Player(3).Legendary) != 0 {
		t.Error("Expected unknown event kinds to be ignored")
	}
}

// TestClassify_EmptyTimeline tests that a missing timeline yields an empty ledger
func TestClassify_EmptyTimeline(t *testing.T) {
	ledger := Classify(storage.Timeline{}, testCatalog(t))
	if ledger.Len() != 0 {
		t.Errorf("Expected empty ledger, got %d events", ledger.Len())
	}
}

// TestExtract_Rows tests the mythic and combined rows of one match
func TestExtract_Rows(t *testing.T) {
	doc := testDocument(t,
		purchased(1, kraken, 600000),
		purchased(1, infinityEdge, 900000),
		purchased(1, rabadon, 300000),
		purchased(4, liandry, 700000),
		undone(4, liandry, 701000),
		purchased(4, trinity, 705000),
	)

	f := Extract(doc, testCatalog(t), 7)
	if f.TimelineErr != nil {
		t.Fatalf("Unexpected timeline error: %v", f.TimelineErr)
	}

	mythics := f.MythicRows()
	if len(mythics) != MaxPlayers {
		t.Fatalf("Expected %d mythic rows, got %d", MaxPlayers, len(mythics))
	}
	if mythics[0] != (MythicRow{Mythic: kraken, Champion: 101, Queue: 420, GameTimeSeconds: 1834}) {
		t.Errorf("Unexpected row for slot 1: %+v", mythics[0])
	}
	if mythics[3].Mythic != trinity {
		t.Errorf("Expected slot 4 to keep the re-bought mythic, got %d", mythics[3].Mythic)
	}
	if mythics[1].Mythic != 0 || mythics[1].Champion != 102 {
		t.Errorf("Expected empty mythic for slot 2, got %+v", mythics[1])
	}

	items := f.ItemRows()
	want := []ItemRow{
		{Item: rabadon, Mythic: false, Champion: 101, Match: 7, NItems: 3, Queue: 420, GameTimeSeconds: 1834, Position: 1},
		{Item: kraken, Mythic: true, Champion: 101, Match: 7, NItems: 3, Queue: 420, GameTimeSeconds: 1834, Position: 2},
		{Item: infinityEdge, Mythic: false, Champion: 101, Match: 7, NItems: 3, Queue: 420, GameTimeSeconds: 1834, Position: 3},
		{Item: trinity, Mythic: true, Champion: 104, Match: 7, NItems: 1, Queue: 420, GameTimeSeconds: 1834, Position: 1},
	}
	if !reflect.DeepEqual(items, want) {
		t.Errorf("ItemRows() =\n%+v\nwant\n%+v", items, want)
	}
}

// TestExtract_AliasResolvedAfterReconciliation tests that aliases do not short-circuit undo matching
func TestExtract_AliasResolvedAfterReconciliation(t *testing.T) {
	doc := testDocument(t,
		purchased(2, manamune, 100),
		undone(2, muramana, 200), // different raw id, must not cancel Manamune
		purchased(3, muramana, 300),
	)

	f := Extract(doc, testCatalog(t), 0)

	p2 := f.Players[1]
	if len(p2.Retained) != 1 || p2.Retained[0].ItemID != manamune {
		t.Errorf("Expected slot 2 to keep Manamune, got %+v", p2.Retained)
	}
	p3 := f.Players[2]
	if len(p3.Retained) != 1 || p3.Retained[0].ItemID != manamune {
		t.Errorf("Expected Muramana to resolve to Manamune, got %+v", p3.Retained)
	}
}

// TestExtract_MalformedTimeline tests that a bad timeline produces empty purchases instead of failing
func TestExtract_MalformedTimeline(t *testing.T) {
	doc := testDocument(t)
	doc.RawTimeline = []byte(`{"frames": "not-a-list"`)

	f := Extract(doc, testCatalog(t), 3)

	if f.TimelineErr == nil {
		t.Error("Expected timeline error to be recorded")
	}
	if rows := f.MythicRows(); len(rows) != MaxPlayers {
		t.Fatalf("Expected %d mythic rows, got %d", MaxPlayers, len(rows))
	}
	for _, row := range f.MythicRows() {
		if row.Mythic != 0 {
			t.Errorf("Expected no mythic, got %+v", row)
		}
	}
	if rows := f.ItemRows(); len(rows) != 0 {
		t.Errorf("Expected no item rows, got %d", len(rows))
	}
}

// TestExtract_MissingTimeline tests a document collected without timeline
func TestExtract_MissingTimeline(t *testing.T) {
	doc := testDocument(t)
	doc.RawTimeline = nil

	f := Extract(doc, testCatalog(t), 0)
	if f.TimelineErr != nil {
		t.Errorf("Expected missing timeline to be silent, got %v", f.TimelineErr)
	}
	for _, p := range f.Players {
		if p.ItemCount() != 0 || p.FirstMythic != 0 {
			t.Errorf("Expected no purchases for slot %d", p.Slot)
		}
	}
}
