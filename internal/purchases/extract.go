package purchases

import (
	"item-diversity/internal/catalog"
	"item-diversity/internal/storage"
)

// PlayerFeatures is the extracted purchase record of one player slot
type PlayerFeatures struct {
	Slot        int
	ChampionID  int
	FirstMythic int        // 0 if none
	Retained    []Purchase // alias-resolved, at most MaxRetained
}

// ItemCount is the number of retained items (0..MaxRetained)
func (p PlayerFeatures) ItemCount() int {
	return len(p.Retained)
}

// MatchFeatures is the extraction result of one match
type MatchFeatures struct {
	MatchID      string
	Ordinal      int
	QueueID      int
	GameDuration int // seconds
	Players      [MaxPlayers]PlayerFeatures

	// TimelineErr is set when the timeline could not be decoded; the
	// players then have no purchases
	TimelineErr error
}

// MythicRow is one (match, player) row of the mythic table
type MythicRow struct {
	Mythic          int `parquet:"mythic"`
	Champion        int `parquet:"champion"`
	Queue           int `parquet:"queue"`
	GameTimeSeconds int `parquet:"game_time_seconds"`
}

// ItemRow is one (match, player, retained item) row of the combined table
type ItemRow struct {
	Item            int  `parquet:"item"`
	Mythic          bool `parquet:"mythic"`
	Champion        int  `parquet:"champion"`
	Match           int  `parquet:"match"`
	NItems          int  `parquet:"n_items"`
	Queue           int  `parquet:"queue"`
	GameTimeSeconds int  `parquet:"game_time_seconds"`
	Position        int  `parquet:"position"`
}

// Extract classifies, reconciles and resolves the purchases of every player of
// a match. ordinal identifies the match in the combined table and must be
// supplied by the caller.
func Extract(doc *storage.MatchDocument, cat *catalog.Catalog, ordinal int) *MatchFeatures {
	f := &MatchFeatures{
		MatchID:      doc.MatchID,
		Ordinal:      ordinal,
		QueueID:      doc.QueueID,
		GameDuration: doc.GameDuration,
	}

	tl, err := doc.Timeline()
	if err != nil {
		f.TimelineErr = err
	}
	ledger := Classify(tl, cat)
	champions := doc.ChampionBySlot()

	for i := 0; i < MaxPlayers; i++ {
		slot := i + 1
		res := Reconcile(ledger.Player(slot))

		for j := range res.Retained {
			res.Retained[j].ItemID = cat.Resolve(res.Retained[j].ItemID)
		}

		f.Players[i] = PlayerFeatures{
			Slot:        slot,
			ChampionID:  champions[i],
			FirstMythic: res.FirstMythic,
			Retained:    res.Retained,
		}
	}

	return f
}

// MythicRows returns exactly one row per player slot
func (f *MatchFeatures) MythicRows() []MythicRow {
	rows := make([]MythicRow, 0, MaxPlayers)
	for _, p := range f.Players {
		rows = append(rows, MythicRow{
			Mythic:          p.FirstMythic,
			Champion:        p.ChampionID,
			Queue:           f.QueueID,
			GameTimeSeconds: f.GameDuration,
		})
	}
	return rows
}

// ItemRows returns one row per retained item, players in slot order
func (f *MatchFeatures) ItemRows() []ItemRow {
	var rows []ItemRow
	for _, p := range f.Players {
		n := p.ItemCount()
		for _, item := range p.Retained {
			rows = append(rows, ItemRow{
				Item:            item.ItemID,
				Mythic:          item.Tier == catalog.TierMythic,
				Champion:        p.ChampionID,
				Match:           f.Ordinal,
				NItems:          n,
				Queue:           f.QueueID,
				GameTimeSeconds: f.GameDuration,
				Position:        item.Position,
			})
		}
	}
	return rows
}
