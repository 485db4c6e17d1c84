package storage

import (
	json "github.com/goccy/go-json"
)

// Timeline event type tags
const (
	EventItemPurchased = "ITEM_PURCHASED"
	EventItemUndo      = "ITEM_UNDO"
	EventItemSold      = "ITEM_SOLD"
)

// MatchDocument is one collected match: detail metadata plus the raw timeline.
// It is the unit stored in the document store and written to JSONL spool files.
type MatchDocument struct {
	MatchID      string        `json:"matchId"`
	QueueID      int           `json:"queueId"`
	GameDuration int           `json:"gameDuration"` // seconds
	GameCreation int64         `json:"gameCreation"` // unix ms
	GameVersion  string        `json:"gameVersion,omitempty"`
	Participants []Participant `json:"participants"`

	// Raw timeline info, decoded lazily so a malformed timeline does not
	// invalidate the rest of the document
	RawTimeline json.RawMessage `json:"timeline,omitempty"`
}

// Participant is one player slot of a match
type Participant struct {
	ParticipantID int    `json:"participantId"` // 1..10
	PUUID         string `json:"puuid,omitempty"`
	ChampionID    int    `json:"championId"`
}

// Timeline is the decoded frame/event stream of a match
type Timeline struct {
	Frames []Frame `json:"frames"`
}

type Frame struct {
	Timestamp int64   `json:"timestamp"`
	Events    []Event `json:"events"`
}

// Event is a raw timeline event. Only item events are relevant here.
type Event struct {
	Type          string `json:"type"`
	Timestamp     int64  `json:"timestamp"`
	ParticipantID int    `json:"participantId,omitempty"`
	ItemID        int    `json:"itemId,omitempty"`
	BeforeID      int    `json:"beforeId,omitempty"`
	AfterID       int    `json:"afterId,omitempty"`
}

// Timeline decodes the raw timeline. Missing or malformed data yields an
// empty timeline and the decode error, which callers may ignore.
func (d *MatchDocument) Timeline() (Timeline, error) {
	var tl Timeline
	if len(d.RawTimeline) == 0 {
		return tl, nil
	}
	if err := json.Unmarshal(d.RawTimeline, &tl); err != nil {
		return Timeline{}, err
	}
	return tl, nil
}

// SetTimeline encodes tl as the document's raw timeline
func (d *MatchDocument) SetTimeline(tl interface{}) error {
	data, err := json.Marshal(tl)
	if err != nil {
		return err
	}
	d.RawTimeline = data
	return nil
}

// ChampionBySlot returns the champion played in each slot, index 0 = slot 1
func (d *MatchDocument) ChampionBySlot() [10]int {
	var champs [10]int
	for _, p := range d.Participants {
		if p.ParticipantID >= 1 && p.ParticipantID <= 10 {
			champs[p.ParticipantID-1] = p.ChampionID
		}
	}
	return champs
}
