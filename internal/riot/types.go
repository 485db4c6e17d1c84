package riot

import (
	json "github.com/goccy/go-json"
)

// AccountResponse represents the response from /riot/account/v1/accounts/by-riot-id
type AccountResponse struct {
	PUUID    string `json:"puuid"`
	GameName string `json:"gameName"`
	TagLine  string `json:"tagLine"`
}

// MatchResponse represents the response from /lol/match/v5/matches/{matchId}
type MatchResponse struct {
	Metadata MatchMetadata `json:"metadata"`
	Info     MatchInfo     `json:"info"`
}

type MatchMetadata struct {
	MatchID      string   `json:"matchId"`
	Participants []string `json:"participants"` // PUUIDs
}

type MatchInfo struct {
	GameCreation int64              `json:"gameCreation"` // unix ms
	GameDuration int                `json:"gameDuration"`
	GameVersion  string             `json:"gameVersion"`
	QueueID      int                `json:"queueId"`
	Participants []MatchParticipant `json:"participants"`
}

type MatchParticipant struct {
	ParticipantID  int    `json:"participantId"`
	PUUID          string `json:"puuid"`
	RiotIdGameName string `json:"riotIdGameName"`
	RiotIdTagline  string `json:"riotIdTagline"`
	ChampionID     int    `json:"championId"`
	ChampionName   string `json:"championName"`
}

// TimelineResponse represents the response from /lol/match/v5/matches/{matchId}/timeline
type TimelineResponse struct {
	Metadata TimelineMetadata `json:"metadata"`

	// Info is kept raw; it is stored as-is and decoded at extraction time
	Info json.RawMessage `json:"info"`
}

type TimelineMetadata struct {
	MatchID      string   `json:"matchId"`
	Participants []string `json:"participants"` // PUUIDs
}
