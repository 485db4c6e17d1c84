package db

import (
	"context"
	"fmt"

	"item-diversity/internal/storage"

	json "github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
)

// Player is a crawl candidate
type Player struct {
	PUUID    string `json:"puuid"`
	GameName string `json:"gameName"`
	TagLine  string `json:"tagLine"`
}

// Migrate creates the region's tables if they don't exist
func (s *Store) Migrate(ctx context.Context) error {
	queries := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			puuid TEXT PRIMARY KEY,
			game_name TEXT NOT NULL DEFAULT '',
			tag_line TEXT NOT NULL DEFAULT '',
			added_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, s.table("players")),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			puuid TEXT PRIMARY KEY,
			processed_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, s.table("processed_players")),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			seq BIGSERIAL,
			match_id TEXT PRIMARY KEY,
			queue_id INTEGER NOT NULL,
			game_duration INTEGER NOT NULL,
			game_creation BIGINT NOT NULL,
			game_version TEXT NOT NULL DEFAULT '',
			participants JSONB NOT NULL,
			timeline JSONB,
			collected_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, s.table("matches")),
	}

	for _, query := range queries {
		if _, err := s.pool.Exec(ctx, query); err != nil {
			return fmt.Errorf("failed to migrate %s: %w", s.region, err)
		}
	}
	return nil
}

// PlayerIDs returns the PUUIDs of every known player
func (s *Store) PlayerIDs(ctx context.Context) ([]string, error) {
	return s.ids(ctx, fmt.Sprintf(`SELECT puuid FROM %s ORDER BY added_at, puuid`, s.table("players")))
}

// ProcessedPlayerIDs returns the PUUIDs of players whose history was crawled
func (s *Store) ProcessedPlayerIDs(ctx context.Context) ([]string, error) {
	return s.ids(ctx, fmt.Sprintf(`SELECT puuid FROM %s`, s.table("processed_players")))
}

// MatchIDs returns the ids of every stored match
func (s *Store) MatchIDs(ctx context.Context) ([]string, error) {
	return s.ids(ctx, fmt.Sprintf(`SELECT match_id FROM %s`, s.table("matches")))
}

func (s *Store) ids(ctx context.Context, query string) ([]string, error) {
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// SavePlayer inserts a player, filling in a missing riot id on conflict
func (s *Store) SavePlayer(ctx context.Context, p Player) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %[1]s (puuid, game_name, tag_line)
		VALUES ($1, $2, $3)
		ON CONFLICT (puuid) DO UPDATE SET
			game_name = COALESCE(NULLIF(EXCLUDED.game_name, ''), %[1]s.game_name),
			tag_line = COALESCE(NULLIF(EXCLUDED.tag_line, ''), %[1]s.tag_line)
	`, s.table("players")), p.PUUID, p.GameName, p.TagLine)
	return err
}

// MarkProcessed records that a player's history was crawled
func (s *Store) MarkProcessed(ctx context.Context, puuid string) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (puuid) VALUES ($1)
		ON CONFLICT (puuid) DO NOTHING
	`, s.table("processed_players")), puuid)
	return err
}

// SaveMatch inserts a match document if it doesn't exist and reports
// whether it was new
func (s *Store) SaveMatch(ctx context.Context, doc *storage.MatchDocument) (bool, error) {
	participants, err := json.Marshal(doc.Participants)
	if err != nil {
		return false, fmt.Errorf("failed to marshal participants of %s: %w", doc.MatchID, err)
	}
	var timeline []byte
	if len(doc.RawTimeline) > 0 {
		timeline = []byte(doc.RawTimeline)
	}

	tag, err := s.pool.Exec(ctx, fmt.Sprintf(`
		INSERT INTO %s (match_id, queue_id, game_duration, game_creation, game_version, participants, timeline)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (match_id) DO NOTHING
	`, s.table("matches")), doc.MatchID, doc.QueueID, doc.GameDuration, doc.GameCreation, doc.GameVersion, participants, timeline)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// MatchCount returns the number of stored matches
func (s *Store) MatchCount(ctx context.Context) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, s.table("matches"))).Scan(&count)
	return count, err
}

// EachMatch streams every stored match in insertion order. Only the current
// row is held in memory.
func (s *Store) EachMatch(ctx context.Context, fn func(doc *storage.MatchDocument) error) error {
	rows, err := s.pool.Query(ctx, fmt.Sprintf(`
		SELECT match_id, queue_id, game_duration, game_creation, game_version, participants, timeline
		FROM %s
		ORDER BY seq
	`, s.table("matches")))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			doc          storage.MatchDocument
			participants []byte
			timeline     []byte
		)
		if err := rows.Scan(&doc.MatchID, &doc.QueueID, &doc.GameDuration, &doc.GameCreation,
			&doc.GameVersion, &participants, &timeline); err != nil {
			return err
		}
		if err := json.Unmarshal(participants, &doc.Participants); err != nil {
			return fmt.Errorf("failed to decode participants of %s: %w", doc.MatchID, err)
		}
		doc.RawTimeline = timeline

		if err := fn(&doc); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Each implements dataset.Source
func (s *Store) Each(ctx context.Context, fn func(doc *storage.MatchDocument) error) error {
	return s.EachMatch(ctx, fn)
}
