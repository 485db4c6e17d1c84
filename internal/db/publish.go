package db

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"item-diversity/internal/catalog"
	"item-diversity/internal/dataset"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

const publishBatchSize = 100

// Publisher replaces the published result tables of a SQLite-compatible
// database: a remote Turso database or a local SQLite file
type Publisher struct {
	db *sql.DB
}

// NewTursoPublisher connects to a Turso database
func NewTursoPublisher(ctx context.Context, url, authToken string) (*Publisher, error) {
	connStr := url
	if authToken != "" {
		connStr = fmt.Sprintf("%s?authToken=%s", url, authToken)
	}

	db, err := sql.Open("libsql", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Turso: %w", err)
	}
	return newPublisher(ctx, db, "Turso")
}

// NewSQLitePublisher opens (or creates) a local SQLite file
func NewSQLitePublisher(ctx context.Context, path string) (*Publisher, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return newPublisher(ctx, db, "SQLite")
}

func newPublisher(ctx context.Context, db *sql.DB, name string) (*Publisher, error) {
	// Test connection
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", name, err)
	}
	return &Publisher{db: db}, nil
}

// Close closes the connection
func (p *Publisher) Close() error {
	return p.db.Close()
}

// CreateTables creates the result tables if they don't exist
func (p *Publisher) CreateTables(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS data_version (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			label TEXT NOT NULL,
			matches INTEGER NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS mythic_picks (
			mythic INTEGER NOT NULL,
			champion INTEGER NOT NULL,
			queue INTEGER NOT NULL,
			game_time_seconds INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS item_sequences (
			item INTEGER NOT NULL,
			mythic INTEGER NOT NULL,
			champion INTEGER NOT NULL,
			match_ordinal INTEGER NOT NULL,
			n_items INTEGER NOT NULL,
			queue INTEGER NOT NULL,
			game_time_seconds INTEGER NOT NULL,
			position INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS mythic_items (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_mythic_picks_champion ON mythic_picks(champion)`,
		`CREATE INDEX IF NOT EXISTS idx_item_sequences_match ON item_sequences(match_ordinal)`,
	}

	for _, query := range queries {
		if _, err := p.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %w", err)
		}
	}
	return nil
}

// ClearData deletes all published rows
func (p *Publisher) ClearData(ctx context.Context) error {
	for _, table := range []string{"data_version", "mythic_picks", "item_sequences", "mythic_items"} {
		if _, err := p.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", table)); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return nil
}

// PublishTables replaces the published tables with t. label identifies the
// batch, e.g. the region and collection window.
func (p *Publisher) PublishTables(ctx context.Context, label string, t *dataset.Tables, cat *catalog.Catalog) error {
	if err := p.CreateTables(ctx); err != nil {
		return err
	}
	if err := p.ClearData(ctx); err != nil {
		return err
	}

	err := insertBatches(ctx, p.db, len(t.Mythics),
		`INSERT INTO mythic_picks (mythic, champion, queue, game_time_seconds) VALUES (?, ?, ?, ?)`,
		func(i int) []any {
			r := t.Mythics[i]
			return []any{r.Mythic, r.Champion, r.Queue, r.GameTimeSeconds}
		})
	if err != nil {
		return fmt.Errorf("failed to insert mythic_picks: %w", err)
	}

	err = insertBatches(ctx, p.db, len(t.Items),
		`INSERT INTO item_sequences (item, mythic, champion, match_ordinal, n_items, queue, game_time_seconds, position) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		func(i int) []any {
			r := t.Items[i]
			mythic := 0
			if r.Mythic {
				mythic = 1
			}
			return []any{r.Item, mythic, r.Champion, r.Match, r.NItems, r.Queue, r.GameTimeSeconds, r.Position}
		})
	if err != nil {
		return fmt.Errorf("failed to insert item_sequences: %w", err)
	}

	mythics := cat.MythicItems()
	err = insertBatches(ctx, p.db, len(mythics),
		`INSERT INTO mythic_items (id, name) VALUES (?, ?)`,
		func(i int) []any {
			return []any{mythics[i].ID, mythics[i].Name}
		})
	if err != nil {
		return fmt.Errorf("failed to insert mythic_items: %w", err)
	}

	if _, err := p.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO data_version (id, label, matches, updated_at) VALUES (1, ?, ?, ?)`,
		label, t.Matches, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("failed to set data version: %w", err)
	}

	log.Printf("[Publish] %s: %d mythic rows, %d item rows, %d mythic items", label, len(t.Mythics), len(t.Items), len(mythics))
	return nil
}

// insertBatches runs query for rows 0..n-1, one transaction per batch
func insertBatches(ctx context.Context, db *sql.DB, n int, query string, args func(i int) []any) error {
	for i := 0; i < n; i += publishBatchSize {
		end := i + publishBatchSize
		if end > n {
			end = n
		}

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}

		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			tx.Rollback()
			return err
		}

		for j := i; j < end; j++ {
			if _, err := stmt.ExecContext(ctx, args(j)...); err != nil {
				stmt.Close()
				tx.Rollback()
				return err
			}
		}

		stmt.Close()
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}
