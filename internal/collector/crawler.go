package collector

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"item-diversity/internal/db"
	"item-diversity/internal/riot"
	"item-diversity/internal/storage"

	"github.com/bits-and-blooms/bloom/v3"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultWorkerCount = 4
	DefaultMaxPlayers  = 10000

	// match-v5 returns at most 100 ids per page; older history is not needed
	historyPerQueue = 100
)

// ErrNoPlayers is returned when the store holds no unprocessed player
var ErrNoPlayers = errors.New("no players to evaluate found after initialization")

var errSkipped = errors.New("match outside evaluated queues or window")

// MatchAPI is the part of the Riot API the crawler uses
type MatchAPI interface {
	GetAccountByRiotID(ctx context.Context, gameName, tagLine string) (*riot.AccountResponse, error)
	GetMatchHistory(ctx context.Context, puuid string, q riot.MatchQuery) ([]string, error)
	GetMatch(ctx context.Context, matchID string) (*riot.MatchResponse, error)
	GetTimeline(ctx context.Context, matchID string) (*riot.TimelineResponse, error)
}

// DocumentStore persists players and collected matches
type DocumentStore interface {
	PlayerIDs(ctx context.Context) ([]string, error)
	ProcessedPlayerIDs(ctx context.Context) ([]string, error)
	MatchIDs(ctx context.Context) ([]string, error)
	SavePlayer(ctx context.Context, p db.Player) error
	MarkProcessed(ctx context.Context, puuid string) error
	SaveMatch(ctx context.Context, doc *storage.MatchDocument) (bool, error)
}

// Spool receives a copy of every saved match
type Spool interface {
	WriteMatch(doc *storage.MatchDocument) error
}

// Config holds configuration for the crawler
type Config struct {
	Seed       string // gameName#tagLine, optional once the store has players
	MaxPlayers int    // players evaluated per run
	Window     Window
	Queues     []int
	Workers    int // concurrent match fetches per player
}

// Stats summarizes a crawl run
type Stats struct {
	PlayersProcessed int
	PlayersFound     int
	MatchesSaved     int
	MatchesSkipped   int
	MatchesFailed    int
	Elapsed          time.Duration
}

// Crawler walks the player graph: every evaluated player's history yields
// matches, and every match yields new players
type Crawler struct {
	api    MatchAPI
	store  DocumentStore
	spool  Spool
	cfg    Config
	queues queueSet

	// Deduplication (bloom filters for memory efficiency)
	visitedMatches *bloom.BloomFilter
	visitedPlayers *bloom.BloomFilter

	playerQueue []string

	stats     Stats
	startTime time.Time
}

// Option configures a Crawler
type Option func(*Crawler)

// WithSpool also writes every saved match to s
func WithSpool(s Spool) Option {
	return func(c *Crawler) {
		c.spool = s
	}
}

// NewCrawler creates a crawler over api and store
func NewCrawler(api MatchAPI, store DocumentStore, cfg Config, opts ...Option) *Crawler {
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkerCount
	}
	if cfg.MaxPlayers <= 0 {
		cfg.MaxPlayers = DefaultMaxPlayers
	}

	c := &Crawler{
		api:    api,
		store:  store,
		cfg:    cfg,
		queues: newQueueSet(cfg.Queues),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run seeds the crawler from the store and evaluates up to MaxPlayers players.
// It returns early on cancellation, on a rejected API key and on store errors.
func (c *Crawler) Run(ctx context.Context) (Stats, error) {
	c.startTime = time.Now()

	if err := c.seed(ctx); err != nil {
		return c.finish(), err
	}

	for c.stats.PlayersProcessed < c.cfg.MaxPlayers {
		if err := ctx.Err(); err != nil {
			return c.finish(), err
		}

		puuid, ok := c.popPlayer()
		if !ok {
			log.Println("[Crawler] No players left to evaluate, stopping")
			break
		}
		if err := c.processPlayer(ctx, puuid); err != nil {
			return c.finish(), err
		}
	}

	stats := c.finish()
	c.printSummary()
	return stats, nil
}

// seed resolves the seed player and loads the id sets from the store
func (c *Crawler) seed(ctx context.Context) error {
	if c.cfg.Seed != "" {
		name, tag, err := SplitRiotID(c.cfg.Seed)
		if err != nil {
			return err
		}
		acc, err := c.api.GetAccountByRiotID(ctx, name, tag)
		if err != nil {
			return fmt.Errorf("failed to resolve seed player %s: %w", c.cfg.Seed, err)
		}
		if err := c.store.SavePlayer(ctx, db.Player{PUUID: acc.PUUID, GameName: acc.GameName, TagLine: acc.TagLine}); err != nil {
			return fmt.Errorf("failed to save seed player: %w", err)
		}
	}

	players, err := c.store.PlayerIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to load players: %w", err)
	}
	processed, err := c.store.ProcessedPlayerIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to load processed players: %w", err)
	}
	matches, err := c.store.MatchIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to load match ids: %w", err)
	}

	c.visitedMatches = bloom.NewWithEstimates(uint(max(2*len(matches), 500000)), 0.001)
	c.visitedPlayers = bloom.NewWithEstimates(uint(max(2*len(players), 1000000)), 0.001)
	for _, id := range matches {
		c.visitedMatches.AddString(id)
	}

	done := make(map[string]bool, len(processed))
	for _, id := range processed {
		done[id] = true
	}
	c.playerQueue = c.playerQueue[:0]
	for _, id := range players {
		c.visitedPlayers.AddString(id)
		if !done[id] {
			c.playerQueue = append(c.playerQueue, id)
		}
	}

	if len(c.playerQueue) == 0 {
		return ErrNoPlayers
	}
	log.Printf("[Crawler] Seeded: %d players (%d to evaluate), %d matches, window %s",
		len(players), len(c.playerQueue), len(matches), c.cfg.Window)
	return nil
}

// processPlayer collects the new matches of one player and marks them processed
func (c *Crawler) processPlayer(ctx context.Context, puuid string) error {
	matchIDs, err := c.history(ctx, puuid)
	if err != nil {
		if errors.Is(err, riot.ErrForbidden) {
			return fmt.Errorf("match history failed: %w", err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Printf("[Crawler] Failed to fetch match history for %s: %v", shortID(puuid), err)
		return c.markProcessed(ctx, puuid)
	}

	var fresh []string
	for _, id := range matchIDs {
		if c.visitedMatches.TestString(id) {
			continue
		}
		c.visitedMatches.AddString(id)
		fresh = append(fresh, id)
	}

	fmt.Printf("\n[Player %d/%d] [%s] Processing: %s... (%d matches, %d new)\n",
		c.stats.PlayersProcessed+1, c.cfg.MaxPlayers,
		formatDuration(time.Since(c.startTime)), shortID(puuid), len(matchIDs), len(fresh))

	results, err := c.fetchMatches(ctx, fresh)
	if err != nil {
		return err
	}
	for _, r := range results {
		if r == nil {
			continue
		}
		if err := c.save(ctx, r, puuid); err != nil {
			return err
		}
	}

	return c.markProcessed(ctx, puuid)
}

// history returns the player's match ids in the window, one request per queue
func (c *Crawler) history(ctx context.Context, puuid string) ([]string, error) {
	queues := make([]int, 0, len(c.queues))
	for q := range c.queues {
		queues = append(queues, q)
	}
	sort.Ints(queues)

	seen := make(map[string]bool)
	var ids []string
	for _, q := range queues {
		page, err := c.api.GetMatchHistory(ctx, puuid, riot.MatchQuery{
			StartTime: c.cfg.Window.Start,
			EndTime:   c.cfg.Window.End,
			Queue:     q,
			Count:     historyPerQueue,
		})
		if err != nil {
			return nil, err
		}
		for _, id := range page {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}

// fetched is a collected match plus the riot ids of its participants
type fetched struct {
	doc     *storage.MatchDocument
	players []db.Player
}

// fetchMatches fetches detail and timeline of every id on up to Workers
// goroutines. Results keep the order of ids; skipped and failed matches are nil.
func (c *Crawler) fetchMatches(ctx context.Context, ids []string) ([]*fetched, error) {
	results := make([]*fetched, len(ids))
	errs := make([]error, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Workers)
	for i, id := range ids {
		g.Go(func() error {
			r, err := c.fetchMatch(gctx, id)
			if errors.Is(err, riot.ErrForbidden) {
				return fmt.Errorf("match fetch failed: %w", err)
			}
			results[i], errs[i] = r, err
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for i, err := range errs {
		switch {
		case err == nil:
		case errors.Is(err, errSkipped):
			c.stats.MatchesSkipped++
		default:
			c.stats.MatchesFailed++
			log.Printf("  [Crawler] Failed to fetch %s: %v", ids[i], err)
		}
	}
	return results, nil
}

func (c *Crawler) fetchMatch(ctx context.Context, matchID string) (*fetched, error) {
	match, err := c.api.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if !c.queues[match.Info.QueueID] || !c.cfg.Window.ContainsMillis(match.Info.GameCreation) {
		return nil, errSkipped
	}

	timeline, err := c.api.GetTimeline(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("timeline: %w", err)
	}

	return newFetched(matchID, match, timeline), nil
}

func newFetched(matchID string, match *riot.MatchResponse, timeline *riot.TimelineResponse) *fetched {
	doc := &storage.MatchDocument{
		MatchID:      matchID,
		QueueID:      match.Info.QueueID,
		GameDuration: match.Info.GameDuration,
		GameCreation: match.Info.GameCreation,
		GameVersion:  match.Info.GameVersion,
		RawTimeline:  timeline.Info,
	}

	players := make([]db.Player, 0, len(match.Info.Participants))
	for _, p := range match.Info.Participants {
		doc.Participants = append(doc.Participants, storage.Participant{
			ParticipantID: p.ParticipantID,
			PUUID:         p.PUUID,
			ChampionID:    p.ChampionID,
		})
		players = append(players, db.Player{PUUID: p.PUUID, GameName: p.RiotIdGameName, TagLine: p.RiotIdTagline})
	}
	return &fetched{doc: doc, players: players}
}

// save stores the match and enqueues its unseen participants
func (c *Crawler) save(ctx context.Context, r *fetched, source string) error {
	inserted, err := c.store.SaveMatch(ctx, r.doc)
	if err != nil {
		return fmt.Errorf("failed to save match %s: %w", r.doc.MatchID, err)
	}
	if inserted {
		c.stats.MatchesSaved++
	}

	if c.spool != nil {
		if err := c.spool.WriteMatch(r.doc); err != nil {
			log.Printf("  [Crawler] Failed to spool %s: %v", r.doc.MatchID, err)
		}
	}

	for _, p := range r.players {
		if p.PUUID == "" || p.PUUID == source || c.visitedPlayers.TestString(p.PUUID) {
			continue
		}
		c.visitedPlayers.AddString(p.PUUID)
		if err := c.store.SavePlayer(ctx, p); err != nil {
			return fmt.Errorf("failed to save player: %w", err)
		}
		c.playerQueue = append(c.playerQueue, p.PUUID)
		c.stats.PlayersFound++
	}
	return nil
}

func (c *Crawler) markProcessed(ctx context.Context, puuid string) error {
	if err := c.store.MarkProcessed(ctx, puuid); err != nil {
		return fmt.Errorf("failed to mark %s processed: %w", shortID(puuid), err)
	}
	c.stats.PlayersProcessed++
	return nil
}

func (c *Crawler) popPlayer() (string, bool) {
	if len(c.playerQueue) == 0 {
		return "", false
	}
	puuid := c.playerQueue[0]
	c.playerQueue = c.playerQueue[1:]
	return puuid, true
}

func (c *Crawler) finish() Stats {
	if !c.startTime.IsZero() {
		c.stats.Elapsed = time.Since(c.startTime)
	}
	return c.stats
}

// SplitRiotID splits "gameName#tagLine"
func SplitRiotID(id string) (gameName, tagLine string, err error) {
	name, tag, ok := strings.Cut(id, "#")
	if !ok || name == "" || tag == "" {
		return "", "", fmt.Errorf("invalid riot id %q, expected gameName#tagLine", id)
	}
	return name, tag, nil
}

func shortID(id string) string {
	return id[:min(16, len(id))]
}

func (c *Crawler) printSummary() {
	s := c.stats

	fmt.Printf("\n=== Crawl Complete ===\n")
	fmt.Printf("Total time: %s\n", formatDuration(s.Elapsed))
	fmt.Printf("Players processed: %d\n", s.PlayersProcessed)
	fmt.Printf("New players found: %d\n", s.PlayersFound)
	fmt.Printf("Matches saved: %d\n", s.MatchesSaved)
	fmt.Printf("Matches skipped (queue/window): %d\n", s.MatchesSkipped)
	fmt.Printf("Matches failed: %d\n", s.MatchesFailed)

	if s.MatchesSaved > 0 {
		avgPerMatch := s.Elapsed / time.Duration(s.MatchesSaved)
		fmt.Printf("Avg time per match: %s\n", formatDuration(avgPerMatch))
		fmt.Printf("Throughput: %.1f matches/min\n", float64(s.MatchesSaved)/s.Elapsed.Minutes())
	}
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	} else if d < time.Hour {
		mins := int(d.Minutes())
		secs := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%02ds", mins, secs)
	}
	hours := int(d.Hours())
	mins := int(d.Minutes()) % 60
	secs := int(d.Seconds()) % 60
	return fmt.Sprintf("%dh%02dm%02ds", hours, mins, secs)
}
