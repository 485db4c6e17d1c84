package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"item-diversity/internal/collector"
	"item-diversity/internal/config"
	"item-diversity/internal/db"
	"item-diversity/internal/discord"
	"item-diversity/internal/riot"
	"item-diversity/internal/storage"

	"github.com/spf13/cobra"
)

func newCollectCmd() *cobra.Command {
	var (
		seed       string
		maxPlayers int
	)
	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Crawl the player graph and store matches of the evaluated queues in the window",
		RunE: func(cmd *cobra.Command, args []string) error {
			if seed != "" {
				cfg.Seed = seed
			}
			if maxPlayers > 0 {
				cfg.Crawl.MaxPlayers = maxPlayers
			}

			ctx, stop := signalContext(cmd)
			defer stop()

			start := time.Now()
			stats, err := runCollect(ctx, cfg)
			notify(collectSummary("collect", stats, start, err))
			return err
		},
	}
	cmd.Flags().StringVar(&seed, "seed", "", "Seed Riot ID (e.g. 'Player#EUW')")
	cmd.Flags().IntVar(&maxPlayers, "max-players", 0, "Players evaluated in this run")
	return cmd
}

func newValidateKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate-key",
		Short: "Check the Riot API key against the platform status endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			validator := riot.NewKeyValidator(riot.WithValidationPlatform(cfg.Region))
			valid, err := validator.ValidateKey(cmd.Context(), cfg.RiotAPIKey)
			if err != nil {
				return err
			}
			if !valid {
				return fmt.Errorf("API key rejected: %w", riot.ErrForbidden)
			}
			fmt.Println("API key is valid")
			return nil
		},
	}
}

// runCollect runs one crawl. A cancelled context stops the crawl after the
// current player and is not an error.
func runCollect(ctx context.Context, cfg *config.Config) (collector.Stats, error) {
	valid, err := riot.NewKeyValidator(riot.WithValidationPlatform(cfg.Region)).ValidateKey(ctx, cfg.RiotAPIKey)
	if err != nil {
		return collector.Stats{}, fmt.Errorf("failed to validate API key: %w", err)
	}
	if !valid {
		return collector.Stats{}, fmt.Errorf("API key rejected: %w", riot.ErrForbidden)
	}

	client, err := riot.NewClient(riot.WithAPIKey(cfg.RiotAPIKey), riot.WithPlatform(cfg.Region))
	if err != nil {
		return collector.Stats{}, fmt.Errorf("failed to create Riot client: %w", err)
	}

	store, err := db.New(ctx, cfg.Storage.DatabaseURL, cfg.Region)
	if err != nil {
		return collector.Stats{}, err
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		return collector.Stats{}, err
	}

	window, err := cfg.CollectionWindow()
	if err != nil {
		return collector.Stats{}, err
	}

	var opts []collector.Option
	if cfg.Storage.SpoolDir != "" {
		rotator, err := storage.NewFileRotator(cfg.Storage.SpoolDir)
		if err != nil {
			return collector.Stats{}, fmt.Errorf("failed to create file rotator: %w", err)
		}
		if cfg.Storage.ColdDir != "" {
			if err := rotator.SetColdDir(cfg.Storage.ColdDir); err != nil {
				return collector.Stats{}, err
			}
		}
		defer closeSpool(rotator)
		opts = append(opts, collector.WithSpool(rotator))
		fmt.Printf("Using storage path: %s\n", cfg.Storage.SpoolDir)
	}

	crawler := collector.NewCrawler(client, store, collector.Config{
		Seed:       cfg.Seed,
		MaxPlayers: cfg.Crawl.MaxPlayers,
		Window:     window,
		Queues:     cfg.Queues,
		Workers:    cfg.Crawl.Workers,
	}, opts...)

	stats, err := crawler.Run(ctx)
	if errors.Is(err, context.Canceled) {
		fmt.Println("[Shutdown] Stopping collection...")
		return stats, nil
	}
	return stats, err
}

func closeSpool(rotator *storage.FileRotator) {
	if err := rotator.Close(); err != nil {
		log.Printf("Error closing rotator: %v", err)
		return
	}
	n, err := rotator.CompressWarm()
	if err != nil {
		log.Printf("Error compressing warm files: %v", err)
	}
	if n > 0 {
		log.Printf("[Rotator] Compressed %d files to cold storage", n)
	}
}

func collectSummary(command string, stats collector.Stats, start time.Time, err error) discord.Summary {
	return discord.Summary{
		Command:     command,
		Players:     stats.PlayersProcessed,
		Matches:     stats.MatchesSaved,
		Runtime:     time.Since(start),
		Err:         err,
		KeyRejected: errors.Is(err, riot.ErrForbidden),
	}
}
