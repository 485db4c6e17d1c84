package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"item-diversity/internal/catalog"
	"item-diversity/internal/config"
	"item-diversity/internal/dataset"
	"item-diversity/internal/db"
	"item-diversity/internal/discord"
	"item-diversity/internal/storage"

	"github.com/spf13/cobra"
)

// publishTargets are the optional destinations of the extracted tables
type publishTargets struct {
	turso  bool
	sqlite string
}

func newAssetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "assets",
		Short: "Write the mythic and champion reference tables and download icons",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := runAssets(cmd.Context(), cfg)
			return err
		},
	}
}

func newExtractCmd() *cobra.Command {
	var targets publishTargets
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Reconcile purchases of the stored matches and write the output tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := applyExtractFlags(cmd); err != nil {
				return err
			}
			ctx, stop := signalContext(cmd)
			defer stop()

			start := time.Now()
			cat, err := newLoader(cfg).Load(ctx)
			if err != nil {
				notify(extractSummary("extract", nil, start, err))
				return err
			}
			tables, err := runExtract(ctx, cfg, cat, targets)
			notify(extractSummary("extract", tables, start, err))
			return err
		},
	}
	addExtractFlags(cmd, &targets)
	return cmd
}

func newPipelineCmd() *cobra.Command {
	var targets publishTargets
	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Run collect, assets and extract in sequence",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := applyExtractFlags(cmd); err != nil {
				return err
			}
			ctx, stop := signalContext(cmd)
			defer stop()

			start := time.Now()
			fmt.Println("\n========================================")
			fmt.Println("STEP 1: COLLECTING MATCH DATA")
			fmt.Println("========================================")
			stats, err := runCollect(ctx, cfg)
			if err == nil {
				err = ctx.Err()
			}
			if err != nil {
				notify(collectSummary("pipeline", stats, start, err))
				return err
			}

			fmt.Println("\n========================================")
			fmt.Println("STEP 2: REFERENCE DATA")
			fmt.Println("========================================")
			cat, err := runAssets(ctx, cfg)
			if err != nil {
				notify(collectSummary("pipeline", stats, start, err))
				return err
			}

			fmt.Println("\n========================================")
			fmt.Println("STEP 3: EXTRACTING PURCHASES")
			fmt.Println("========================================")
			tables, err := runExtract(ctx, cfg, cat, targets)
			summary := extractSummary("pipeline", tables, start, err)
			summary.Players = stats.PlayersProcessed
			notify(summary)
			if err != nil {
				return err
			}

			fmt.Printf("\nPipeline completed in %s\n", time.Since(start).Round(time.Second))
			return nil
		},
	}
	addExtractFlags(cmd, &targets)
	return cmd
}

func addExtractFlags(cmd *cobra.Command, targets *publishTargets) {
	cmd.Flags().String("source", "", "Match source: postgres or files (spool directory)")
	cmd.Flags().Int("workers", 0, "Extraction workers, 1 runs sequentially")
	cmd.Flags().Bool("parquet", false, "Also write Parquet copies of the tables")
	cmd.Flags().BoolVar(&targets.turso, "turso", false, "Publish the tables to Turso (TURSO_DATABASE_URL)")
	cmd.Flags().StringVar(&targets.sqlite, "sqlite", "", "Publish the tables to a local SQLite file")
}

// applyExtractFlags copies explicitly set flags over the config
func applyExtractFlags(cmd *cobra.Command) error {
	flags := cmd.Flags()
	if flags.Changed("source") {
		cfg.Extract.Source, _ = flags.GetString("source")
	}
	if flags.Changed("workers") {
		cfg.Extract.Workers, _ = flags.GetInt("workers")
	}
	if flags.Changed("parquet") {
		cfg.Extract.Parquet, _ = flags.GetBool("parquet")
	}
	return cfg.Validate()
}

func newLoader(cfg *config.Config) *catalog.Loader {
	return catalog.NewLoader(
		catalog.WithVersion(cfg.Assets.DataDragonVersion),
		catalog.WithDataDragonURL(cfg.Assets.DataDragonURL),
		catalog.WithWikiURL(cfg.Assets.WikiURL),
	)
}

func fileNames(cfg *config.Config) dataset.FileNames {
	return dataset.NewFileNames(cfg.Region, cfg.Window.From, cfg.Window.To)
}

// runAssets builds the catalog and writes the reference tables and icons
func runAssets(ctx context.Context, cfg *config.Config) (*catalog.Catalog, error) {
	loader := newLoader(cfg)
	cat, err := loader.Load(ctx)
	if err != nil {
		return nil, err
	}
	champions, err := loader.Champions(ctx)
	if err != nil {
		return nil, err
	}

	names := fileNames(cfg)
	dir := cfg.Storage.OutputDir
	if err := dataset.WriteMythicIDs(dir, names.MythicIDs, cat); err != nil {
		return nil, err
	}
	if err := dataset.WriteChampionCSV(dir, names.Champions, champions); err != nil {
		return nil, err
	}

	if cfg.Assets.Icons {
		items := append(cat.MythicItems(), cat.LegendaryItems()...)
		if err := loader.DownloadIcons(ctx, filepath.Join(dir, "icons"), items, champions); err != nil {
			return nil, err
		}
	}
	fmt.Printf("Wrote reference tables for %d items and %d champions to %s\n", cat.Len(), len(champions), dir)
	return cat, nil
}

// runExtract aggregates the configured source and writes and publishes the tables
func runExtract(ctx context.Context, cfg *config.Config, cat *catalog.Catalog, targets publishTargets) (*dataset.Tables, error) {
	var src dataset.Source
	switch cfg.Extract.Source {
	case config.SourceFiles:
		if cfg.Storage.SpoolDir == "" {
			return nil, fmt.Errorf("files source needs a spool directory (BLOB_STORAGE_PATH)")
		}
		reader := storage.NewReader(cfg.Storage.SpoolDir)
		if cfg.Storage.ColdDir != "" {
			reader.WithColdDir(cfg.Storage.ColdDir)
		}
		src = reader
	default:
		store, err := db.New(ctx, cfg.Storage.DatabaseURL, cfg.Region)
		if err != nil {
			return nil, err
		}
		defer store.Close()
		src = store
	}

	tables, err := dataset.Aggregate(ctx, src, cat, dataset.WithWorkers(cfg.Extract.Workers))
	if err != nil {
		return nil, err
	}

	names := fileNames(cfg)
	if err := dataset.WriteCSV(cfg.Storage.OutputDir, names, tables, cat); err != nil {
		return tables, err
	}
	if cfg.Extract.Parquet {
		if err := dataset.WriteParquet(cfg.Storage.OutputDir, names, tables); err != nil {
			return tables, err
		}
	}

	label := fmt.Sprintf("%s %s-%s", cfg.Region, cfg.Window.From, cfg.Window.To)
	if targets.turso {
		if err := publish(ctx, label, tables, cat, func() (*db.Publisher, error) {
			return db.NewTursoPublisher(ctx, cfg.Publish.TursoURL, cfg.Publish.TursoToken)
		}); err != nil {
			return tables, err
		}
	}
	sqlitePath := targets.sqlite
	if sqlitePath == "" {
		sqlitePath = cfg.Publish.SQLitePath
	}
	if sqlitePath != "" {
		if err := publish(ctx, label, tables, cat, func() (*db.Publisher, error) {
			return db.NewSQLitePublisher(ctx, sqlitePath)
		}); err != nil {
			return tables, err
		}
	}

	fmt.Printf("Extracted %d matches: %d mythic rows, %d item rows (%d malformed timelines)\n",
		tables.Matches, len(tables.Mythics), len(tables.Items), tables.MalformedTimelines)
	return tables, nil
}

func publish(ctx context.Context, label string, t *dataset.Tables, cat *catalog.Catalog, open func() (*db.Publisher, error)) error {
	p, err := open()
	if err != nil {
		return err
	}
	defer p.Close()
	return p.PublishTables(ctx, label, t, cat)
}

func extractSummary(command string, t *dataset.Tables, start time.Time, err error) discord.Summary {
	s := discord.Summary{
		Command: command,
		Runtime: time.Since(start),
		Err:     err,
	}
	if t != nil {
		s.Matches = t.Matches
		s.MythicRows = len(t.Mythics)
		s.ItemRows = len(t.Items)
		s.Malformed = t.MalformedTimelines
	}
	return s
}
