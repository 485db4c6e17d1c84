package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	_ "time/tzdata"

	"item-diversity/internal/collector"
	"item-diversity/internal/config"
	"item-diversity/internal/discord"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	configPath string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "itemdiversity",
	Short: "Collect League of Legends matches and extract mythic and legendary item purchases",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loadEnv()
		var err error
		cfg, err = config.Load(configPath)
		return err
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (defaults apply when empty)")
	rootCmd.AddCommand(newCollectCmd(), newAssetsCmd(), newExtractCmd(), newPipelineCmd(), newValidateKeyCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadEnv loads the first .env file found
func loadEnv() {
	envPaths := []string{".env", "../.env", "../../.env"}
	for _, path := range envPaths {
		if err := godotenv.Load(path); err == nil {
			fmt.Printf("Loaded .env from: %s\n", path)
			return
		}
	}
	log.Println("No .env file found, using environment variables")
}

// signalContext cancels the command context on SIGINT/SIGTERM
func signalContext(cmd *cobra.Command) (context.Context, func()) {
	return collector.SetupSignalHandler(cmd.Context(), func(context.Context) {
		fmt.Println("\n[Shutdown] Gracefully shutting down...")
	})
}

// notify posts the run summary when a webhook is configured. It uses its own
// context so a cancelled run still reports.
func notify(s discord.Summary) {
	if cfg.Discord.WebhookURL == "" {
		return
	}
	s.Region = cfg.Region
	s.Window = cfg.Window.From + "-" + cfg.Window.To

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := discord.NewWebhookClient(cfg.Discord.WebhookURL).SendRunSummary(ctx, s); err != nil {
		log.Printf("[Discord] Failed to send run summary: %v", err)
	}
}
