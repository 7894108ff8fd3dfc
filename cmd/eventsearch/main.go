package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/mozaika/eventsearch/internal/profile"
	"github.com/mozaika/eventsearch/plugin/ai"
	"github.com/mozaika/eventsearch/server"
	"github.com/mozaika/eventsearch/server/extractor"
	"github.com/mozaika/eventsearch/server/ingest"
	"github.com/mozaika/eventsearch/server/queue"
	"github.com/mozaika/eventsearch/server/retrieval"
	"github.com/mozaika/eventsearch/server/stats"
	"github.com/mozaika/eventsearch/store"
	"github.com/mozaika/eventsearch/store/db"
)

var rootCmd = &cobra.Command{
	Use:   "eventsearch",
	Short: "Event announcement ingestion and search service",
	RunE: func(_ *cobra.Command, _ []string) error {
		instanceProfile := &profile.Profile{
			Mode:    viper.GetString("mode"),
			Addr:    viper.GetString("addr"),
			Port:    viper.GetInt("port"),
			DSN:     viper.GetString("dsn"),
			Version: version,
		}
		instanceProfile.FromEnv()
		if err := instanceProfile.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		setupLogger(instanceProfile)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return run(ctx, instanceProfile)
	},
}

const version = "0.3.0"

func init() {
	rootCmd.PersistentFlags().String("mode", "dev", `mode of the server: "dev" or "prod"`)
	rootCmd.PersistentFlags().String("addr", "", "address of the server")
	rootCmd.PersistentFlags().Int("port", 8000, "port of the server")
	rootCmd.PersistentFlags().String("dsn", "", "database connection string")

	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		panic(err)
	}
	viper.SetEnvPrefix("eventsearch")
	viper.AutomaticEnv()
}

func setupLogger(p *profile.Profile) {
	level := slog.LevelInfo
	if p.IsDev() {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
}

func run(ctx context.Context, p *profile.Profile) error {
	driver, err := db.NewDBDriver(p)
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}
	st := store.New(driver, p)
	defer st.Close()

	if err := st.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	aiConfig := ai.NewConfigFromProfile(p)
	if err := aiConfig.Validate(); err != nil {
		return fmt.Errorf("invalid ai configuration: %w", err)
	}
	embeddingService, err := ai.NewEmbeddingService(&aiConfig.Embedding)
	if err != nil {
		return fmt.Errorf("failed to create embedding service: %w", err)
	}
	llmService, err := ai.NewLLMService(&aiConfig.LLM)
	if err != nil {
		return fmt.Errorf("failed to create llm service: %w", err)
	}

	slugs, err := st.CategorySlugSet(ctx)
	if err != nil {
		return fmt.Errorf("failed to load categories: %w", err)
	}
	slugList := make([]string, 0, len(slugs))
	for slug := range slugs {
		slugList = append(slugList, slug)
	}
	extractorService := extractor.NewService(llmService, slugList)

	transport := newTransport(p)
	defer transport.Close()

	collector := stats.NewCollector()
	orchestrator, err := ingest.NewOrchestrator(p, transport, st, extractorService, embeddingService, collector)
	if err != nil {
		return fmt.Errorf("failed to create ingestion orchestrator: %w", err)
	}

	searcher := retrieval.NewSearcher(st, extractorService, embeddingService, llmService)
	httpServer := server.NewServer(p, st, searcher)

	slog.Info("starting eventsearch",
		slog.String("version", p.Version),
		slog.String("mode", p.Mode))

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return httpServer.Start(ctx)
	})
	group.Go(func() error {
		return orchestrator.Run(ctx)
	})
	return group.Wait()
}

// newTransport picks Kafka when brokers are configured, otherwise an
// in-process queue for demo setups.
func newTransport(p *profile.Profile) queue.Transport {
	if len(p.KafkaBrokers) > 0 {
		slog.Info("consuming from kafka",
			slog.Any("brokers", p.KafkaBrokers),
			slog.String("topic", p.KafkaTopic))
		return queue.NewKafkaTransport(p)
	}
	slog.Warn("no kafka brokers configured, using in-memory queue")
	return queue.NewMemoryTransport()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("server exited with error", slog.Any("err", err))
		os.Exit(1)
	}
}
