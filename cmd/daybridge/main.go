package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/daybridge/daybridge/agent"
	"github.com/daybridge/daybridge/calendar"
	"github.com/daybridge/daybridge/embedding"
	"github.com/daybridge/daybridge/fetch"
	"github.com/daybridge/daybridge/internal/clock"
	"github.com/daybridge/daybridge/internal/profile"
	"github.com/daybridge/daybridge/internal/refresher"
	"github.com/daybridge/daybridge/internal/version"
	"github.com/daybridge/daybridge/knowledge"
	"github.com/daybridge/daybridge/llm"
	"github.com/daybridge/daybridge/schedule"
	"github.com/daybridge/daybridge/server"
	"github.com/daybridge/daybridge/store"
	"github.com/daybridge/daybridge/store/db/sqlite"
)

const offlineReply = "I'm running without a language model right now, so I can only watch your schedule. Configure DAYBRIDGE_LLM_API_KEY to enable suggestions."

var rootCmd = &cobra.Command{
	Use:   "daybridge",
	Short: "A conversational scheduling agent that watches your calendar, deadlines, and habits.",
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		// Config is optional in a .env next to the binary.
		_ = godotenv.Load()
		return nil
	},
	Run: func(_ *cobra.Command, _ []string) {
		instanceProfile := &profile.Profile{
			Mode:    viper.GetString("mode"),
			Addr:    viper.GetString("addr"),
			Port:    viper.GetInt("port"),
			Data:    viper.GetString("data"),
			DSN:     viper.GetString("dsn"),
			Version: version.GetCurrentVersion(viper.GetString("mode")),
		}
		instanceProfile.FromEnv()
		if err := instanceProfile.Validate(); err != nil {
			slog.Error("invalid configuration", "error", err)
			os.Exit(1)
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		if err := run(ctx, cancel, instanceProfile); err != nil {
			slog.Error("daybridge exited with error", "error", err)
			os.Exit(1)
		}
	},
}

func run(ctx context.Context, cancel context.CancelFunc, instanceProfile *profile.Profile) error {
	clk, err := buildClock(instanceProfile)
	if err != nil {
		return err
	}

	dbDriver, err := sqlite.NewDB(instanceProfile)
	if err != nil {
		return fmt.Errorf("create db driver: %w", err)
	}
	storeInstance := store.New(dbDriver, instanceProfile)
	if err := storeInstance.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	defer storeInstance.Close()

	completer := buildCompleter(instanceProfile)
	index, err := buildIndex(instanceProfile, storeInstance)
	if err != nil {
		return err
	}
	// Warm the embedding cache without blocking startup.
	go func() {
		if err := index.EnsureEmbeddings(ctx); err != nil {
			slog.Warn("knowledge index warmup failed", "error", err)
		}
	}()

	coordinator := fetch.NewCoordinator(storeInstance, clk)
	writer := calendar.NewLocalProvider(storeInstance, clk)

	var feeds []calendar.Provider
	if instanceProfile.CalendarFeedURL != "" {
		feeds = append(feeds, calendar.NewICSProvider(instanceProfile.CalendarFeedURL))
	}
	var courses calendar.CourseProvider
	if instanceProfile.CourseFeedURL != "" {
		courses = calendar.NewCourseFeedProvider(instanceProfile.CourseFeedURL)
	}

	scheduleAgent := agent.New(agent.Config{
		Store:       storeInstance,
		Completer:   completer,
		Retriever:   index,
		Coordinator: coordinator,
		Writer:      writer,
		Feeds:       feeds,
		Courses:     courses,
		Detector:    schedule.Detector{},
		Clock:       clk,
	})

	periodicRefresher := refresher.New(scheduleAgent, viper.GetString("refresh-spec"))
	if err := periodicRefresher.Start(ctx); err != nil {
		return fmt.Errorf("start refresher: %w", err)
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signals
		slog.Info("shutting down")
		cancel()
	}()

	slog.Info("daybridge started",
		"version", instanceProfile.Version,
		"mode", instanceProfile.Mode,
		"addr", instanceProfile.Addr,
		"port", instanceProfile.Port,
	)
	return server.NewServer(instanceProfile, scheduleAgent).Start(ctx)
}

func buildClock(instanceProfile *profile.Profile) (clock.Clock, error) {
	if instanceProfile.DemoDate == "" {
		return clock.System(), nil
	}
	pinned, err := time.Parse(time.RFC3339, instanceProfile.DemoDate)
	if err != nil {
		return nil, fmt.Errorf("parse demo date %q: %w", instanceProfile.DemoDate, err)
	}
	slog.Info("clock pinned for demo", "now", pinned)
	return clock.Fixed(pinned), nil
}

func buildCompleter(instanceProfile *profile.Profile) llm.Service {
	if !instanceProfile.IsAIEnabled() {
		slog.Warn("no completion provider configured, replies will be canned")
		return llm.Static(offlineReply)
	}
	completer, err := llm.NewService(&llm.Config{
		Provider: instanceProfile.LLMProvider,
		Model:    instanceProfile.LLMModel,
		APIKey:   instanceProfile.LLMAPIKey,
		BaseURL:  instanceProfile.LLMBaseURL,
		Timeout:  instanceProfile.LLMTimeout,
	})
	if err != nil {
		slog.Warn("failed to initialize completion service, replies will be canned", "error", err)
		return llm.Static(offlineReply)
	}
	slog.Info("completion service initialized",
		"provider", instanceProfile.LLMProvider,
		"model", instanceProfile.LLMModel,
	)
	return completer
}

func buildIndex(instanceProfile *profile.Profile, storeInstance *store.Store) (*knowledge.Index, error) {
	chunks, err := knowledge.LoadDir(instanceProfile.KnowledgePath)
	if err != nil {
		slog.Warn("knowledge base unavailable", "path", instanceProfile.KnowledgePath, "error", err)
		chunks = nil
	}

	embedder, err := embedding.NewService(&embedding.Config{
		Model:      instanceProfile.EmbeddingModel,
		APIKey:     instanceProfile.EmbeddingAPIKey,
		BaseURL:    instanceProfile.EmbeddingBaseURL,
		Dimensions: instanceProfile.EmbeddingDimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding service: %w", err)
	}

	slog.Info("knowledge base loaded",
		"chunks", len(chunks),
		"version", version.KnowledgeBaseVersion,
	)
	return knowledge.NewIndex(chunks, embedder, storeInstance, version.KnowledgeBaseVersion), nil
}

func init() {
	viper.SetDefault("mode", "demo")
	viper.SetDefault("port", 28084)

	rootCmd.PersistentFlags().String("mode", "demo", `mode of server, can be "prod" or "dev" or "demo"`)
	rootCmd.PersistentFlags().String("addr", "", "address of server")
	rootCmd.PersistentFlags().Int("port", 28084, "port of server")
	rootCmd.PersistentFlags().String("data", "", "data directory")
	rootCmd.PersistentFlags().String("dsn", "", "sqlite database path")
	rootCmd.PersistentFlags().String("refresh-spec", refresher.DefaultSpec, "cron spec for the background feed refresh")

	for _, flag := range []string{"mode", "addr", "port", "data", "dsn", "refresh-spec"} {
		if err := viper.BindPFlag(flag, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("daybridge")
	viper.AutomaticEnv()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		slog.Error("failed to execute command", "error", err)
		os.Exit(1)
	}
}
