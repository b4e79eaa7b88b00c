package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/selivandex/macro-sentinel/internal/adapters/ai"
	"github.com/selivandex/macro-sentinel/internal/adapters/config"
	"github.com/selivandex/macro-sentinel/internal/adapters/database"
	embstore "github.com/selivandex/macro-sentinel/internal/adapters/embeddings"
	metricsadapter "github.com/selivandex/macro-sentinel/internal/adapters/metrics"
	redisadapter "github.com/selivandex/macro-sentinel/internal/adapters/redis"
	"github.com/selivandex/macro-sentinel/internal/adapters/telegram"
	"github.com/selivandex/macro-sentinel/internal/decision"
	"github.com/selivandex/macro-sentinel/internal/macro"
	"github.com/selivandex/macro-sentinel/internal/memory"
	"github.com/selivandex/macro-sentinel/internal/patterns"
	"github.com/selivandex/macro-sentinel/pkg/embeddings"
	"github.com/selivandex/macro-sentinel/pkg/logger"
	"github.com/selivandex/macro-sentinel/pkg/metrics"
	"github.com/selivandex/macro-sentinel/pkg/models"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nReceived interrupt signal, shutting down...")
		cancel()
	}()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	var (
		title   = flag.String("title", "", "news title to decide on")
		summary = flag.String("summary", "", "news summary")
		ticker  = flag.String("ticker", "", "affected ticker")
		zScore  = flag.Float64("z", 0, "anomaly z-score of the event")
		impact  = flag.Float64("impact", 0, "expected impact score")
		mode    = flag.String("mode", "general", "decision mode: general or anomaly")
	)
	flag.Parse()

	if *title == "" {
		return fmt.Errorf("-title is required")
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.File); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("macro sentinel starting",
		zap.String("mode", *mode),
	)

	db, err := database.New(&cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.RunMigrations(db.Conn(), cfg.Database.MigrationsPath); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	audit, auditClose := initAudit(cfg)
	if auditClose != nil {
		defer auditClose()
	}

	redisClient, redisClose, err := initRedis(cfg)
	if err != nil {
		return err
	}
	if redisClose != nil {
		defer redisClose()
	}

	openaiClient := openai.NewClient(cfg.OpenAI.APIKey)

	var embeddingStore embeddings.Repository = embstore.NewRepository(db.DB())
	if redisClient != nil {
		embeddingStore = embstore.NewCachedRepository(embeddingStore, redisClient, 0)
	}

	embedder := embeddings.NewClient(embeddings.Config{
		OpenAIClient:  openaiClient,
		Repository:    embeddingStore,
		MetricsBuffer: audit,
		Model:         openai.EmbeddingModel(cfg.OpenAI.EmbeddingModel),
	})

	var locks redisadapter.LockFactory
	if redisClient != nil {
		locks = redisClient.GetLockFactory()
	}

	store := memory.NewStore(
		memory.NewRepository(db.DB()),
		embedder,
		locks,
		cfg.Engine.LearnMinSimilarity,
	)

	retriever := patterns.NewRetriever(patterns.NewRepository(db.DB()), embedder)
	strategy := ai.NewStrategyClient(openaiClient, cfg.OpenAI.ChatModel)

	var notifier decision.OverrideNotifier
	if cfg.Telegram.Enabled() && cfg.Telegram.AlertOnOverrides {
		tg, err := telegram.NewNotifier(&cfg.Telegram)
		if err != nil {
			logger.Error("failed to create telegram notifier", zap.Error(err))
		} else {
			notifier = tg
		}
	}

	engine := decision.NewEngine(
		decision.Config{
			CheckMinSimilarity: cfg.Engine.CheckMinSimilarity,
			PatternTopK:        cfg.Engine.PatternTopK,
		},
		embedder,
		store,
		retriever,
		strategy,
		notifier,
		audit,
	)

	builder := macro.NewSnapshotBuilder(macro.NewRepository(db.DB()))
	snapshot, err := builder.Build(ctx)
	if err != nil {
		return fmt.Errorf("failed to build macro snapshot: %w", err)
	}

	result, err := engine.Decide(ctx, decision.Input{
		News: models.NewsItem{
			ID:          fmt.Sprintf("cli-%d", time.Now().Unix()),
			Title:       *title,
			Summary:     *summary,
			Ticker:      *ticker,
			PublishedAt: time.Now(),
		},
		Macro:       snapshot,
		ZScore:      *zScore,
		ImpactScore: *impact,
		Mode:        models.DecisionMode(*mode),
	})
	if err != nil {
		return fmt.Errorf("decision failed: %w", err)
	}

	output, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	fmt.Println(string(output))

	return nil
}

// initAudit wires the ClickHouse audit trail when configured. Returns a nil
// buffer otherwise; the engine treats that as audit disabled.
func initAudit(cfg *config.Config) (metrics.Buffer, func()) {
	if !cfg.ClickHouse.Enabled() {
		return nil, nil
	}

	chDB, err := metricsadapter.OpenClickHouse(&cfg.ClickHouse)
	if err != nil {
		logger.Error("audit sink unavailable, continuing without it", zap.Error(err))
		return nil, nil
	}

	buffer := metrics.NewBufferedMetrics(metrics.BufferConfig{
		Writer:        metricsadapter.NewWriter(metricsadapter.NewClickHouseRepository(chDB)),
		BatchSize:     cfg.ClickHouse.BatchSize,
		FlushInterval: time.Duration(cfg.ClickHouse.FlushSeconds) * time.Second,
	})

	return buffer, func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := buffer.Close(closeCtx); err != nil {
			logger.Error("failed to close audit buffer", zap.Error(err))
		}
	}
}

// initRedis connects the Redis client backing the learn lock and the hot
// embedding tier. Returns a nil client when Redis is not configured; both
// consumers degrade gracefully without it.
func initRedis(cfg *config.Config) (*redisadapter.Client, func(), error) {
	if !cfg.Redis.Enabled() {
		logger.Info("redis not configured, learn lock and embedding hot tier disabled")
		return nil, nil, nil
	}

	client, err := redisadapter.New(&cfg.Redis)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return client, func() {
		if err := client.Close(); err != nil {
			logger.Error("failed to close redis client", zap.Error(err))
		}
	}, nil
}
