package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rtCamp/wpai-chatbot-example-sub001/internal/config"
	"github.com/rtCamp/wpai-chatbot-example-sub001/internal/core/domain"
	"github.com/rtCamp/wpai-chatbot-example-sub001/internal/core/ports"
	"github.com/rtCamp/wpai-chatbot-example-sub001/internal/core/usecase"
	"github.com/rtCamp/wpai-chatbot-example-sub001/internal/infrastructure/cache/memory"
	rediscache "github.com/rtCamp/wpai-chatbot-example-sub001/internal/infrastructure/cache/redis"
	"github.com/rtCamp/wpai-chatbot-example-sub001/internal/infrastructure/lexical/bleve"
	"github.com/rtCamp/wpai-chatbot-example-sub001/internal/infrastructure/llm/ollama"
	"github.com/rtCamp/wpai-chatbot-example-sub001/internal/infrastructure/queue/nats"
	"github.com/rtCamp/wpai-chatbot-example-sub001/internal/infrastructure/repository/postgres"
	"github.com/rtCamp/wpai-chatbot-example-sub001/internal/infrastructure/resilience"
	"github.com/rtCamp/wpai-chatbot-example-sub001/internal/infrastructure/vector/qdrant"
	"github.com/rtCamp/wpai-chatbot-example-sub001/internal/observability/metrics"
)

const (
	semanticOperation = "source.semantic"
	keywordOperation  = "source.keyword"
)

type Options struct {
	// Messages opens Postgres and builds the chat service.
	Messages bool
}

type App struct {
	Config config.Config

	Retrieval *usecase.RetrievalUseCase
	Chat      *usecase.ChatUseCase
	Metrics   *metrics.HTTPServerMetrics

	exec     *resilience.Executor
	closeFns []func()
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	app := &App{
		Config:  cfg,
		Metrics: metrics.NewHTTPServerMetrics(cfg.ServiceName),
	}
	observer := metrics.NewRetrievalMetrics(cfg.ServiceName, app.Metrics.Registerer())

	rcfg := cfg.ResilienceConfig()
	rcfg.OnStateChange = observer.ObserveBreakerState
	exec := resilience.NewExecutor(rcfg)
	app.exec = exec

	semantic, keyword, err := app.buildSources(cfg, exec)
	if err != nil {
		app.Close()
		return nil, err
	}

	cache, err := app.buildPoolCache(ctx, cfg)
	if err != nil {
		app.Close()
		return nil, err
	}

	var audit ports.AuditPublisher
	if cfg.AuditEnabled {
		publisher, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSAuditSubject, nats.Options{ResilienceExecutor: exec})
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("init audit publisher: %w", err)
		}
		app.onClose(publisher.Close)
		audit = publisher
	}

	app.Retrieval = usecase.NewRetrievalUseCase(semantic, keyword, cache, observer, audit, cfg.RetrievalConfig())

	if opts.Messages {
		db, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		app.onClose(func() { _ = db.Close() })

		repo := postgres.NewMessageRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			app.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		app.Chat = usecase.NewChatUseCase(app.Retrieval, repo)
	}

	slog.Info("bootstrap_ready",
		"keyword_backend", cfg.KeywordBackend,
		"pool_cache_backend", cfg.PoolCacheBackend,
		"audit_enabled", cfg.AuditEnabled,
		"messages", opts.Messages,
	)
	return app, nil
}

func (a *App) buildSources(cfg config.Config, exec *resilience.Executor) (ports.CandidateSource, ports.CandidateSource, error) {
	qdrantClient := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, cfg.QdrantTimeout)
	embedder := ollama.NewEmbedder(ollama.New(cfg.OllamaURL, cfg.OllamaEmbedModel, cfg.OllamaTimeout, nil))

	semantic := resilience.NewSource(
		qdrant.NewSemanticSource(qdrantClient, embedder),
		exec, semanticOperation, resilience.ClassifyHTTPError,
	)

	var keyword ports.CandidateSource
	switch cfg.KeywordBackend {
	case config.KeywordBackendQdrant:
		keyword = resilience.NewSource(qdrant.NewLexicalSource(qdrantClient), exec, keywordOperation, resilience.ClassifyHTTPError)
	case config.KeywordBackendBleve:
		index, err := bleve.Open(cfg.BlevePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open lexical index: %w", err)
		}
		a.onClose(func() { _ = index.Close() })
		keyword = resilience.NewSource(index, exec, keywordOperation, bleve.ClassifyError)
	default:
		return nil, nil, fmt.Errorf("unknown keyword backend %q", cfg.KeywordBackend)
	}
	return semantic, keyword, nil
}

func (a *App) buildPoolCache(ctx context.Context, cfg config.Config) (ports.PoolCache, error) {
	switch cfg.PoolCacheBackend {
	case config.PoolCacheMemory:
		return memory.NewPoolCache(cfg.PoolCacheCapacity, cfg.PoolCacheTTL), nil
	case config.PoolCacheRedis:
		rdb, err := rediscache.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, fmt.Errorf("init redis: %w", err)
		}
		a.onClose(func() { _ = rdb.Close() })
		return rediscache.NewPoolCache(rdb, cfg.RedisKeyPrefix, cfg.PoolCacheTTL), nil
	default:
		return nil, fmt.Errorf("unknown pool cache backend %q", cfg.PoolCacheBackend)
	}
}

// BreakerStates reports the circuit state guarding each retrieval source.
func (a *App) BreakerStates() map[string]string {
	return map[string]string{
		string(domain.SourceSemantic): a.exec.BreakerState(semanticOperation),
		string(domain.SourceKeyword):  a.exec.BreakerState(keywordOperation),
	}
}

func (a *App) onClose(fn func()) {
	a.closeFns = append(a.closeFns, fn)
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closeFns) - 1; i >= 0; i-- {
		a.closeFns[i]()
	}
	a.closeFns = nil
}
