// Package wire 提供依赖注入配置
package wire

import (
	"github.com/google/wire"

	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/application/credit"
	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/application/generation"
	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/application/saliency"
	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/application/token"
	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/config"
	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/domain/repository"
	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/domain/service"
	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/infrastructure/llm"
	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/infrastructure/messaging"
	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/infrastructure/persistence/postgres"
	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/infrastructure/persistence/redis"
	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/interfaces/http/handler"
	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/interfaces/http/middleware"
	"github.com/jjgordon89/JSG-StoryWeaver-sub006/internal/interfaces/http/router"
)

// App 应用顶层容器，附带启动期需要直接访问的组件
type App struct {
	Router   *router.Router
	PgClient *postgres.Client
	Catalog  *credit.ModelCatalog
}

// PostgresSet PostgreSQL 提供者集合
var PostgresSet = wire.NewSet(
	ProvidePostgresClient,
	postgres.NewTxManager,
	postgres.NewProjectRepository,
	postgres.NewElementRepository,
	postgres.NewRequestRepository,
	postgres.NewRecordRepository,
	postgres.NewLedgerRepository,
	postgres.NewModelProfileRepository,
	wire.Bind(new(repository.Transactor), new(*postgres.TxManager)),
	wire.Bind(new(repository.ProjectRepository), new(*postgres.ProjectRepository)),
	wire.Bind(new(repository.ElementRepository), new(*postgres.ElementRepository)),
	wire.Bind(new(repository.RequestRepository), new(*postgres.RequestRepository)),
	wire.Bind(new(repository.RecordRepository), new(*postgres.RecordRepository)),
	wire.Bind(new(repository.LedgerRepository), new(*postgres.LedgerRepository)),
	wire.Bind(new(repository.ModelProfileRepository), new(*postgres.ModelProfileRepository)),
)

// RedisSet Redis 提供者集合
var RedisSet = wire.NewSet(
	ProvideRedisClient,
	redis.NewSelectionCache,
	redis.NewRateLimiter,
	wire.Bind(new(saliency.SelectionCache), new(*redis.SelectionCache)),
	wire.Bind(new(middleware.RateLimiter), new(*redis.RateLimiter)),
)

// MessagingSet 消息队列提供者集合
var MessagingSet = wire.NewSet(
	ProvideMessagingProducer,
	wire.Bind(new(generation.EventPublisher), new(*messaging.Producer)),
)

// ApplicationSet 应用层提供者集合
var ApplicationSet = wire.NewSet(
	ProvideTokenEstimator,
	ProvideSelector,
	credit.NewModelCatalog,
	ProvideCreditEstimator,
	ProvideLedger,
	generation.NewHistoryStore,
	ProvideConcurrencyLimiter,
	llm.NewEinoFactory,
	llm.NewGenerator,
	wire.Bind(new(service.TextGenerator), new(*llm.Generator)),
	ProvideGenerationConfig,
	ProvideCreditsConfig,
	generation.NewCoordinator,
)

// RouterSet 路由器提供者集合
var RouterSet = wire.NewSet(
	handler.NewHealthHandler,
	handler.NewGenerationHandler,
	handler.NewCreditsHandler,
	handler.NewHistoryHandler,
	handler.NewModelsHandler,
	wire.Struct(new(router.RouterHandlers), "*"),
	router.NewWithDeps,
)

// ProvidePostgresClient 提供 PostgreSQL 客户端
func ProvidePostgresClient(cfg *config.Config) (*postgres.Client, func(), error) {
	client, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		client.Close()
	}
	return client, cleanup, nil
}

// ProvideRedisClient 提供 Redis 客户端
func ProvideRedisClient(cfg *config.Config) (*redis.Client, func(), error) {
	client, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		client.Close()
	}
	return client, cleanup, nil
}

// ProvideMessagingProducer 提供消息生产者
func ProvideMessagingProducer(redisClient *redis.Client, cfg *config.Config) *messaging.Producer {
	maxLen := cfg.Messaging.RedisStream.MaxLen
	if maxLen <= 0 {
		maxLen = 100000
	}
	return messaging.NewProducer(redisClient.Redis(), int64(maxLen))
}

// ProvideTokenEstimator 提供 Token 估算器
func ProvideTokenEstimator(cfg *config.Config) *token.Estimator {
	return token.NewEstimator(cfg.Generation.TokenEstimateRatio)
}

// ProvideSelector 提供上下文选择器
func ProvideSelector(elements repository.ElementRepository, tokens *token.Estimator, cache saliency.SelectionCache, cfg *config.Config) *saliency.Selector {
	return saliency.NewSelector(elements, tokens, cache, cfg.Generation.CacheTTL)
}

// ProvideCreditEstimator 提供成本估算器
func ProvideCreditEstimator(tokens *token.Estimator, cfg *config.Config) *credit.Estimator {
	return credit.NewEstimator(tokens, &cfg.Generation, cfg.Credits.UnitValue)
}

// ProvideLedger 提供信用点账本
func ProvideLedger(repo repository.LedgerRepository, txMgr repository.Transactor, cfg *config.Config) *credit.Ledger {
	return credit.NewLedger(repo, txMgr, cfg.Credits.LowBalanceThreshold)
}

// ProvideConcurrencyLimiter 提供项目级并发限制器
func ProvideConcurrencyLimiter(cfg *config.Config) *generation.ConcurrencyLimiter {
	return generation.NewConcurrencyLimiter(cfg.Generation.MaxConcurrentRequests, generation.OverflowPolicy(cfg.Generation.OverflowPolicy))
}

// ProvideGenerationConfig 提供生成配置
func ProvideGenerationConfig(cfg *config.Config) *config.GenerationConfig {
	return &cfg.Generation
}

// ProvideCreditsConfig 提供信用点配置
func ProvideCreditsConfig(cfg *config.Config) *config.CreditsConfig {
	return &cfg.Credits
}
