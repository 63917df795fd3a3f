package docchat

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/docchat/internal/docchat/biz"
	"github.com/kart-io/docchat/internal/docchat/handler"
	"github.com/kart-io/docchat/internal/docchat/router"
	"github.com/kart-io/docchat/internal/docchat/store"
	milvuscomp "github.com/kart-io/docchat/pkg/component/milvus"
	mysqlcomp "github.com/kart-io/docchat/pkg/component/mysql"
	"github.com/kart-io/docchat/pkg/component/objstore"
	"github.com/kart-io/docchat/pkg/llm"
	httpopts "github.com/kart-io/docchat/pkg/options/http"
	llmopts "github.com/kart-io/docchat/pkg/options/llm"
	logopts "github.com/kart-io/docchat/pkg/options/logger"
	milvusopts "github.com/kart-io/docchat/pkg/options/milvus"
	minioopts "github.com/kart-io/docchat/pkg/options/minio"
	mysqlopts "github.com/kart-io/docchat/pkg/options/mysql"
	redisopts "github.com/kart-io/docchat/pkg/options/redis"

	// 导入 LLM 供应商以自动注册
	_ "github.com/kart-io/docchat/pkg/llm/ollama"
	_ "github.com/kart-io/docchat/pkg/llm/openai"
)

// Name is the name of the application.
const Name = "docchat"

// Config contains application-related configurations.
type Config struct {
	HTTPOptions      *httpopts.Options
	LogOptions       *logopts.Options
	MySQLOptions     *mysqlopts.Options
	RedisOptions     *redisopts.Options
	MilvusOptions    *milvusopts.Options
	MinioOptions     *minioopts.Options
	EmbeddingOptions *llmopts.ProviderOptions
	ChatOptions      *llmopts.ProviderOptions
	PipelineOptions  *PipelineOptions
	CacheOptions     *CacheOptions
	ShutdownTimeout  time.Duration
}

// Server represents the docchat server.
type Server struct {
	httpServer      *http.Server
	service         *biz.Service
	closers         []func()
	shutdownTimeout time.Duration
}

// NewServer initializes and returns a new Server instance.
func (cfg *Config) NewServer(ctx context.Context) (*Server, error) {
	// 1. 初始化日志
	if err := cfg.LogOptions.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Info("Starting docchat service...")

	var closers []func()

	// 2. 初始化 MySQL 与 Store 层
	mysqlClient, err := mysqlcomp.New(cfg.MySQLOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize mysql: %w", err)
	}
	closers = append(closers, func() { _ = mysqlClient.Close() })

	if err := store.AutoMigrate(mysqlClient.DB()); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	factory := store.NewFactory(mysqlClient.DB())
	logger.Info("MySQL store initialized")

	// 3. 初始化 Milvus 与向量块存储
	milvusClient, err := milvuscomp.New(cfg.MilvusOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize milvus: %w", err)
	}
	closers = append(closers, func() { _ = milvusClient.Close(context.Background()) })

	chunkStore := store.NewMilvusChunkStore(milvusClient)
	if err := chunkStore.EnsureCollection(ctx, cfg.PipelineOptions.EmbeddingDim); err != nil {
		return nil, fmt.Errorf("failed to ensure chunk collection: %w", err)
	}
	logger.Info("Milvus chunk store initialized")

	// 4. 初始化对象存储
	objectStore, err := objstore.New(ctx, cfg.MinioOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize object storage: %w", err)
	}
	logger.Infow("Object storage initialized", "bucket", objectStore.Bucket())

	// 5. 初始化 Embedding 供应商（可选 Redis 缓存）
	embedProvider, err := llm.NewEmbeddingProvider(cfg.EmbeddingOptions.Provider, cfg.EmbeddingOptions.ToConfigMap())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding provider: %w", err)
	}
	if cfg.CacheOptions.Enabled {
		redisClient := goredis.NewClient(&goredis.Options{
			Addr:         cfg.RedisOptions.Addr(),
			Password:     cfg.RedisOptions.Password,
			DB:           cfg.RedisOptions.Database,
			MaxRetries:   cfg.RedisOptions.MaxRetries,
			PoolSize:     cfg.RedisOptions.PoolSize,
			MinIdleConns: cfg.RedisOptions.MinIdleConns,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warnw("failed to connect to redis, embedding cache disabled", "error", err.Error())
			_ = redisClient.Close()
		} else {
			embedProvider = llm.NewCachedEmbeddingProvider(embedProvider, redisClient, &llm.EmbeddingCacheConfig{
				Enabled:   true,
				TTL:       cfg.CacheOptions.TTL,
				KeyPrefix: cfg.CacheOptions.KeyPrefix,
			})
			closers = append(closers, func() { _ = redisClient.Close() })
			logger.Infow("Embedding cache initialized", "ttl", cfg.CacheOptions.TTL)
		}
	}
	logger.Infow("Embedding provider initialized",
		"provider", cfg.EmbeddingOptions.Provider, "model", cfg.EmbeddingOptions.Model)

	// 6. 初始化 Chat 供应商
	chatProvider, err := llm.NewChatProvider(cfg.ChatOptions.Provider, cfg.ChatOptions.ToConfigMap())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chat provider: %w", err)
	}
	logger.Infow("Chat provider initialized",
		"provider", cfg.ChatOptions.Provider, "model", cfg.ChatOptions.Model)

	// 7. 初始化 Biz 层
	service, err := biz.NewService(factory, chunkStore, objectStore,
		biz.NewEmbedder(embedProvider), chatProvider,
		&biz.ServiceConfig{
			IngestWorkers: cfg.PipelineOptions.IngestWorkers,
			ChunkSize:     cfg.PipelineOptions.ChunkSize,
			ChunkOverlap:  cfg.PipelineOptions.ChunkOverlap,
			TopK:          cfg.PipelineOptions.TopK,
			Threshold:     cfg.PipelineOptions.Threshold,
			MaxHistory:    cfg.PipelineOptions.MaxHistory,
		})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize service: %w", err)
	}
	logger.Info("Docchat service initialized")

	// 8. 初始化 HTTP 层
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.MaxMultipartMemory = cfg.HTTPOptions.MaxUploadSize

	router.Register(engine,
		handler.NewDocumentHandler(service, cfg.HTTPOptions.MaxUploadSize),
		handler.NewChatHandler(service),
		handler.NewAdminHandler(service),
	)

	httpServer := &http.Server{
		Addr:         cfg.HTTPOptions.Addr,
		Handler:      engine,
		ReadTimeout:  cfg.HTTPOptions.ReadTimeout,
		WriteTimeout: cfg.HTTPOptions.WriteTimeout,
		IdleTimeout:  cfg.HTTPOptions.IdleTimeout,
	}

	logger.Info("Docchat service is ready")
	return &Server{
		httpServer:      httpServer,
		service:         service,
		closers:         closers,
		shutdownTimeout: cfg.ShutdownTimeout,
	}, nil
}

// Run starts the server and listens for termination signals.
func (s *Server) Run(ctx context.Context) error {
	defer func() {
		s.service.Close()
		for i := len(s.closers) - 1; i >= 0; i-- {
			s.closers[i]()
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		logger.Infow("HTTP server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server error: %w", err)
	case sig := <-sigCh:
		logger.Infow("Received signal, shutting down", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled, shutting down")
	}

	timeout := s.shutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	logger.Info("Docchat service stopped")
	return nil
}
