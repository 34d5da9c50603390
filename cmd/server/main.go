// Package main 是应用程序的入口点。
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dreamcatcher-llm-go/internal/config"
	"dreamcatcher-llm-go/internal/handler"
	"dreamcatcher-llm-go/internal/middleware"
	"dreamcatcher-llm-go/internal/pipeline"
	"dreamcatcher-llm-go/internal/repository"
	"dreamcatcher-llm-go/internal/service"
	"dreamcatcher-llm-go/internal/tools"
	"dreamcatcher-llm-go/pkg/database"
	"dreamcatcher-llm-go/pkg/es"
	"dreamcatcher-llm-go/pkg/kafka"
	"dreamcatcher-llm-go/pkg/llm"
	"dreamcatcher-llm-go/pkg/log"
	"dreamcatcher-llm-go/pkg/storage"

	"github.com/gin-gonic/gin"
)

const version = "1.0.0"

func main() {
	configPath := flag.String("config", "./configs/config.yaml", "配置文件路径")
	flag.Parse()

	// 1. 初始化配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	// 3. 初始化 LLM 接口。失败时服务照常启动，依赖模型的接口返回 500
	var iface llm.Interface
	client, err := llm.Bootstrap(cfg.LLM.ProviderFile,
		llm.WithTimeout(time.Duration(cfg.LLM.TimeoutSeconds)*time.Second),
		llm.WithTemperature(cfg.LLM.Temperature),
	)
	if err != nil {
		log.Errorf("LLM 接口初始化失败: %v", err)
	} else {
		iface = client
		log.Infof("LLM 接口初始化成功: %s", client.Name())
	}

	// 4. 初始化可选的外部依赖，未配置或连接失败时降级
	ctx := context.Background()
	deps := tools.Dependencies{}
	if cfg.Database.MySQL.DSN != "" {
		db, err := database.InitMySQL(cfg.Database.MySQL.DSN)
		if err != nil {
			log.Errorf("MySQL 初始化失败，get_plan_data 将使用模拟数据: %v", err)
		} else {
			deps.Plans = repository.NewPlanRepository(db)
		}
	}
	if cfg.Elasticsearch.Addresses != "" {
		searcher, err := es.NewKnowledgeSearcher(cfg.Elasticsearch)
		if err != nil {
			log.Errorf("Elasticsearch 初始化失败，知识库只使用内置条目: %v", err)
		} else {
			deps.Knowledge = searcher
			if cfg.Elasticsearch.SeedDir != "" {
				// 后台导入知识库目录，已导入的文档会被覆盖
				go func() {
					if _, err := pipeline.NewProcessor(searcher).SeedDir(ctx, cfg.Elasticsearch.SeedDir); err != nil {
						log.Warnf("知识库导入失败: %v", err)
					}
				}()
			}
		}
	}

	var locker repository.SessionLocker
	if cfg.History.LockBackend == "redis" {
		rdb, err := database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
		if err != nil {
			log.Errorf("Redis 初始化失败，会话锁退回进程内实现: %v", err)
		} else {
			locker = repository.NewRedisSessionLocker(rdb, time.Duration(cfg.History.LockTTLSeconds)*time.Second)
			defer rdb.Close()
		}
	}

	var archiver repository.SnapshotArchiver
	if cfg.MinIO.Enabled {
		a, err := storage.NewMinioArchiver(ctx, cfg.MinIO)
		if err != nil {
			log.Errorf("MinIO 初始化失败，快照不归档: %v", err)
		} else {
			archiver = a
		}
	}

	var publisher service.EventPublisher
	if cfg.Kafka.Brokers != "" {
		producer := kafka.NewProducer(cfg.Kafka)
		defer producer.Close()
		publisher = producer
	}

	// 5. 初始化 Repository、工具注册表与 Service (依赖注入)
	historyRepo := repository.NewHistoryRepository(cfg.History.Dir, locker, archiver)
	registry := tools.NewDefaultRegistry(deps)
	log.Infof("已注册工具: %v", registry.Names())
	llmService := service.NewLLMService(iface, registry, historyRepo, publisher, service.Options{
		ProviderFile:  cfg.LLM.ProviderFile,
		MaxToolRounds: cfg.LLM.MaxToolRounds,
	})

	// 6. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery(), middleware.CORS(cfg.Server.CORSOrigins))

	// 7. 注册路由
	handler.RegisterLLMRoutes(r.Group("/api/v1/llm"), handler.Handlers{
		LLM:       handler.NewLLMHandler(llmService),
		Stream:    handler.NewStreamHandler(llmService, time.Duration(cfg.Stream.TokenDelayMS)*time.Millisecond),
		MCP:       handler.NewMCPHandler(registry),
		Session:   handler.NewSessionHandler(llmService),
		MCPServer: tools.NewMCPHTTPHandler(registry, version),
	})

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("HTTP 服务器关闭失败: %v", err)
	}
	log.Info("服务已优雅关闭")
}
