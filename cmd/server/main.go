// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ai-edu-go/internal/config"
	"ai-edu-go/internal/handler"
	"ai-edu-go/internal/middleware"
	"ai-edu-go/internal/pipeline"
	"ai-edu-go/internal/prompt"
	"ai-edu-go/internal/repository"
	"ai-edu-go/internal/service"
	"ai-edu-go/pkg/database"
	"ai-edu-go/pkg/kafka"
	"ai-edu-go/pkg/llm"
	"ai-edu-go/pkg/log"

	"github.com/gin-gonic/gin"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	// 3. 初始化数据库和 Redis
	database.InitSQL(cfg.Database.SQL)
	database.InitRedis(cfg.Database.Redis)

	// 后台任务共用的生命周期
	bgCtx, cancelBg := context.WithCancel(context.Background())
	defer cancelBg()

	// 4. 初始化 Repository
	historyRepo := repository.NewHistoryRepository(database.DB)
	answerRepo := repository.NewAnswerRepository(database.DB)
	profileRepo := repository.NewProfileRepository(database.RDB)

	// 5. 常驻 AI 与画像，从 Redis 预热
	profileStore := service.NewProfileStore(profileRepo)
	if n, err := profileStore.Warm(bgCtx); err != nil {
		log.Warnf("从 Redis 预热用户画像失败: %v", err)
	} else {
		log.Infof("已预热 %d 个用户画像", n)
	}
	residentService := service.NewResidentService(profileStore)

	// 6. 会话历史写入：开启 Kafka 时走消息队列，否则直接异步写库
	var historyWriter service.HistoryWriter
	var producer *kafka.HistoryProducer
	var asyncWriter *service.AsyncHistoryWriter
	consumerDone := make(chan struct{})
	if cfg.Kafka.Enabled {
		producer = kafka.NewHistoryProducer(cfg.Kafka)
		historyWriter = producer
		go func() {
			defer close(consumerDone)
			kafka.StartConsumer(bgCtx, kafka.NewHistoryReader(cfg.Kafka), pipeline.NewProcessor(historyRepo))
		}()
	} else {
		close(consumerDone)
		asyncWriter = service.NewAsyncHistoryWriter(historyRepo)
		historyWriter = asyncWriter
	}

	// 7. 初始化 Service (依赖注入)
	assembler := prompt.NewAssembler(prompt.NewClassifier(cfg.Prompt.QuizTriggers))
	llmClient := llm.NewClient(cfg.LLM)
	chatService := service.NewChatService(
		service.NewChatOptions(cfg),
		assembler,
		llmClient,
		historyRepo,
		answerRepo,
		historyWriter,
		residentService,
	)
	knowledgeService := service.NewKnowledgeService()

	// 8. 启动画像后台刷新
	refresher := service.NewProfileRefresher(profileStore, answerRepo, cfg.Profile.RefreshInterval)
	go refresher.Run(bgCtx)

	// 9. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger(), middleware.CORS(cfg.Server.AllowOriginPattern), gin.Recovery())

	// 10. 注册路由
	chatHandler := handler.NewChatHandler(chatService, cfg.Server.AllowOriginPattern)
	knowledgeHandler := handler.NewKnowledgeHandler(knowledgeService)
	r.POST("/chat", chatHandler.Chat)
	r.POST("/chat/stream", chatHandler.Stream)
	r.GET("/chat/ws", chatHandler.WebSocket)
	r.GET("/profiles/:userId", handler.NewProfileHandler(residentService).Get)
	r.GET("/knowledge-graph", knowledgeHandler.Graph)
	r.POST("/personality", knowledgeHandler.Personality)
	r.GET("/healthz", handler.Health)

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

	// 设置一个5秒的超时上下文
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// 关闭 HTTP 服务器
	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("HTTP 服务器关闭失败: %v", err)
	}

	// 停止后台刷新与 Kafka 消费者，再等待未完成的历史写入
	cancelBg()
	<-refresher.Done()
	<-consumerDone
	if asyncWriter != nil {
		asyncWriter.Wait()
	}
	if producer != nil {
		if err := producer.Close(); err != nil {
			log.Errorf("关闭 Kafka 生产者失败: %v", err)
		}
	}
	log.Info("服务已优雅关闭")
}
