// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"roofsite-go/internal/config"
	"roofsite-go/internal/model"
	"roofsite-go/internal/repository"
	"roofsite-go/internal/service"
	"roofsite-go/pkg/billing"
	"roofsite-go/pkg/database"
	"roofsite-go/pkg/kafka"
	"roofsite-go/pkg/llm"
	"roofsite-go/pkg/log"
	"roofsite-go/pkg/ratelimit"
	"roofsite-go/pkg/storage"
	"roofsite-go/pkg/token"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()
	log.Info("日志记录器初始化成功")

	// 3. 初始化数据库、Redis 和对象存储
	database.InitMySQL(cfg.Database.MySQL.DSN, &model.User{}, &model.Site{}, &model.Lead{}, &model.BlogPost{})
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	storage.InitMinIO(cfg.MinIO)
	leadProducer := kafka.NewProducer(cfg.Kafka)

	// 4. 初始化 Repository
	userRepo := repository.NewUserRepository(database.DB)
	siteRepo := repository.NewSiteRepository(database.DB)
	leadRepo := repository.NewLeadRepository(database.DB)
	blogRepo := repository.NewBlogRepository(database.DB)
	conversationRepo := repository.NewConversationRepository(database.RDB)

	// 5. 初始化 Service (依赖注入)
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours, cfg.JWT.RefreshTokenExpireDays)
	llmClient := llm.NewClient(cfg.LLM)
	gen := llm.DefaultGenerationParams(cfg.LLM.Generation)
	objectStore := storage.NewMinIOStore(storage.MinioClient, cfg.MinIO.BucketName)
	presignExpiry := time.Duration(cfg.MinIO.PresignExpireHours) * time.Hour

	svc := services{
		user:         service.NewUserService(userRepo, jwtManager, database.RDB),
		conversation: service.NewConversationService(conversationRepo),
	}
	svc.site = service.NewSiteService(siteRepo, objectStore, presignExpiry)
	svc.chat = service.NewChatService(llmClient, svc.conversation, svc.site, gen)
	svc.lead = service.NewLeadService(leadRepo, siteRepo, svc.site, leadProducer)
	svc.blog = service.NewBlogService(llmClient, blogRepo, svc.site, gen)
	svc.billing = service.NewBillingService(userRepo, billing.NewClient(cfg.Billing))

	// 6. 初始化限流器，每个用途独立计数
	limiters := ratelimit.NewSet(cfg.RateLimit, database.RDB)
	log.Infof("限流器初始化成功, backend=%s", cfg.RateLimit.Backend)

	// 7. 启动后台 Kafka 消费者，处理线索通知
	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	consumerDone := make(chan struct{})
	go func() {
		defer close(consumerDone)
		kafka.StartConsumer(consumerCtx, cfg.Kafka, svc.lead)
	}()

	// 8. 设置 Gin 模式并注册路由
	gin.SetMode(cfg.Server.Mode)
	r, err := newRouter(cfg, jwtManager, limiters, svc)
	if err != nil {
		log.Fatalf("路由初始化失败: %v", err)
	}

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

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}

	stopConsumer()
	select {
	case <-consumerDone:
	case <-ctx.Done():
		log.Warnf("等待 Kafka 消费者退出超时")
	}
	log.Info("服务已优雅关闭")
}
