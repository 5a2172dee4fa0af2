package main

import (
	"fmt"
	"net/http"
	"roofsite-go/internal/config"
	"roofsite-go/internal/handler"
	"roofsite-go/internal/middleware"
	"roofsite-go/internal/service"
	"roofsite-go/pkg/ratelimit"
	"roofsite-go/pkg/token"

	"github.com/gin-gonic/gin"
)

// services 汇总路由需要的全部业务服务。
type services struct {
	user         service.UserService
	conversation service.ConversationService
	site         service.SiteService
	chat         service.ChatService
	lead         service.LeadService
	blog         service.BlogService
	billing      service.BillingService
}

// newRouter 创建路由引擎并注册全部路由。
func newRouter(cfg config.Config, jwtManager *token.JWTManager, limiters *ratelimit.Set, svc services) (*gin.Engine, error) {
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	// 只有配置的代理可以通过 X-Forwarded-For 指定客户端 IP，线索接口按 IP 限流依赖于此。
	if err := r.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		return nil, fmt.Errorf("invalid server.trusted_proxies: %w", err)
	}
	r.Use(middleware.RequestLogger(), gin.Recovery(), middleware.CORS(cfg.Server.AllowOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authRequired := middleware.AuthMiddleware(jwtManager, svc.user)
	userHandler := handler.NewUserHandler(svc.user)
	chatHandler := handler.NewChatHandler(svc.chat, svc.user, jwtManager, limiters.Chat)
	siteHandler := handler.NewSiteHandler(svc.site)
	leadHandler := handler.NewLeadHandler(svc.lead)
	blogHandler := handler.NewBlogHandler(svc.blog)

	apiV1 := r.Group("/api/v1")
	{
		auth := apiV1.Group("/auth")
		{
			auth.POST("/refreshToken", handler.NewAuthHandler(svc.user).RefreshToken)
		}

		users := apiV1.Group("/users")
		{
			// 无需认证的路由 (公开访问)
			users.POST("/register", userHandler.Register)
			users.POST("/login", userHandler.Login)

			// 需要认证的路由 (仅限登录用户访问)
			authed := users.Group("/")
			authed.Use(authRequired)
			{
				authed.GET("/me", userHandler.GetProfile)
				authed.POST("/logout", userHandler.Logout)
				authed.GET("/conversation", handler.NewConversationHandler(svc.conversation).GetConversations)
			}
		}

		// 聊天：匿名用户也可使用，按用户 ID 或 anonymous 限流
		apiV1.POST("/chat",
			middleware.OptionalAuth(jwtManager, svc.user),
			middleware.RateLimit(limiters.Chat, middleware.UserOrAnonymous("chat")),
			chatHandler.Stream,
		)

		// 线索提交是公开接口，按客户端 IP 限流
		apiV1.POST("/leads", middleware.RateLimit(limiters.Lead, middleware.ClientIP("lead")), leadHandler.Submit)

		sites := apiV1.Group("/sites")
		sites.Use(authRequired)
		{
			sites.POST("", siteHandler.Create)
			sites.GET("", siteHandler.List)
			sites.GET("/:id", siteHandler.Get)
			sites.PUT("/:id/config", siteHandler.UpdateConfig)
			sites.GET("/:id/leads", leadHandler.List)
			sites.POST("/:id/publish", middleware.RateLimit(limiters.Publish, middleware.UserOrAnonymous("publish")), siteHandler.Publish)
		}

		blog := apiV1.Group("/blog")
		blog.Use(authRequired)
		{
			blog.POST("/generate", middleware.RateLimit(limiters.Blog, middleware.UserOrAnonymous("blog")), blogHandler.Generate)
			blog.GET("/posts", blogHandler.List)
		}

		billingGroup := apiV1.Group("/billing")
		billingGroup.Use(authRequired)
		{
			billingGroup.POST("/portal", middleware.RateLimit(limiters.Portal, middleware.UserOrAnonymous("portal")), handler.NewBillingHandler(svc.billing).Portal)
		}
	}

	// Chat 路由 (WebSocket)
	r.GET("/chat/ws/:token", chatHandler.Handle)

	return r, nil
}
