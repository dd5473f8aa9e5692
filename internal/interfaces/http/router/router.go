// Package router 提供 HTTP 路由配置
package router

import (
	"neurotext/internal/config"
	"neurotext/internal/infrastructure/persistence/redis"
	"neurotext/internal/interfaces/http/handler"
	"neurotext/internal/interfaces/http/middleware"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router HTTP 路由器
type Router struct {
	engine *gin.Engine
	cfg    *config.Config
	redis  *redis.Client
}

// New 创建新的路由器
func New(cfg *config.Config, redisClient *redis.Client, expansionHandler *handler.ExpansionHandler) *Router {
	// 设置 Gin 模式
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()

	r := &Router{
		engine: engine,
		cfg:    cfg,
		redis:  redisClient,
	}

	r.setupMiddleware()
	r.setupRoutes(expansionHandler)

	return r
}

// Engine 返回 Gin Engine
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// setupMiddleware 配置中间件
func (r *Router) setupMiddleware() {
	// 基础中间件
	r.engine.Use(middleware.Recovery())
	r.engine.Use(middleware.RequestID())

	// CORS 中间件
	r.engine.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: r.cfg.Security.CORS.AllowedOrigins,
		AllowedMethods: r.cfg.Security.CORS.AllowedMethods,
		AllowedHeaders: r.cfg.Security.CORS.AllowedHeaders,
	}))

	// 追踪中间件
	if r.cfg.Observability.Tracing.Enabled {
		r.engine.Use(middleware.Trace(r.cfg.App.Name))
		r.engine.Use(middleware.TraceContext())
	}

	// 指标中间件
	if r.cfg.Observability.Metrics.Enabled {
		r.engine.Use(middleware.Metrics())
	}

	// 限流中间件
	if r.cfg.Security.RateLimit.Enabled && r.redis != nil {
		r.engine.Use(middleware.NewRateLimitMiddleware(middleware.RateLimitConfig{
			Enabled:           r.cfg.Security.RateLimit.Enabled,
			RequestsPerSecond: r.cfg.Security.RateLimit.RequestsPerSecond,
			KeyPrefix:         r.cfg.Security.RateLimit.KeyPrefix,
		}, r.redis.Redis()))
	}
}

// setupRoutes 配置路由
func (r *Router) setupRoutes(expansionHandler *handler.ExpansionHandler) {
	// 健康检查处理器
	healthHandler := handler.NewHealthHandler(r.redis)

	// 系统端点
	r.engine.GET("/health", healthHandler.Health)
	r.engine.GET("/ready", healthHandler.Ready)
	r.engine.GET("/live", healthHandler.Live)

	// Prometheus 指标端点
	if r.cfg.Observability.Metrics.Enabled {
		r.engine.GET(r.cfg.Observability.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	// API v1 路由组
	v1 := r.engine.Group("/v1")
	RegisterV1Routes(v1, expansionHandler)
}
