package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"groupsync/backend/config"
	"groupsync/backend/internal/api/handler"
	"groupsync/backend/internal/api/middleware"
	"groupsync/backend/pkg/redis"
)

// Setup 初始化并返回 Gin 路由引擎
// rdb 可为 nil：限流降级为放行，重算锁降级为进程内锁
func Setup(cfg *config.Config, h *handler.Handler, rdb *redis.Client, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.SecurityHeaders())

	// ── 健康检查 / 指标 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	recalcLimit := middleware.RateLimit(rdb, cfg.Server.RateLimit.Limit, cfg.Server.RateLimit.Window, logger)

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	v1.Use(middleware.UserIdentity())
	{
		// 群组空闲时间
		groups := v1.Group("/groups/:id/availability")
		{
			groups.GET("", h.Availability.GetAvailability)
			groups.POST("/recalculate", recalcLimit, h.Availability.Recalculate)
			groups.GET("/export", h.Export.ExportWindows)
		}

		// 当前用户日历
		me := v1.Group("/users/me")
		{
			me.POST("/availability/recalculate", recalcLimit, h.Availability.RecalculateMine)
			me.POST("/calendar/ics", middleware.BodyLimit(cfg.Server.MaxICSBytes), h.Calendar.ImportICS)
			me.PUT("/sleep-window", h.Calendar.SetSleepWindow)
		}
	}

	return r
}
