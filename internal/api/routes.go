package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/liyang960414/erp-sub001/internal/importer"
	"github.com/liyang960414/erp-sub001/internal/metrics"
	"github.com/liyang960414/erp-sub001/internal/service"
	"github.com/liyang960414/erp-sub001/internal/websocket"
	"gorm.io/gorm"
)

// RouterDeps 路由依赖
type RouterDeps struct {
	DB            *gorm.DB
	Hub           *websocket.Hub
	Registry      *importer.Registry
	TaskService   service.ImportTaskService
	MasterService service.MasterDataService

	// SSE 推送间隔,零值用默认
	SSEInterval time.Duration
	// CORS 允许的来源
	AllowedOrigins []string
	// 限流参数,RPS 为零时不挂限流中间件
	RateLimitRPS   float64
	RateLimitBurst int
	// 是否挂链路追踪中间件
	EnableTracing bool
}

// SetupRoutes 配置路由
func SetupRoutes(deps *RouterDeps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	// 中间件
	router.Use(RequestIDMiddleware())
	router.Use(SecurityHeadersMiddleware())
	router.Use(RequestLogMiddleware())
	router.Use(ErrorHandlerMiddleware())
	if len(deps.AllowedOrigins) > 0 {
		router.Use(CORSMiddleware(deps.AllowedOrigins))
	}
	if deps.RateLimitRPS > 0 {
		router.Use(RateLimitMiddleware(deps.RateLimitRPS, deps.RateLimitBurst))
	}
	if deps.EnableTracing {
		router.Use(TracingMiddleware())
	}

	// 健康检查
	healthController := NewHealthController(deps.DB, deps.Hub)
	router.GET("/health", healthController.Check)

	// Prometheus 指标端点
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	// WebSocket 路由
	if deps.Hub != nil {
		router.GET("/ws/tasks", websocket.WebSocketHandler(deps.Hub))
	}

	// SSE 路由
	if deps.TaskService != nil {
		router.GET("/sse/import-tasks/:id", SSEHandler(deps.TaskService, deps.SSEInterval))
	}

	// API v1 路由组
	v1 := router.Group("/api/v1")
	{
		if deps.TaskService != nil {
			taskController := NewImportTaskController(deps.TaskService, deps.Registry)
			tasks := v1.Group("/import-tasks")
			{
				tasks.POST("", taskController.Submit)
				tasks.GET("", taskController.List)
				tasks.GET("/:id", taskController.Get)
				tasks.GET("/:id/failures", taskController.ListFailures)
				tasks.GET("/:id/failures/export", taskController.ExportFailures)
				tasks.POST("/:id/resubmit", taskController.Resubmit)
				tasks.POST("/:id/cancel", taskController.Cancel)
			}
			v1.GET("/import-types", taskController.Types)
		}

		if deps.MasterService != nil {
			masterController := NewMasterDataController(deps.MasterService)
			v1.GET("/materials", masterController.ListMaterials)
			v1.GET("/materials/:code/boms", masterController.GetBoms)
			v1.GET("/suppliers", masterController.ListSuppliers)
		}
	}

	return router
}
