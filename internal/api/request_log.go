package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/liyang960414/erp-sub001/internal/metrics"
	"github.com/sirupsen/logrus"
)

// RequestLogMiddleware 请求日志中间件
// 指标按路由模板聚合,避免 /:id 路径打散标签;探活端点不记日志
func RequestLogMiddleware() gin.HandlerFunc {
	logger := GetLogger()

	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.RecordAPIRequest(method, route, status, latency.Seconds())

		if path == "/health" || path == "/metrics" {
			return
		}

		entry := logger.WithFields(logrus.Fields{
			"request_id": c.GetString("request_id"),
			"method":     method,
			"path":       path,
			"status":     status,
			"latency":    latency.String(),
			"ip":         c.ClientIP(),
		})
		// 导入提交是大文件上传,留下请求体大小便于排查
		if size := c.Request.ContentLength; size > 0 {
			entry = entry.WithField("request_bytes", size)
		}

		switch {
		case status >= 500:
			entry.Error("API request")
		case status >= 400:
			entry.Warn("API request")
		default:
			entry.Info("API request")
		}
	}
}
