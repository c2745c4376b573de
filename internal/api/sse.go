package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/liyang960414/erp-sub001/internal/model"
	"github.com/liyang960414/erp-sub001/internal/service"
)

// SSEHandler 任务进度 SSE 处理器
// 按固定间隔推送任务快照,任务到达终态后发送最终事件并断开
func SSEHandler(taskService service.ImportTaskService, pollInterval time.Duration) gin.HandlerFunc {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}

	return func(c *gin.Context) {
		taskID := c.Param("id")
		if taskID == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "task id required"})
			return
		}

		task, err := taskService.Get(taskID)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
			return
		}

		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no") // 禁用 Nginx 缓冲

		flusher, ok := c.Writer.(http.Flusher)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
			return
		}

		if err := sendTaskEvent(c.Writer, task); err != nil {
			return
		}
		flusher.Flush()
		if task.IsTerminal() {
			return
		}

		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-c.Request.Context().Done():
				return
			case <-ticker.C:
				task, err := taskService.Get(taskID)
				if err != nil {
					return
				}
				if err := sendTaskEvent(c.Writer, task); err != nil {
					return
				}
				flusher.Flush()
				if task.IsTerminal() {
					return
				}
			}
		}
	}
}

// sendTaskEvent 发送一条任务快照事件
func sendTaskEvent(w io.Writer, task *model.ImportTask) error {
	payload := map[string]interface{}{
		"type":          "task_update",
		"task_id":       task.ID,
		"status":        task.Status,
		"total_count":   task.TotalCount,
		"success_count": task.SuccessCount,
		"failure_count": task.FailureCount,
		"time":          time.Now().Unix(),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	// SSE 格式: data: <json>\n\n
	_, err = fmt.Fprintf(w, "data: %s\n\n", string(data))
	return err
}
