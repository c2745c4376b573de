package websocket

import (
	"encoding/json"
	"time"

	"github.com/liyang960414/erp-sub001/internal/model"
)

// TaskEvent 任务状态变更事件
// 调度器在每次状态迁移后推送,前端据此刷新任务列表
type TaskEvent struct {
	Type         string    `json:"type"` // task_update
	TaskID       string    `json:"task_id"`
	TaskCode     string    `json:"task_code"`
	ImportType   string    `json:"import_type"`
	CreatedBy    string    `json:"created_by,omitempty"`
	Status       string    `json:"status"`
	TotalCount   int       `json:"total_count"`
	SuccessCount int       `json:"success_count"`
	FailureCount int       `json:"failure_count"`
	FailReason   string    `json:"fail_reason,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// NotifyTaskUpdate 将任务当前快照推送给订阅客户端
// 记录了提交人的任务只发给提交人和匿名监控端,匿名任务全局广播;
// Hub 未启动或序列化失败时静默丢弃,通知不影响主流程
func NotifyTaskUpdate(hub *Hub, task *model.ImportTask) {
	if hub == nil || task == nil {
		return
	}

	event := TaskEvent{
		Type:         "task_update",
		TaskID:       task.ID,
		TaskCode:     task.Code,
		ImportType:   task.ImportType,
		CreatedBy:    task.CreatedBy,
		Status:       task.Status,
		TotalCount:   task.TotalCount,
		SuccessCount: task.SuccessCount,
		FailureCount: task.FailureCount,
		FailReason:   task.FailReason,
		Timestamp:    time.Now(),
	}

	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	if task.CreatedBy != "" {
		hub.BroadcastToUser(task.CreatedBy, data)
		// 未带 user 参数接入的客户端作为监控端接收全部任务事件
		hub.BroadcastToUser("", data)
		return
	}

	select {
	case hub.Broadcast <- data:
	default:
		// Hub 没有在运行,丢弃事件
	}
}
