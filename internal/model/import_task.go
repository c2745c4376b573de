package model

import (
	"errors"
	"time"
)

// 导入任务状态
const (
	TaskStatusWaiting   = "waiting"   // 等待依赖任务完成
	TaskStatusQueued    = "queued"    // 依赖已满足,等待工作槽
	TaskStatusRunning   = "running"   // 处理器执行中
	TaskStatusCompleted = "completed" // 终态:执行完成(允许包含行级失败)
	TaskStatusFailed    = "failed"    // 终态:处理器抛出错误
	TaskStatusCancelled = "cancelled" // 终态:外部取消
)

// 导入子项状态
const (
	ItemStatusPending   = "pending"
	ItemStatusRunning   = "running"
	ItemStatusCompleted = "completed"
	ItemStatusFailed    = "failed"
	ItemStatusCancelled = "cancelled"
)

// 行级失败记录状态
const (
	FailureStatusPending     = "pending"
	FailureStatusResubmitted = "resubmitted"
	FailureStatusResolved    = "resolved"
)

// ImportTask 导入任务数据模型
// 一次用户提交的批量导入请求,状态只由调度器和执行处理器驱动
type ImportTask struct {
	ID          string     `gorm:"primaryKey;type:varchar(64)"`
	Code        string     `gorm:"type:varchar(64);not null;uniqueIndex"` // 人类可读任务编码
	ImportType  string     `gorm:"type:varchar(32);not null;index"`       // 处理器注册表键
	Status      string     `gorm:"type:varchar(16);not null;index"`
	FileName    string     `gorm:"type:varchar(255)"`
	Options     []byte     `gorm:"type:jsonb"` // 任意选项负载
	TotalCount  int        `gorm:"type:int;not null;default:0"`
	SuccessCount int       `gorm:"type:int;not null;default:0"`
	FailureCount int       `gorm:"type:int;not null;default:0"`
	FailReason  string     `gorm:"type:text"`
	Version     int        `gorm:"type:int;not null;default:0"` // 乐观锁版本号
	CreatedBy   string     `gorm:"type:varchar(64);index"`
	CreatedAt   time.Time  `gorm:"not null;index"`
	ScheduledAt *time.Time `gorm:"index"`
	StartedAt   *time.Time
	CompletedAt *time.Time

	Dependencies []ImportTaskDependency `gorm:"foreignKey:TaskID"`
	Items        []ImportTaskItem       `gorm:"foreignKey:TaskID"`
	Failures     []ImportTaskFailure    `gorm:"foreignKey:TaskID"`
}

// TableName 指定表名
func (ImportTask) TableName() string {
	return "import_tasks"
}

// Validate 验证导入任务模型
func (t *ImportTask) Validate() error {
	if t.ID == "" {
		return errors.New("task ID is required")
	}
	if t.Code == "" {
		return errors.New("task code is required")
	}
	if t.ImportType == "" {
		return errors.New("import type is required")
	}
	if t.Status == "" {
		return errors.New("task status is required")
	}
	return nil
}

// IsTerminal 判断任务是否处于终态
func (t *ImportTask) IsTerminal() bool {
	return IsTerminalStatus(t.Status)
}

// IsTerminalStatus 判断状态是否为终态
func IsTerminalStatus(status string) bool {
	switch status {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return true
	}
	return false
}

// CanTransition 判断任务状态迁移是否合法
// 终态不允许再迁移;取消可以从任意非终态发起
func CanTransition(from, to string) bool {
	if IsTerminalStatus(from) {
		return false
	}
	if to == TaskStatusCancelled {
		return true
	}
	switch from {
	case TaskStatusWaiting:
		return to == TaskStatusQueued
	case TaskStatusQueued:
		return to == TaskStatusRunning
	case TaskStatusRunning:
		return to == TaskStatusCompleted || to == TaskStatusFailed
	}
	return false
}

// ImportTaskDependency 任务依赖边
// task -> depends_on 的有向边,提交时根据类型依赖配置生成,创建后不可变
type ImportTaskDependency struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	TaskID      string `gorm:"type:varchar(64);not null;index"`
	DependsOnID string `gorm:"type:varchar(64);not null;index"`
	CreatedAt   time.Time
}

// TableName 指定表名
func (ImportTaskDependency) TableName() string {
	return "import_task_dependencies"
}

// ImportTaskItem 导入任务子项
// 一次执行尝试(首次提交或失败后重新提交),通过 retry_of 形成重试链
type ImportTaskItem struct {
	ID           string `gorm:"primaryKey;type:varchar(64)"`
	TaskID       string `gorm:"type:varchar(64);not null;index"`
	Seq          int    `gorm:"type:int;not null"` // 任务内序号
	Status       string `gorm:"type:varchar(16);not null;index"`
	FileName     string `gorm:"type:varchar(255)"`
	ContentType  string `gorm:"type:varchar(128)"`
	FileData     []byte `gorm:"type:bytea"` // 原始文件字节
	TotalCount   int    `gorm:"type:int;not null;default:0"`
	SuccessCount int    `gorm:"type:int;not null;default:0"`
	FailureCount int    `gorm:"type:int;not null;default:0"`
	RetryOfID    string `gorm:"type:varchar(64);index"` // 重试来源子项 ID
	CreatedAt    time.Time
	StartedAt    *time.Time
	CompletedAt  *time.Time
}

// TableName 指定表名
func (ImportTaskItem) TableName() string {
	return "import_task_items"
}

// Validate 验证导入任务子项
func (i *ImportTaskItem) Validate() error {
	if i.ID == "" {
		return errors.New("item ID is required")
	}
	if i.TaskID == "" {
		return errors.New("item task ID is required")
	}
	if len(i.FileData) == 0 {
		return errors.New("item file data is required")
	}
	return nil
}

// ImportTaskFailure 行级失败记录
// 记录一行导入失败的位置和原因,保留原始行数据用于检查或重新提交
type ImportTaskFailure struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	TaskID    string `gorm:"type:varchar(64);not null;index"`
	ItemID    string `gorm:"type:varchar(64);not null;index"`
	Section   string `gorm:"type:varchar(64)"` // 工作表/分区名
	RowNumber int    `gorm:"type:int;not null"`
	Field     string `gorm:"type:varchar(64)"`
	Message   string `gorm:"type:varchar(512)"`
	RowData   []byte `gorm:"type:jsonb"` // 序列化的原始行
	Status    string `gorm:"type:varchar(16);not null;default:'pending'"`
	CreatedAt time.Time
}

// TableName 指定表名
func (ImportTaskFailure) TableName() string {
	return "import_task_failures"
}
