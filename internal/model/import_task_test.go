package model_test

import (
	"testing"

	"github.com/liyang960414/erp-sub001/internal/model"
	"github.com/stretchr/testify/assert"
)

// TestCanTransition 测试任务状态迁移规则
func TestCanTransition(t *testing.T) {
	cases := []struct {
		from string
		to   string
		ok   bool
	}{
		{model.TaskStatusWaiting, model.TaskStatusQueued, true},
		{model.TaskStatusQueued, model.TaskStatusRunning, true},
		{model.TaskStatusRunning, model.TaskStatusCompleted, true},
		{model.TaskStatusRunning, model.TaskStatusFailed, true},
		// 取消可以从任意非终态发起
		{model.TaskStatusWaiting, model.TaskStatusCancelled, true},
		{model.TaskStatusQueued, model.TaskStatusCancelled, true},
		{model.TaskStatusRunning, model.TaskStatusCancelled, true},
		// 不允许跳步
		{model.TaskStatusWaiting, model.TaskStatusRunning, false},
		{model.TaskStatusWaiting, model.TaskStatusCompleted, false},
		{model.TaskStatusQueued, model.TaskStatusCompleted, false},
		// 终态不再迁移
		{model.TaskStatusCompleted, model.TaskStatusRunning, false},
		{model.TaskStatusCompleted, model.TaskStatusCancelled, false},
		{model.TaskStatusFailed, model.TaskStatusQueued, false},
		{model.TaskStatusCancelled, model.TaskStatusCancelled, false},
		// 回退不合法
		{model.TaskStatusRunning, model.TaskStatusQueued, false},
		{model.TaskStatusQueued, model.TaskStatusWaiting, false},
	}

	for _, c := range cases {
		assert.Equal(t, c.ok, model.CanTransition(c.from, c.to),
			"transition %s -> %s", c.from, c.to)
	}
}

// TestIsTerminalStatus 测试终态判定
func TestIsTerminalStatus(t *testing.T) {
	assert.True(t, model.IsTerminalStatus(model.TaskStatusCompleted))
	assert.True(t, model.IsTerminalStatus(model.TaskStatusFailed))
	assert.True(t, model.IsTerminalStatus(model.TaskStatusCancelled))
	assert.False(t, model.IsTerminalStatus(model.TaskStatusWaiting))
	assert.False(t, model.IsTerminalStatus(model.TaskStatusQueued))
	assert.False(t, model.IsTerminalStatus(model.TaskStatusRunning))
}

// TestImportTaskValidate 测试任务模型校验
func TestImportTaskValidate(t *testing.T) {
	task := &model.ImportTask{
		ID:         "task-001",
		Code:       "IMP-20260101000000-abc",
		ImportType: "material",
		Status:     model.TaskStatusWaiting,
	}
	assert.NoError(t, task.Validate())

	task.ImportType = ""
	assert.Error(t, task.Validate())
}

// TestImportTaskItemValidate 测试子项模型校验
func TestImportTaskItemValidate(t *testing.T) {
	item := &model.ImportTaskItem{
		ID:       "item-001",
		TaskID:   "task-001",
		FileData: []byte{0x50, 0x4b},
	}
	assert.NoError(t, item.Validate())

	item.FileData = nil
	assert.Error(t, item.Validate())
}
