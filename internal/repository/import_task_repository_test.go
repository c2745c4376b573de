package repository_test

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/liyang960414/erp-sub001/internal/model"
	"github.com/liyang960414/erp-sub001/internal/repository"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.ImportTask{},
		&model.ImportTaskDependency{},
		&model.ImportTaskItem{},
		&model.ImportTaskFailure{},
	))
	return db
}

var taskSeq int

func newTask(importType, status string) *model.ImportTask {
	taskSeq++
	id := fmt.Sprintf("task-%03d", taskSeq)
	return &model.ImportTask{
		ID:         id,
		Code:       "IMP-" + id,
		ImportType: importType,
		Status:     status,
		CreatedBy:  "tester",
		CreatedAt:  time.Now().Add(time.Duration(taskSeq) * time.Millisecond),
	}
}

func newItem(taskID string, seq int) *model.ImportTaskItem {
	return &model.ImportTaskItem{
		ID:       fmt.Sprintf("%s-item-%d", taskID, seq),
		TaskID:   taskID,
		Seq:      seq,
		Status:   model.ItemStatusPending,
		FileName: "data.xlsx",
		FileData: []byte("stub"),
	}
}

// TestCreateAndFindByID 测试事务内创建任务、依赖边和子项
func TestCreateAndFindByID(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewImportTaskRepository(db)

	dep := newTask("unit", model.TaskStatusRunning)
	require.NoError(t, repo.Create(dep, nil, newItem(dep.ID, 1)))

	task := newTask("material", model.TaskStatusWaiting)
	deps := []model.ImportTaskDependency{{TaskID: task.ID, DependsOnID: dep.ID}}
	require.NoError(t, repo.Create(task, deps, newItem(task.ID, 1)))

	got, err := repo.FindByID(task.ID)
	require.NoError(t, err)
	assert.Equal(t, "material", got.ImportType)
	require.Len(t, got.Items, 1)
	assert.Equal(t, 1, got.Items[0].Seq)

	prereqs, err := repo.FindDependencies(task.ID)
	require.NoError(t, err)
	require.Len(t, prereqs, 1)
	assert.Equal(t, dep.ID, prereqs[0].ID)

	_, err = repo.FindByID("missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

// TestUpdateStatusOptimisticLock 测试乐观锁冲突返回 ErrStaleTask
func TestUpdateStatusOptimisticLock(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewImportTaskRepository(db)

	task := newTask("material", model.TaskStatusQueued)
	require.NoError(t, repo.Create(task, nil, nil))

	// 另一个写入者持有旧版本
	stale := *task

	now := time.Now()
	require.NoError(t, repo.UpdateStatus(task, model.TaskStatusRunning, func(tk *model.ImportTask) {
		tk.StartedAt = &now
	}))
	assert.Equal(t, model.TaskStatusRunning, task.Status)
	assert.Equal(t, 1, task.Version)
	assert.NotNil(t, task.StartedAt)

	err := repo.UpdateStatus(&stale, model.TaskStatusRunning, nil)
	assert.ErrorIs(t, err, repository.ErrStaleTask)
}

// TestUpdateStatusRejectsInvalidTransition 非法状态迁移直接拒绝
func TestUpdateStatusRejectsInvalidTransition(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewImportTaskRepository(db)

	task := newTask("material", model.TaskStatusCompleted)
	require.NoError(t, repo.Create(task, nil, nil))

	err := repo.UpdateStatus(task, model.TaskStatusRunning, nil)
	assert.ErrorIs(t, err, repository.ErrStaleTask)

	got, err := repo.FindByID(task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusCompleted, got.Status)
}

// TestFindLatestActiveByType 只命中未到终态的最近任务
func TestFindLatestActiveByType(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewImportTaskRepository(db)

	done := newTask("unit", model.TaskStatusCompleted)
	require.NoError(t, repo.Create(done, nil, nil))
	older := newTask("unit", model.TaskStatusQueued)
	require.NoError(t, repo.Create(older, nil, nil))
	newer := newTask("unit", model.TaskStatusWaiting)
	require.NoError(t, repo.Create(newer, nil, nil))

	got, err := repo.FindLatestActiveByType("unit")
	require.NoError(t, err)
	assert.Equal(t, newer.ID, got.ID)

	_, err = repo.FindLatestActiveByType("supplier")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

// TestCountRunningByType 按类型统计运行中任务
func TestCountRunningByType(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewImportTaskRepository(db)

	require.NoError(t, repo.Create(newTask("material", model.TaskStatusRunning), nil, nil))
	require.NoError(t, repo.Create(newTask("material", model.TaskStatusRunning), nil, nil))
	require.NoError(t, repo.Create(newTask("unit", model.TaskStatusRunning), nil, nil))
	require.NoError(t, repo.Create(newTask("unit", model.TaskStatusQueued), nil, nil))

	counts, err := repo.CountRunningByType()
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"material": 2, "unit": 1}, counts)
}

// TestFindByStatusOrder 按创建时间升序返回
func TestFindByStatusOrder(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewImportTaskRepository(db)

	first := newTask("material", model.TaskStatusQueued)
	require.NoError(t, repo.Create(first, nil, nil))
	second := newTask("unit", model.TaskStatusQueued)
	require.NoError(t, repo.Create(second, nil, nil))
	require.NoError(t, repo.Create(newTask("bom", model.TaskStatusWaiting), nil, nil))

	got, err := repo.FindByStatus(model.TaskStatusQueued)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, first.ID, got[0].ID)
	assert.Equal(t, second.ID, got[1].ID)
}

// TestFindByFilter 测试过滤与分页
func TestFindByFilter(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewImportTaskRepository(db)

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Create(newTask("material", model.TaskStatusCompleted), nil, nil))
	}
	require.NoError(t, repo.Create(newTask("unit", model.TaskStatusCompleted), nil, nil))

	mt := "material"
	tasks, total, err := repo.FindByFilter(&repository.TaskFilter{
		ImportType: &mt, Page: 1, PageSize: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, tasks, 2)

	tasks, total, err = repo.FindByFilter(&repository.TaskFilter{
		ImportType: &mt, Page: 2, PageSize: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, tasks, 1)
}

// TestReactivate 测试终态任务拉回 queued
func TestReactivate(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewImportTaskRepository(db)

	task := newTask("material", model.TaskStatusFailed)
	task.FailReason = "boom"
	now := time.Now()
	task.CompletedAt = &now
	require.NoError(t, repo.Create(task, nil, nil))

	stale := *task

	require.NoError(t, repo.Reactivate(task))
	assert.Equal(t, model.TaskStatusQueued, task.Status)
	assert.Equal(t, 1, task.Version)
	assert.Empty(t, task.FailReason)
	assert.Nil(t, task.CompletedAt)

	got, err := repo.FindByID(task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusQueued, got.Status)
	assert.Empty(t, got.FailReason)

	// 旧版本再次激活冲突
	assert.ErrorIs(t, repo.Reactivate(&stale), repository.ErrStaleTask)
}

// TestItemLifecycle 测试子项追加与最新子项查找
func TestItemLifecycle(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewImportTaskRepository(db)

	task := newTask("material", model.TaskStatusQueued)
	require.NoError(t, repo.Create(task, nil, newItem(task.ID, 1)))

	retry := newItem(task.ID, 2)
	retry.RetryOfID = task.ID + "-item-1"
	require.NoError(t, repo.AddItem(retry))

	latest, err := repo.FindLatestItem(task.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, latest.Seq)
	assert.Equal(t, task.ID+"-item-1", latest.RetryOfID)

	latest.Status = model.ItemStatusCompleted
	latest.SuccessCount = 7
	require.NoError(t, repo.UpdateItem(latest))

	got, err := repo.FindItem(latest.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ItemStatusCompleted, got.Status)
	assert.Equal(t, 7, got.SuccessCount)
}

// TestFailuresLifecycle 测试失败记录保存、查询与重提标记
func TestFailuresLifecycle(t *testing.T) {
	db := setupTestDB(t)
	repo := repository.NewImportTaskRepository(db)

	task := newTask("material", model.TaskStatusFailed)
	require.NoError(t, repo.Create(task, nil, newItem(task.ID, 1)))

	failures := []*model.ImportTaskFailure{
		{TaskID: task.ID, ItemID: task.ID + "-item-1", Section: "Sheet1", RowNumber: 5,
			Field: "code", Message: "code is required", Status: model.FailureStatusPending},
		{TaskID: task.ID, ItemID: task.ID + "-item-1", Section: "Sheet1", RowNumber: 3,
			Message: "unit not found: EA", Status: model.FailureStatusPending},
	}
	require.NoError(t, repo.SaveFailures(failures))
	require.NoError(t, repo.SaveFailures(nil))

	got, err := repo.ListFailures(task.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	// 按行号升序
	assert.Equal(t, 3, got[0].RowNumber)
	assert.Equal(t, 5, got[1].RowNumber)

	require.NoError(t, repo.MarkFailuresResubmitted(task.ID))
	got, err = repo.ListFailures(task.ID)
	require.NoError(t, err)
	for _, f := range got {
		assert.Equal(t, model.FailureStatusResubmitted, f.Status)
	}
}
