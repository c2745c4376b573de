package service_test

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/liyang960414/erp-sub001/internal/config"
	"github.com/liyang960414/erp-sub001/internal/importer"
	"github.com/liyang960414/erp-sub001/internal/model"
	"github.com/liyang960414/erp-sub001/internal/repository"
	"github.com/liyang960414/erp-sub001/internal/service"
)

// stubHandler 测试用处理器,只提供类型注册
type stubHandler struct {
	importType string
}

func (h *stubHandler) Type() string { return h.importType }

func (h *stubHandler) Import(ctx context.Context, item *model.ImportTaskItem) (*importer.Result, error) {
	return importer.NewResult(), nil
}

// fakeCanceller 记录被打断的任务 ID
type fakeCanceller struct {
	cancelled []string
}

func (c *fakeCanceller) Cancel(taskID string) bool {
	c.cancelled = append(c.cancelled, taskID)
	return true
}

type serviceFixture struct {
	svc       service.ImportTaskService
	repo      repository.ImportTaskRepository
	canceller *fakeCanceller
}

func setupService(t *testing.T) *serviceFixture {
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

	registry := importer.NewRegistry()
	for _, it := range []string{importer.TypeUnit, importer.TypeMaterial, importer.TypeBom} {
		registry.Register(&stubHandler{importType: it})
	}

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	repo := repository.NewImportTaskRepository(db)
	canceller := &fakeCanceller{}
	svc := service.NewImportTaskService(repo, registry, nil, log, canceller,
		func() config.ImportConfig { return config.Default().Import })
	return &serviceFixture{svc: svc, repo: repo, canceller: canceller}
}

func submitReq(importType string) *service.SubmitImportRequest {
	return &service.SubmitImportRequest{
		ImportType:  importType,
		FileName:    "data.xlsx",
		ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		FileData:    []byte("stub"),
		CreatedBy:   "tester",
	}
}

// TestSubmit 测试提交创建 waiting 任务和首个子项
func TestSubmit(t *testing.T) {
	f := setupService(t)

	task, err := f.svc.Submit(submitReq(importer.TypeUnit))
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusWaiting, task.Status)
	assert.NotEmpty(t, task.Code)

	got, err := f.svc.Get(task.ID)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, 1, got.Items[0].Seq)
	assert.Equal(t, model.ItemStatusPending, got.Items[0].Status)

	// 单位导入没有前置类型,不建依赖边
	deps, err := f.repo.FindDependencies(task.ID)
	require.NoError(t, err)
	assert.Empty(t, deps)
}

// TestSubmitRejectsUnknownType 未注册类型直接拒绝
func TestSubmitRejectsUnknownType(t *testing.T) {
	f := setupService(t)

	_, err := f.svc.Submit(submitReq("warehouse"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown import type")

	_, err = f.svc.Submit(&service.SubmitImportRequest{ImportType: importer.TypeUnit})
	require.Error(t, err)
}

// TestSubmitBuildsDependencyEdges 依赖边指向前置类型最近的在途任务
func TestSubmitBuildsDependencyEdges(t *testing.T) {
	f := setupService(t)

	unitTask, err := f.svc.Submit(submitReq(importer.TypeUnit))
	require.NoError(t, err)

	matTask, err := f.svc.Submit(submitReq(importer.TypeMaterial))
	require.NoError(t, err)

	deps, err := f.repo.FindDependencies(matTask.ID)
	require.NoError(t, err)
	require.Len(t, deps, 1)
	assert.Equal(t, unitTask.ID, deps[0].ID)
}

// TestSubmitSkipsSatisfiedDependency 前置类型没有在途任务时不建边
func TestSubmitSkipsSatisfiedDependency(t *testing.T) {
	f := setupService(t)

	matTask, err := f.svc.Submit(submitReq(importer.TypeMaterial))
	require.NoError(t, err)

	deps, err := f.repo.FindDependencies(matTask.ID)
	require.NoError(t, err)
	assert.Empty(t, deps)
}

// TestResubmit 测试失败任务重新提交形成重试链
func TestResubmit(t *testing.T) {
	f := setupService(t)

	task, err := f.svc.Submit(submitReq(importer.TypeMaterial))
	require.NoError(t, err)

	// 走完一轮执行并落入 failed
	require.NoError(t, f.repo.UpdateStatus(task, model.TaskStatusQueued, nil))
	require.NoError(t, f.repo.UpdateStatus(task, model.TaskStatusRunning, nil))
	require.NoError(t, f.repo.UpdateStatus(task, model.TaskStatusFailed, nil))

	prev, err := f.repo.FindLatestItem(task.ID)
	require.NoError(t, err)
	require.NoError(t, f.repo.SaveFailures([]*model.ImportTaskFailure{
		{TaskID: task.ID, ItemID: prev.ID, RowNumber: 3,
			Message: "unit not found: EA", Status: model.FailureStatusPending},
	}))

	item, err := f.svc.Resubmit(task.ID, &service.ResubmitRequest{
		FileName: "fixed.xlsx",
		FileData: []byte("fixed"),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, item.Seq)
	assert.Equal(t, prev.ID, item.RetryOfID)

	got, err := f.svc.Get(task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusQueued, got.Status)
	assert.Empty(t, got.FailReason)

	failures, err := f.svc.ListFailures(task.ID)
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, model.FailureStatusResubmitted, failures[0].Status)
}

// TestResubmitRejectsActiveTask 未到终态不允许重新提交
func TestResubmitRejectsActiveTask(t *testing.T) {
	f := setupService(t)

	task, err := f.svc.Submit(submitReq(importer.TypeUnit))
	require.NoError(t, err)

	_, err = f.svc.Resubmit(task.ID, &service.ResubmitRequest{FileData: []byte("x")})
	assert.ErrorIs(t, err, service.ErrTaskNotTerminal)
}

// TestResubmitRejectsCancelledTask 已取消任务不允许重新提交
func TestResubmitRejectsCancelledTask(t *testing.T) {
	f := setupService(t)

	task, err := f.svc.Submit(submitReq(importer.TypeUnit))
	require.NoError(t, err)
	require.NoError(t, f.svc.Cancel(task.ID))

	_, err = f.svc.Resubmit(task.ID, &service.ResubmitRequest{FileData: []byte("x")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cancelled task cannot be resubmitted")
}

// TestCancel 测试取消先落库再打断执行
func TestCancel(t *testing.T) {
	f := setupService(t)

	task, err := f.svc.Submit(submitReq(importer.TypeUnit))
	require.NoError(t, err)

	require.NoError(t, f.svc.Cancel(task.ID))

	got, err := f.svc.Get(task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusCancelled, got.Status)
	assert.Equal(t, "cancelled by user", got.FailReason)
	assert.NotNil(t, got.CompletedAt)
	assert.Equal(t, []string{task.ID}, f.canceller.cancelled)

	// 终态任务再取消被拒绝
	assert.ErrorIs(t, f.svc.Cancel(task.ID), service.ErrTaskTerminal)
}

// TestGetNotFound 不存在的任务返回 ErrTaskNotFound
func TestGetNotFound(t *testing.T) {
	f := setupService(t)

	_, err := f.svc.Get("missing")
	assert.ErrorIs(t, err, service.ErrTaskNotFound)

	_, err = f.svc.ListFailures("missing")
	assert.ErrorIs(t, err, service.ErrTaskNotFound)
}
