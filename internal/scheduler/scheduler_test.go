package scheduler_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
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
	"github.com/liyang960414/erp-sub001/internal/scheduler"
)

// recordingHandler 测试用处理器,可注入执行结果与阻塞行为
type recordingHandler struct {
	importType string
	fail       error
	block      bool
	started    chan string

	mu       sync.Mutex
	imported []string
	peak     int32
	inFlight int32
}

func (h *recordingHandler) Type() string { return h.importType }

func (h *recordingHandler) Import(ctx context.Context, item *model.ImportTaskItem) (*importer.Result, error) {
	cur := atomic.AddInt32(&h.inFlight, 1)
	defer atomic.AddInt32(&h.inFlight, -1)
	for {
		old := atomic.LoadInt32(&h.peak)
		if cur <= old || atomic.CompareAndSwapInt32(&h.peak, old, cur) {
			break
		}
	}

	h.mu.Lock()
	h.imported = append(h.imported, item.TaskID)
	h.mu.Unlock()

	if h.started != nil {
		h.started <- item.TaskID
	}
	if h.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if h.fail != nil {
		return nil, h.fail
	}

	res := importer.NewResult()
	res.SetTotal(3)
	res.AddSuccess(2)
	res.AddError(importer.RowError{Section: "Sheet1", RowNumber: 4,
		Field: "code", Message: "code is required",
		RowData: map[string]string{"code": ""}})
	return res, nil
}

func (h *recordingHandler) importedTasks() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, len(h.imported))
	copy(out, h.imported)
	return out
}

type schedFixture struct {
	repo     repository.ImportTaskRepository
	registry *importer.Registry
	sched    *scheduler.Scheduler
	cfg      config.ImportConfig
}

func setupScheduler(t *testing.T, cfg config.ImportConfig) *schedFixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&model.ImportTask{},
		&model.ImportTaskDependency{},
		&model.ImportTaskItem{},
		&model.ImportTaskFailure{},
	))

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	repo := repository.NewImportTaskRepository(db)
	registry := importer.NewRegistry()
	sched := scheduler.NewScheduler(repo, registry, nil, log,
		func() config.ImportConfig { return cfg })
	return &schedFixture{repo: repo, registry: registry, sched: sched, cfg: cfg}
}

func fastConfig() config.ImportConfig {
	return config.ImportConfig{
		PollIntervalMs:    20,
		GlobalConcurrency: 4,
	}
}

func createTask(t *testing.T, repo repository.ImportTaskRepository,
	importType, status string, deps ...string) *model.ImportTask {
	t.Helper()
	task := &model.ImportTask{
		ID:         uuid.New().String(),
		Code:       "IMP-" + uuid.New().String()[:8],
		ImportType: importType,
		Status:     status,
		CreatedAt:  time.Now(),
	}
	var edges []model.ImportTaskDependency
	for _, dep := range deps {
		edges = append(edges, model.ImportTaskDependency{TaskID: task.ID, DependsOnID: dep})
	}
	item := &model.ImportTaskItem{
		ID:       uuid.New().String(),
		TaskID:   task.ID,
		Seq:      1,
		Status:   model.ItemStatusPending,
		FileName: "data.xlsx",
		FileData: []byte("stub"),
	}
	require.NoError(t, repo.Create(task, edges, item))
	return task
}

func waitForStatus(t *testing.T, repo repository.ImportTaskRepository, taskID, want string) *model.ImportTask {
	t.Helper()
	var got *model.ImportTask
	require.Eventually(t, func() bool {
		task, err := repo.FindByID(taskID)
		if err != nil {
			return false
		}
		got = task
		return task.Status == want
	}, 3*time.Second, 10*time.Millisecond, "task %s never reached %s", taskID, want)
	return got
}

// TestSchedulerRunsQueuedTask 测试 queued 任务被派发执行并落盘结果
func TestSchedulerRunsQueuedTask(t *testing.T) {
	f := setupScheduler(t, fastConfig())
	handler := &recordingHandler{importType: importer.TypeUnit}
	f.registry.Register(handler)

	task := createTask(t, f.repo, importer.TypeUnit, model.TaskStatusQueued)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.sched.Start(ctx)
	defer f.sched.Stop()

	got := waitForStatus(t, f.repo, task.ID, model.TaskStatusCompleted)
	assert.Equal(t, 3, got.TotalCount)
	assert.Equal(t, 2, got.SuccessCount)
	assert.Equal(t, 1, got.FailureCount)
	assert.NotNil(t, got.StartedAt)
	assert.NotNil(t, got.CompletedAt)
	require.Len(t, got.Items, 1)
	assert.Equal(t, model.ItemStatusCompleted, got.Items[0].Status)

	// 行级失败被持久化,保留原始行数据
	failures, err := f.repo.ListFailures(task.ID)
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, 4, failures[0].RowNumber)
	assert.Equal(t, model.FailureStatusPending, failures[0].Status)
	assert.JSONEq(t, `{"code":""}`, string(failures[0].RowData))
}

// TestSchedulerPromotesWaitingTask 前置完成后 waiting 任务被提升并执行
func TestSchedulerPromotesWaitingTask(t *testing.T) {
	f := setupScheduler(t, fastConfig())
	f.registry.Register(&recordingHandler{importType: importer.TypeUnit})
	f.registry.Register(&recordingHandler{importType: importer.TypeMaterial})

	dep := createTask(t, f.repo, importer.TypeUnit, model.TaskStatusQueued)
	task := createTask(t, f.repo, importer.TypeMaterial, model.TaskStatusWaiting, dep.ID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.sched.Start(ctx)
	defer f.sched.Stop()

	waitForStatus(t, f.repo, dep.ID, model.TaskStatusCompleted)
	got := waitForStatus(t, f.repo, task.ID, model.TaskStatusCompleted)
	assert.NotNil(t, got.ScheduledAt)
}

// TestSchedulerBlocksOnFailedDependency 前置失败的任务停在 waiting
func TestSchedulerBlocksOnFailedDependency(t *testing.T) {
	f := setupScheduler(t, fastConfig())
	f.registry.Register(&recordingHandler{importType: importer.TypeMaterial})

	dep := createTask(t, f.repo, importer.TypeUnit, model.TaskStatusFailed)
	task := createTask(t, f.repo, importer.TypeMaterial, model.TaskStatusWaiting, dep.ID)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.sched.Start(ctx)

	time.Sleep(200 * time.Millisecond)
	f.sched.Stop()

	got, err := f.repo.FindByID(task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusWaiting, got.Status)
}

// TestSchedulerFailsTaskOnHandlerError 处理器错误使任务落入 failed
func TestSchedulerFailsTaskOnHandlerError(t *testing.T) {
	f := setupScheduler(t, fastConfig())
	f.registry.Register(&recordingHandler{
		importType: importer.TypeUnit,
		fail:       errors.New("spreadsheet is corrupt"),
	})

	task := createTask(t, f.repo, importer.TypeUnit, model.TaskStatusQueued)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.sched.Start(ctx)
	defer f.sched.Stop()

	got := waitForStatus(t, f.repo, task.ID, model.TaskStatusFailed)
	assert.Equal(t, "spreadsheet is corrupt", got.FailReason)
	require.Len(t, got.Items, 1)
	assert.Equal(t, model.ItemStatusFailed, got.Items[0].Status)
}

// TestSchedulerFailsTaskWithoutHandler 未注册处理器的任务落入 failed
func TestSchedulerFailsTaskWithoutHandler(t *testing.T) {
	f := setupScheduler(t, fastConfig())

	task := createTask(t, f.repo, "warehouse", model.TaskStatusQueued)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.sched.Start(ctx)
	defer f.sched.Stop()

	got := waitForStatus(t, f.repo, task.ID, model.TaskStatusFailed)
	assert.Contains(t, got.FailReason, "unknown import type")
}

// TestSchedulerTypeConcurrencyCap 同类型任务受类型并发上限约束
func TestSchedulerTypeConcurrencyCap(t *testing.T) {
	cfg := fastConfig()
	cfg.GlobalConcurrency = 4
	cfg.TypeConcurrency = map[string]int{importer.TypeUnit: 1}

	f := setupScheduler(t, cfg)
	handler := &recordingHandler{importType: importer.TypeUnit}
	f.registry.Register(handler)

	first := createTask(t, f.repo, importer.TypeUnit, model.TaskStatusQueued)
	second := createTask(t, f.repo, importer.TypeUnit, model.TaskStatusQueued)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.sched.Start(ctx)
	defer f.sched.Stop()

	waitForStatus(t, f.repo, first.ID, model.TaskStatusCompleted)
	waitForStatus(t, f.repo, second.ID, model.TaskStatusCompleted)

	assert.Equal(t, int32(1), atomic.LoadInt32(&handler.peak))
	assert.ElementsMatch(t, []string{first.ID, second.ID}, handler.importedTasks())
}

// TestSchedulerCancelRunningTask 测试取消打断运行中的执行
func TestSchedulerCancelRunningTask(t *testing.T) {
	f := setupScheduler(t, fastConfig())
	handler := &recordingHandler{
		importType: importer.TypeUnit,
		block:      true,
		started:    make(chan string, 1),
	}
	f.registry.Register(handler)

	task := createTask(t, f.repo, importer.TypeUnit, model.TaskStatusQueued)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.sched.Start(ctx)
	defer f.sched.Stop()

	select {
	case <-handler.started:
	case <-time.After(3 * time.Second):
		t.Fatal("handler never started")
	}

	// 服务层先落库,再打断执行
	got, err := f.repo.FindByID(task.ID)
	require.NoError(t, err)
	require.NoError(t, f.repo.UpdateStatus(got, model.TaskStatusCancelled, nil))
	assert.True(t, f.sched.Cancel(task.ID))

	// 执行退出后取消状态保留,不被完成状态覆盖
	require.Eventually(t, func() bool {
		return !f.sched.Cancel(task.ID)
	}, 3*time.Second, 10*time.Millisecond)

	final, err := f.repo.FindByID(task.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusCancelled, final.Status)
}
