package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/liyang960414/erp-sub001/internal/config"
	"github.com/liyang960414/erp-sub001/internal/importer"
	"github.com/liyang960414/erp-sub001/internal/metrics"
	"github.com/liyang960414/erp-sub001/internal/model"
	"github.com/liyang960414/erp-sub001/internal/repository"
	"github.com/liyang960414/erp-sub001/internal/websocket"
	"github.com/sirupsen/logrus"
)

// Scheduler 导入任务调度器
// 周期轮询任务表:依赖满足的 waiting 任务提升为 queued,
// 再在全局与类型并发上限内把 queued 任务派发给注册的处理器执行
type Scheduler struct {
	repo     repository.ImportTaskRepository
	registry *importer.Registry
	hub      *websocket.Hub
	logger   *logrus.Logger

	// 返回当前导入配置,配合热加载使用
	importCfg func() config.ImportConfig

	mu      sync.Mutex
	cancels map[string]context.CancelFunc // 运行中任务的取消函数

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewScheduler 创建调度器
// importCfg 每次轮询时调用,配置热加载后下一轮生效
func NewScheduler(repo repository.ImportTaskRepository, registry *importer.Registry,
	hub *websocket.Hub, logger *logrus.Logger, importCfg func() config.ImportConfig) *Scheduler {
	return &Scheduler{
		repo:      repo,
		registry:  registry,
		hub:       hub,
		logger:    logger,
		importCfg: importCfg,
		cancels:   make(map[string]context.CancelFunc),
		stopChan:  make(chan struct{}),
	}
}

// Start 启动调度循环
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.run(ctx)
}

// Stop 停止调度循环并等待在途任务退出
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})

	// 取消所有运行中的任务
	s.mu.Lock()
	for _, cancel := range s.cancels {
		cancel()
	}
	s.mu.Unlock()

	s.wg.Wait()
}

// Cancel 取消一个运行中的任务,返回是否有在途执行被打断
// 非运行中任务的取消由服务层直接改库,不经过这里
func (s *Scheduler) Cancel(taskID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cancel, ok := s.cancels[taskID]; ok {
		cancel()
		return true
	}
	return false
}

// run 调度主循环
func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()

	// 启动后立即跑一轮,不等第一个 tick
	s.tick(ctx)

	for {
		interval := s.importCfg().PollInterval()
		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-s.stopChan:
			timer.Stop()
			return
		case <-timer.C:
			s.tick(ctx)
		}
	}
}

// tick 单轮调度:先提升依赖满足的任务,再在并发上限内派发
func (s *Scheduler) tick(ctx context.Context) {
	s.promoteWaiting()
	s.dispatchQueued(ctx)
}

// promoteWaiting 把前置全部完成的 waiting 任务提升为 queued
// 前置失败或被取消的任务停在 waiting,只告警不自动取消
func (s *Scheduler) promoteWaiting() {
	tasks, err := s.repo.FindByStatus(model.TaskStatusWaiting)
	if err != nil {
		s.logger.WithError(err).Error("failed to load waiting tasks")
		return
	}

	for _, task := range tasks {
		deps, err := s.repo.FindDependencies(task.ID)
		if err != nil {
			s.logger.WithError(err).WithField("task_id", task.ID).
				Error("failed to load task dependencies")
			continue
		}

		ready := true
		for _, dep := range deps {
			switch dep.Status {
			case model.TaskStatusCompleted:
				continue
			case model.TaskStatusFailed, model.TaskStatusCancelled:
				ready = false
				s.logger.WithFields(logrus.Fields{
					"task_id":    task.ID,
					"depends_on": dep.ID,
					"dep_status": dep.Status,
				}).Warn("task blocked by terminal dependency")
			default:
				ready = false
			}
			break
		}
		if !ready {
			continue
		}

		now := time.Now()
		err = s.repo.UpdateStatus(task, model.TaskStatusQueued, func(t *model.ImportTask) {
			t.ScheduledAt = &now
		})
		if err != nil {
			if !errors.Is(err, repository.ErrStaleTask) {
				s.logger.WithError(err).WithField("task_id", task.ID).
					Error("failed to queue task")
			}
			continue
		}

		s.logger.WithFields(logrus.Fields{
			"task_id": task.ID,
			"type":    task.ImportType,
		}).Info("task queued")
		websocket.NotifyTaskUpdate(s.hub, task)
	}
}

// dispatchQueued 在全局与类型并发上限内派发 queued 任务
// 按创建时间先到先得,类型额度占满的任务跳过,不阻塞后面的类型
func (s *Scheduler) dispatchQueued(ctx context.Context) {
	tasks, err := s.repo.FindByStatus(model.TaskStatusQueued)
	if err != nil {
		s.logger.WithError(err).Error("failed to load queued tasks")
		return
	}
	if len(tasks) == 0 {
		return
	}

	running, err := s.repo.CountRunningByType()
	if err != nil {
		s.logger.WithError(err).Error("failed to count running tasks")
		return
	}
	total := 0
	for _, n := range running {
		total += n
	}

	cfg := s.importCfg()
	globalCap := cfg.GlobalConcurrency
	if globalCap <= 0 {
		globalCap = 1
	}

	for _, task := range tasks {
		if total >= globalCap {
			return
		}
		if running[task.ImportType] >= cfg.CapFor(task.ImportType) {
			continue
		}

		now := time.Now()
		err := s.repo.UpdateStatus(task, model.TaskStatusRunning, func(t *model.ImportTask) {
			t.StartedAt = &now
		})
		if err != nil {
			if !errors.Is(err, repository.ErrStaleTask) {
				s.logger.WithError(err).WithField("task_id", task.ID).
					Error("failed to start task")
			}
			continue
		}

		total++
		running[task.ImportType]++
		websocket.NotifyTaskUpdate(s.hub, task)

		snapshot := *task
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.execute(ctx, &snapshot)
		}()
	}
}

// execute 执行单个任务:取最新子项,调用处理器,落盘结果
func (s *Scheduler) execute(ctx context.Context, task *model.ImportTask) {
	metrics.TaskStarted()
	defer metrics.TaskStopped()

	log := s.logger.WithFields(logrus.Fields{
		"task_id": task.ID,
		"code":    task.Code,
		"type":    task.ImportType,
	})
	start := time.Now()

	runCtx, cancel := context.WithTimeout(ctx, s.importCfg().TaskTimeout())
	s.mu.Lock()
	s.cancels[task.ID] = cancel
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.cancels, task.ID)
		s.mu.Unlock()
		cancel()
	}()

	item, err := s.repo.FindLatestItem(task.ID)
	if err != nil {
		log.WithError(err).Error("task has no executable item")
		s.finish(task, nil, nil, err, start)
		return
	}

	now := time.Now()
	item.Status = model.ItemStatusRunning
	item.StartedAt = &now
	if err := s.repo.UpdateItem(item); err != nil {
		log.WithError(err).Error("failed to mark item running")
	}

	handler, err := s.registry.Get(task.ImportType)
	if err != nil {
		log.WithError(err).Error("no handler registered for import type")
		s.finishItem(item, model.ItemStatusFailed)
		s.finish(task, item, nil, err, start)
		return
	}

	log.WithField("file", item.FileName).Info("task started")
	res, err := handler.Import(runCtx, item)

	if res != nil {
		s.saveFailures(task, item, res)
	}
	s.finish(task, item, res, err, start)
}

// saveFailures 把结果里的行级错误持久化为失败记录
func (s *Scheduler) saveFailures(task *model.ImportTask, item *model.ImportTaskItem, res *importer.Result) {
	rowErrs := res.Errors()
	if len(rowErrs) == 0 {
		return
	}

	failures := make([]*model.ImportTaskFailure, 0, len(rowErrs))
	for _, e := range rowErrs {
		var rowData []byte
		if len(e.RowData) > 0 {
			rowData, _ = json.Marshal(e.RowData)
		}
		failures = append(failures, &model.ImportTaskFailure{
			TaskID:    task.ID,
			ItemID:    item.ID,
			Section:   e.Section,
			RowNumber: e.RowNumber,
			Field:     e.Field,
			Message:   e.Message,
			RowData:   rowData,
			Status:    model.FailureStatusPending,
		})
	}

	if err := s.repo.SaveFailures(failures); err != nil {
		s.logger.WithError(err).WithField("task_id", task.ID).
			Error("failed to save row failures")
	}
}

// finish 落盘最终状态
// 处理器返回错误则任务失败;正常返回则任务完成,行级失败只体现在计数里
// 乐观锁冲突说明任务已被外部取消,结果保留但不再覆盖状态
func (s *Scheduler) finish(task *model.ImportTask, item *model.ImportTaskItem, res *importer.Result, runErr error, start time.Time) {
	var total, success, failure int
	if res != nil {
		total = res.TotalCount()
		success = res.SuccessCount()
		failure = res.FailureCount()
	}

	to := model.TaskStatusCompleted
	itemStatus := model.ItemStatusCompleted
	if runErr != nil {
		to = model.TaskStatusFailed
		itemStatus = model.ItemStatusFailed
	}

	if item != nil {
		item.TotalCount = total
		item.SuccessCount = success
		item.FailureCount = failure
		s.finishItem(item, itemStatus)
	}

	now := time.Now()
	err := s.repo.UpdateStatus(task, to, func(t *model.ImportTask) {
		t.TotalCount = total
		t.SuccessCount = success
		t.FailureCount = failure
		t.CompletedAt = &now
		if runErr != nil {
			t.FailReason = runErr.Error()
		}
	})
	if err != nil {
		if errors.Is(err, repository.ErrStaleTask) {
			// 外部取消抢先落库,保留取消状态,只更新计数
			s.logger.WithField("task_id", task.ID).Info("task was cancelled during execution")
			if upErr := s.repo.UpdateCounts(task.ID, total, success, failure); upErr != nil {
				s.logger.WithError(upErr).WithField("task_id", task.ID).
					Error("failed to update counts after cancellation")
			}
		} else {
			s.logger.WithError(err).WithField("task_id", task.ID).
				Error("failed to finalize task")
		}
		return
	}

	s.logger.WithFields(logrus.Fields{
		"task_id":  task.ID,
		"type":     task.ImportType,
		"status":   task.Status,
		"total":    total,
		"success":  success,
		"failure":  failure,
		"duration": time.Since(start).String(),
	}).Info("task finished")

	metrics.RecordImportRows(task.ImportType, success, failure)
	metrics.RecordTaskFinished(task.ImportType, task.Status, time.Since(start).Seconds())
	websocket.NotifyTaskUpdate(s.hub, task)
}

// finishItem 落盘子项终态
func (s *Scheduler) finishItem(item *model.ImportTaskItem, status string) {
	now := time.Now()
	item.Status = status
	item.CompletedAt = &now
	if err := s.repo.UpdateItem(item); err != nil {
		s.logger.WithError(err).WithField("item_id", item.ID).
			Error("failed to finalize item")
	}
}
