package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/liyang960414/erp-sub001/internal/config"
	"github.com/liyang960414/erp-sub001/internal/importer"
	"github.com/liyang960414/erp-sub001/internal/metrics"
	"github.com/liyang960414/erp-sub001/internal/model"
	"github.com/liyang960414/erp-sub001/internal/repository"
	"github.com/liyang960414/erp-sub001/internal/websocket"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	// ErrTaskNotFound 任务不存在
	ErrTaskNotFound = errors.New("import task not found")
	// ErrTaskTerminal 任务已到终态,不允许该操作
	ErrTaskTerminal = errors.New("import task is in a terminal state")
	// ErrTaskNotTerminal 任务未到终态,不允许重新提交
	ErrTaskNotTerminal = errors.New("import task is still in progress")
)

// RunningCanceller 打断运行中任务的执行
type RunningCanceller interface {
	Cancel(taskID string) bool
}

// ImportTaskService 导入任务服务接口
type ImportTaskService interface {
	Submit(req *SubmitImportRequest) (*model.ImportTask, error)
	Get(taskID string) (*model.ImportTask, error)
	List(filter *repository.TaskFilter) ([]*model.ImportTask, int64, error)
	ListFailures(taskID string) ([]*model.ImportTaskFailure, error)
	Resubmit(taskID string, req *ResubmitRequest) (*model.ImportTaskItem, error)
	Cancel(taskID string) error
}

// SubmitImportRequest 提交导入请求
type SubmitImportRequest struct {
	ImportType  string
	FileName    string
	ContentType string
	FileData    []byte
	Options     []byte // 透传给处理器的任意选项
	CreatedBy   string
}

// ResubmitRequest 重新提交请求,携带修正后的文件
type ResubmitRequest struct {
	FileName    string
	ContentType string
	FileData    []byte
}

// importTaskService 导入任务服务实现
type importTaskService struct {
	repo      repository.ImportTaskRepository
	registry  *importer.Registry
	hub       *websocket.Hub
	logger    *logrus.Logger
	canceller RunningCanceller
	importCfg func() config.ImportConfig
}

// NewImportTaskService 创建导入任务服务
func NewImportTaskService(repo repository.ImportTaskRepository, registry *importer.Registry,
	hub *websocket.Hub, logger *logrus.Logger, canceller RunningCanceller,
	importCfg func() config.ImportConfig) ImportTaskService {
	return &importTaskService{
		repo:      repo,
		registry:  registry,
		hub:       hub,
		logger:    logger,
		canceller: canceller,
		importCfg: importCfg,
	}
}

// Submit 提交导入任务
// 任务创建为 waiting,依赖边按类型依赖配置生成:每个前置类型取其
// 最近一个未完成的任务;前置类型没有在途任务时视为已满足,不建边
func (s *importTaskService) Submit(req *SubmitImportRequest) (*model.ImportTask, error) {
	if req == nil {
		return nil, errors.New("submit request is required")
	}
	if !s.registry.Has(req.ImportType) {
		return nil, fmt.Errorf("unknown import type: %s", req.ImportType)
	}
	if len(req.FileData) == 0 {
		return nil, errors.New("import file is empty")
	}

	now := time.Now()
	task := &model.ImportTask{
		ID:         uuid.New().String(),
		Code:       newTaskCode(now),
		ImportType: req.ImportType,
		Status:     model.TaskStatusWaiting,
		FileName:   req.FileName,
		Options:    req.Options,
		CreatedBy:  req.CreatedBy,
		CreatedAt:  now,
	}

	deps, err := s.buildDependencies(task)
	if err != nil {
		return nil, err
	}

	item := &model.ImportTaskItem{
		ID:          uuid.New().String(),
		TaskID:      task.ID,
		Seq:         1,
		Status:      model.ItemStatusPending,
		FileName:    req.FileName,
		ContentType: req.ContentType,
		FileData:    req.FileData,
		CreatedAt:   now,
	}

	if err := s.repo.Create(task, deps, item); err != nil {
		return nil, fmt.Errorf("failed to create import task: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"task_id": task.ID,
		"code":    task.Code,
		"type":    task.ImportType,
		"deps":    len(deps),
		"file":    req.FileName,
	}).Info("import task submitted")

	metrics.RecordTaskCreated(task.ImportType)
	websocket.NotifyTaskUpdate(s.hub, task)
	return task, nil
}

// buildDependencies 根据类型依赖配置生成依赖边
func (s *importTaskService) buildDependencies(task *model.ImportTask) ([]model.ImportTaskDependency, error) {
	prereqs := s.importCfg().Dependencies[task.ImportType]
	if len(prereqs) == 0 {
		return nil, nil
	}

	deps := make([]model.ImportTaskDependency, 0, len(prereqs))
	for _, prereqType := range prereqs {
		prev, err := s.repo.FindLatestActiveByType(prereqType)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return nil, fmt.Errorf("failed to resolve dependency on %s: %w", prereqType, err)
		}
		deps = append(deps, model.ImportTaskDependency{
			TaskID:      task.ID,
			DependsOnID: prev.ID,
			CreatedAt:   task.CreatedAt,
		})
	}
	return deps, nil
}

// Get 查询任务详情
func (s *importTaskService) Get(taskID string) (*model.ImportTask, error) {
	task, err := s.repo.FindByID(taskID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}
	return task, nil
}

// List 分页查询任务列表
func (s *importTaskService) List(filter *repository.TaskFilter) ([]*model.ImportTask, int64, error) {
	return s.repo.FindByFilter(filter)
}

// ListFailures 查询任务的行级失败记录
func (s *importTaskService) ListFailures(taskID string) ([]*model.ImportTaskFailure, error) {
	if _, err := s.Get(taskID); err != nil {
		return nil, err
	}
	return s.repo.ListFailures(taskID)
}

// Resubmit 失败后重新提交修正文件
// 只允许对终态任务操作:新建子项挂在同一任务下,retry_of 指向上一次
// 尝试形成重试链,原有待处理失败记录标记为已重新提交,任务拉回 queued
func (s *importTaskService) Resubmit(taskID string, req *ResubmitRequest) (*model.ImportTaskItem, error) {
	if req == nil || len(req.FileData) == 0 {
		return nil, errors.New("corrected import file is required")
	}

	task, err := s.Get(taskID)
	if err != nil {
		return nil, err
	}
	if !task.IsTerminal() {
		return nil, ErrTaskNotTerminal
	}
	if task.Status == model.TaskStatusCancelled {
		return nil, fmt.Errorf("cancelled task cannot be resubmitted")
	}

	prev, err := s.repo.FindLatestItem(taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to load previous attempt: %w", err)
	}

	item := &model.ImportTaskItem{
		ID:          uuid.New().String(),
		TaskID:      taskID,
		Seq:         prev.Seq + 1,
		Status:      model.ItemStatusPending,
		FileName:    req.FileName,
		ContentType: req.ContentType,
		FileData:    req.FileData,
		RetryOfID:   prev.ID,
		CreatedAt:   time.Now(),
	}
	if err := s.repo.AddItem(item); err != nil {
		return nil, fmt.Errorf("failed to create retry item: %w", err)
	}

	if err := s.repo.MarkFailuresResubmitted(taskID); err != nil {
		s.logger.WithError(err).WithField("task_id", taskID).
			Warn("failed to mark failures resubmitted")
	}

	if err := s.repo.Reactivate(task); err != nil {
		return nil, fmt.Errorf("failed to requeue task: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"task_id": taskID,
		"seq":     item.Seq,
		"file":    req.FileName,
	}).Info("import task resubmitted")

	websocket.NotifyTaskUpdate(s.hub, task)
	return item, nil
}

// Cancel 取消任务
// 任意非终态都可取消;运行中任务先落库再打断执行
func (s *importTaskService) Cancel(taskID string) error {
	task, err := s.Get(taskID)
	if err != nil {
		return err
	}
	if task.IsTerminal() {
		return ErrTaskTerminal
	}

	now := time.Now()
	err = s.repo.UpdateStatus(task, model.TaskStatusCancelled, func(t *model.ImportTask) {
		t.CompletedAt = &now
		t.FailReason = "cancelled by user"
	})
	if err != nil {
		if errors.Is(err, repository.ErrStaleTask) {
			return fmt.Errorf("task state changed, retry the cancellation: %w", err)
		}
		return err
	}

	if s.canceller != nil && s.canceller.Cancel(taskID) {
		s.logger.WithField("task_id", taskID).Info("running task interrupted")
	}

	s.logger.WithFields(logrus.Fields{
		"task_id": taskID,
		"code":    task.Code,
	}).Info("import task cancelled")

	websocket.NotifyTaskUpdate(s.hub, task)
	return nil
}

// newTaskCode 生成人类可读任务编码
func newTaskCode(t time.Time) string {
	return fmt.Sprintf("IMP-%s-%s", t.Format("20060102150405"), uuid.New().String()[:8])
}
