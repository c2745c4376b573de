package repository

import (
	"errors"

	"github.com/liyang960414/erp-sub001/internal/model"
	"gorm.io/gorm"
)

// ErrStaleTask 乐观锁冲突:任务已被其他写入者更新
var ErrStaleTask = errors.New("import task was updated concurrently")

// ImportTaskRepository 导入任务仓储接口
type ImportTaskRepository interface {
	Create(task *model.ImportTask, deps []model.ImportTaskDependency, item *model.ImportTaskItem) error
	FindByID(id string) (*model.ImportTask, error)
	FindByStatus(status string) ([]*model.ImportTask, error)
	FindByFilter(filter *TaskFilter) ([]*model.ImportTask, int64, error)
	FindLatestActiveByType(importType string) (*model.ImportTask, error)
	CountRunningByType() (map[string]int, error)
	FindDependencies(taskID string) ([]*model.ImportTask, error)
	UpdateStatus(task *model.ImportTask, to string, mutate func(*model.ImportTask)) error
	UpdateCounts(taskID string, total, success, failure int) error
	Reactivate(task *model.ImportTask) error
	AddItem(item *model.ImportTaskItem) error
	FindItem(itemID string) (*model.ImportTaskItem, error)
	FindLatestItem(taskID string) (*model.ImportTaskItem, error)
	UpdateItem(item *model.ImportTaskItem) error
	SaveFailures(failures []*model.ImportTaskFailure) error
	ListFailures(taskID string) ([]*model.ImportTaskFailure, error)
	MarkFailuresResubmitted(taskID string) error
}

// TaskFilter 任务查询过滤器
type TaskFilter struct {
	ImportType *string
	Status     *string
	CreatedBy  *string
	Page       int
	PageSize   int
}

// importTaskRepository 导入任务仓储实现
type importTaskRepository struct {
	db *gorm.DB
}

// NewImportTaskRepository 创建导入任务仓储
func NewImportTaskRepository(db *gorm.DB) ImportTaskRepository {
	return &importTaskRepository{db: db}
}

// Create 在一个事务内创建任务、依赖边和首个子项
func (r *importTaskRepository) Create(task *model.ImportTask, deps []model.ImportTaskDependency, item *model.ImportTaskItem) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(task).Error; err != nil {
			return err
		}
		if len(deps) > 0 {
			if err := tx.Create(&deps).Error; err != nil {
				return err
			}
		}
		if item != nil {
			if err := tx.Create(item).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// FindByID 根据 ID 查找任务
func (r *importTaskRepository) FindByID(id string) (*model.ImportTask, error) {
	var task model.ImportTask
	if err := r.db.Preload("Items").Where("id = ?", id).First(&task).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

// FindByStatus 按状态查找任务,按创建时间升序(调度顺序)
func (r *importTaskRepository) FindByStatus(status string) ([]*model.ImportTask, error) {
	var tasks []*model.ImportTask
	err := r.db.Where("status = ?", status).Order("created_at ASC").Find(&tasks).Error
	return tasks, err
}

// FindByFilter 根据过滤器分页查找任务
func (r *importTaskRepository) FindByFilter(filter *TaskFilter) ([]*model.ImportTask, int64, error) {
	query := r.db.Model(&model.ImportTask{})
	if filter != nil {
		if filter.ImportType != nil {
			query = query.Where("import_type = ?", *filter.ImportType)
		}
		if filter.Status != nil {
			query = query.Where("status = ?", *filter.Status)
		}
		if filter.CreatedBy != nil {
			query = query.Where("created_by = ?", *filter.CreatedBy)
		}
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, pageSize := 1, 20
	if filter != nil {
		if filter.Page > 0 {
			page = filter.Page
		}
		if filter.PageSize > 0 {
			pageSize = filter.PageSize
		}
	}

	var tasks []*model.ImportTask
	err := query.Order("created_at DESC").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&tasks).Error
	return tasks, total, err
}

// FindLatestActiveByType 查找指定类型最近一个未到终态的任务
// 没有则返回 gorm.ErrRecordNotFound
func (r *importTaskRepository) FindLatestActiveByType(importType string) (*model.ImportTask, error) {
	var task model.ImportTask
	err := r.db.Where("import_type = ? AND status IN ?", importType,
		[]string{model.TaskStatusWaiting, model.TaskStatusQueued, model.TaskStatusRunning}).
		Order("created_at DESC").First(&task).Error
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// CountRunningByType 统计各导入类型当前运行中的任务数
func (r *importTaskRepository) CountRunningByType() (map[string]int, error) {
	type row struct {
		ImportType string
		Cnt        int
	}
	var rows []row
	err := r.db.Model(&model.ImportTask{}).
		Select("import_type, count(*) as cnt").
		Where("status = ?", model.TaskStatusRunning).
		Group("import_type").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(rows))
	for _, rw := range rows {
		counts[rw.ImportType] = rw.Cnt
	}
	return counts, nil
}

// FindDependencies 查找任务的全部前置任务
func (r *importTaskRepository) FindDependencies(taskID string) ([]*model.ImportTask, error) {
	var deps []model.ImportTaskDependency
	if err := r.db.Where("task_id = ?", taskID).Find(&deps).Error; err != nil {
		return nil, err
	}
	if len(deps) == 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(deps))
	for _, d := range deps {
		ids = append(ids, d.DependsOnID)
	}
	var tasks []*model.ImportTask
	err := r.db.Where("id IN ?", ids).Find(&tasks).Error
	return tasks, err
}

// UpdateStatus 在乐观锁保护下迁移任务状态
// mutate 回调在状态校验通过后修改任务字段(计数、时间戳等)
// 版本不匹配或迁移非法时返回 ErrStaleTask
func (r *importTaskRepository) UpdateStatus(task *model.ImportTask, to string, mutate func(*model.ImportTask)) error {
	if !model.CanTransition(task.Status, to) {
		return ErrStaleTask
	}

	updated := *task
	updated.Status = to
	if mutate != nil {
		mutate(&updated)
	}
	updated.Version = task.Version + 1

	result := r.db.Model(&model.ImportTask{}).
		Where("id = ? AND version = ?", task.ID, task.Version).
		Select("Status", "Version", "TotalCount", "SuccessCount", "FailureCount",
			"FailReason", "ScheduledAt", "StartedAt", "CompletedAt").
		Updates(&updated)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStaleTask
	}

	*task = updated
	return nil
}

// UpdateCounts 更新任务聚合计数
func (r *importTaskRepository) UpdateCounts(taskID string, total, success, failure int) error {
	return r.db.Model(&model.ImportTask{}).
		Where("id = ?", taskID).
		Updates(map[string]interface{}{
			"total_count":   total,
			"success_count": success,
			"failure_count": failure,
		}).Error
}

// Reactivate 把终态任务拉回 queued,用于失败后重新提交
// 这是状态机之外唯一的回退路径,同样走乐观锁
func (r *importTaskRepository) Reactivate(task *model.ImportTask) error {
	updated := *task
	updated.Status = model.TaskStatusQueued
	updated.FailReason = ""
	updated.CompletedAt = nil
	updated.Version = task.Version + 1

	result := r.db.Model(&model.ImportTask{}).
		Where("id = ? AND version = ?", task.ID, task.Version).
		Updates(map[string]interface{}{
			"status":       updated.Status,
			"version":      updated.Version,
			"fail_reason":  "",
			"completed_at": nil,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStaleTask
	}

	*task = updated
	return nil
}

// AddItem 新增任务子项
func (r *importTaskRepository) AddItem(item *model.ImportTaskItem) error {
	return r.db.Create(item).Error
}

// FindItem 根据 ID 查找子项
func (r *importTaskRepository) FindItem(itemID string) (*model.ImportTaskItem, error) {
	var item model.ImportTaskItem
	if err := r.db.Where("id = ?", itemID).First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// FindLatestItem 查找任务序号最大的子项(当前待执行的尝试)
func (r *importTaskRepository) FindLatestItem(taskID string) (*model.ImportTaskItem, error) {
	var item model.ImportTaskItem
	if err := r.db.Where("task_id = ?", taskID).Order("seq DESC").First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// UpdateItem 更新任务子项
func (r *importTaskRepository) UpdateItem(item *model.ImportTaskItem) error {
	return r.db.Save(item).Error
}

// SaveFailures 批量保存行级失败记录
func (r *importTaskRepository) SaveFailures(failures []*model.ImportTaskFailure) error {
	if len(failures) == 0 {
		return nil
	}
	return r.db.Create(failures).Error
}

// ListFailures 查找任务的全部行级失败记录
func (r *importTaskRepository) ListFailures(taskID string) ([]*model.ImportTaskFailure, error) {
	var failures []*model.ImportTaskFailure
	err := r.db.Where("task_id = ?", taskID).
		Order("row_number ASC").Find(&failures).Error
	return failures, err
}

// MarkFailuresResubmitted 将任务的待处理失败记录标记为已重新提交
func (r *importTaskRepository) MarkFailuresResubmitted(taskID string) error {
	return r.db.Model(&model.ImportTaskFailure{}).
		Where("task_id = ? AND status = ?", taskID, model.FailureStatusPending).
		Update("status", model.FailureStatusResubmitted).Error
}
