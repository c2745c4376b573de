package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/liyang960414/erp-sub001/internal/importer"
	"github.com/liyang960414/erp-sub001/internal/model"
	"github.com/liyang960414/erp-sub001/internal/repository"
	"github.com/liyang960414/erp-sub001/internal/service"
	"github.com/xuri/excelize/v2"
)

// 上传文件大小上限
const maxUploadSize = 64 << 20 // 64 MiB

// ImportTaskController 导入任务控制器
type ImportTaskController struct {
	taskService service.ImportTaskService
	registry    *importer.Registry
}

// NewImportTaskController 创建导入任务控制器
func NewImportTaskController(taskService service.ImportTaskService, registry *importer.Registry) *ImportTaskController {
	return &ImportTaskController{
		taskService: taskService,
		registry:    registry,
	}
}

// ImportTaskView 任务视图,不携带原始文件字节
type ImportTaskView struct {
	ID           string               `json:"id"`
	Code         string               `json:"code"`
	ImportType   string               `json:"import_type"`
	Status       string               `json:"status"`
	FileName     string               `json:"file_name"`
	TotalCount   int                  `json:"total_count"`
	SuccessCount int                  `json:"success_count"`
	FailureCount int                  `json:"failure_count"`
	FailReason   string               `json:"fail_reason,omitempty"`
	CreatedBy    string               `json:"created_by,omitempty"`
	CreatedAt    time.Time            `json:"created_at"`
	ScheduledAt  *time.Time           `json:"scheduled_at,omitempty"`
	StartedAt    *time.Time           `json:"started_at,omitempty"`
	CompletedAt  *time.Time           `json:"completed_at,omitempty"`
	Items        []ImportTaskItemView `json:"items,omitempty"`
}

// ImportTaskItemView 子项视图
type ImportTaskItemView struct {
	ID           string     `json:"id"`
	Seq          int        `json:"seq"`
	Status       string     `json:"status"`
	FileName     string     `json:"file_name"`
	TotalCount   int        `json:"total_count"`
	SuccessCount int        `json:"success_count"`
	FailureCount int        `json:"failure_count"`
	RetryOfID    string     `json:"retry_of_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// ImportTaskFailureView 行级失败记录视图
type ImportTaskFailureView struct {
	ID        uint              `json:"id"`
	Section   string            `json:"section,omitempty"`
	RowNumber int               `json:"row_number"`
	Field     string            `json:"field,omitempty"`
	Message   string            `json:"message"`
	RowData   map[string]string `json:"row_data,omitempty"`
	Status    string            `json:"status"`
}

func toTaskView(task *model.ImportTask) ImportTaskView {
	view := ImportTaskView{
		ID:           task.ID,
		Code:         task.Code,
		ImportType:   task.ImportType,
		Status:       task.Status,
		FileName:     task.FileName,
		TotalCount:   task.TotalCount,
		SuccessCount: task.SuccessCount,
		FailureCount: task.FailureCount,
		FailReason:   task.FailReason,
		CreatedBy:    task.CreatedBy,
		CreatedAt:    task.CreatedAt,
		ScheduledAt:  task.ScheduledAt,
		StartedAt:    task.StartedAt,
		CompletedAt:  task.CompletedAt,
	}
	for _, item := range task.Items {
		view.Items = append(view.Items, ImportTaskItemView{
			ID:           item.ID,
			Seq:          item.Seq,
			Status:       item.Status,
			FileName:     item.FileName,
			TotalCount:   item.TotalCount,
			SuccessCount: item.SuccessCount,
			FailureCount: item.FailureCount,
			RetryOfID:    item.RetryOfID,
			CreatedAt:    item.CreatedAt,
			StartedAt:    item.StartedAt,
			CompletedAt:  item.CompletedAt,
		})
	}
	return view
}

func toFailureView(f *model.ImportTaskFailure) ImportTaskFailureView {
	view := ImportTaskFailureView{
		ID:        f.ID,
		Section:   f.Section,
		RowNumber: f.RowNumber,
		Field:     f.Field,
		Message:   f.Message,
		Status:    f.Status,
	}
	if len(f.RowData) > 0 {
		_ = json.Unmarshal(f.RowData, &view.RowData)
	}
	return view
}

// readUpload 从 multipart 表单读取上传文件
func readUpload(ctx *gin.Context, field string) (name, contentType string, data []byte, err error) {
	fileHeader, err := ctx.FormFile(field)
	if err != nil {
		return "", "", nil, fmt.Errorf("missing upload field %q: %w", field, err)
	}
	if fileHeader.Size > maxUploadSize {
		return "", "", nil, fmt.Errorf("file too large: %d bytes", fileHeader.Size)
	}

	f, err := fileHeader.Open()
	if err != nil {
		return "", "", nil, err
	}
	defer f.Close()

	data, err = io.ReadAll(f)
	if err != nil {
		return "", "", nil, err
	}
	return fileHeader.Filename, fileHeader.Header.Get("Content-Type"), data, nil
}

// Submit 提交导入任务
// multipart 表单:file 为数据文件,import_type 为类型键,options 可选 JSON
func (c *ImportTaskController) Submit(ctx *gin.Context) {
	importType := ctx.PostForm("import_type")
	if importType == "" {
		Error(ctx, http.StatusBadRequest, "invalid request", "import_type is required")
		return
	}

	fileName, contentType, data, err := readUpload(ctx, "file")
	if err != nil {
		Error(ctx, http.StatusBadRequest, "invalid upload", err.Error())
		return
	}

	var options []byte
	if raw := ctx.PostForm("options"); raw != "" {
		if !json.Valid([]byte(raw)) {
			Error(ctx, http.StatusBadRequest, "invalid request", "options must be valid JSON")
			return
		}
		options = []byte(raw)
	}

	task, err := c.taskService.Submit(&service.SubmitImportRequest{
		ImportType:  importType,
		FileName:    fileName,
		ContentType: contentType,
		FileData:    data,
		Options:     options,
		CreatedBy:   ctx.GetHeader("X-User-ID"),
	})
	if err != nil {
		Error(ctx, http.StatusBadRequest, "failed to submit import task", err.Error())
		return
	}

	Success(ctx, toTaskView(task))
}

// Get 查询任务详情
func (c *ImportTaskController) Get(ctx *gin.Context) {
	task, err := c.taskService.Get(ctx.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrTaskNotFound) {
			Error(ctx, http.StatusNotFound, "import task not found", err.Error())
			return
		}
		Error(ctx, http.StatusInternalServerError, "failed to load import task", err.Error())
		return
	}
	Success(ctx, toTaskView(task))
}

// List 分页查询任务列表
func (c *ImportTaskController) List(ctx *gin.Context) {
	filter := &repository.TaskFilter{
		Page:     parseIntQuery(ctx, "page", 1),
		PageSize: parseIntQuery(ctx, "page_size", 20),
	}
	if v := ctx.Query("type"); v != "" {
		filter.ImportType = &v
	}
	if v := ctx.Query("status"); v != "" {
		filter.Status = &v
	}
	if v := ctx.Query("created_by"); v != "" {
		filter.CreatedBy = &v
	}

	tasks, total, err := c.taskService.List(filter)
	if err != nil {
		Error(ctx, http.StatusInternalServerError, "failed to list import tasks", err.Error())
		return
	}

	views := make([]ImportTaskView, 0, len(tasks))
	for _, task := range tasks {
		views = append(views, toTaskView(task))
	}

	totalPage := int((total + int64(filter.PageSize) - 1) / int64(filter.PageSize))
	Paginated(ctx, views, PaginationInfo{
		Page:      filter.Page,
		PageSize:  filter.PageSize,
		Total:     total,
		TotalPage: totalPage,
	})
}

// ListFailures 查询任务的行级失败记录
func (c *ImportTaskController) ListFailures(ctx *gin.Context) {
	failures, err := c.taskService.ListFailures(ctx.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrTaskNotFound) {
			Error(ctx, http.StatusNotFound, "import task not found", err.Error())
			return
		}
		Error(ctx, http.StatusInternalServerError, "failed to list failures", err.Error())
		return
	}

	views := make([]ImportTaskFailureView, 0, len(failures))
	for _, f := range failures {
		views = append(views, toFailureView(f))
	}
	Success(ctx, views)
}

// ExportFailures 把失败行导出为工作簿,修正后可直接重新提交
func (c *ImportTaskController) ExportFailures(ctx *gin.Context) {
	taskID := ctx.Param("id")
	failures, err := c.taskService.ListFailures(taskID)
	if err != nil {
		if errors.Is(err, service.ErrTaskNotFound) {
			Error(ctx, http.StatusNotFound, "import task not found", err.Error())
			return
		}
		Error(ctx, http.StatusInternalServerError, "failed to list failures", err.Error())
		return
	}

	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	header := []interface{}{"section", "row_number", "field", "message", "row_data"}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		Error(ctx, http.StatusInternalServerError, "failed to build workbook", err.Error())
		return
	}
	for i, fail := range failures {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := []interface{}{fail.Section, fail.RowNumber, fail.Field, fail.Message, string(fail.RowData)}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			Error(ctx, http.StatusInternalServerError, "failed to build workbook", err.Error())
			return
		}
	}

	ctx.Header("Content-Disposition", fmt.Sprintf("attachment; filename=failures-%s.xlsx", taskID))
	ctx.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	if err := f.Write(ctx.Writer); err != nil {
		// 响应头已发出,只能断开
		_ = ctx.Error(err)
	}
}

// Resubmit 重新提交修正文件
func (c *ImportTaskController) Resubmit(ctx *gin.Context) {
	fileName, contentType, data, err := readUpload(ctx, "file")
	if err != nil {
		Error(ctx, http.StatusBadRequest, "invalid upload", err.Error())
		return
	}

	item, err := c.taskService.Resubmit(ctx.Param("id"), &service.ResubmitRequest{
		FileName:    fileName,
		ContentType: contentType,
		FileData:    data,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTaskNotFound):
			Error(ctx, http.StatusNotFound, "import task not found", err.Error())
		case errors.Is(err, service.ErrTaskNotTerminal):
			Error(ctx, http.StatusConflict, "import task is still in progress", err.Error())
		default:
			Error(ctx, http.StatusInternalServerError, "failed to resubmit import task", err.Error())
		}
		return
	}

	Success(ctx, ImportTaskItemView{
		ID:        item.ID,
		Seq:       item.Seq,
		Status:    item.Status,
		FileName:  item.FileName,
		RetryOfID: item.RetryOfID,
		CreatedAt: item.CreatedAt,
	})
}

// Cancel 取消任务
func (c *ImportTaskController) Cancel(ctx *gin.Context) {
	err := c.taskService.Cancel(ctx.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTaskNotFound):
			Error(ctx, http.StatusNotFound, "import task not found", err.Error())
		case errors.Is(err, service.ErrTaskTerminal):
			Error(ctx, http.StatusConflict, "import task already finished", err.Error())
		default:
			Error(ctx, http.StatusInternalServerError, "failed to cancel import task", err.Error())
		}
		return
	}
	Success(ctx, nil)
}

// Types 列出已注册的导入类型
func (c *ImportTaskController) Types(ctx *gin.Context) {
	Success(ctx, c.registry.Types())
}

func parseIntQuery(ctx *gin.Context, key string, def int) int {
	if v := ctx.Query(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
