package importer

import (
	"sync"
)

// 单次导入保留的错误条目上限,超出的仍计入失败总数但不再记录明细
const maxErrorEntries = 1000

// RowError 结构化行级错误
type RowError struct {
	Section   string            `json:"section"`    // 工作表/分区名
	RowNumber int               `json:"row_number"` // 文件中的行号(从 1 开始)
	Field     string            `json:"field"`
	Message   string            `json:"message"`
	RowData   map[string]string `json:"row_data,omitempty"` // 原始行数据,供检查和重新提交
}

// Result 一次导入执行的聚合结果
// 失败数恒等于总数减成功数,错误明细列表有上限
// 并发批次共用一个 Result,内部加锁
type Result struct {
	mu      sync.Mutex
	total   int
	success int
	errors  []RowError
	seen    map[rowKey]struct{} // 已记录错误的行,防止批级错误重复落到同一行
	dropped int                 // 超出明细上限被丢弃的错误条数
	summary map[string]interface{}
}

type rowKey struct {
	section string
	row     int
}

// NewResult 创建导入结果
func NewResult() *Result {
	return &Result{
		seen:    make(map[rowKey]struct{}),
		summary: make(map[string]interface{}),
	}
}

// SetTotal 设置解析得到的逻辑记录总数
func (r *Result) SetTotal(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.total = n
}

// AddSuccess 累加成功记录数
func (r *Result) AddSuccess(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.success += n
}

// AddError 记录一条结构化错误,超出上限的条目静默丢弃
func (r *Result) AddError(e RowError) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen[rowKey{e.Section, e.RowNumber}] = struct{}{}
	if len(r.errors) >= maxErrorEntries {
		r.dropped++
		return
	}
	r.errors = append(r.errors, e)
}

// HasError 指定行是否已记录过错误(含超出上限被丢弃的)
func (r *Result) HasError(section string, rowNumber int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.seen[rowKey{section, rowNumber}]
	return ok
}

// PutSummary 写入类型相关的汇总数据
func (r *Result) PutSummary(key string, value interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summary[key] = value
}

// TotalCount 逻辑记录总数
func (r *Result) TotalCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total
}

// SuccessCount 成功记录数
func (r *Result) SuccessCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.success
}

// FailureCount 失败记录数(总数减成功数)
func (r *Result) FailureCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.total - r.success
}

// Errors 返回错误明细副本
func (r *Result) Errors() []RowError {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RowError, len(r.errors))
	copy(out, r.errors)
	return out
}

// Summary 返回类型相关汇总数据副本
func (r *Result) Summary() map[string]interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]interface{}, len(r.summary))
	for k, v := range r.summary {
		out[k] = v
	}
	return out
}
