package importer

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/liyang960414/erp-sub001/internal/model"
)

// 导入类型,处理器注册表的键
const (
	TypeMaterial      = "material"
	TypeUnit          = "unit"
	TypeSupplier      = "supplier"
	TypeBom           = "bom"
	TypePurchaseOrder = "purchase_order"
	TypeSaleOrder     = "sale_order"
	TypeSaleOutstock  = "sale_outstock"
	TypeSubReqOrder   = "sub_req_order"
)

// Handler 某一导入类型的批量导入处理器
// Import 只在任务级失败时返回错误;行级、组级、批级问题
// 一律记入 Result,不向上抛出
type Handler interface {
	Type() string
	Import(ctx context.Context, item *model.ImportTaskItem) (*Result, error)
}

// Registry 导入类型到处理器的注册表
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry 创建处理器注册表
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register 注册处理器,重复注册同一类型会覆盖
func (r *Registry) Register(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[h.Type()] = h
}

// Get 按导入类型查找处理器
func (r *Registry) Get(importType string) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[importType]
	if !ok {
		return nil, fmt.Errorf("unknown import type: %s", importType)
	}
	return h, nil
}

// Has 判断导入类型是否已注册
func (r *Registry) Has(importType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[importType]
	return ok
}

// Types 返回已注册的导入类型列表
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
