package importer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// BatchOptions 批处理执行参数
type BatchOptions struct {
	Size        int           // 每批逻辑记录数
	Concurrency int           // 并发批次上限,<=1 为顺序执行
	Timeout     time.Duration // 整体执行上限,0 表示不限制
}

// normalize 填充缺省参数
func (o BatchOptions) normalize() BatchOptions {
	if o.Size <= 0 {
		o.Size = 200
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 1
	}
	return o
}

// batchOf 按固定大小切分,保持遇到顺序
func batchOf[T any](items []T, size int) [][]T {
	var batches [][]T
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		batches = append(batches, items[start:end])
	}
	return batches
}

// RunBatches 通用批量提交循环
// 按固定大小切分后逐批在独立事务中执行 fn;事务失败只影响本批,
// 批内每个记录由 describe 给出错误定位,统一记一条"batch import failed",
// fn 执行期间已记过错误的行不再重复记录。
// Concurrency 大于 1 时批次经有界信号量并发派发,分派顺序即文件顺序,
// 完成顺序不保证。每批开始前检查取消标志,已取消的批次不再执行。
func RunBatches[T any](
	ctx context.Context,
	db *gorm.DB,
	items []T,
	opt BatchOptions,
	res *Result,
	logger *logrus.Logger,
	describe func(T) (section string, rowNum int),
	fn func(tx *gorm.DB, batch []T) error,
) error {
	opt = opt.normalize()
	if opt.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opt.Timeout)
		defer cancel()
	}

	batches := batchOf(items, opt.Size)

	runOne := func(idx int, batch []T) {
		err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return fn(tx, batch)
		})
		if err == nil {
			return
		}
		logger.WithFields(logrus.Fields{
			"batch": idx,
			"size":  len(batch),
		}).WithError(err).Error("batch import failed")
		for _, item := range batch {
			section, rowNum := describe(item)
			if res.HasError(section, rowNum) {
				continue
			}
			res.AddError(RowError{
				Section:   section,
				RowNumber: rowNum,
				Message:   fmt.Sprintf("batch import failed: %v", err),
			})
		}
	}

	if opt.Concurrency <= 1 {
		for i, batch := range batches {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("import aborted before batch %d: %w", i, err)
			}
			runOne(i, batch)
		}
		return nil
	}

	sem := make(chan struct{}, opt.Concurrency)
	var wg sync.WaitGroup
	var abortErr error
	for i, batch := range batches {
		if err := ctx.Err(); err != nil {
			abortErr = fmt.Errorf("import aborted before batch %d: %w", i, err)
			break
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(idx int, b []T) {
			defer wg.Done()
			defer func() { <-sem }()
			runOne(idx, b)
		}(i, batch)
	}
	wg.Wait()
	return abortErr
}
