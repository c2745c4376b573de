package importer

import (
	"context"

	"github.com/google/uuid"
	"github.com/liyang960414/erp-sub001/internal/model"
	"github.com/liyang960414/erp-sub001/internal/repository"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// 销售出库单导入的行模式
var saleOutstockSchema = &Schema{
	HeaderRows: 1,
	Columns: []Column{
		{Name: "bill_no", Title: "单据编号", Required: true},
		{Name: "sale_order_no", Title: "销售订单号"},
		{Name: "bill_date", Title: "出库日期"},
		{Name: "head_remark", Title: "单据备注"},
		{Name: "seq", Title: "行号", Required: true},
		{Name: "material_code", Title: "物料编码", Required: true},
		{Name: "unit_code", Title: "单位"},
		{Name: "qty", Title: "数量", Required: true},
	},
	HeadMarker:   "bill_no",
	DetailMarker: "seq",
}

// SaleOutstockImporter 销售出库单批量导入处理器
type SaleOutstockImporter struct {
	db        *gorm.DB
	logger    *logrus.Logger
	opts      BatchOptions
	outstocks repository.SaleOutstockRepository
	materials repository.MaterialRepository
	units     repository.UnitRepository
}

// NewSaleOutstockImporter 创建销售出库单导入处理器
func NewSaleOutstockImporter(db *gorm.DB, logger *logrus.Logger, opts BatchOptions) *SaleOutstockImporter {
	return &SaleOutstockImporter{
		db:        db,
		logger:    logger,
		opts:      opts,
		outstocks: repository.NewSaleOutstockRepository(),
		materials: repository.NewMaterialRepository(),
		units:     repository.NewUnitRepository(),
	}
}

// Type 导入类型
func (im *SaleOutstockImporter) Type() string {
	return TypeSaleOutstock
}

// Import 执行销售出库单导入
func (im *SaleOutstockImporter) Import(ctx context.Context, item *model.ImportTaskItem) (*Result, error) {
	res := NewResult()

	rows, err := ParseSheet(item.FileData, saleOutstockSchema)
	if err != nil {
		return nil, err
	}
	groups := GroupRows(rows, saleOutstockSchema, im.logger)
	groups = DedupGroups(groups, func(g Group) string { return g.Head.Get("bill_no") })
	res.SetTotal(len(groups))

	materialIndex, unitIndex, err := preloadDetailRefs(im.db, im.materials, im.units, detailRows(groups))
	if err != nil {
		return nil, err
	}

	existing, err := im.outstocks.FindByBillNoIn(im.db, CollectKeys(headRows(groups), "bill_no"))
	if err != nil {
		return nil, err
	}
	existingIndex := IndexBy(existing, func(o *model.SaleOutstock) string { return o.BillNo })

	section := saleOutstockSchema.Sheet
	err = RunBatches(ctx, im.db, groups, im.opts, res, im.logger,
		func(g Group) (string, int) { return section, g.Head.Num },
		func(tx *gorm.DB, batch []Group) error {
			var heads []*model.SaleOutstock
			var items []*model.SaleOutstockItem
			var rewriteIDs []string
			var okGroups int

			for _, g := range batch {
				billNo := g.Head.Get("bill_no")

				outstock, exists := existingIndex[billNo]
				if exists {
					rewriteIDs = append(rewriteIDs, outstock.ID)
					outstock.SaleOrderNo = g.Head.Get("sale_order_no")
					outstock.BillDate = ParseDate(g.Head.Get("bill_date"))
					outstock.Remark = g.Head.Get("head_remark")
				} else {
					outstock = &model.SaleOutstock{
						ID:          uuid.NewString(),
						BillNo:      billNo,
						SaleOrderNo: g.Head.Get("sale_order_no"),
						BillDate:    ParseDate(g.Head.Get("bill_date")),
						Remark:      g.Head.Get("head_remark"),
					}
				}
				heads = append(heads, outstock)

				for idx, d := range g.Details {
					materialCode := d.Get("material_code")
					material, ok := materialIndex[materialCode]
					if !ok {
						res.AddError(notFoundError(section, d.Num, "material_code", "material", materialCode))
						continue
					}
					qty, ok := ParseDecimal(d.Get("qty"))
					if !ok {
						res.AddError(requiredError(section, d.Num, "qty"))
						continue
					}

					var unitID string
					if unitCode := d.Get("unit_code"); unitCode != "" {
						if u, ok := unitIndex[unitCode]; ok {
							unitID = u.ID
						} else {
							res.AddError(notFoundError(section, d.Num, "unit_code", "unit", unitCode))
							continue
						}
					}

					items = append(items, &model.SaleOutstockItem{
						ID:         uuid.NewString(),
						OutstockID: outstock.ID,
						Seq:        idx + 1,
						MaterialID: material.ID,
						UnitID:     unitID,
						Qty:        qty,
					})
				}
				okGroups++
			}

			if err := im.outstocks.DeleteItemsByOutstockIDs(tx, rewriteIDs); err != nil {
				return err
			}
			if err := im.outstocks.SaveAll(tx, heads); err != nil {
				return err
			}
			if err := im.outstocks.SaveItems(tx, items); err != nil {
				return err
			}
			res.AddSuccess(okGroups)
			return nil
		})
	if err != nil {
		return nil, err
	}
	return res, nil
}
