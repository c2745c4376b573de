package importer

import (
	"context"

	"github.com/google/uuid"
	"github.com/liyang960414/erp-sub001/internal/model"
	"github.com/liyang960414/erp-sub001/internal/repository"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// 销售订单导入的行模式
var saleOrderSchema = &Schema{
	HeaderRows: 1,
	Columns: []Column{
		{Name: "bill_no", Title: "单据编号", Required: true},
		{Name: "customer", Title: "客户名称"},
		{Name: "bill_date", Title: "单据日期"},
		{Name: "head_remark", Title: "单据备注"},
		{Name: "seq", Title: "行号", Required: true},
		{Name: "material_code", Title: "物料编码", Required: true},
		{Name: "unit_code", Title: "单位"},
		{Name: "qty", Title: "数量", Required: true},
		{Name: "price", Title: "单价"},
		{Name: "due_date", Title: "要货日期"},
		{Name: "remark", Title: "备注"},
	},
	HeadMarker:   "bill_no",
	DetailMarker: "seq",
}

// SaleOrderImporter 销售订单批量导入处理器
type SaleOrderImporter struct {
	db        *gorm.DB
	logger    *logrus.Logger
	opts      BatchOptions
	orders    repository.SaleOrderRepository
	materials repository.MaterialRepository
	units     repository.UnitRepository
}

// NewSaleOrderImporter 创建销售订单导入处理器
func NewSaleOrderImporter(db *gorm.DB, logger *logrus.Logger, opts BatchOptions) *SaleOrderImporter {
	return &SaleOrderImporter{
		db:        db,
		logger:    logger,
		opts:      opts,
		orders:    repository.NewSaleOrderRepository(),
		materials: repository.NewMaterialRepository(),
		units:     repository.NewUnitRepository(),
	}
}

// Type 导入类型
func (im *SaleOrderImporter) Type() string {
	return TypeSaleOrder
}

// Import 执行销售订单导入
func (im *SaleOrderImporter) Import(ctx context.Context, item *model.ImportTaskItem) (*Result, error) {
	res := NewResult()

	rows, err := ParseSheet(item.FileData, saleOrderSchema)
	if err != nil {
		return nil, err
	}
	groups := GroupRows(rows, saleOrderSchema, im.logger)
	groups = DedupGroups(groups, func(g Group) string { return g.Head.Get("bill_no") })
	res.SetTotal(len(groups))

	materialIndex, unitIndex, err := preloadDetailRefs(im.db, im.materials, im.units, detailRows(groups))
	if err != nil {
		return nil, err
	}

	existing, err := im.orders.FindByBillNoIn(im.db, CollectKeys(headRows(groups), "bill_no"))
	if err != nil {
		return nil, err
	}
	existingIndex := IndexBy(existing, func(o *model.SaleOrder) string { return o.BillNo })

	section := saleOrderSchema.Sheet
	err = RunBatches(ctx, im.db, groups, im.opts, res, im.logger,
		func(g Group) (string, int) { return section, g.Head.Num },
		func(tx *gorm.DB, batch []Group) error {
			var heads []*model.SaleOrder
			var items []*model.SaleOrderItem
			var rewriteIDs []string
			var okGroups int

			for _, g := range batch {
				billNo := g.Head.Get("bill_no")

				order, exists := existingIndex[billNo]
				if exists {
					rewriteIDs = append(rewriteIDs, order.ID)
					order.Customer = g.Head.Get("customer")
					order.BillDate = ParseDate(g.Head.Get("bill_date"))
					order.Remark = g.Head.Get("head_remark")
				} else {
					order = &model.SaleOrder{
						ID:       uuid.NewString(),
						BillNo:   billNo,
						Customer: g.Head.Get("customer"),
						BillDate: ParseDate(g.Head.Get("bill_date")),
						Remark:   g.Head.Get("head_remark"),
					}
				}
				heads = append(heads, order)

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

					items = append(items, &model.SaleOrderItem{
						ID:         uuid.NewString(),
						OrderID:    order.ID,
						Seq:        idx + 1,
						MaterialID: material.ID,
						UnitID:     unitID,
						Qty:        qty,
						Price:      ParseNullDecimal(d.Get("price")),
						DueDate:    ParseDate(d.Get("due_date")),
						Remark:     d.Get("remark"),
					})
				}
				okGroups++
			}

			if err := im.orders.DeleteItemsByOrderIDs(tx, rewriteIDs); err != nil {
				return err
			}
			if err := im.orders.SaveAll(tx, heads); err != nil {
				return err
			}
			if err := im.orders.SaveItems(tx, items); err != nil {
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
