package importer

import (
	"context"

	"github.com/google/uuid"
	"github.com/liyang960414/erp-sub001/internal/model"
	"github.com/liyang960414/erp-sub001/internal/repository"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// 委外申请单导入的行模式
var subReqOrderSchema = &Schema{
	HeaderRows: 1,
	Columns: []Column{
		{Name: "bill_no", Title: "单据编号", Required: true},
		{Name: "supplier_code", Title: "供应商编码"},
		{Name: "bill_date", Title: "单据日期"},
		{Name: "head_remark", Title: "单据备注"},
		{Name: "seq", Title: "行号", Required: true},
		{Name: "material_code", Title: "物料编码", Required: true},
		{Name: "unit_code", Title: "单位"},
		{Name: "bom_version", Title: "BOM版本"},
		{Name: "qty", Title: "数量", Required: true},
		{Name: "due_date", Title: "需求日期"},
		{Name: "remark", Title: "备注"},
	},
	HeadMarker:   "bill_no",
	DetailMarker: "seq",
}

// SubReqOrderImporter 委外申请单批量导入处理器
// 批次之间相互独立,默认以小并发度并行提交
type SubReqOrderImporter struct {
	db        *gorm.DB
	logger    *logrus.Logger
	opts      BatchOptions
	orders    repository.SubReqOrderRepository
	materials repository.MaterialRepository
	units     repository.UnitRepository
	suppliers repository.SupplierRepository
}

// NewSubReqOrderImporter 创建委外申请单导入处理器
func NewSubReqOrderImporter(db *gorm.DB, logger *logrus.Logger, opts BatchOptions) *SubReqOrderImporter {
	return &SubReqOrderImporter{
		db:        db,
		logger:    logger,
		opts:      opts,
		orders:    repository.NewSubReqOrderRepository(),
		materials: repository.NewMaterialRepository(),
		units:     repository.NewUnitRepository(),
		suppliers: repository.NewSupplierRepository(),
	}
}

// Type 导入类型
func (im *SubReqOrderImporter) Type() string {
	return TypeSubReqOrder
}

// Import 执行委外申请单导入
// 表头供应商列留空时整单不挂供应商;填写了但解析不到则整组跳过
func (im *SubReqOrderImporter) Import(ctx context.Context, item *model.ImportTaskItem) (*Result, error) {
	res := NewResult()

	rows, err := ParseSheet(item.FileData, subReqOrderSchema)
	if err != nil {
		return nil, err
	}
	groups := GroupRows(rows, subReqOrderSchema, im.logger)
	groups = DedupGroups(groups, func(g Group) string { return g.Head.Get("bill_no") })
	res.SetTotal(len(groups))

	suppliers, err := im.suppliers.FindByCodeIn(im.db, CollectKeys(headRows(groups), "supplier_code"))
	if err != nil {
		return nil, err
	}
	supplierIndex := IndexBy(suppliers, func(s *model.Supplier) string { return s.Code })

	materialIndex, unitIndex, err := preloadDetailRefs(im.db, im.materials, im.units, detailRows(groups))
	if err != nil {
		return nil, err
	}

	existing, err := im.orders.FindByBillNoIn(im.db, CollectKeys(headRows(groups), "bill_no"))
	if err != nil {
		return nil, err
	}
	existingIndex := IndexBy(existing, func(o *model.SubReqOrder) string { return o.BillNo })

	section := subReqOrderSchema.Sheet
	err = RunBatches(ctx, im.db, groups, im.opts, res, im.logger,
		func(g Group) (string, int) { return section, g.Head.Num },
		func(tx *gorm.DB, batch []Group) error {
			var heads []*model.SubReqOrder
			var items []*model.SubReqOrderItem
			var rewriteIDs []string
			var okGroups int

			for _, g := range batch {
				billNo := g.Head.Get("bill_no")

				var supplierID string
				if supplierCode := g.Head.Get("supplier_code"); supplierCode != "" {
					supplier, ok := supplierIndex[supplierCode]
					if !ok {
						res.AddError(notFoundError(section, g.Head.Num, "supplier_code", "supplier", supplierCode))
						continue
					}
					supplierID = supplier.ID
				}

				order, exists := existingIndex[billNo]
				if exists {
					rewriteIDs = append(rewriteIDs, order.ID)
					order.SupplierID = supplierID
					order.BillDate = ParseDate(g.Head.Get("bill_date"))
					order.Remark = g.Head.Get("head_remark")
				} else {
					order = &model.SubReqOrder{
						ID:         uuid.NewString(),
						BillNo:     billNo,
						SupplierID: supplierID,
						BillDate:   ParseDate(g.Head.Get("bill_date")),
						Remark:     g.Head.Get("head_remark"),
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

					items = append(items, &model.SubReqOrderItem{
						ID:         uuid.NewString(),
						OrderID:    order.ID,
						Seq:        idx + 1,
						MaterialID: material.ID,
						UnitID:     unitID,
						BomVersion: d.Get("bom_version"),
						Qty:        qty,
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
