package importer

import (
	"context"

	"github.com/google/uuid"
	"github.com/liyang960414/erp-sub001/internal/model"
	"github.com/liyang960414/erp-sub001/internal/repository"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// 采购订单导入的行模式
var purchaseOrderSchema = &Schema{
	HeaderRows: 1,
	Columns: []Column{
		{Name: "bill_no", Title: "单据编号", Required: true},
		{Name: "supplier_code", Title: "供应商编码", Required: true},
		{Name: "bill_date", Title: "单据日期"},
		{Name: "head_remark", Title: "单据备注"},
		{Name: "seq", Title: "行号", Required: true},
		{Name: "material_code", Title: "物料编码", Required: true},
		{Name: "unit_code", Title: "单位"},
		{Name: "qty", Title: "数量", Required: true},
		{Name: "price", Title: "单价"},
		{Name: "due_date", Title: "交货日期"},
		{Name: "remark", Title: "备注"},
	},
	HeadMarker:   "bill_no",
	DetailMarker: "seq",
}

// PurchaseOrderImporter 采购订单批量导入处理器
type PurchaseOrderImporter struct {
	db        *gorm.DB
	logger    *logrus.Logger
	opts      BatchOptions
	orders    repository.PurchaseOrderRepository
	materials repository.MaterialRepository
	units     repository.UnitRepository
	suppliers repository.SupplierRepository
}

// NewPurchaseOrderImporter 创建采购订单导入处理器
func NewPurchaseOrderImporter(db *gorm.DB, logger *logrus.Logger, opts BatchOptions) *PurchaseOrderImporter {
	return &PurchaseOrderImporter{
		db:        db,
		logger:    logger,
		opts:      opts,
		orders:    repository.NewPurchaseOrderRepository(),
		materials: repository.NewMaterialRepository(),
		units:     repository.NewUnitRepository(),
		suppliers: repository.NewSupplierRepository(),
	}
}

// Type 导入类型
func (im *PurchaseOrderImporter) Type() string {
	return TypePurchaseOrder
}

// Import 执行采购订单导入
// 明细行带交货日期时同步生成一条交货计划
func (im *PurchaseOrderImporter) Import(ctx context.Context, item *model.ImportTaskItem) (*Result, error) {
	res := NewResult()

	rows, err := ParseSheet(item.FileData, purchaseOrderSchema)
	if err != nil {
		return nil, err
	}
	groups := GroupRows(rows, purchaseOrderSchema, im.logger)
	groups = DedupGroups(groups, func(g Group) string { return g.Head.Get("bill_no") })
	res.SetTotal(len(groups))

	supplierIndex, err := im.preloadSuppliers(groups)
	if err != nil {
		return nil, err
	}
	materialIndex, unitIndex, err := preloadDetailRefs(im.db, im.materials, im.units, detailRows(groups))
	if err != nil {
		return nil, err
	}

	existing, err := im.orders.FindByBillNoIn(im.db, CollectKeys(headRows(groups), "bill_no"))
	if err != nil {
		return nil, err
	}
	existingIndex := IndexBy(existing, func(o *model.PurchaseOrder) string { return o.BillNo })

	section := purchaseOrderSchema.Sheet
	err = RunBatches(ctx, im.db, groups, im.opts, res, im.logger,
		func(g Group) (string, int) { return section, g.Head.Num },
		func(tx *gorm.DB, batch []Group) error {
			var heads []*model.PurchaseOrder
			var items []*model.PurchaseOrderItem
			var deliveries []*model.PurchaseOrderDelivery
			var rewriteIDs []string
			var okGroups int

			for _, g := range batch {
				billNo := g.Head.Get("bill_no")
				supplierCode := g.Head.Get("supplier_code")
				supplier, ok := supplierIndex[supplierCode]
				if !ok {
					res.AddError(notFoundError(section, g.Head.Num, "supplier_code", "supplier", supplierCode))
					continue
				}

				order, exists := existingIndex[billNo]
				if exists {
					rewriteIDs = append(rewriteIDs, order.ID)
					order.SupplierID = supplier.ID
					order.BillDate = ParseDate(g.Head.Get("bill_date"))
					order.Remark = g.Head.Get("head_remark")
				} else {
					order = &model.PurchaseOrder{
						ID:         uuid.NewString(),
						BillNo:     billNo,
						SupplierID: supplier.ID,
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

					orderItem := &model.PurchaseOrderItem{
						ID:         uuid.NewString(),
						OrderID:    order.ID,
						Seq:        idx + 1,
						MaterialID: material.ID,
						UnitID:     unitID,
						Qty:        qty,
						Price:      ParseNullDecimal(d.Get("price")),
						Remark:     d.Get("remark"),
					}
					items = append(items, orderItem)

					if due := ParseDate(d.Get("due_date")); due != nil {
						deliveries = append(deliveries, &model.PurchaseOrderDelivery{
							ID:          uuid.NewString(),
							OrderItemID: orderItem.ID,
							Seq:         1,
							DueDate:     due,
							Qty:         qty,
						})
					}
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
			if err := im.orders.SaveDeliveries(tx, deliveries); err != nil {
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

// preloadSuppliers 预加载表头引用的供应商
func (im *PurchaseOrderImporter) preloadSuppliers(groups []Group) (map[string]*model.Supplier, error) {
	suppliers, err := im.suppliers.FindByCodeIn(im.db, CollectKeys(headRows(groups), "supplier_code"))
	if err != nil {
		return nil, err
	}
	return IndexBy(suppliers, func(s *model.Supplier) string { return s.Code }), nil
}

// preloadDetailRefs 预加载明细行引用的物料和单位
func preloadDetailRefs(
	db *gorm.DB,
	materials repository.MaterialRepository,
	units repository.UnitRepository,
	details []Row,
) (map[string]*model.Material, map[string]*model.Unit, error) {
	ms, err := materials.FindByCodeIn(db, CollectKeys(details, "material_code"))
	if err != nil {
		return nil, nil, err
	}
	us, err := units.FindByCodeIn(db, CollectKeys(details, "unit_code"))
	if err != nil {
		return nil, nil, err
	}
	return IndexBy(ms, func(m *model.Material) string { return m.Code }),
		IndexBy(us, func(u *model.Unit) string { return u.Code }), nil
}
