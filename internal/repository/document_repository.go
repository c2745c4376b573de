package repository

import (
	"fmt"

	"github.com/liyang960414/erp-sub001/internal/model"
	"gorm.io/gorm"
)

// BomKey BOM 自然键,物料编码加版本
type BomKey struct {
	MaterialCode string
	Version      string
}

// String 格式化为 code:version 形式
func (k BomKey) String() string {
	return fmt.Sprintf("%s:%s", k.MaterialCode, k.Version)
}

// BomRepository BOM 仓储接口
type BomRepository interface {
	FindByMaterialIDIn(tx *gorm.DB, materialIDs []string) ([]*model.BillOfMaterial, error)
	SaveAll(tx *gorm.DB, boms []*model.BillOfMaterial) error
	SaveItems(tx *gorm.DB, items []*model.BomItem) error
	DeleteItemsByBomIDs(tx *gorm.DB, bomIDs []string) error
}

type bomRepository struct{}

// NewBomRepository 创建 BOM 仓储
func NewBomRepository() BomRepository {
	return &bomRepository{}
}

// FindByMaterialIDIn 按父项物料 ID 批量查找 BOM
func (r *bomRepository) FindByMaterialIDIn(tx *gorm.DB, materialIDs []string) ([]*model.BillOfMaterial, error) {
	var result []*model.BillOfMaterial
	for _, chunk := range chunkKeys(materialIDs, lookupChunkSize) {
		var batch []*model.BillOfMaterial
		if err := tx.Where("material_id IN ?", chunk).Find(&batch).Error; err != nil {
			return nil, err
		}
		result = append(result, batch...)
	}
	return result, nil
}

// SaveAll 批量保存 BOM 头
func (r *bomRepository) SaveAll(tx *gorm.DB, boms []*model.BillOfMaterial) error {
	if len(boms) == 0 {
		return nil
	}
	return tx.Save(boms).Error
}

// SaveItems 批量保存 BOM 行项
func (r *bomRepository) SaveItems(tx *gorm.DB, items []*model.BomItem) error {
	if len(items) == 0 {
		return nil
	}
	return tx.Create(items).Error
}

// DeleteItemsByBomIDs 删除指定 BOM 的全部行项(整单重写用)
func (r *bomRepository) DeleteItemsByBomIDs(tx *gorm.DB, bomIDs []string) error {
	if len(bomIDs) == 0 {
		return nil
	}
	return tx.Where("bom_id IN ?", bomIDs).Delete(&model.BomItem{}).Error
}

// PurchaseOrderRepository 采购订单仓储接口
type PurchaseOrderRepository interface {
	FindByBillNoIn(tx *gorm.DB, billNos []string) ([]*model.PurchaseOrder, error)
	SaveAll(tx *gorm.DB, orders []*model.PurchaseOrder) error
	SaveItems(tx *gorm.DB, items []*model.PurchaseOrderItem) error
	SaveDeliveries(tx *gorm.DB, deliveries []*model.PurchaseOrderDelivery) error
	DeleteItemsByOrderIDs(tx *gorm.DB, orderIDs []string) error
}

type purchaseOrderRepository struct{}

// NewPurchaseOrderRepository 创建采购订单仓储
func NewPurchaseOrderRepository() PurchaseOrderRepository {
	return &purchaseOrderRepository{}
}

// FindByBillNoIn 按单据编号批量查找采购订单
func (r *purchaseOrderRepository) FindByBillNoIn(tx *gorm.DB, billNos []string) ([]*model.PurchaseOrder, error) {
	var result []*model.PurchaseOrder
	for _, chunk := range chunkKeys(billNos, lookupChunkSize) {
		var batch []*model.PurchaseOrder
		if err := tx.Where("bill_no IN ?", chunk).Find(&batch).Error; err != nil {
			return nil, err
		}
		result = append(result, batch...)
	}
	return result, nil
}

// SaveAll 批量保存采购订单头
func (r *purchaseOrderRepository) SaveAll(tx *gorm.DB, orders []*model.PurchaseOrder) error {
	if len(orders) == 0 {
		return nil
	}
	return tx.Save(orders).Error
}

// SaveItems 批量保存采购订单行项
func (r *purchaseOrderRepository) SaveItems(tx *gorm.DB, items []*model.PurchaseOrderItem) error {
	if len(items) == 0 {
		return nil
	}
	return tx.Create(items).Error
}

// SaveDeliveries 批量保存交货计划
func (r *purchaseOrderRepository) SaveDeliveries(tx *gorm.DB, deliveries []*model.PurchaseOrderDelivery) error {
	if len(deliveries) == 0 {
		return nil
	}
	return tx.Create(deliveries).Error
}

// DeleteItemsByOrderIDs 删除订单全部行项及其交货计划(整单重写用)
func (r *purchaseOrderRepository) DeleteItemsByOrderIDs(tx *gorm.DB, orderIDs []string) error {
	if len(orderIDs) == 0 {
		return nil
	}
	var itemIDs []string
	if err := tx.Model(&model.PurchaseOrderItem{}).
		Where("order_id IN ?", orderIDs).Pluck("id", &itemIDs).Error; err != nil {
		return err
	}
	if len(itemIDs) > 0 {
		if err := tx.Where("order_item_id IN ?", itemIDs).
			Delete(&model.PurchaseOrderDelivery{}).Error; err != nil {
			return err
		}
	}
	return tx.Where("order_id IN ?", orderIDs).Delete(&model.PurchaseOrderItem{}).Error
}

// SaleOrderRepository 销售订单仓储接口
type SaleOrderRepository interface {
	FindByBillNoIn(tx *gorm.DB, billNos []string) ([]*model.SaleOrder, error)
	SaveAll(tx *gorm.DB, orders []*model.SaleOrder) error
	SaveItems(tx *gorm.DB, items []*model.SaleOrderItem) error
	DeleteItemsByOrderIDs(tx *gorm.DB, orderIDs []string) error
}

type saleOrderRepository struct{}

// NewSaleOrderRepository 创建销售订单仓储
func NewSaleOrderRepository() SaleOrderRepository {
	return &saleOrderRepository{}
}

// FindByBillNoIn 按单据编号批量查找销售订单
func (r *saleOrderRepository) FindByBillNoIn(tx *gorm.DB, billNos []string) ([]*model.SaleOrder, error) {
	var result []*model.SaleOrder
	for _, chunk := range chunkKeys(billNos, lookupChunkSize) {
		var batch []*model.SaleOrder
		if err := tx.Where("bill_no IN ?", chunk).Find(&batch).Error; err != nil {
			return nil, err
		}
		result = append(result, batch...)
	}
	return result, nil
}

// SaveAll 批量保存销售订单头
func (r *saleOrderRepository) SaveAll(tx *gorm.DB, orders []*model.SaleOrder) error {
	if len(orders) == 0 {
		return nil
	}
	return tx.Save(orders).Error
}

// SaveItems 批量保存销售订单行项
func (r *saleOrderRepository) SaveItems(tx *gorm.DB, items []*model.SaleOrderItem) error {
	if len(items) == 0 {
		return nil
	}
	return tx.Create(items).Error
}

// DeleteItemsByOrderIDs 删除订单全部行项(整单重写用)
func (r *saleOrderRepository) DeleteItemsByOrderIDs(tx *gorm.DB, orderIDs []string) error {
	if len(orderIDs) == 0 {
		return nil
	}
	return tx.Where("order_id IN ?", orderIDs).Delete(&model.SaleOrderItem{}).Error
}

// SaleOutstockRepository 销售出库单仓储接口
type SaleOutstockRepository interface {
	FindByBillNoIn(tx *gorm.DB, billNos []string) ([]*model.SaleOutstock, error)
	SaveAll(tx *gorm.DB, outstocks []*model.SaleOutstock) error
	SaveItems(tx *gorm.DB, items []*model.SaleOutstockItem) error
	DeleteItemsByOutstockIDs(tx *gorm.DB, outstockIDs []string) error
}

type saleOutstockRepository struct{}

// NewSaleOutstockRepository 创建销售出库单仓储
func NewSaleOutstockRepository() SaleOutstockRepository {
	return &saleOutstockRepository{}
}

// FindByBillNoIn 按单据编号批量查找出库单
func (r *saleOutstockRepository) FindByBillNoIn(tx *gorm.DB, billNos []string) ([]*model.SaleOutstock, error) {
	var result []*model.SaleOutstock
	for _, chunk := range chunkKeys(billNos, lookupChunkSize) {
		var batch []*model.SaleOutstock
		if err := tx.Where("bill_no IN ?", chunk).Find(&batch).Error; err != nil {
			return nil, err
		}
		result = append(result, batch...)
	}
	return result, nil
}

// SaveAll 批量保存出库单头
func (r *saleOutstockRepository) SaveAll(tx *gorm.DB, outstocks []*model.SaleOutstock) error {
	if len(outstocks) == 0 {
		return nil
	}
	return tx.Save(outstocks).Error
}

// SaveItems 批量保存出库单行项
func (r *saleOutstockRepository) SaveItems(tx *gorm.DB, items []*model.SaleOutstockItem) error {
	if len(items) == 0 {
		return nil
	}
	return tx.Create(items).Error
}

// DeleteItemsByOutstockIDs 删除出库单全部行项(整单重写用)
func (r *saleOutstockRepository) DeleteItemsByOutstockIDs(tx *gorm.DB, outstockIDs []string) error {
	if len(outstockIDs) == 0 {
		return nil
	}
	return tx.Where("outstock_id IN ?", outstockIDs).Delete(&model.SaleOutstockItem{}).Error
}

// SubReqOrderRepository 委外申请单仓储接口
type SubReqOrderRepository interface {
	FindByBillNoIn(tx *gorm.DB, billNos []string) ([]*model.SubReqOrder, error)
	SaveAll(tx *gorm.DB, orders []*model.SubReqOrder) error
	SaveItems(tx *gorm.DB, items []*model.SubReqOrderItem) error
	DeleteItemsByOrderIDs(tx *gorm.DB, orderIDs []string) error
}

type subReqOrderRepository struct{}

// NewSubReqOrderRepository 创建委外申请单仓储
func NewSubReqOrderRepository() SubReqOrderRepository {
	return &subReqOrderRepository{}
}

// FindByBillNoIn 按单据编号批量查找委外申请单
func (r *subReqOrderRepository) FindByBillNoIn(tx *gorm.DB, billNos []string) ([]*model.SubReqOrder, error) {
	var result []*model.SubReqOrder
	for _, chunk := range chunkKeys(billNos, lookupChunkSize) {
		var batch []*model.SubReqOrder
		if err := tx.Where("bill_no IN ?", chunk).Find(&batch).Error; err != nil {
			return nil, err
		}
		result = append(result, batch...)
	}
	return result, nil
}

// SaveAll 批量保存委外申请单头
func (r *subReqOrderRepository) SaveAll(tx *gorm.DB, orders []*model.SubReqOrder) error {
	if len(orders) == 0 {
		return nil
	}
	return tx.Save(orders).Error
}

// SaveItems 批量保存委外申请单行项
func (r *subReqOrderRepository) SaveItems(tx *gorm.DB, items []*model.SubReqOrderItem) error {
	if len(items) == 0 {
		return nil
	}
	return tx.Create(items).Error
}

// DeleteItemsByOrderIDs 删除委外申请单全部行项(整单重写用)
func (r *subReqOrderRepository) DeleteItemsByOrderIDs(tx *gorm.DB, orderIDs []string) error {
	if len(orderIDs) == 0 {
		return nil
	}
	return tx.Where("order_id IN ?", orderIDs).Delete(&model.SubReqOrderItem{}).Error
}
