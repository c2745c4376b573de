package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// PurchaseOrder 采购订单头表
type PurchaseOrder struct {
	ID         string     `gorm:"primaryKey;type:varchar(64)"`
	BillNo     string     `gorm:"type:varchar(64);not null;uniqueIndex"` // 单据编号(自然键)
	SupplierID string     `gorm:"type:varchar(64);not null;index"`
	BillDate   *time.Time `gorm:"index"`
	Remark     string     `gorm:"type:varchar(512)"`
	CreatedAt  time.Time
	UpdatedAt  time.Time

	Supplier *Supplier           `gorm:"foreignKey:SupplierID"`
	Items    []PurchaseOrderItem `gorm:"foreignKey:OrderID"`
}

// TableName 指定表名
func (PurchaseOrder) TableName() string {
	return "purchase_orders"
}

// PurchaseOrderItem 采购订单行项
type PurchaseOrderItem struct {
	ID         string          `gorm:"primaryKey;type:varchar(64)"`
	OrderID    string          `gorm:"type:varchar(64);not null;index"`
	Seq        int             `gorm:"type:int;not null"`
	MaterialID string          `gorm:"type:varchar(64);not null"`
	UnitID     string          `gorm:"type:varchar(64)"`
	Qty        decimal.Decimal `gorm:"type:decimal(18,6);not null"`
	Price      decimal.NullDecimal `gorm:"type:decimal(18,6)"`
	Remark     string          `gorm:"type:varchar(512)"`
	CreatedAt  time.Time

	Deliveries []PurchaseOrderDelivery `gorm:"foreignKey:OrderItemID"`
}

// TableName 指定表名
func (PurchaseOrderItem) TableName() string {
	return "purchase_order_items"
}

// PurchaseOrderDelivery 采购订单交货计划
type PurchaseOrderDelivery struct {
	ID          string          `gorm:"primaryKey;type:varchar(64)"`
	OrderItemID string          `gorm:"type:varchar(64);not null;index"`
	Seq         int             `gorm:"type:int;not null"`
	DueDate     *time.Time      `gorm:"index"`
	Qty         decimal.Decimal `gorm:"type:decimal(18,6);not null"`
	CreatedAt   time.Time
}

// TableName 指定表名
func (PurchaseOrderDelivery) TableName() string {
	return "purchase_order_deliveries"
}

// SaleOrder 销售订单头表
type SaleOrder struct {
	ID        string     `gorm:"primaryKey;type:varchar(64)"`
	BillNo    string     `gorm:"type:varchar(64);not null;uniqueIndex"`
	Customer  string     `gorm:"type:varchar(255)"` // 客户名称
	BillDate  *time.Time `gorm:"index"`
	Remark    string     `gorm:"type:varchar(512)"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Items []SaleOrderItem `gorm:"foreignKey:OrderID"`
}

// TableName 指定表名
func (SaleOrder) TableName() string {
	return "sale_orders"
}

// SaleOrderItem 销售订单行项
type SaleOrderItem struct {
	ID         string          `gorm:"primaryKey;type:varchar(64)"`
	OrderID    string          `gorm:"type:varchar(64);not null;index"`
	Seq        int             `gorm:"type:int;not null"`
	MaterialID string          `gorm:"type:varchar(64);not null"`
	UnitID     string          `gorm:"type:varchar(64)"`
	Qty        decimal.Decimal `gorm:"type:decimal(18,6);not null"`
	Price      decimal.NullDecimal `gorm:"type:decimal(18,6)"`
	DueDate    *time.Time
	Remark     string          `gorm:"type:varchar(512)"`
	CreatedAt  time.Time
}

// TableName 指定表名
func (SaleOrderItem) TableName() string {
	return "sale_order_items"
}

// SaleOutstock 销售出库单头表
type SaleOutstock struct {
	ID          string     `gorm:"primaryKey;type:varchar(64)"`
	BillNo      string     `gorm:"type:varchar(64);not null;uniqueIndex"`
	SaleOrderNo string     `gorm:"type:varchar(64);index"` // 关联销售订单编号
	BillDate    *time.Time `gorm:"index"`
	Remark      string     `gorm:"type:varchar(512)"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Items []SaleOutstockItem `gorm:"foreignKey:OutstockID"`
}

// TableName 指定表名
func (SaleOutstock) TableName() string {
	return "sale_outstocks"
}

// SaleOutstockItem 销售出库单行项
type SaleOutstockItem struct {
	ID         string          `gorm:"primaryKey;type:varchar(64)"`
	OutstockID string          `gorm:"type:varchar(64);not null;index"`
	Seq        int             `gorm:"type:int;not null"`
	MaterialID string          `gorm:"type:varchar(64);not null"`
	UnitID     string          `gorm:"type:varchar(64)"`
	Qty        decimal.Decimal `gorm:"type:decimal(18,6);not null"`
	CreatedAt  time.Time
}

// TableName 指定表名
func (SaleOutstockItem) TableName() string {
	return "sale_outstock_items"
}

// SubReqOrder 委外申请单头表
type SubReqOrder struct {
	ID         string     `gorm:"primaryKey;type:varchar(64)"`
	BillNo     string     `gorm:"type:varchar(64);not null;uniqueIndex"`
	SupplierID string     `gorm:"type:varchar(64);index"`
	BillDate   *time.Time `gorm:"index"`
	Remark     string     `gorm:"type:varchar(512)"`
	CreatedAt  time.Time
	UpdatedAt  time.Time

	Supplier *Supplier         `gorm:"foreignKey:SupplierID"`
	Items    []SubReqOrderItem `gorm:"foreignKey:OrderID"`
}

// TableName 指定表名
func (SubReqOrder) TableName() string {
	return "sub_req_orders"
}

// SubReqOrderItem 委外申请单行项
type SubReqOrderItem struct {
	ID         string          `gorm:"primaryKey;type:varchar(64)"`
	OrderID    string          `gorm:"type:varchar(64);not null;index"`
	Seq        int             `gorm:"type:int;not null"`
	MaterialID string          `gorm:"type:varchar(64);not null"`
	UnitID     string          `gorm:"type:varchar(64)"`
	BomVersion string          `gorm:"type:varchar(32)"` // 指定 BOM 版本
	Qty        decimal.Decimal `gorm:"type:decimal(18,6);not null"`
	DueDate    *time.Time
	Remark     string          `gorm:"type:varchar(512)"`
	CreatedAt  time.Time
}

// TableName 指定表名
func (SubReqOrderItem) TableName() string {
	return "sub_req_order_items"
}
