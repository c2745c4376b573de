package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Material 物料主数据
type Material struct {
	ID        string `gorm:"primaryKey;type:varchar(64)"`
	Code      string `gorm:"type:varchar(64);not null;uniqueIndex"` // 物料编码(自然键)
	Name      string `gorm:"type:varchar(255);not null"`
	Spec      string `gorm:"type:varchar(255)"` // 规格型号
	UnitID    string `gorm:"type:varchar(64);index"`
	GroupID   string `gorm:"type:varchar(64);index"`
	Remark    string `gorm:"type:varchar(512)"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Unit  *Unit          `gorm:"foreignKey:UnitID"`
	Group *MaterialGroup `gorm:"foreignKey:GroupID"`
}

// TableName 指定表名
func (Material) TableName() string {
	return "materials"
}

// Unit 计量单位
type Unit struct {
	ID        string `gorm:"primaryKey;type:varchar(64)"`
	Code      string `gorm:"type:varchar(64);not null;uniqueIndex"`
	Name      string `gorm:"type:varchar(128);not null"`
	GroupID   string `gorm:"type:varchar(64);index"`
	Precision int    `gorm:"type:int;not null;default:2"` // 数量精度(小数位)
	CreatedAt time.Time
	UpdatedAt time.Time

	Group *UnitGroup `gorm:"foreignKey:GroupID"`
}

// TableName 指定表名
func (Unit) TableName() string {
	return "units"
}

// UnitGroup 单位组
type UnitGroup struct {
	ID        string `gorm:"primaryKey;type:varchar(64)"`
	Code      string `gorm:"type:varchar(64);not null;uniqueIndex"`
	Name      string `gorm:"type:varchar(128);not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName 指定表名
func (UnitGroup) TableName() string {
	return "unit_groups"
}

// MaterialGroup 物料分组
type MaterialGroup struct {
	ID        string `gorm:"primaryKey;type:varchar(64)"`
	Code      string `gorm:"type:varchar(64);not null;uniqueIndex"`
	Name      string `gorm:"type:varchar(128);not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName 指定表名
func (MaterialGroup) TableName() string {
	return "material_groups"
}

// Supplier 供应商主数据
type Supplier struct {
	ID        string `gorm:"primaryKey;type:varchar(64)"`
	Code      string `gorm:"type:varchar(64);not null;uniqueIndex"`
	Name      string `gorm:"type:varchar(255);not null"`
	Contact   string `gorm:"type:varchar(128)"`
	Phone     string `gorm:"type:varchar(32)"`
	Address   string `gorm:"type:varchar(512)"`
	TaxNo     string `gorm:"type:varchar(64)"` // 纳税人识别号
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName 指定表名
func (Supplier) TableName() string {
	return "suppliers"
}

// BillOfMaterial BOM 头表
// 自然键为 (material_id, version),对应物料编码加版本号
type BillOfMaterial struct {
	ID         string `gorm:"primaryKey;type:varchar(64)"`
	MaterialID string `gorm:"type:varchar(64);not null;index:idx_bom_material_version,unique"`
	Version    string `gorm:"type:varchar(32);not null;index:idx_bom_material_version,unique"`
	Name       string `gorm:"type:varchar(255)"`
	Remark     string `gorm:"type:varchar(512)"`
	CreatedAt  time.Time
	UpdatedAt  time.Time

	Material *Material `gorm:"foreignKey:MaterialID"`
	Items    []BomItem `gorm:"foreignKey:BomID"`
}

// TableName 指定表名
func (BillOfMaterial) TableName() string {
	return "bill_of_materials"
}

// BomItem BOM 行项
type BomItem struct {
	ID          string          `gorm:"primaryKey;type:varchar(64)"`
	BomID       string          `gorm:"type:varchar(64);not null;index"`
	Seq         int             `gorm:"type:int;not null"` // 行序号
	MaterialID  string          `gorm:"type:varchar(64);not null"`
	Numerator   decimal.Decimal `gorm:"type:decimal(18,6);not null"` // 用量分子
	Denominator decimal.Decimal `gorm:"type:decimal(18,6);not null"` // 用量分母
	ScrapRate   decimal.NullDecimal `gorm:"type:decimal(9,4)"`       // 损耗率,可空
	Remark      string          `gorm:"type:varchar(512)"`
	CreatedAt   time.Time

	Material *Material `gorm:"foreignKey:MaterialID"`
}

// TableName 指定表名
func (BomItem) TableName() string {
	return "bom_items"
}
