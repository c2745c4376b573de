package repository

import (
	"github.com/liyang960414/erp-sub001/internal/model"
	"gorm.io/gorm"
)

// MaterialRepository 物料仓储接口
type MaterialRepository interface {
	FindByCodeIn(tx *gorm.DB, codes []string) ([]*model.Material, error)
	SaveAll(tx *gorm.DB, materials []*model.Material) error
	UpdateAll(tx *gorm.DB, materials []*model.Material) error
}

// materialRepository 物料仓储实现
type materialRepository struct{}

// NewMaterialRepository 创建物料仓储
func NewMaterialRepository() MaterialRepository {
	return &materialRepository{}
}

// FindByCodeIn 按物料编码批量查找,分片执行避免超长 IN 子句
// 预加载单位和分组,保证返回的实体引用已完全物化
func (r *materialRepository) FindByCodeIn(tx *gorm.DB, codes []string) ([]*model.Material, error) {
	var result []*model.Material
	for _, chunk := range chunkKeys(codes, lookupChunkSize) {
		var batch []*model.Material
		if err := tx.Preload("Unit").Preload("Group").
			Where("code IN ?", chunk).Find(&batch).Error; err != nil {
			return nil, err
		}
		result = append(result, batch...)
	}
	return result, nil
}

// SaveAll 批量新增物料
func (r *materialRepository) SaveAll(tx *gorm.DB, materials []*model.Material) error {
	if len(materials) == 0 {
		return nil
	}
	return tx.Create(materials).Error
}

// UpdateAll 批量更新物料
func (r *materialRepository) UpdateAll(tx *gorm.DB, materials []*model.Material) error {
	for _, m := range materials {
		if err := tx.Save(m).Error; err != nil {
			return err
		}
	}
	return nil
}

// UnitRepository 计量单位仓储接口
type UnitRepository interface {
	FindByCodeIn(tx *gorm.DB, codes []string) ([]*model.Unit, error)
	FindGroupsByCodeIn(tx *gorm.DB, codes []string) ([]*model.UnitGroup, error)
	SaveAll(tx *gorm.DB, units []*model.Unit) error
	SaveGroups(tx *gorm.DB, groups []*model.UnitGroup) error
}

type unitRepository struct{}

// NewUnitRepository 创建计量单位仓储
func NewUnitRepository() UnitRepository {
	return &unitRepository{}
}

// FindByCodeIn 按单位编码批量查找
func (r *unitRepository) FindByCodeIn(tx *gorm.DB, codes []string) ([]*model.Unit, error) {
	var result []*model.Unit
	for _, chunk := range chunkKeys(codes, lookupChunkSize) {
		var batch []*model.Unit
		if err := tx.Preload("Group").Where("code IN ?", chunk).Find(&batch).Error; err != nil {
			return nil, err
		}
		result = append(result, batch...)
	}
	return result, nil
}

// FindGroupsByCodeIn 按单位组编码批量查找
func (r *unitRepository) FindGroupsByCodeIn(tx *gorm.DB, codes []string) ([]*model.UnitGroup, error) {
	var result []*model.UnitGroup
	for _, chunk := range chunkKeys(codes, lookupChunkSize) {
		var batch []*model.UnitGroup
		if err := tx.Where("code IN ?", chunk).Find(&batch).Error; err != nil {
			return nil, err
		}
		result = append(result, batch...)
	}
	return result, nil
}

// SaveAll 批量新增单位
func (r *unitRepository) SaveAll(tx *gorm.DB, units []*model.Unit) error {
	if len(units) == 0 {
		return nil
	}
	return tx.Create(units).Error
}

// SaveGroups 批量新增单位组
func (r *unitRepository) SaveGroups(tx *gorm.DB, groups []*model.UnitGroup) error {
	if len(groups) == 0 {
		return nil
	}
	return tx.Create(groups).Error
}

// MaterialGroupRepository 物料分组仓储接口
type MaterialGroupRepository interface {
	FindByCodeIn(tx *gorm.DB, codes []string) ([]*model.MaterialGroup, error)
	SaveAll(tx *gorm.DB, groups []*model.MaterialGroup) error
}

type materialGroupRepository struct{}

// NewMaterialGroupRepository 创建物料分组仓储
func NewMaterialGroupRepository() MaterialGroupRepository {
	return &materialGroupRepository{}
}

// FindByCodeIn 按分组编码批量查找
func (r *materialGroupRepository) FindByCodeIn(tx *gorm.DB, codes []string) ([]*model.MaterialGroup, error) {
	var result []*model.MaterialGroup
	for _, chunk := range chunkKeys(codes, lookupChunkSize) {
		var batch []*model.MaterialGroup
		if err := tx.Where("code IN ?", chunk).Find(&batch).Error; err != nil {
			return nil, err
		}
		result = append(result, batch...)
	}
	return result, nil
}

// SaveAll 批量新增物料分组
func (r *materialGroupRepository) SaveAll(tx *gorm.DB, groups []*model.MaterialGroup) error {
	if len(groups) == 0 {
		return nil
	}
	return tx.Create(groups).Error
}

// SupplierRepository 供应商仓储接口
type SupplierRepository interface {
	FindByCodeIn(tx *gorm.DB, codes []string) ([]*model.Supplier, error)
	SaveAll(tx *gorm.DB, suppliers []*model.Supplier) error
	UpdateAll(tx *gorm.DB, suppliers []*model.Supplier) error
}

type supplierRepository struct{}

// NewSupplierRepository 创建供应商仓储
func NewSupplierRepository() SupplierRepository {
	return &supplierRepository{}
}

// FindByCodeIn 按供应商编码批量查找
func (r *supplierRepository) FindByCodeIn(tx *gorm.DB, codes []string) ([]*model.Supplier, error) {
	var result []*model.Supplier
	for _, chunk := range chunkKeys(codes, lookupChunkSize) {
		var batch []*model.Supplier
		if err := tx.Where("code IN ?", chunk).Find(&batch).Error; err != nil {
			return nil, err
		}
		result = append(result, batch...)
	}
	return result, nil
}

// SaveAll 批量新增供应商
func (r *supplierRepository) SaveAll(tx *gorm.DB, suppliers []*model.Supplier) error {
	if len(suppliers) == 0 {
		return nil
	}
	return tx.Create(suppliers).Error
}

// UpdateAll 批量更新供应商
func (r *supplierRepository) UpdateAll(tx *gorm.DB, suppliers []*model.Supplier) error {
	for _, s := range suppliers {
		if err := tx.Save(s).Error; err != nil {
			return err
		}
	}
	return nil
}
