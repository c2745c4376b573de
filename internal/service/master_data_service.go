package service

import (
	"errors"

	"github.com/liyang960414/erp-sub001/internal/model"
	"github.com/liyang960414/erp-sub001/internal/utils"
	"gorm.io/gorm"
)

// ErrMaterialNotFound 物料不存在
var ErrMaterialNotFound = errors.New("material not found")

// MasterDataService 主数据查询服务接口
// 只读查询,导入之外的数据维护不在范围内
type MasterDataService interface {
	ListMaterials(filter *MasterDataFilter) ([]*model.Material, int64, error)
	ListSuppliers(filter *MasterDataFilter) ([]*model.Supplier, int64, error)
	GetBoms(materialCode string) ([]*model.BillOfMaterial, error)
}

// MasterDataFilter 主数据查询过滤器
type MasterDataFilter struct {
	Keyword  string // 编码或名称模糊匹配
	Page     int
	PageSize int
}

func (f *MasterDataFilter) normalize() (page, pageSize int) {
	page, pageSize = 1, 20
	if f != nil {
		if f.Page > 0 {
			page = f.Page
		}
		if f.PageSize > 0 {
			pageSize = f.PageSize
		}
	}
	return page, pageSize
}

// masterDataService 主数据查询服务实现
type masterDataService struct {
	db *gorm.DB
}

// NewMasterDataService 创建主数据查询服务
func NewMasterDataService(db *gorm.DB) MasterDataService {
	return &masterDataService{db: db}
}

// ListMaterials 分页查询物料
func (s *masterDataService) ListMaterials(filter *MasterDataFilter) ([]*model.Material, int64, error) {
	query := s.db.Model(&model.Material{})
	if filter != nil && filter.Keyword != "" {
		kw := "%" + utils.EscapeLike(filter.Keyword) + "%"
		query = query.Where(`code LIKE ? ESCAPE '\' OR name LIKE ? ESCAPE '\'`, kw, kw)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, pageSize := filter.normalize()
	var materials []*model.Material
	err := query.Preload("Unit").Preload("Group").
		Order("code ASC").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&materials).Error
	return materials, total, err
}

// ListSuppliers 分页查询供应商
func (s *masterDataService) ListSuppliers(filter *MasterDataFilter) ([]*model.Supplier, int64, error) {
	query := s.db.Model(&model.Supplier{})
	if filter != nil && filter.Keyword != "" {
		kw := "%" + utils.EscapeLike(filter.Keyword) + "%"
		query = query.Where(`code LIKE ? ESCAPE '\' OR name LIKE ? ESCAPE '\'`, kw, kw)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, pageSize := filter.normalize()
	var suppliers []*model.Supplier
	err := query.Order("code ASC").
		Offset((page - 1) * pageSize).Limit(pageSize).
		Find(&suppliers).Error
	return suppliers, total, err
}

// GetBoms 查询物料的全部 BOM 版本,含明细
func (s *masterDataService) GetBoms(materialCode string) ([]*model.BillOfMaterial, error) {
	var material model.Material
	if err := s.db.Where("code = ?", materialCode).First(&material).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMaterialNotFound
		}
		return nil, err
	}

	var boms []*model.BillOfMaterial
	err := s.db.Preload("Items").
		Where("material_id = ?", material.ID).
		Order("version ASC").
		Find(&boms).Error
	return boms, err
}
