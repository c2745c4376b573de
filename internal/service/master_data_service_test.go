package service_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/liyang960414/erp-sub001/internal/model"
	"github.com/liyang960414/erp-sub001/internal/service"
)

func setupMasterData(t *testing.T) (service.MasterDataService, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.UnitGroup{},
		&model.Unit{},
		&model.MaterialGroup{},
		&model.Material{},
		&model.Supplier{},
		&model.BillOfMaterial{},
		&model.BomItem{},
	))
	return service.NewMasterDataService(db), db
}

// TestListMaterials 测试物料列表的过滤与分页
func TestListMaterials(t *testing.T) {
	svc, db := setupMasterData(t)

	require.NoError(t, db.Create(&model.Unit{ID: "u-1", Code: "EA", Name: "个"}).Error)
	require.NoError(t, db.Create([]*model.Material{
		{ID: "m-1", Code: "M001", Name: "不锈钢螺丝", UnitID: "u-1"},
		{ID: "m-2", Code: "M002", Name: "铜垫片"},
		{ID: "m-3", Code: "X100", Name: "螺丝刀"},
	}).Error)

	materials, total, err := svc.ListMaterials(&service.MasterDataFilter{Keyword: "螺丝"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, materials, 2)
	// 按编码升序
	assert.Equal(t, "M001", materials[0].Code)
	assert.Equal(t, "X100", materials[1].Code)
	// 单位引用被预加载
	require.NotNil(t, materials[0].Unit)
	assert.Equal(t, "EA", materials[0].Unit.Code)

	materials, total, err = svc.ListMaterials(&service.MasterDataFilter{Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, materials, 1)
	assert.Equal(t, "X100", materials[0].Code)
}

// TestListMaterialsEscapesLikeWildcards 关键字中的通配符按字面匹配
func TestListMaterialsEscapesLikeWildcards(t *testing.T) {
	svc, db := setupMasterData(t)

	require.NoError(t, db.Create([]*model.Material{
		{ID: "m-1", Code: "M001", Name: "50%酒精"},
		{ID: "m-2", Code: "M002", Name: "500ml酒精"},
	}).Error)

	materials, total, err := svc.ListMaterials(&service.MasterDataFilter{Keyword: "50%"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, materials, 1)
	assert.Equal(t, "M001", materials[0].Code)
}

// TestListSuppliers 测试供应商列表
func TestListSuppliers(t *testing.T) {
	svc, db := setupMasterData(t)

	require.NoError(t, db.Create([]*model.Supplier{
		{ID: "s-1", Code: "S001", Name: "东华五金"},
		{ID: "s-2", Code: "S002", Name: "华南电子"},
	}).Error)

	suppliers, total, err := svc.ListSuppliers(&service.MasterDataFilter{Keyword: "华南"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, suppliers, 1)
	assert.Equal(t, "S002", suppliers[0].Code)

	suppliers, total, err = svc.ListSuppliers(nil)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, suppliers, 2)
}

// TestGetBoms 测试按物料编码查询 BOM 及行项
func TestGetBoms(t *testing.T) {
	svc, db := setupMasterData(t)

	require.NoError(t, db.Create(&model.Material{ID: "m-1", Code: "P001", Name: "成品"}).Error)
	require.NoError(t, db.Create([]*model.BillOfMaterial{
		{ID: "b-2", MaterialID: "m-1", Version: "V2"},
		{ID: "b-1", MaterialID: "m-1", Version: "V1"},
	}).Error)
	require.NoError(t, db.Create(&model.BomItem{
		ID: "bi-1", BomID: "b-1", Seq: 1, MaterialID: "m-1",
	}).Error)

	boms, err := svc.GetBoms("P001")
	require.NoError(t, err)
	require.Len(t, boms, 2)
	// 按版本升序
	assert.Equal(t, "V1", boms[0].Version)
	assert.Len(t, boms[0].Items, 1)

	_, err = svc.GetBoms("missing")
	assert.ErrorIs(t, err, service.ErrMaterialNotFound)
}
