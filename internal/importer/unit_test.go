package importer_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liyang960414/erp-sub001/internal/importer"
	"github.com/liyang960414/erp-sub001/internal/model"
)

func unitItem(data []byte) *model.ImportTaskItem {
	return &model.ImportTaskItem{
		ID:       "item-unit-1",
		TaskID:   "task-unit-1",
		Seq:      1,
		Status:   model.ItemStatusRunning,
		FileName: "units.xlsx",
		FileData: data,
	}
}

// TestUnitImport 测试计量单位端到端导入
func TestUnitImport(t *testing.T) {
	db := setupTestDB(t)
	im := importer.NewUnitImporter(db, quietLogger(), importer.BatchOptions{Size: 2})

	data := buildWorkbook(t, [][]interface{}{
		{"单位编码", "单位名称", "单位组", "精度"},
		{"EA", "个", "数量组", 0},
		{"KG", "千克", "重量组", 3},
		{"", "无编码", "", ""},
		{"M", "米", "", ""},
	})

	res, err := im.Import(context.Background(), unitItem(data))
	require.NoError(t, err)
	assert.Equal(t, 4, res.TotalCount())
	assert.Equal(t, 3, res.SuccessCount())
	assert.Equal(t, 1, res.FailureCount())

	errs := res.Errors()
	require.Len(t, errs, 1)
	assert.Equal(t, "code", errs[0].Field)
	assert.Equal(t, 4, errs[0].RowNumber)

	var units []model.Unit
	require.NoError(t, db.Order("code ASC").Find(&units).Error)
	require.Len(t, units, 3)
	assert.Equal(t, "EA", units[0].Code)
	assert.Equal(t, 0, units[0].Precision)
	// 未填精度回退默认值
	assert.Equal(t, 2, units[2].Precision)

	// 文件中出现的新单位组被补建
	var groups []model.UnitGroup
	require.NoError(t, db.Order("code ASC").Find(&groups).Error)
	require.Len(t, groups, 2)
	assert.Equal(t, "数量组", groups[0].Code)
}

// TestUnitImportUpdatesExisting 已存在单位按编码覆盖更新
func TestUnitImportUpdatesExisting(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.Create(&model.Unit{
		ID: "u-ea", Code: "EA", Name: "旧名称", Precision: 2,
	}).Error)

	im := importer.NewUnitImporter(db, quietLogger(), importer.BatchOptions{})
	data := buildWorkbook(t, [][]interface{}{
		{"单位编码", "单位名称", "单位组", "精度"},
		{"EA", "个", "", 1},
	})

	res, err := im.Import(context.Background(), unitItem(data))
	require.NoError(t, err)
	assert.Equal(t, 1, res.SuccessCount())

	var unit model.Unit
	require.NoError(t, db.Where("code = ?", "EA").First(&unit).Error)
	assert.Equal(t, "u-ea", unit.ID)
	assert.Equal(t, "个", unit.Name)
	assert.Equal(t, 1, unit.Precision)

	var count int64
	db.Model(&model.Unit{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

// TestUnitImportDedup 文件内重复编码先见者保留
func TestUnitImportDedup(t *testing.T) {
	db := setupTestDB(t)
	im := importer.NewUnitImporter(db, quietLogger(), importer.BatchOptions{})

	data := buildWorkbook(t, [][]interface{}{
		{"单位编码", "单位名称", "单位组", "精度"},
		{"EA", "个", "", ""},
		{"EA", "只", "", ""},
	})

	res, err := im.Import(context.Background(), unitItem(data))
	require.NoError(t, err)
	assert.Equal(t, 1, res.TotalCount())

	var unit model.Unit
	require.NoError(t, db.Where("code = ?", "EA").First(&unit).Error)
	assert.Equal(t, "个", unit.Name)
}

// TestUnitImportBadFile 非法文件任务级失败
func TestUnitImportBadFile(t *testing.T) {
	db := setupTestDB(t)
	im := importer.NewUnitImporter(db, quietLogger(), importer.BatchOptions{})

	_, err := im.Import(context.Background(), unitItem([]byte("garbage")))
	assert.Error(t, err)
}
