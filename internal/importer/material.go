package importer

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/liyang960414/erp-sub001/internal/model"
	"github.com/liyang960414/erp-sub001/internal/repository"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// 物料导入的行模式
var materialSchema = &Schema{
	HeaderRows: 1,
	Columns: []Column{
		{Name: "code", Title: "物料编码", Required: true},
		{Name: "name", Title: "物料名称", Required: true},
		{Name: "spec", Title: "规格型号"},
		{Name: "unit_code", Title: "基本单位", Required: true},
		{Name: "group_code", Title: "物料分组"},
		{Name: "remark", Title: "备注"},
	},
}

// MaterialImporter 物料批量导入处理器(扁平实体)
type MaterialImporter struct {
	db        *gorm.DB
	logger    *logrus.Logger
	opts      BatchOptions
	materials repository.MaterialRepository
	units     repository.UnitRepository
	groups    repository.MaterialGroupRepository
}

// NewMaterialImporter 创建物料导入处理器
func NewMaterialImporter(db *gorm.DB, logger *logrus.Logger, opts BatchOptions) *MaterialImporter {
	return &MaterialImporter{
		db:        db,
		logger:    logger,
		opts:      opts,
		materials: repository.NewMaterialRepository(),
		units:     repository.NewUnitRepository(),
		groups:    repository.NewMaterialGroupRepository(),
	}
}

// Type 导入类型
func (im *MaterialImporter) Type() string {
	return TypeMaterial
}

// Import 执行物料导入
// 解析 -> 去重 -> 预加载引用 -> 分批事务提交 -> 聚合计数
func (im *MaterialImporter) Import(ctx context.Context, item *model.ImportTaskItem) (*Result, error) {
	res := NewResult()

	rows, err := ParseSheet(item.FileData, materialSchema)
	if err != nil {
		return nil, err
	}
	rows = DedupRows(rows, func(r Row) string { return r.Get("code") })
	res.SetTotal(len(rows))

	// 预加载:单位、分组、已存在物料,全部在批处理开始前物化为只读快照
	unitIndex, err := im.preloadUnits(rows)
	if err != nil {
		return nil, err
	}
	groupIndex, err := im.preloadGroups(rows)
	if err != nil {
		return nil, err
	}
	existing, err := im.preloadExisting(rows)
	if err != nil {
		return nil, err
	}

	section := materialSchema.Sheet
	var updatedCount int64
	err = RunBatches(ctx, im.db, rows, im.opts, res, im.logger,
		func(r Row) (string, int) { return section, r.Num },
		func(tx *gorm.DB, batch []Row) error {
			var inserts []*model.Material
			var updates []*model.Material
			var okRows int

			for _, row := range batch {
				code := row.Get("code")
				if code == "" {
					res.AddError(requiredError(section, row.Num, "code"))
					continue
				}
				name := row.Get("name")
				if name == "" {
					res.AddError(requiredError(section, row.Num, "name"))
					continue
				}

				unitCode := row.Get("unit_code")
				unit, ok := unitIndex[unitCode]
				if !ok {
					res.AddError(notFoundError(section, row.Num, "unit_code", "unit", unitCode))
					continue
				}

				var groupID string
				if groupCode := row.Get("group_code"); groupCode != "" {
					group, ok := groupIndex[groupCode]
					if !ok {
						res.AddError(notFoundError(section, row.Num, "group_code", "material group", groupCode))
						continue
					}
					groupID = group.ID
				}

				if prev, ok := existing[code]; ok {
					updated := *prev
					updated.Name = name
					updated.Spec = row.Get("spec")
					updated.UnitID = unit.ID
					updated.GroupID = groupID
					updated.Remark = row.Get("remark")
					updated.UpdatedAt = time.Now()
					updates = append(updates, &updated)
				} else {
					inserts = append(inserts, &model.Material{
						ID:      uuid.NewString(),
						Code:    code,
						Name:    name,
						Spec:    row.Get("spec"),
						UnitID:  unit.ID,
						GroupID: groupID,
						Remark:  row.Get("remark"),
					})
				}
				okRows++
			}

			if err := im.materials.SaveAll(tx, inserts); err != nil {
				return err
			}
			if err := im.materials.UpdateAll(tx, updates); err != nil {
				return err
			}
			atomic.AddInt64(&updatedCount, int64(len(updates)))
			res.AddSuccess(okRows)
			return nil
		})
	if err != nil {
		return nil, err
	}

	res.PutSummary("existing_updated", int(updatedCount))
	return res, nil
}

// preloadUnits 预加载行集合引用的全部单位
func (im *MaterialImporter) preloadUnits(rows []Row) (map[string]*model.Unit, error) {
	units, err := im.units.FindByCodeIn(im.db, CollectKeys(rows, "unit_code"))
	if err != nil {
		return nil, err
	}
	return IndexBy(units, func(u *model.Unit) string { return u.Code }), nil
}

// preloadGroups 预加载行集合引用的全部物料分组
func (im *MaterialImporter) preloadGroups(rows []Row) (map[string]*model.MaterialGroup, error) {
	groups, err := im.groups.FindByCodeIn(im.db, CollectKeys(rows, "group_code"))
	if err != nil {
		return nil, err
	}
	return IndexBy(groups, func(g *model.MaterialGroup) string { return g.Code }), nil
}

// preloadExisting 预加载已存在的物料,用于插入/更新分支判定
func (im *MaterialImporter) preloadExisting(rows []Row) (map[string]*model.Material, error) {
	materials, err := im.materials.FindByCodeIn(im.db, CollectKeys(rows, "code"))
	if err != nil {
		return nil, err
	}
	return IndexBy(materials, func(m *model.Material) string { return m.Code }), nil
}
