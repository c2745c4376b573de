package importer

import (
	"context"
	"strconv"

	"github.com/google/uuid"
	"github.com/liyang960414/erp-sub001/internal/model"
	"github.com/liyang960414/erp-sub001/internal/repository"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// 计量单位导入的行模式
var unitSchema = &Schema{
	HeaderRows: 1,
	Columns: []Column{
		{Name: "code", Title: "单位编码", Required: true},
		{Name: "name", Title: "单位名称", Required: true},
		{Name: "group_code", Title: "单位组"},
		{Name: "precision", Title: "精度"},
	},
}

// UnitImporter 计量单位批量导入处理器
type UnitImporter struct {
	db     *gorm.DB
	logger *logrus.Logger
	opts   BatchOptions
	units  repository.UnitRepository
}

// NewUnitImporter 创建计量单位导入处理器
func NewUnitImporter(db *gorm.DB, logger *logrus.Logger, opts BatchOptions) *UnitImporter {
	return &UnitImporter{
		db:     db,
		logger: logger,
		opts:   opts,
		units:  repository.NewUnitRepository(),
	}
}

// Type 导入类型
func (im *UnitImporter) Type() string {
	return TypeUnit
}

// Import 执行计量单位导入
// 文件中出现的新单位组随单位一并创建
func (im *UnitImporter) Import(ctx context.Context, item *model.ImportTaskItem) (*Result, error) {
	res := NewResult()

	rows, err := ParseSheet(item.FileData, unitSchema)
	if err != nil {
		return nil, err
	}
	rows = DedupRows(rows, func(r Row) string { return r.Get("code") })
	res.SetTotal(len(rows))

	groups, err := im.units.FindGroupsByCodeIn(im.db, CollectKeys(rows, "group_code"))
	if err != nil {
		return nil, err
	}
	groupIndex := IndexBy(groups, func(g *model.UnitGroup) string { return g.Code })

	existing, err := im.units.FindByCodeIn(im.db, CollectKeys(rows, "code"))
	if err != nil {
		return nil, err
	}
	existingIndex := IndexBy(existing, func(u *model.Unit) string { return u.Code })

	// 缺失的单位组在批处理前一次性补建,批内只做只读查找
	if err := im.createMissingGroups(rows, groupIndex); err != nil {
		return nil, err
	}

	section := unitSchema.Sheet
	err = RunBatches(ctx, im.db, rows, im.opts, res, im.logger,
		func(r Row) (string, int) { return section, r.Num },
		func(tx *gorm.DB, batch []Row) error {
			var inserts []*model.Unit
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

				var groupID string
				if groupCode := row.Get("group_code"); groupCode != "" {
					group, ok := groupIndex[groupCode]
					if !ok {
						res.AddError(notFoundError(section, row.Num, "group_code", "unit group", groupCode))
						continue
					}
					groupID = group.ID
				}

				precision := 2
				if p := row.Get("precision"); p != "" {
					if n, err := strconv.Atoi(p); err == nil && n >= 0 {
						precision = n
					}
				}

				if prev, ok := existingIndex[code]; ok {
					updated := *prev
					updated.Name = name
					updated.GroupID = groupID
					updated.Precision = precision
					if err := tx.Save(&updated).Error; err != nil {
						return err
					}
				} else {
					inserts = append(inserts, &model.Unit{
						ID:        uuid.NewString(),
						Code:      code,
						Name:      name,
						GroupID:   groupID,
						Precision: precision,
					})
				}
				okRows++
			}

			if err := im.units.SaveAll(tx, inserts); err != nil {
				return err
			}
			res.AddSuccess(okRows)
			return nil
		})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// createMissingGroups 补建文件中引用但尚不存在的单位组
func (im *UnitImporter) createMissingGroups(rows []Row, groupIndex map[string]*model.UnitGroup) error {
	var missing []*model.UnitGroup
	for _, code := range CollectKeys(rows, "group_code") {
		if _, ok := groupIndex[code]; ok {
			continue
		}
		g := &model.UnitGroup{ID: uuid.NewString(), Code: code, Name: code}
		missing = append(missing, g)
		groupIndex[code] = g
	}
	if len(missing) == 0 {
		return nil
	}
	return im.units.SaveGroups(im.db, missing)
}
