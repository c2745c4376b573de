package importer

import (
	"context"

	"github.com/google/uuid"
	"github.com/liyang960414/erp-sub001/internal/model"
	"github.com/liyang960414/erp-sub001/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// BOM 导入的行模式:表头行带父项物料编码,明细行带行序号
var bomSchema = &Schema{
	HeaderRows: 2,
	Columns: []Column{
		{Name: "parent_code", Title: "父项物料编码", Required: true},
		{Name: "version", Title: "BOM版本", Required: true},
		{Name: "name", Title: "BOM名称"},
		{Name: "seq", Title: "行号", Required: true},
		{Name: "material_code", Title: "子项物料编码", Required: true},
		{Name: "numerator", Title: "用量分子"},
		{Name: "denominator", Title: "用量分母"},
		{Name: "scrap_rate", Title: "损耗率"},
		{Name: "remark", Title: "备注"},
	},
	HeadMarker:   "parent_code",
	DetailMarker: "seq",
}

// BomImporter BOM 批量导入处理器(表头/明细层级实体)
type BomImporter struct {
	db        *gorm.DB
	logger    *logrus.Logger
	opts      BatchOptions
	boms      repository.BomRepository
	materials repository.MaterialRepository
}

// NewBomImporter 创建 BOM 导入处理器
func NewBomImporter(db *gorm.DB, logger *logrus.Logger, opts BatchOptions) *BomImporter {
	return &BomImporter{
		db:        db,
		logger:    logger,
		opts:      opts,
		boms:      repository.NewBomRepository(),
		materials: repository.NewMaterialRepository(),
	}
}

// Type 导入类型
func (im *BomImporter) Type() string {
	return TypeBom
}

// Import 执行 BOM 导入
// 分组按"最后表头优先",自然键为 父项编码:版本,先见者保留;
// 已存在的 BOM 整单重写明细,不做合并
func (im *BomImporter) Import(ctx context.Context, item *model.ImportTaskItem) (*Result, error) {
	res := NewResult()

	rows, err := ParseSheet(item.FileData, bomSchema)
	if err != nil {
		return nil, err
	}
	groups := GroupRows(rows, bomSchema, im.logger)
	groups = DedupGroups(groups, func(g Group) string {
		return repository.BomKey{
			MaterialCode: g.Head.Get("parent_code"),
			Version:      g.Head.Get("version"),
		}.String()
	})
	res.SetTotal(len(groups))

	// 预加载:表头和明细引用的全部物料编码合并取一次
	keys := CollectKeys(headRows(groups), "parent_code")
	keys = AppendKeys(keys, detailRows(groups), "material_code")
	materials, err := im.materials.FindByCodeIn(im.db, keys)
	if err != nil {
		return nil, err
	}
	materialIndex := IndexBy(materials, func(m *model.Material) string { return m.Code })

	existingIndex, err := im.preloadExisting(groups, materialIndex)
	if err != nil {
		return nil, err
	}

	section := bomSchema.Sheet
	err = RunBatches(ctx, im.db, groups, im.opts, res, im.logger,
		func(g Group) (string, int) { return section, g.Head.Num },
		func(tx *gorm.DB, batch []Group) error {
			var heads []*model.BillOfMaterial
			var items []*model.BomItem
			var rewriteIDs []string
			var okGroups int

			for _, g := range batch {
				parentCode := g.Head.Get("parent_code")
				version := g.Head.Get("version")
				if version == "" {
					res.AddError(requiredError(section, g.Head.Num, "version"))
					continue
				}

				parent, ok := materialIndex[parentCode]
				if !ok {
					// 父项引用缺失:整组跳过,明细一概不处理
					res.AddError(notFoundError(section, g.Head.Num, "parent_code", "material", parentCode))
					continue
				}

				key := repository.BomKey{MaterialCode: parentCode, Version: version}.String()
				bom, exists := existingIndex[key]
				if exists {
					rewriteIDs = append(rewriteIDs, bom.ID)
					bom.Name = g.Head.Get("name")
					bom.Remark = g.Head.Get("remark")
				} else {
					bom = &model.BillOfMaterial{
						ID:         uuid.NewString(),
						MaterialID: parent.ID,
						Version:    version,
						Name:       g.Head.Get("name"),
						Remark:     g.Head.Get("remark"),
					}
				}
				heads = append(heads, bom)

				for idx, d := range g.Details {
					materialCode := d.Get("material_code")
					child, ok := materialIndex[materialCode]
					if !ok {
						// 明细引用缺失:只跳过本行,同组其余行照常导入
						res.AddError(notFoundError(section, d.Num, "material_code", "material", materialCode))
						continue
					}
					items = append(items, &model.BomItem{
						ID:          uuid.NewString(),
						BomID:       bom.ID,
						Seq:         idx + 1,
						MaterialID:  child.ID,
						Numerator:   ParseDecimalDefault(d.Get("numerator"), decimal.NewFromInt(1)),
						Denominator: ParseDecimalDefault(d.Get("denominator"), decimal.NewFromInt(1)),
						ScrapRate:   ParseNullDecimal(d.Get("scrap_rate")),
						Remark:      d.Get("remark"),
					})
				}
				okGroups++
			}

			if err := im.boms.DeleteItemsByBomIDs(tx, rewriteIDs); err != nil {
				return err
			}
			if err := im.boms.SaveAll(tx, heads); err != nil {
				return err
			}
			if err := im.boms.SaveItems(tx, items); err != nil {
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

// preloadExisting 预加载已存在的 BOM,键为 父项编码:版本
func (im *BomImporter) preloadExisting(groups []Group, materialIndex map[string]*model.Material) (map[string]*model.BillOfMaterial, error) {
	var materialIDs []string
	idToCode := make(map[string]string)
	for _, g := range groups {
		if m, ok := materialIndex[g.Head.Get("parent_code")]; ok {
			if _, seen := idToCode[m.ID]; !seen {
				materialIDs = append(materialIDs, m.ID)
				idToCode[m.ID] = m.Code
			}
		}
	}
	boms, err := im.boms.FindByMaterialIDIn(im.db, materialIDs)
	if err != nil {
		return nil, err
	}
	return IndexBy(boms, func(b *model.BillOfMaterial) string {
		return repository.BomKey{MaterialCode: idToCode[b.MaterialID], Version: b.Version}.String()
	}), nil
}

// headRows 提取分组的表头行
func headRows(groups []Group) []Row {
	rows := make([]Row, 0, len(groups))
	for _, g := range groups {
		rows = append(rows, g.Head)
	}
	return rows
}

// detailRows 提取分组的全部明细行
func detailRows(groups []Group) []Row {
	var rows []Row
	for _, g := range groups {
		rows = append(rows, g.Details...)
	}
	return rows
}
