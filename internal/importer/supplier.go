package importer

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/liyang960414/erp-sub001/internal/model"
	"github.com/liyang960414/erp-sub001/internal/repository"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// 供应商导入的行模式
var supplierSchema = &Schema{
	HeaderRows: 1,
	Columns: []Column{
		{Name: "code", Title: "供应商编码", Required: true},
		{Name: "name", Title: "供应商名称", Required: true},
		{Name: "contact", Title: "联系人"},
		{Name: "phone", Title: "联系电话"},
		{Name: "address", Title: "地址"},
		{Name: "tax_no", Title: "纳税人识别号"},
	},
}

// SupplierImporter 供应商批量导入处理器
// 批次之间相互独立,默认以小并发度并行提交
type SupplierImporter struct {
	db        *gorm.DB
	logger    *logrus.Logger
	opts      BatchOptions
	suppliers repository.SupplierRepository
}

// NewSupplierImporter 创建供应商导入处理器
func NewSupplierImporter(db *gorm.DB, logger *logrus.Logger, opts BatchOptions) *SupplierImporter {
	return &SupplierImporter{
		db:        db,
		logger:    logger,
		opts:      opts,
		suppliers: repository.NewSupplierRepository(),
	}
}

// Type 导入类型
func (im *SupplierImporter) Type() string {
	return TypeSupplier
}

// Import 执行供应商导入
func (im *SupplierImporter) Import(ctx context.Context, item *model.ImportTaskItem) (*Result, error) {
	res := NewResult()

	rows, err := ParseSheet(item.FileData, supplierSchema)
	if err != nil {
		return nil, err
	}
	rows = DedupRows(rows, func(r Row) string { return r.Get("code") })
	res.SetTotal(len(rows))

	existing, err := im.suppliers.FindByCodeIn(im.db, CollectKeys(rows, "code"))
	if err != nil {
		return nil, err
	}
	existingIndex := IndexBy(existing, func(s *model.Supplier) string { return s.Code })

	section := supplierSchema.Sheet
	err = RunBatches(ctx, im.db, rows, im.opts, res, im.logger,
		func(r Row) (string, int) { return section, r.Num },
		func(tx *gorm.DB, batch []Row) error {
			var inserts []*model.Supplier
			var updates []*model.Supplier
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

				if prev, ok := existingIndex[code]; ok {
					updated := *prev
					updated.Name = name
					updated.Contact = row.Get("contact")
					updated.Phone = row.Get("phone")
					updated.Address = row.Get("address")
					updated.TaxNo = row.Get("tax_no")
					updated.UpdatedAt = time.Now()
					updates = append(updates, &updated)
				} else {
					inserts = append(inserts, &model.Supplier{
						ID:      uuid.NewString(),
						Code:    code,
						Name:    name,
						Contact: row.Get("contact"),
						Phone:   row.Get("phone"),
						Address: row.Get("address"),
						TaxNo:   row.Get("tax_no"),
					})
				}
				okRows++
			}

			if err := im.suppliers.SaveAll(tx, inserts); err != nil {
				return err
			}
			if err := im.suppliers.UpdateAll(tx, updates); err != nil {
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
