package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/liyang960414/erp-sub001/internal/service"
)

// MasterDataController 主数据查询控制器
type MasterDataController struct {
	masterService service.MasterDataService
}

// NewMasterDataController 创建主数据查询控制器
func NewMasterDataController(masterService service.MasterDataService) *MasterDataController {
	return &MasterDataController{
		masterService: masterService,
	}
}

func (c *MasterDataController) filterFromQuery(ctx *gin.Context) *service.MasterDataFilter {
	return &service.MasterDataFilter{
		Keyword:  ctx.Query("keyword"),
		Page:     parseIntQuery(ctx, "page", 1),
		PageSize: parseIntQuery(ctx, "page_size", 20),
	}
}

// ListMaterials 分页查询物料
func (c *MasterDataController) ListMaterials(ctx *gin.Context) {
	filter := c.filterFromQuery(ctx)
	materials, total, err := c.masterService.ListMaterials(filter)
	if err != nil {
		Error(ctx, http.StatusInternalServerError, "failed to list materials", err.Error())
		return
	}

	totalPage := int((total + int64(filter.PageSize) - 1) / int64(filter.PageSize))
	Paginated(ctx, materials, PaginationInfo{
		Page:      filter.Page,
		PageSize:  filter.PageSize,
		Total:     total,
		TotalPage: totalPage,
	})
}

// ListSuppliers 分页查询供应商
func (c *MasterDataController) ListSuppliers(ctx *gin.Context) {
	filter := c.filterFromQuery(ctx)
	suppliers, total, err := c.masterService.ListSuppliers(filter)
	if err != nil {
		Error(ctx, http.StatusInternalServerError, "failed to list suppliers", err.Error())
		return
	}

	totalPage := int((total + int64(filter.PageSize) - 1) / int64(filter.PageSize))
	Paginated(ctx, suppliers, PaginationInfo{
		Page:      filter.Page,
		PageSize:  filter.PageSize,
		Total:     total,
		TotalPage: totalPage,
	})
}

// GetBoms 查询物料的 BOM 版本列表
func (c *MasterDataController) GetBoms(ctx *gin.Context) {
	boms, err := c.masterService.GetBoms(ctx.Param("code"))
	if err != nil {
		if errors.Is(err, service.ErrMaterialNotFound) {
			Error(ctx, http.StatusNotFound, "material not found", err.Error())
			return
		}
		Error(ctx, http.StatusInternalServerError, "failed to load boms", err.Error())
		return
	}
	Success(ctx, boms)
}
