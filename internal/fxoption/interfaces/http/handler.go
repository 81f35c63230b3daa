package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/fxoption/internal/fxoption/application"
	"github.com/wyfcoding/fxoption/pkg/logger"
	"github.com/wyfcoding/pkg/response"
)

// FXOptionHandler HTTP 处理器
// 负责处理外汇期权定价、期权链与计算器请求
type FXOptionHandler struct {
	app *application.FXOptionService
}

// NewFXOptionHandler 创建 HTTP 处理器实例
func NewFXOptionHandler(app *application.FXOptionService) *FXOptionHandler {
	return &FXOptionHandler{app: app}
}

// RegisterRoutes 注册路由
func (h *FXOptionHandler) RegisterRoutes(router gin.IRouter) {
	api := router.Group("/api/v1/fxoption")
	{
		api.GET("/defaults", h.GetDefaults)
		api.POST("/price", h.PriceOption)
		api.POST("/chain", h.GenerateChain)
		api.POST("/calculate", h.Calculate)
		api.POST("/batch", h.BatchPriceOptions)
	}
}

// GetDefaults 返回页面控件默认值
func (h *FXOptionHandler) GetDefaults(c *gin.Context) {
	response.Success(c, h.app.Defaults())
}

// PriceOption 单个期权定价
func (h *FXOptionHandler) PriceOption(c *gin.Context) {
	var cmd application.PriceOptionCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	quote, err := h.app.PriceOption(c.Request.Context(), cmd)
	if err != nil {
		h.fail(c, "Failed to price option", err)
		return
	}
	response.Success(c, quote)
}

// GenerateChain 生成期权链
func (h *FXOptionHandler) GenerateChain(c *gin.Context) {
	var cmd application.GenerateChainCommand
	if err := bindOptionalJSON(c, &cmd); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	chain, err := h.app.GenerateChain(c.Request.Context(), cmd)
	if err != nil {
		h.fail(c, "Failed to generate option chain", err)
		return
	}
	response.Success(c, chain)
}

// Calculate 期权计算器
func (h *FXOptionHandler) Calculate(c *gin.Context) {
	var cmd application.CalculateCommand
	if err := bindOptionalJSON(c, &cmd); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	quote, err := h.app.Calculate(c.Request.Context(), cmd)
	if err != nil {
		h.fail(c, "Failed to calculate option", err)
		return
	}
	response.Success(c, quote)
}

// BatchPriceOptions 批量定价
func (h *FXOptionHandler) BatchPriceOptions(c *gin.Context) {
	var cmd application.BatchPriceOptionsCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	result, err := h.app.BatchPriceOptions(c.Request.Context(), cmd)
	if err != nil {
		h.fail(c, "Failed to price batch", err)
		return
	}
	response.Success(c, result)
}

func (h *FXOptionHandler) fail(c *gin.Context, msg string, err error) {
	if application.IsValidationError(err) {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), application.ErrorKind(err))
		return
	}
	logger.Error(c.Request.Context(), msg, "error", err)
	response.ErrorWithStatus(c, http.StatusInternalServerError, "internal error", "")
}

// bindOptionalJSON 允许空请求体，此时全部使用默认值
func bindOptionalJSON(c *gin.Context, obj any) error {
	if c.Request.ContentLength == 0 {
		return nil
	}
	err := c.ShouldBindJSON(obj)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}
