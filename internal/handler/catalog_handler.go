package handler

import (
	"strconv"

	"couponhub/internal/model"
	"couponhub/internal/service"
	"couponhub/pkg/response"

	"github.com/gin-gonic/gin"
)

type CreateCategoryRequest struct {
	Name model.LocalizedText `json:"name"`
}

func (h *Handler) CreateCategory(c *gin.Context) {
	var req CreateCategoryRequest
	if !bindJSON(c, &req) {
		return
	}

	category, err := h.catalog.CreateCategory(c.Request.Context(), identity(c).MerchantID, req.Name)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, category)
}

func (h *Handler) ListCategories(c *gin.Context) {
	categories, err := h.catalog.ListCategories(c.Request.Context(), identity(c).MerchantID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, categories)
}

type ReorderRequest struct {
	IDs []int64 `json:"ids" binding:"required,min=1"`
}

// ReorderCategories PUT /api/merchant/categories/order
func (h *Handler) ReorderCategories(c *gin.Context) {
	var req ReorderRequest
	if !bindJSON(c, &req) {
		return
	}

	categories, err := h.catalog.ReorderCategories(c.Request.Context(), identity(c).MerchantID, req.IDs)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, categories)
}

func (h *Handler) CreateProduct(c *gin.Context) {
	var req service.CreateProductRequest
	if !bindJSON(c, &req) {
		return
	}

	product, err := h.catalog.CreateProduct(c.Request.Context(), identity(c).MerchantID, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, product)
}

func (h *Handler) ListProducts(c *gin.Context) {
	products, err := h.catalog.ListProducts(c.Request.Context(), identity(c).MerchantID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, products)
}

func (h *Handler) CreateCoupon(c *gin.Context) {
	var req service.CreateCouponRequest
	if !bindJSON(c, &req) {
		return
	}

	coupon, err := h.catalog.CreateCoupon(c.Request.Context(), identity(c).MerchantID, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, coupon)
}

func (h *Handler) ListCoupons(c *gin.Context) {
	coupons, err := h.catalog.ListCoupons(c.Request.Context(), identity(c).MerchantID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, coupons)
}

// QuoteCoupon GET /api/merchant/coupons/:id/quote?quantity=
func (h *Handler) QuoteCoupon(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	quantity, err := strconv.Atoi(c.DefaultQuery("quantity", "1"))
	if err != nil || quantity <= 0 {
		response.ParamError(c, "quantity must be a positive integer")
		return
	}

	quote, err := h.catalog.QuotePackage(c.Request.Context(), identity(c).MerchantID, id, quantity)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, quote)
}
