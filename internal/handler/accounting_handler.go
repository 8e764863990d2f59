package handler

import (
	"couponhub/internal/model"
	"couponhub/internal/service"
	"couponhub/pkg/response"

	"github.com/gin-gonic/gin"
)

func (h *Handler) dateRange(c *gin.Context) (service.DateRange, bool) {
	r, err := service.NormalizeRange(c.Query("from"), c.Query("to"))
	if err != nil {
		h.fail(c, err)
		return r, false
	}
	return r, true
}

// CreateEntry POST /api/merchant/accounting/entries
func (h *Handler) CreateEntry(c *gin.Context) {
	var req service.CreateEntryRequest
	if !bindJSON(c, &req) {
		return
	}

	entry, err := h.accounting.CreateEntry(c.Request.Context(), identity(c).MerchantID, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, entry)
}

// ListEntries GET /api/merchant/accounting/entries?from=&to=
func (h *Handler) ListEntries(c *gin.Context) {
	r, ok := h.dateRange(c)
	if !ok {
		return
	}

	entries, err := h.accounting.ListEntries(c.Request.Context(), identity(c).MerchantID, r)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, entries)
}

// DeleteEntry DELETE /api/merchant/accounting/entries/:id
func (h *Handler) DeleteEntry(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.accounting.DeleteEntry(c.Request.Context(), identity(c).MerchantID, id); err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": id})
}

// Summarize GET /api/merchant/accounting/summary?from=&to=&group_by=day|category|source
func (h *Handler) Summarize(c *gin.Context) {
	r, ok := h.dateRange(c)
	if !ok {
		return
	}
	groupBy := c.DefaultQuery("group_by", model.GroupByDay)

	buckets, err := h.accounting.Summarize(c.Request.Context(), identity(c).MerchantID, r, groupBy)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{
		"range":    r,
		"group_by": groupBy,
		"buckets":  buckets,
	})
}

// Dashboard GET /api/merchant/accounting/dashboard
func (h *Handler) Dashboard(c *gin.Context) {
	r, ok := h.dateRange(c)
	if !ok {
		return
	}

	d, err := h.accounting.Dashboard(c.Request.Context(), identity(c).MerchantID, r)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, d)
}
