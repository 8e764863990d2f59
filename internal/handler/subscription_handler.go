package handler

import (
	"couponhub/internal/service"
	"couponhub/pkg/response"

	"github.com/gin-gonic/gin"
)

// ListPlans GET /api/plans
func (h *Handler) ListPlans(c *gin.Context) {
	plans, err := h.subscriptions.ListPlans(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, plans)
}

// GetSubscription GET /api/merchant/subscription
func (h *Handler) GetSubscription(c *gin.Context) {
	sub, err := h.subscriptions.GetSubscription(c.Request.Context(), identity(c).MerchantID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, sub)
}

// StartTrial POST /api/merchant/subscription/trial
func (h *Handler) StartTrial(c *gin.Context) {
	sub, err := h.subscriptions.StartTrial(c.Request.Context(), identity(c).MerchantID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, sub)
}

type SubscribeRequest struct {
	PlanID        string `json:"plan_id" binding:"required"`
	PaymentMethod string `json:"payment_method" binding:"omitempty,oneof=wallet"`
	RequestID     string `json:"request_id"`
}

// Subscribe POST /api/merchant/subscription/subscribe
func (h *Handler) Subscribe(c *gin.Context) {
	var req SubscribeRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.subscriptions.SubscribeToPlan(c.Request.Context(), service.SubscribeRequest{
		MerchantID:    identity(c).MerchantID,
		PlanID:        req.PlanID,
		PaymentMethod: req.PaymentMethod,
		RequestID:     req.RequestID,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, result)
}

// CancelSubscription POST /api/merchant/subscription/cancel
func (h *Handler) CancelSubscription(c *gin.Context) {
	sub, err := h.subscriptions.CancelSubscription(c.Request.Context(), identity(c).MerchantID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, sub)
}

// CancelSubscriptionNow POST /api/merchant/subscription/cancel-now
func (h *Handler) CancelSubscriptionNow(c *gin.Context) {
	sub, err := h.subscriptions.CancelSubscriptionImmediately(c.Request.Context(), identity(c).MerchantID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, sub)
}

type ReactivateRequest struct {
	PlanID    string `json:"plan_id" binding:"required"`
	RequestID string `json:"request_id"`
}

// ReactivateSubscription POST /api/merchant/subscription/reactivate
func (h *Handler) ReactivateSubscription(c *gin.Context) {
	var req ReactivateRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.subscriptions.ReactivateSubscription(c.Request.Context(), identity(c).MerchantID, req.PlanID, req.RequestID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, result)
}

// ListInvoices GET /api/merchant/invoices
func (h *Handler) ListInvoices(c *gin.Context) {
	page, pageSize := pagination(c)
	items, total, err := h.subscriptions.ListInvoices(c.Request.Context(), identity(c).MerchantID, page, pageSize)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.SuccessPage(c, total, page, pageSize, items)
}
