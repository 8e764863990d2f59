package handler

import (
	"couponhub/internal/model"
	"couponhub/internal/service"
	"couponhub/pkg/response"

	"github.com/gin-gonic/gin"
)

func (h *Handler) balance(c *gin.Context, owner model.Owner) {
	balance, err := h.ledger.DeriveBalance(c.Request.Context(), owner)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, gin.H{
		"owner_type": owner.Type,
		"owner_id":   owner.ID,
		"balance":    balance,
	})
}

// GetMerchantBalance GET /api/merchant/balance
func (h *Handler) GetMerchantBalance(c *gin.Context) {
	h.balance(c, model.MerchantOwner(identity(c).MerchantID))
}

// GetReferralBalance GET /api/referral/balance
func (h *Handler) GetReferralBalance(c *gin.Context) {
	h.balance(c, model.UserOwner(identity(c).UserID))
}

// ListMerchantTransactions GET /api/merchant/transactions
func (h *Handler) ListMerchantTransactions(c *gin.Context) {
	page, pageSize := pagination(c)
	owner := model.MerchantOwner(identity(c).MerchantID)

	items, total, err := h.ledger.History(c.Request.Context(), owner, page, pageSize)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.SuccessPage(c, total, page, pageSize, items)
}

// UpdateBankAccount PUT /api/merchant/bank-account
func (h *Handler) UpdateBankAccount(c *gin.Context) {
	var req model.BankDetails
	if !bindJSON(c, &req) {
		return
	}

	merchant, err := h.withdrawals.UpdateBankAccount(c.Request.Context(), identity(c).MerchantID, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, merchant)
}

type RechargeRequest struct {
	RequestID string `json:"request_id" binding:"required"`
	Amount    int64  `json:"amount" binding:"required,gt=0"`
}

// Recharge POST /api/merchant/recharge
func (h *Handler) Recharge(c *gin.Context) {
	var req RechargeRequest
	if !bindJSON(c, &req) {
		return
	}

	order, err := h.topUps.CreateTopUp(c.Request.Context(), identity(c).MerchantID, req.Amount, req.RequestID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, order)
}

type VerifyRechargeRequest struct {
	OrderNo string `json:"order_no" binding:"required"`
	SlipRef string `json:"slip_ref" binding:"required"`
}

// VerifyRecharge POST /api/merchant/verify-recharge
func (h *Handler) VerifyRecharge(c *gin.Context) {
	var req VerifyRechargeRequest
	if !bindJSON(c, &req) {
		return
	}

	order, err := h.topUps.VerifyTopUp(c.Request.Context(), identity(c).MerchantID, req.OrderNo, req.SlipRef)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, order)
}

type OrderNoRequest struct {
	OrderNo string `json:"order_no" binding:"required"`
}

// ResumeRecharge POST /api/merchant/transaction/resume
func (h *Handler) ResumeRecharge(c *gin.Context) {
	var req OrderNoRequest
	if !bindJSON(c, &req) {
		return
	}

	order, err := h.topUps.ResumeTopUp(c.Request.Context(), identity(c).MerchantID, req.OrderNo)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, order)
}

// CancelRecharge POST /api/merchant/transaction/cancel
func (h *Handler) CancelRecharge(c *gin.Context) {
	var req OrderNoRequest
	if !bindJSON(c, &req) {
		return
	}

	order, err := h.topUps.CancelTopUp(c.Request.Context(), identity(c).MerchantID, req.OrderNo)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, order)
}

// ListRecharges GET /api/merchant/recharges
func (h *Handler) ListRecharges(c *gin.Context) {
	page, pageSize := pagination(c)
	items, total, err := h.topUps.ListTopUps(c.Request.Context(), identity(c).MerchantID, page, pageSize)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.SuccessPage(c, total, page, pageSize, items)
}

type WithdrawRequest struct {
	Amount int64 `json:"amount" binding:"required"`
}

// MerchantWithdraw POST /api/merchant/withdraw
func (h *Handler) MerchantWithdraw(c *gin.Context) {
	var req WithdrawRequest
	if !bindJSON(c, &req) {
		return
	}

	w, err := h.withdrawals.RequestMerchantWithdrawal(c.Request.Context(), identity(c).MerchantID, req.Amount)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, w)
}

// ListMerchantWithdrawals GET /api/merchant/withdrawals
func (h *Handler) ListMerchantWithdrawals(c *gin.Context) {
	h.listOwnWithdrawals(c, model.WithdrawalKindMerchant, model.MerchantOwner(identity(c).MerchantID))
}

type ReferralWithdrawRequest struct {
	Amount int64 `json:"amount" binding:"required"`
	model.BankDetails
}

// ReferralWithdraw POST /api/referral/withdraw
func (h *Handler) ReferralWithdraw(c *gin.Context) {
	var req ReferralWithdrawRequest
	if !bindJSON(c, &req) {
		return
	}

	w, err := h.withdrawals.RequestReferralWithdrawal(c.Request.Context(), identity(c).UserID, req.Amount, req.BankDetails)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, w)
}

// ListReferralWithdrawals GET /api/referral/withdrawals
func (h *Handler) ListReferralWithdrawals(c *gin.Context) {
	h.listOwnWithdrawals(c, model.WithdrawalKindReferral, model.UserOwner(identity(c).UserID))
}

func (h *Handler) listOwnWithdrawals(c *gin.Context, kind string, owner model.Owner) {
	page, pageSize := pagination(c)
	items, total, err := h.withdrawals.ListOwn(c.Request.Context(), kind, owner, c.Query("status"), page, pageSize)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.SuccessPage(c, total, page, pageSize, items)
}

// adminWithdrawals serves the admin routes of one withdrawal kind.
type adminWithdrawals struct {
	h    *Handler
	kind string
}

func (a adminWithdrawals) List(c *gin.Context) {
	page, pageSize := pagination(c)
	items, total, err := a.h.withdrawals.ListAll(c.Request.Context(), a.kind, c.Query("status"), page, pageSize)
	if err != nil {
		a.h.fail(c, err)
		return
	}
	response.SuccessPage(c, total, page, pageSize, items)
}

func (a adminWithdrawals) Update(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req service.UpdateWithdrawalRequest
	if !bindJSON(c, &req) {
		return
	}

	w, err := a.h.withdrawals.UpdateStatus(c.Request.Context(), a.kind, id, req)
	if err != nil {
		a.h.fail(c, err)
		return
	}
	response.Success(c, w)
}

type BatchRequest struct {
	IDs []int64 `json:"ids" binding:"required,min=1"`
}

func (a adminWithdrawals) Batch(c *gin.Context) {
	var req BatchRequest
	if !bindJSON(c, &req) {
		return
	}

	affected, err := a.h.withdrawals.BatchProcess(c.Request.Context(), a.kind, req.IDs)
	if err != nil {
		a.h.fail(c, err)
		return
	}
	response.Success(c, gin.H{"processed": affected})
}
