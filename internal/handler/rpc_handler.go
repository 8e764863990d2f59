package handler

import (
	"context"

	"couponhub/internal/model"
	"couponhub/pkg/response"

	"github.com/gin-gonic/gin"
)

// rpcParams is the body of POST /api/rpc/:name. merchant_id is honoured for
// admins only; everyone else is scoped to the merchant in their token.
type rpcParams struct {
	MerchantID int64  `json:"merchant_id"`
	CouponType string `json:"coupon_type"`
}

type rpcFunc func(ctx context.Context, merchantID int64, p rpcParams) (interface{}, error)

func (h *Handler) rpcTable() map[string]rpcFunc {
	return map[string]rpcFunc{
		"get_merchant_balance": func(ctx context.Context, merchantID int64, _ rpcParams) (interface{}, error) {
			balance, err := h.ledger.DeriveBalance(ctx, model.MerchantOwner(merchantID))
			if err != nil {
				return nil, err
			}
			return gin.H{"merchant_id": merchantID, "balance": balance}, nil
		},
		"check_subscription_status": func(ctx context.Context, merchantID int64, _ rpcParams) (interface{}, error) {
			return h.subscriptions.CheckSubscriptionStatus(ctx, merchantID)
		},
		"check_balance_unlock": func(ctx context.Context, merchantID int64, _ rpcParams) (interface{}, error) {
			return h.subscriptions.CheckBalanceUnlock(ctx, merchantID)
		},
		"check_product_limit": func(ctx context.Context, merchantID int64, _ rpcParams) (interface{}, error) {
			return h.subscriptions.CheckProductLimit(ctx, merchantID)
		},
		"check_coupon_type_limit": func(ctx context.Context, merchantID int64, p rpcParams) (interface{}, error) {
			return h.subscriptions.CheckCouponTypeLimit(ctx, merchantID, p.CouponType)
		},
	}
}

// RPC POST /api/rpc/:name
func (h *Handler) RPC(c *gin.Context) {
	fn, ok := h.rpcTable()[c.Param("name")]
	if !ok {
		response.NotFound(c, "unknown rpc "+c.Param("name"))
		return
	}

	var params rpcParams
	if c.Request.ContentLength != 0 && !bindJSON(c, &params) {
		return
	}

	id := identity(c)
	merchantID := id.MerchantID
	if id.IsAdmin() && params.MerchantID > 0 {
		merchantID = params.MerchantID
	}
	if merchantID <= 0 {
		response.Forbidden(c, "merchant account required")
		return
	}

	result, err := fn(c.Request.Context(), merchantID, params)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Success(c, result)
}
