package handler

import (
	"couponhub/internal/model"
	"couponhub/pkg/logger"

	"github.com/gin-gonic/gin"
)

// SetupRouter wires every route. auth authenticates /api requests; tests pass
// a middleware that sets a fixed identity.
func SetupRouter(h *Handler, log *logger.Logger, auth gin.HandlerFunc) *gin.Engine {
	r := gin.New()

	r.Use(RecoveryMiddleware(log))
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware())

	r.GET("/health", h.Health)

	api := r.Group("/api")
	api.GET("/plans", h.ListPlans)

	authed := api.Group("", auth)

	merchant := authed.Group("/merchant", RequireRole(RoleMerchant), RequireMerchant())
	{
		merchant.GET("/balance", h.GetMerchantBalance)
		merchant.GET("/transactions", h.ListMerchantTransactions)
		merchant.PUT("/bank-account", h.UpdateBankAccount)

		merchant.POST("/recharge", h.Recharge)
		merchant.POST("/verify-recharge", h.VerifyRecharge)
		merchant.GET("/recharges", h.ListRecharges)
		merchant.POST("/transaction/resume", h.ResumeRecharge)
		merchant.POST("/transaction/cancel", h.CancelRecharge)

		merchant.POST("/withdraw", h.MerchantWithdraw)
		merchant.GET("/withdrawals", h.ListMerchantWithdrawals)

		sub := merchant.Group("/subscription")
		{
			sub.GET("", h.GetSubscription)
			sub.POST("/trial", h.StartTrial)
			sub.POST("/subscribe", h.Subscribe)
			sub.POST("/cancel", h.CancelSubscription)
			sub.POST("/cancel-now", h.CancelSubscriptionNow)
			sub.POST("/reactivate", h.ReactivateSubscription)
		}
		merchant.GET("/invoices", h.ListInvoices)

		acc := merchant.Group("/accounting")
		{
			acc.POST("/entries", h.CreateEntry)
			acc.GET("/entries", h.ListEntries)
			acc.DELETE("/entries/:id", h.DeleteEntry)
			acc.GET("/summary", h.Summarize)
			acc.GET("/dashboard", h.Dashboard)
		}

		merchant.GET("/categories", h.ListCategories)
		merchant.POST("/categories", h.CreateCategory)
		merchant.PUT("/categories/order", h.ReorderCategories)
		merchant.GET("/products", h.ListProducts)
		merchant.POST("/products", h.CreateProduct)
		merchant.GET("/coupons", h.ListCoupons)
		merchant.POST("/coupons", h.CreateCoupon)
		merchant.GET("/coupons/:id/quote", h.QuoteCoupon)
	}

	referral := authed.Group("/referral")
	{
		referral.GET("/balance", h.GetReferralBalance)
		referral.POST("/withdraw", h.ReferralWithdraw)
		referral.GET("/withdrawals", h.ListReferralWithdrawals)
	}

	admin := authed.Group("/admin", RequireRole(RoleAdmin))
	{
		ref := adminWithdrawals{h: h, kind: model.WithdrawalKindReferral}
		admin.GET("/withdrawals", ref.List)
		admin.PATCH("/withdrawals/:id", ref.Update)
		admin.POST("/withdrawals/batch", ref.Batch)

		mer := adminWithdrawals{h: h, kind: model.WithdrawalKindMerchant}
		admin.GET("/merchant-withdrawals", mer.List)
		admin.PATCH("/merchant-withdrawals/:id", mer.Update)
		admin.POST("/merchant-withdrawals/batch", mer.Batch)
	}

	notifications := authed.Group("/notifications")
	{
		notifications.POST("/send", RequireRole(RoleAdmin), h.SendNotification)
		notifications.GET("/preferences", h.GetNotificationPreferences)
		notifications.PUT("/preferences", h.UpdateNotificationPreferences)
	}

	authed.POST("/rpc/:name", h.RPC)

	return r
}
