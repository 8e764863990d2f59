package handler

import (
	"errors"
	"strconv"

	"couponhub/internal/infrastructure/slip"
	"couponhub/internal/repository"
	"couponhub/internal/service"
	"couponhub/pkg/logger"
	"couponhub/pkg/response"

	"github.com/gin-gonic/gin"
)

// Handler holds every service the HTTP routes call into.
type Handler struct {
	ledger        *service.LedgerService
	subscriptions *service.SubscriptionService
	withdrawals   *service.WithdrawalService
	topUps        *service.TopUpService
	accounting    *service.AccountingService
	catalog       *service.CatalogService
	notifications *service.NotificationService
	logger        *logger.Logger
}

// Services groups the constructor arguments of NewHandler.
type Services struct {
	Ledger        *service.LedgerService
	Subscriptions *service.SubscriptionService
	Withdrawals   *service.WithdrawalService
	TopUps        *service.TopUpService
	Accounting    *service.AccountingService
	Catalog       *service.CatalogService
	Notifications *service.NotificationService
}

func NewHandler(s Services, log *logger.Logger) *Handler {
	return &Handler{
		ledger:        s.Ledger,
		subscriptions: s.Subscriptions,
		withdrawals:   s.Withdrawals,
		topUps:        s.TopUps,
		accounting:    s.Accounting,
		catalog:       s.Catalog,
		notifications: s.Notifications,
		logger:        log.With("component", "http"),
	}
}

// fail writes the envelope matching err. Unknown errors are logged and
// reported as a server error without their text.
func (h *Handler) fail(c *gin.Context, err error) {
	var insufficient *service.InsufficientBalanceError

	switch {
	case errors.As(err, &insufficient):
		response.ErrorWithData(c, response.CodeBalanceNotEnough, "", gin.H{
			"required":  insufficient.Required,
			"available": insufficient.Available,
		})
	case errors.Is(err, service.ErrInvalidParam), errors.Is(err, service.ErrInvalidAmount):
		response.ParamError(c, err.Error())
	case errors.Is(err, service.ErrBelowMinimum):
		response.BusinessError(c, response.CodeBelowMinimum, err.Error())
	case errors.Is(err, service.ErrKYCIncomplete):
		response.BusinessError(c, response.CodeKYCIncomplete, "")
	case errors.Is(err, service.ErrInvalidTransition), errors.Is(err, repository.ErrStatusInvalid),
		errors.Is(err, service.ErrPlanNotPurchasable), errors.Is(err, service.ErrTopUpExpired):
		response.BusinessError(c, response.CodeInvalidTransition, err.Error())
	case errors.Is(err, service.ErrStatusConflict):
		response.BusinessError(c, response.CodeStatusConflict, "")
	case errors.Is(err, service.ErrWithdrawalInProgress):
		response.BusinessError(c, response.CodeDuplicateRequest, err.Error())
	case errors.Is(err, service.ErrSubscriptionExists):
		response.BusinessError(c, response.CodeAlreadyExists, err.Error())
	case errors.Is(err, service.ErrLimitReached):
		response.BusinessError(c, response.CodeLimitReached, err.Error())
	case errors.Is(err, slip.ErrSlipRejected):
		response.BusinessError(c, response.CodeBusinessError, err.Error())
	case errors.Is(err, service.ErrSystemBusy):
		response.BusinessError(c, response.CodeSystemBusy, "")
	case isNotFound(err):
		response.NotFound(c, err.Error())
	default:
		h.logger.Errorw("request failed", "method", c.Request.Method, "path", c.FullPath(), "err", err)
		response.ServerError(c, "")
	}
}

func isNotFound(err error) bool {
	for _, target := range []error{
		repository.ErrAccountNotFound,
		repository.ErrSubscriptionNotFound,
		repository.ErrPlanNotFound,
		repository.ErrInvoiceNotFound,
		repository.ErrWithdrawalNotFound,
		repository.ErrTopUpNotFound,
		repository.ErrMerchantNotFound,
		repository.ErrUserNotFound,
		repository.ErrEntryNotFound,
		repository.ErrCategoryNotFound,
		repository.ErrCouponNotFound,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.ParamError(c, "invalid id")
		return 0, false
	}
	return id, true
}

// pagination reads page and page_size, defaulting to 1 and 20.
func pagination(c *gin.Context) (page, pageSize int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}

func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		response.ParamError(c, "invalid parameters: "+err.Error())
		return false
	}
	return true
}

func (h *Handler) Health(c *gin.Context) {
	response.Success(c, gin.H{"status": "ok"})
}
