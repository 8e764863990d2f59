package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"couponhub/internal/infrastructure/slip"
	"couponhub/internal/model"
	"couponhub/internal/service"
	"couponhub/internal/testutil"
	"couponhub/pkg/logger"
	"couponhub/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type envelope struct {
	Success bool            `json:"success"`
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	db *gorm.DB
	h  *Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db := testutil.SetupTestDB(t)
	rdb, _ := testutil.SetupTestRedis(t)
	cfg := testutil.TestConfig()
	log := logger.NewNop()

	ledger := service.NewLedgerService(db, rdb, cfg, log)
	referral := service.NewReferralService(db, cfg, log, ledger)
	subs := service.NewSubscriptionService(db, cfg, log, ledger, referral)
	notifications := service.NewNotificationService(db, cfg, log)

	h := NewHandler(Services{
		Ledger:        ledger,
		Subscriptions: subs,
		Withdrawals:   service.NewWithdrawalService(db, cfg, log, ledger, notifications),
		TopUps:        service.NewTopUpService(db, cfg, log, ledger, slip.ManualVerifier{}),
		Accounting:    service.NewAccountingService(db, log),
		Catalog:       service.NewCatalogService(db, log, subs),
		Notifications: notifications,
	}, log)
	return &testServer{db: db, h: h}
}

// as routes requests with a fixed caller identity.
func (s *testServer) as(id Identity) *gin.Engine {
	return SetupRouter(s.h, logger.NewNop(), func(c *gin.Context) {
		SetIdentity(c, id)
		c.Next()
	})
}

func do(t *testing.T, r http.Handler, method, path string, body interface{}) envelope {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestMerchantBalance(t *testing.T) {
	s := newTestServer(t)
	merchant := testutil.TestMerchant(t, s.db)
	testutil.SeedBalance(t, s.db, model.MerchantOwner(merchant.ID), 120000)

	r := s.as(Identity{UserID: merchant.OwnerUserID, Role: RoleMerchant, MerchantID: merchant.ID})
	env := do(t, r, http.MethodGet, "/api/merchant/balance", nil)

	assert.True(t, env.Success)
	var data struct {
		OwnerType string `json:"owner_type"`
		Balance   int64  `json:"balance"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, model.OwnerTypeMerchant, data.OwnerType)
	assert.Equal(t, int64(120000), data.Balance)
}

func TestSubscribeInsufficientBalance(t *testing.T) {
	s := newTestServer(t)
	merchant := testutil.TestMerchant(t, s.db)
	plan := testutil.TestPlan(t, s.db, model.PlanBasic)
	testutil.SeedBalance(t, s.db, model.MerchantOwner(merchant.ID), 1000)

	r := s.as(Identity{UserID: merchant.OwnerUserID, Role: RoleMerchant, MerchantID: merchant.ID})
	env := do(t, r, http.MethodPost, "/api/merchant/subscription/subscribe", gin.H{"plan_id": plan.ID})

	assert.False(t, env.Success)
	assert.Equal(t, response.CodeBalanceNotEnough, env.Code)
	var data struct {
		Required  int64 `json:"required"`
		Available int64 `json:"available"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, plan.Price, data.Required)
	assert.Equal(t, int64(1000), data.Available)

	env = do(t, r, http.MethodPost, "/api/merchant/subscription/subscribe", gin.H{"plan_id": plan.ID, "payment_method": "manual"})
	assert.Equal(t, response.CodeParamError, env.Code)
	assert.Equal(t, int64(0), countRows(t, s.db, &model.Subscription{}))
}

func countRows(t *testing.T, db *gorm.DB, value interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(value).Count(&n).Error)
	return n
}

func TestRoleChecks(t *testing.T) {
	s := newTestServer(t)

	user := s.as(Identity{UserID: 5, Role: RoleUser})
	assert.Equal(t, response.CodeForbidden, do(t, user, http.MethodGet, "/api/admin/withdrawals", nil).Code)
	assert.Equal(t, response.CodeForbidden, do(t, user, http.MethodGet, "/api/merchant/balance", nil).Code)
	assert.Equal(t, response.CodeForbidden,
		do(t, user, http.MethodPost, "/api/notifications/send", gin.H{"category": "system", "title": "hi"}).Code)

	// a merchant role without a merchant id is still rejected
	orphan := s.as(Identity{UserID: 6, Role: RoleMerchant})
	assert.Equal(t, response.CodeForbidden, do(t, orphan, http.MethodGet, "/api/merchant/balance", nil).Code)

	admin := s.as(Identity{UserID: 1, Role: RoleAdmin})
	env := do(t, admin, http.MethodGet, "/api/admin/withdrawals", nil)
	assert.True(t, env.Success)
}

func TestRPC(t *testing.T) {
	s := newTestServer(t)
	merchant := testutil.TestMerchant(t, s.db)
	testutil.SeedBalance(t, s.db, model.MerchantOwner(merchant.ID), 5000)

	r := s.as(Identity{UserID: merchant.OwnerUserID, Role: RoleMerchant, MerchantID: merchant.ID})

	env := do(t, r, http.MethodPost, "/api/rpc/get_merchant_balance", nil)
	require.True(t, env.Success)
	var data struct {
		Balance int64 `json:"balance"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, int64(5000), data.Balance)

	assert.Equal(t, response.CodeNotFound, do(t, r, http.MethodPost, "/api/rpc/drop_tables", nil).Code)

	// the merchant_id override is for admins only
	other := testutil.TestMerchant(t, s.db)
	env = do(t, r, http.MethodPost, "/api/rpc/get_merchant_balance", gin.H{"merchant_id": other.ID})
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, int64(5000), data.Balance)

	admin := s.as(Identity{UserID: 1, Role: RoleAdmin})
	env = do(t, admin, http.MethodPost, "/api/rpc/get_merchant_balance", gin.H{"merchant_id": other.ID})
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, int64(0), data.Balance)

	assert.Equal(t, response.CodeForbidden, do(t, admin, http.MethodPost, "/api/rpc/check_product_limit", nil).Code)
}

func TestAuthMiddleware(t *testing.T) {
	s := newTestServer(t)
	verifier := NewTokenVerifier("test-secret")
	r := SetupRouter(s.h, logger.NewNop(), AuthMiddleware(verifier))

	call := func(header string) envelope {
		req := httptest.NewRequest(http.MethodGet, "/api/referral/balance", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		var env envelope
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
		return env
	}

	token, err := verifier.Sign(Identity{UserID: 9, Role: RoleUser}, time.Hour)
	require.NoError(t, err)
	assert.True(t, call("Bearer "+token).Success)

	assert.Equal(t, response.CodeUnauthorized, call("").Code)
	assert.Equal(t, response.CodeUnauthorized, call("Bearer not-a-jwt").Code)

	expired, err := verifier.Sign(Identity{UserID: 9}, -time.Minute)
	require.NoError(t, err)
	env := call("Bearer " + expired)
	assert.Equal(t, response.CodeUnauthorized, env.Code)
	assert.Equal(t, "token expired", env.Message)

	forged, err := NewTokenVerifier("other-secret").Sign(Identity{UserID: 9, Role: RoleAdmin}, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, response.CodeUnauthorized, call("Bearer "+forged).Code)

	// public routes need no token
	req := httptest.NewRequest(http.MethodGet, "/api/plans", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRecoveryMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(RecoveryMiddleware(logger.NewNop()))
	r.GET("/boom", func(*gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.False(t, env.Success)
	assert.Equal(t, response.CodeServerError, env.Code)
}

func TestWithdrawalRoutes(t *testing.T) {
	s := newTestServer(t)
	merchant := testutil.TestMerchant(t, s.db, testutil.WithBank(testutil.CompleteBank()))
	testutil.SeedBalance(t, s.db, model.MerchantOwner(merchant.ID), 200000)

	r := s.as(Identity{UserID: merchant.OwnerUserID, Role: RoleMerchant, MerchantID: merchant.ID})

	assert.Equal(t, response.CodeBelowMinimum, do(t, r, http.MethodPost, "/api/merchant/withdraw", gin.H{"amount": 100}).Code)

	env := do(t, r, http.MethodPost, "/api/merchant/withdraw", gin.H{"amount": 100000})
	require.True(t, env.Success, env.Message)
	var w model.WithdrawalRequest
	require.NoError(t, json.Unmarshal(env.Data, &w))

	assert.Equal(t, response.CodeDuplicateRequest, do(t, r, http.MethodPost, "/api/merchant/withdraw", gin.H{"amount": 50000}).Code)

	admin := s.as(Identity{UserID: 1, Role: RoleAdmin})
	path := "/api/admin/merchant-withdrawals/" + strconv.FormatInt(w.ID, 10)
	env = do(t, admin, http.MethodPatch, path, gin.H{"status": model.WithdrawalStatusRejected, "admin_note": "bank closed"})
	require.True(t, env.Success, env.Message)

	assert.Equal(t, response.CodeInvalidTransition,
		do(t, admin, http.MethodPatch, path, gin.H{"status": model.WithdrawalStatusCompleted}).Code)

	bal := do(t, r, http.MethodGet, "/api/merchant/balance", nil)
	var data struct {
		Balance int64 `json:"balance"`
	}
	require.NoError(t, json.Unmarshal(bal.Data, &data))
	assert.Equal(t, int64(200000), data.Balance)
}
