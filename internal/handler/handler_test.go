package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"wagerhub/internal/config"
	"wagerhub/internal/model"
	"wagerhub/pkg/response"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&model.User{},
		&model.Wallet{},
		&model.WalletTransaction{},
		&model.Match{},
		&model.SpectatorBet{},
		&model.OutboxMessage{},
	))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	cfg := &config.Config{
		Kafka: config.KafkaConfig{
			Topic: config.KafkaTopicConfig{
				SettlementResult: "settlement_result",
				MatchClosed:      "match_closed",
			},
		},
		Business: config.BusinessConfig{
			PlatformFeePercent:    10,
			DisputeWindowMinutes:  5,
			SpectatorOdds:         "1.90",
			SettleIntervalSeconds: 30,
			SettleBatchSize:       100,
			MaxRetryCount:         3,
		},
	}

	return SetupRouter(db, rdb, cfg), db
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, userID string, body interface{}) *response.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return &resp
}

func TestHealth(t *testing.T) {
	r, _ := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestAuthRequired(t *testing.T) {
	r, _ := newTestRouter(t)

	resp := doJSON(t, r, http.MethodGet, "/api/v1/wallet/balance", "", nil)
	require.Equal(t, response.CodeUnauthorized, resp.Code)

	resp = doJSON(t, r, http.MethodGet, "/api/v1/wallet/balance", "not-a-number", nil)
	require.Equal(t, response.CodeUnauthorized, resp.Code)
}

func TestDepositAndBalance(t *testing.T) {
	r, db := newTestRouter(t)
	require.NoError(t, db.Create(&model.User{ID: 1, DisplayName: "alice"}).Error)

	resp := doJSON(t, r, http.MethodPost, "/api/v1/wallet/deposit", "1", gin.H{
		"purpose": model.WalletPurposePersonal,
		"source":  "card",
		"amount":  "100.00",
	})
	require.Equal(t, response.CodeSuccess, resp.Code)

	resp = doJSON(t, r, http.MethodGet, "/api/v1/wallet/balance", "1", nil)
	require.Equal(t, response.CodeSuccess, resp.Code)
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, "100.00", data[model.WalletPurposePersonal])
}

func TestDepositBadRequests(t *testing.T) {
	r, db := newTestRouter(t)
	require.NoError(t, db.Create(&model.User{ID: 1, DisplayName: "alice"}).Error)

	// 非法来源被 binding 拦下
	resp := doJSON(t, r, http.MethodPost, "/api/v1/wallet/deposit", "1", gin.H{
		"purpose": model.WalletPurposePersonal,
		"source":  "paypal",
		"amount":  "10.00",
	})
	require.Equal(t, response.CodeParamError, resp.Code)

	// 金额不可解析
	resp = doJSON(t, r, http.MethodPost, "/api/v1/wallet/deposit", "1", gin.H{
		"purpose": model.WalletPurposePersonal,
		"source":  "card",
		"amount":  "ten dollars",
	})
	require.Equal(t, response.CodeParamError, resp.Code)

	// 不存在的用户映射到业务码
	resp = doJSON(t, r, http.MethodPost, "/api/v1/wallet/deposit", "42", gin.H{
		"purpose": model.WalletPurposePersonal,
		"source":  "card",
		"amount":  "10.00",
	})
	require.Equal(t, response.CodeUserNotFound, resp.Code)
}

func TestMatchLifecycleOverHTTP(t *testing.T) {
	r, db := newTestRouter(t)
	require.NoError(t, db.Create(&model.User{ID: 1, DisplayName: "alice"}).Error)
	require.NoError(t, db.Create(&model.User{ID: 2, DisplayName: "bob"}).Error)

	for _, id := range []string{"1", "2"} {
		resp := doJSON(t, r, http.MethodPost, "/api/v1/wallet/deposit", id, gin.H{
			"purpose": model.WalletPurposePersonal,
			"source":  "card",
			"amount":  "100.00",
		})
		require.Equal(t, response.CodeSuccess, resp.Code)
	}

	resp := doJSON(t, r, http.MethodPost, "/api/v1/match/create", "1", gin.H{
		"game":       "chess",
		"bet_amount": "50.00",
	})
	require.Equal(t, response.CodeSuccess, resp.Code)
	created, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	matchID, _ := created["id"].(string)
	require.NotEmpty(t, matchID)

	// 余额不够的人直接被挡
	resp = doJSON(t, r, http.MethodPost, "/api/v1/match/join", "1", gin.H{"match_id": matchID})
	require.Equal(t, response.CodeNotAuthorized, resp.Code) // 不能加入自己的对局

	resp = doJSON(t, r, http.MethodPost, "/api/v1/match/join", "2", gin.H{"match_id": matchID})
	require.Equal(t, response.CodeSuccess, resp.Code)
	joined, ok := resp.Data.(map[string]interface{})
	require.True(t, ok)
	require.Equal(t, model.MatchStatusLive, joined["status"])

	resp = doJSON(t, r, http.MethodPost, "/api/v1/match/report", "1", gin.H{
		"match_id":  matchID,
		"winner_id": 1,
	})
	require.Equal(t, response.CodeSuccess, resp.Code)

	// 争议理由太短被 binding 拦下
	resp = doJSON(t, r, http.MethodPost, "/api/v1/match/dispute", "2", gin.H{
		"match_id": matchID,
		"reason":   "不服",
	})
	require.Equal(t, response.CodeParamError, resp.Code)
}

func TestAdminRoutesGuarded(t *testing.T) {
	r, db := newTestRouter(t)
	require.NoError(t, db.Create(&model.User{ID: 1, DisplayName: "alice"}).Error)
	require.NoError(t, db.Create(&model.User{ID: 9, DisplayName: "op", AdminLevel: model.AdminLevelAdmin}).Error)

	body := gin.H{"match_id": "00000000-0000-0000-0000-000000000000", "winner_id": 1}

	// 普通用户被管理员中间件拦截
	resp := doJSON(t, r, http.MethodPost, "/api/v1/admin/match/approve", "1", body)
	require.Equal(t, response.CodeForbidden, resp.Code)

	// 管理员放行后进入业务校验：对局不存在
	resp = doJSON(t, r, http.MethodPost, "/api/v1/admin/match/approve", "9", body)
	require.Equal(t, response.CodeMatchNotFound, resp.Code)
}
