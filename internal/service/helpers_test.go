package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"wagerhub/internal/config"
	"wagerhub/internal/model"
	"wagerhub/internal/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// 测试环境：内存 SQLite + miniredis，不依赖任何外部服务

type testEnv struct {
	db         *gorm.DB
	rdb        *redis.Client
	cfg        *config.Config
	wallet     *WalletService
	match      *MatchService
	bet        *BetService
	settlement *SettlementService
	admin      *AdminService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// 内存库限制单连接，保证事务内外看到同一个数据库
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

	return &testEnv{
		db:         db,
		rdb:        rdb,
		cfg:        cfg,
		wallet:     NewWalletService(db, rdb),
		match:      NewMatchService(db, rdb, cfg),
		bet:        NewBetService(db, rdb, cfg),
		settlement: NewSettlementService(db, rdb, cfg),
		admin:      NewAdminService(db, rdb, cfg),
	}
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func requireAmount(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.True(t, got.Equal(dec(want)), "金额不符: want=%s got=%s", want, got)
}

func (e *testEnv) seedUser(t *testing.T, id int64, adminLevel int) {
	t.Helper()
	user := &model.User{
		ID:          id,
		DisplayName: fmt.Sprintf("user-%d", id),
		AdminLevel:  adminLevel,
	}
	require.NoError(t, e.db.Create(user).Error)
}

func (e *testEnv) suspendUser(t *testing.T, id int64) {
	t.Helper()
	require.NoError(t, e.db.Model(&model.User{}).Where("id = ?", id).Update("suspended", true).Error)
}

// fund 通过正式充值入口给钱包上资金
func (e *testEnv) fund(t *testing.T, userID int64, purpose, amount string) {
	t.Helper()
	require.NoError(t, e.wallet.Deposit(context.Background(), userID, purpose, DepositSourceCard, dec(amount)))
}

func (e *testEnv) balance(t *testing.T, ownerID int64, purpose string) decimal.Decimal {
	t.Helper()
	wallet, err := repository.NewWalletRepository(e.db).Get(context.Background(), nil, ownerID, purpose)
	require.NoError(t, err)
	return wallet.Balance
}

func (e *testEnv) getMatch(t *testing.T, matchID string) *model.Match {
	t.Helper()
	match, err := repository.NewMatchRepository(e.db).GetByID(context.Background(), nil, matchID)
	require.NoError(t, err)
	return match
}

// backdateApproval 把审核时间拨回过去，用于制造"争议窗口已过"的状态
func (e *testEnv) backdateApproval(t *testing.T, matchID string, d time.Duration) {
	t.Helper()
	require.NoError(t, e.db.Model(&model.Match{}).
		Where("id = ?", matchID).
		Update("approved_at", time.Now().Add(-d)).Error)
}

// setupLiveMatch 两个玩家各充100，建局50并加入，返回 LIVE 对局
func (e *testEnv) setupLiveMatch(t *testing.T, p1, p2 int64) *model.Match {
	t.Helper()
	ctx := context.Background()

	e.seedUser(t, p1, model.AdminLevelNone)
	e.seedUser(t, p2, model.AdminLevelNone)
	e.fund(t, p1, model.WalletPurposePersonal, "100.00")
	e.fund(t, p2, model.WalletPurposePersonal, "100.00")

	match, err := e.match.CreateMatch(ctx, p1, "chess", dec("50.00"))
	require.NoError(t, err)

	match, err = e.match.JoinMatch(ctx, p2, match.ID)
	require.NoError(t, err)
	require.Equal(t, model.MatchStatusLive, match.Status)

	return match
}
