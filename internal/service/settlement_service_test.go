package service

import (
	"context"
	"testing"
	"time"

	"wagerhub/internal/model"
	"wagerhub/internal/repository"

	"github.com/stretchr/testify/require"
)

func TestComputePayout(t *testing.T) {
	cases := []struct {
		bet        string
		feePercent int
		pot        string
		fee        string
		payout     string
	}{
		{"50.00", 10, "100.00", "10.00", "90.00"},
		{"20.00", 10, "40.00", "4.00", "36.00"},
		{"33.33", 10, "66.66", "6.67", "59.99"},
		{"0.01", 10, "0.02", "0.00", "0.02"},
		{"50.00", 0, "100.00", "0.00", "100.00"},
	}
	for _, c := range cases {
		b := ComputePayout(dec(c.bet), c.feePercent)
		requireAmount(t, c.pot, b.Pot)
		requireAmount(t, c.fee, b.PlatformFee)
		requireAmount(t, c.payout, b.WinnerPayout)
		// 守恒：派彩+抽成 == 奖池
		requireAmount(t, c.pot, b.WinnerPayout.Add(b.PlatformFee))
	}
}

// 正常路径：上报 -> 审核 -> 窗口过 -> 结算
func TestSettleHappyPath(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	match := env.setupLiveMatch(t, 1, 2)
	env.seedUser(t, 9, model.AdminLevelAdmin)

	require.NoError(t, env.match.ReportWinner(ctx, 1, match.ID, 1))
	require.NoError(t, env.admin.ApproveMatch(ctx, 9, match.ID, 1))

	fresh := env.getMatch(t, match.ID)
	require.Equal(t, model.MatchStatusCompleted, fresh.Status)
	require.NotNil(t, fresh.ApprovedAt)
	require.Nil(t, fresh.SettlementExecutedAt)

	// 窗口未过：不可结算
	require.ErrorIs(t, env.settlement.Settle(ctx, match.ID), ErrSettlementNotEligible)

	env.backdateApproval(t, match.ID, 10*time.Minute)
	require.NoError(t, env.settlement.Settle(ctx, match.ID))

	// 奖池100，抽成10，赢家派彩90
	requireAmount(t, "140.00", env.balance(t, 1, model.WalletPurposePersonal))
	requireAmount(t, "0.00", env.balance(t, 1, model.WalletPurposeEscrow))
	requireAmount(t, "50.00", env.balance(t, 2, model.WalletPurposePersonal))
	requireAmount(t, "0.00", env.balance(t, 2, model.WalletPurposeEscrow))
	requireAmount(t, "10.00", env.balance(t, model.PlatformOwnerID, model.WalletPurposePlatform))

	fresh = env.getMatch(t, match.ID)
	require.NotNil(t, fresh.SettlementExecutedAt)

	// 结算事件已随事务落入 outbox
	var msg model.OutboxMessage
	require.NoError(t, env.db.Where("topic = ? AND message_key = ?", "settlement_result", match.ID).First(&msg).Error)
	require.Equal(t, model.OutboxStatusPending, msg.Status)
	require.Contains(t, msg.Payload, `"winner_payout":"90.00"`)
}

// 幂等：第二次结算是无害的空转
func TestSettleIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	match := env.setupLiveMatch(t, 1, 2)
	env.seedUser(t, 9, model.AdminLevelAdmin)

	require.NoError(t, env.match.ReportWinner(ctx, 1, match.ID, 1))
	require.NoError(t, env.admin.ApproveMatch(ctx, 9, match.ID, 1))
	env.backdateApproval(t, match.ID, 10*time.Minute)

	require.NoError(t, env.settlement.Settle(ctx, match.ID))
	require.ErrorIs(t, env.settlement.Settle(ctx, match.ID), repository.ErrSettlementExecuted)

	// 钱只动一次
	requireAmount(t, "140.00", env.balance(t, 1, model.WalletPurposePersonal))
	requireAmount(t, "10.00", env.balance(t, model.PlatformOwnerID, model.WalletPurposePlatform))
}

func TestSettleDueMatchesSweep(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	match := env.setupLiveMatch(t, 1, 2)
	env.seedUser(t, 9, model.AdminLevelAdmin)

	require.NoError(t, env.match.ReportWinner(ctx, 1, match.ID, 2))
	require.NoError(t, env.admin.ApproveMatch(ctx, 9, match.ID, 2))

	// 窗口未过：扫描捞不到
	settled, err := env.settlement.SettleDueMatches(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, settled)

	env.backdateApproval(t, match.ID, 10*time.Minute)
	settled, err = env.settlement.SettleDueMatches(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, settled)
	requireAmount(t, "140.00", env.balance(t, 2, model.WalletPurposePersonal))

	// 再扫一轮：幂等标记挡住，什么都不发生
	settled, err = env.settlement.SettleDueMatches(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, settled)
}

// 争议冻结结算，裁决后立即结算且以裁决胜者为准
func TestDisputeFreezesSettlement(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	match := env.setupLiveMatch(t, 1, 2)
	env.seedUser(t, 9, model.AdminLevelAdmin)

	require.NoError(t, env.match.ReportWinner(ctx, 1, match.ID, 1))
	require.NoError(t, env.admin.ApproveMatch(ctx, 9, match.ID, 1))

	// 输家在窗口内发起争议
	require.NoError(t, env.match.RaiseDispute(ctx, 2, match.ID, "对手在第三局中途拔掉了我的网线", ""))
	fresh := env.getMatch(t, match.ID)
	require.Equal(t, model.MatchStatusDisputed, fresh.Status)
	require.Equal(t, model.DisputeStatusOpen, fresh.DisputeStatus)

	// 窗口过了也不能结算：争议冻结一切
	env.backdateApproval(t, match.ID, 10*time.Minute)
	require.ErrorIs(t, env.settlement.Settle(ctx, match.ID), ErrSettlementNotEligible)
	settled, err := env.settlement.SettleDueMatches(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, settled)

	// 裁决改判玩家2获胜，即刻结算
	require.NoError(t, env.admin.ResolveDispute(ctx, 9, match.ID, 2, "证据显示玩家1掉线系自身网络问题"))

	fresh = env.getMatch(t, match.ID)
	require.Equal(t, model.MatchStatusCompleted, fresh.Status)
	require.Equal(t, model.DisputeStatusResolved, fresh.DisputeStatus)
	require.NotNil(t, fresh.WinnerID)
	require.EqualValues(t, 2, *fresh.WinnerID)
	require.NotNil(t, fresh.SettlementExecutedAt)

	requireAmount(t, "50.00", env.balance(t, 1, model.WalletPurposePersonal))
	requireAmount(t, "140.00", env.balance(t, 2, model.WalletPurposePersonal))
	requireAmount(t, "10.00", env.balance(t, model.PlatformOwnerID, model.WalletPurposePlatform))

	// 裁决后扫描也不会再动这局
	settled, err = env.settlement.SettleDueMatches(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, settled)
}

func TestRaiseDisputeWindowRules(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	match := env.setupLiveMatch(t, 1, 2)
	env.seedUser(t, 9, model.AdminLevelAdmin)
	env.seedUser(t, 3, model.AdminLevelNone)

	// LIVE 阶段没有可争议的结果
	require.ErrorIs(t, env.match.RaiseDispute(ctx, 1, match.ID, "我认为对手使用了作弊软件", ""), ErrDisputeNotAllowed)

	require.NoError(t, env.match.ReportWinner(ctx, 1, match.ID, 1))

	// PENDING_APPROVAL 阶段随时可以争议，但只限参与者
	require.ErrorIs(t, env.match.RaiseDispute(ctx, 3, match.ID, "路人觉得结果不对不算数", ""), ErrNotParticipant)

	require.NoError(t, env.admin.ApproveMatch(ctx, 9, match.ID, 1))

	// 窗口过期后不可争议
	env.backdateApproval(t, match.ID, 10*time.Minute)
	require.ErrorIs(t, env.match.RaiseDispute(ctx, 2, match.ID, "现在才发现对手当时开了加速器", ""), ErrDisputeWindowClosed)
}

func TestRaiseDisputeAfterSettlement(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	match := env.setupLiveMatch(t, 1, 2)
	env.seedUser(t, 9, model.AdminLevelAdmin)

	require.NoError(t, env.match.ReportWinner(ctx, 1, match.ID, 1))
	require.NoError(t, env.admin.ApproveMatch(ctx, 9, match.ID, 1))
	env.backdateApproval(t, match.ID, 10*time.Minute)
	require.NoError(t, env.settlement.Settle(ctx, match.ID))

	// 钱已经动了，争议通道彻底关闭
	require.ErrorIs(t, env.match.RaiseDispute(ctx, 2, match.ID, "我对已经结算完的结果有异议", ""), ErrDisputeWindowClosed)
}

func TestResolveDisputeValidations(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	match := env.setupLiveMatch(t, 1, 2)
	env.seedUser(t, 9, model.AdminLevelAdmin)

	// 非 DISPUTED 状态不可裁决
	err := env.admin.ResolveDispute(ctx, 9, match.ID, 1, "并不存在的争议")
	require.ErrorIs(t, err, repository.ErrMatchStatusConflict)

	require.NoError(t, env.match.ReportWinner(ctx, 1, match.ID, 1))
	require.NoError(t, env.match.RaiseDispute(ctx, 2, match.ID, "对手上报的结果与实际比分不符", ""))

	// 裁决说明必填，胜者必须是对局双方之一
	require.ErrorIs(t, env.admin.ResolveDispute(ctx, 9, match.ID, 1, ""), ErrResolutionRequired)
	require.ErrorIs(t, env.admin.ResolveDispute(ctx, 9, match.ID, 42, "判给一个无关的人"), ErrWinnerNotPlayer)
}
