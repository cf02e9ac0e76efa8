package service

import (
	"context"
	"testing"

	"wagerhub/internal/model"
	"wagerhub/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestValidAmount(t *testing.T) {
	cases := []struct {
		amount string
		want   bool
	}{
		{"0.01", true},
		{"100", true},
		{"99999.99", true},
		{"0", false},
		{"-1", false},
		{"-0.01", false},
		{"1.234", false}, // 超过两位小数
		{"0.001", false},
	}
	for _, c := range cases {
		require.Equal(t, c.want, ValidAmount(dec(c.amount)), "amount=%s", c.amount)
	}
}

func TestLedgerCreditAndDebit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ledger := NewLedger(env.db)
	walletRepo := repository.NewWalletRepository(env.db)

	wallet, err := walletRepo.GetOrCreate(ctx, 1, model.WalletPurposePersonal)
	require.NoError(t, err)

	require.NoError(t, ledger.Credit(ctx, env.db, wallet, dec("100.00"), model.TransactionKindDeposit, "", "入账测试"))
	requireAmount(t, "100.00", wallet.Balance)

	require.NoError(t, ledger.Debit(ctx, env.db, wallet, dec("40.50"), model.TransactionKindWithdrawal, "", "出账测试"))
	requireAmount(t, "59.50", wallet.Balance)

	// 余额不足：整笔拒绝，余额不变
	err = ledger.Debit(ctx, env.db, wallet, dec("1000.00"), model.TransactionKindWithdrawal, "", "")
	require.ErrorIs(t, err, repository.ErrBalanceNotEnough)
	requireAmount(t, "59.50", env.balance(t, 1, model.WalletPurposePersonal))

	// 非法金额
	require.ErrorIs(t, ledger.Credit(ctx, env.db, wallet, dec("-1"), model.TransactionKindDeposit, "", ""), ErrInvalidAmount)
	require.ErrorIs(t, ledger.Credit(ctx, env.db, wallet, dec("1.999"), model.TransactionKindDeposit, "", ""), ErrInvalidAmount)
	require.ErrorIs(t, ledger.Debit(ctx, env.db, wallet, decimal.Zero, model.TransactionKindWithdrawal, "", ""), ErrInvalidAmount)
}

func TestLedgerTransactionRows(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ledger := NewLedger(env.db)
	walletRepo := repository.NewWalletRepository(env.db)

	wallet, err := walletRepo.GetOrCreate(ctx, 1, model.WalletPurposePersonal)
	require.NoError(t, err)
	require.NoError(t, ledger.Credit(ctx, env.db, wallet, dec("100.00"), model.TransactionKindDeposit, "", "充值"))
	require.NoError(t, ledger.Debit(ctx, env.db, wallet, dec("30.00"), model.TransactionKindWithdrawal, "", "提现"))

	// 每次余额变动恰好一条流水，金额恒为正，前后余额可追溯
	var rows []*model.WalletTransaction
	require.NoError(t, env.db.Where("owner_id = ?", int64(1)).Order("created_at ASC").Find(&rows).Error)
	require.Len(t, rows, 2)

	requireAmount(t, "100.00", rows[0].Amount)
	requireAmount(t, "0.00", rows[0].BalanceBefore)
	requireAmount(t, "100.00", rows[0].BalanceAfter)
	require.Equal(t, model.TransactionKindDeposit, rows[0].Kind)

	requireAmount(t, "30.00", rows[1].Amount)
	requireAmount(t, "100.00", rows[1].BalanceBefore)
	requireAmount(t, "70.00", rows[1].BalanceAfter)
	require.Equal(t, model.TransactionKindWithdrawal, rows[1].Kind)

	require.NotEmpty(t, rows[0].TransactionNo)
	require.NotEqual(t, rows[0].TransactionNo, rows[1].TransactionNo)
}

func TestLedgerTransferConservation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ledger := NewLedger(env.db)
	walletRepo := repository.NewWalletRepository(env.db)

	from, err := walletRepo.GetOrCreate(ctx, 1, model.WalletPurposePersonal)
	require.NoError(t, err)
	to, err := walletRepo.GetOrCreate(ctx, 1, model.WalletPurposeEscrow)
	require.NoError(t, err)
	require.NoError(t, ledger.Credit(ctx, env.db, from, dec("80.00"), model.TransactionKindDeposit, "", ""))

	require.NoError(t, ledger.Transfer(ctx, env.db, from, to, dec("50.00"), model.TransactionKindEscrow, "m1", "托管"))

	requireAmount(t, "30.00", env.balance(t, 1, model.WalletPurposePersonal))
	requireAmount(t, "50.00", env.balance(t, 1, model.WalletPurposeEscrow))

	// 划转双方各一条流水
	var count int64
	require.NoError(t, env.db.Model(&model.WalletTransaction{}).Where("match_id = ?", "m1").Count(&count).Error)
	require.EqualValues(t, 2, count)

	// 余额不足的划转不产生任何变化
	err = ledger.Transfer(ctx, env.db, from, to, dec("31.00"), model.TransactionKindEscrow, "m1", "")
	require.ErrorIs(t, err, repository.ErrBalanceNotEnough)
	requireAmount(t, "30.00", env.balance(t, 1, model.WalletPurposePersonal))
	requireAmount(t, "50.00", env.balance(t, 1, model.WalletPurposeEscrow))
}
