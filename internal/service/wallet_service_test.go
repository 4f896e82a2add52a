package service

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/utilpay/referral-rewards/internal/model"
)

func (e *testEnv) seedWallet(t *testing.T, userID uint64, balance, first, second string, count uint64) {
	t.Helper()
	require.NoError(t, e.db.Create(&model.Wallet{
		UserID:          userID,
		Balance:         dec(balance),
		FirstLineBonus:  dec(first),
		SecondLineBonus: dec(second),
		PurchaseCount:   count,
	}).Error)
}

func TestRequestPayout_FullDrainResetsAccumulators(t *testing.T) {
	env, ctx := newTestEnv(t)
	u := env.seedUser(t, "referrer")
	env.seedWallet(t, u.ID, "50.00", "30.00", "20.00", 5)

	payout, err := env.wallets.RequestPayout(ctx, u.ID, dec("50.00"))
	require.NoError(t, err)
	assert.Equal(t, model.TypePayout, payout.Type)
	assert.True(t, payout.Amount.Equal(dec("50.00")))

	w := env.walletOf(t, u.ID)
	assert.True(t, w.Balance.IsZero())
	assert.True(t, w.FirstLineBonus.IsZero(), "full drain resets first-line accumulator")
	assert.True(t, w.SecondLineBonus.IsZero(), "full drain resets second-line accumulator")
	assert.EqualValues(t, 0, w.PurchaseCount)
}

func TestRequestPayout_PartialKeepsAccumulators(t *testing.T) {
	env, ctx := newTestEnv(t)
	u := env.seedUser(t, "referrer")
	env.seedWallet(t, u.ID, "50.00", "30.00", "20.00", 5)

	_, err := env.wallets.RequestPayout(ctx, u.ID, dec("20.00"))
	require.NoError(t, err)

	w := env.walletOf(t, u.ID)
	assert.True(t, w.Balance.Equal(dec("30.00")))
	assert.True(t, w.FirstLineBonus.Equal(dec("30.00")))
	assert.True(t, w.SecondLineBonus.Equal(dec("20.00")))
	assert.EqualValues(t, 5, w.PurchaseCount)
}

func TestRequestPayout_Insufficient(t *testing.T) {
	env, ctx := newTestEnv(t)
	u := env.seedUser(t, "referrer")
	env.seedWallet(t, u.ID, "50.00", "50.00", "0.00", 2)

	_, err := env.wallets.RequestPayout(ctx, u.ID, dec("60.00"))
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	w := env.walletOf(t, u.ID)
	assert.True(t, w.Balance.Equal(dec("50.00")), "rejected payout must leave the wallet unchanged")

	var n int64
	env.db.Model(&model.Transaction{}).Where("type = ?", model.TypePayout).Count(&n)
	assert.EqualValues(t, 0, n)
}

func TestRequestPayout_NonPositiveAmount(t *testing.T) {
	env, ctx := newTestEnv(t)
	u := env.seedUser(t, "referrer")
	env.seedWallet(t, u.ID, "50.00", "50.00", "0.00", 2)

	_, err := env.wallets.RequestPayout(ctx, u.ID, decimal.Zero)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = env.wallets.RequestPayout(ctx, u.ID, dec("-1.00"))
	assert.ErrorIs(t, err, ErrInvalidAmount)

	w := env.walletOf(t, u.ID)
	assert.True(t, w.Balance.Equal(dec("50.00")))
}

func TestRequestPayout_ZeroBalance(t *testing.T) {
	env, ctx := newTestEnv(t)
	u := env.seedUser(t, "referrer")
	env.seedWallet(t, u.ID, "0.00", "0.00", "0.00", 0)

	_, err := env.wallets.RequestPayout(ctx, u.ID, dec("10.00"))
	assert.ErrorIs(t, err, ErrZeroBalance)
}

func TestRequestPayout_NoWallet(t *testing.T) {
	env, ctx := newTestEnv(t)
	u := env.seedUser(t, "never-earned")

	_, err := env.wallets.RequestPayout(ctx, u.ID, dec("10.00"))
	assert.ErrorIs(t, err, ErrWalletNotFound)
}

func TestWallet_CreditsAfterResetStartFresh(t *testing.T) {
	env, ctx := newTestEnv(t)
	payer := env.seedUser(t, "payer")
	r1 := env.seedUser(t, "referrer")
	env.seedReferral(t, r1.ID, payer.ID)

	_, err := env.txs.Create(ctx, payer.ID, "credit", dec("100.00"))
	require.NoError(t, err)

	_, err = env.wallets.RequestPayout(ctx, r1.ID, dec("10.00"))
	require.NoError(t, err)

	// the wallet survives the reset and keeps accepting credits
	_, err = env.txs.Create(ctx, payer.ID, "credit", dec("200.00"))
	require.NoError(t, err)

	w := env.walletOf(t, r1.ID)
	assert.True(t, w.Balance.Equal(dec("20.00")))
	assert.True(t, w.FirstLineBonus.Equal(dec("20.00")))
	assert.EqualValues(t, 1, w.PurchaseCount)
}

func TestGetBalance(t *testing.T) {
	env, ctx := newTestEnv(t)
	u := env.seedUser(t, "referrer")
	env.seedWallet(t, u.ID, "12.34", "12.34", "0.00", 1)

	bal, err := env.wallets.GetBalance(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, bal.Equal(dec("12.34")))

	_, err = env.wallets.GetBalance(ctx, 9999)
	assert.ErrorIs(t, err, ErrWalletNotFound)
}
