package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/utilpay/referral-rewards/internal/auth"
	"github.com/utilpay/referral-rewards/internal/config"
	"github.com/utilpay/referral-rewards/internal/logger"
	"github.com/utilpay/referral-rewards/internal/model"
	"github.com/utilpay/referral-rewards/internal/repo"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testEnv struct {
	db      *gorm.DB
	repo    *repo.Repository
	issuer  *auth.TokenIssuer
	users   *UserService
	wallets *WalletService
	txs     *TransactionService
}

// newTestEnv builds the service stack on an in-memory SQLite database. The
// Redis client is a bare mock with no expectations: every cache call fails
// softly, which exercises the DB fallback paths.
func newTestEnv(t *testing.T) (*testEnv, context.Context) {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&model.User{}, &model.Referral{}, &model.Wallet{},
		&model.Transaction{}, &model.OutboxEvent{},
	))

	rdb, _ := redismock.NewClientMock()
	log, err := logger.NewLogger()
	require.NoError(t, err)

	repository := repo.NewRepository(db, rdb, &kafka.Writer{}, log)
	issuer := auth.NewTokenIssuer("test-secret", time.Hour)

	cfg := config.BonusConfig{
		MinimumAmount:   dec("10.00"),
		FirstLineRate:   dec("0.10"),
		SecondLineRate:  dec("0.05"),
		DuplicateWindow: time.Minute,
	}

	wallets := NewWalletService(repository, log)
	env := &testEnv{
		db:      db,
		repo:    repository,
		issuer:  issuer,
		users:   NewUserService(repository, issuer, log),
		wallets: wallets,
		txs:     NewTransactionService(repository, wallets, cfg, log),
	}
	return env, context.Background()
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (e *testEnv) seedUser(t *testing.T, username string) *model.User {
	t.Helper()
	u := &model.User{
		Username:       username,
		HashedPassword: "x",
		ReferralCode:   "CODE" + username,
		IsActive:       true,
	}
	require.NoError(t, e.db.Create(u).Error)
	return u
}

func (e *testEnv) seedReferral(t *testing.T, referrerID, referredID uint64) {
	t.Helper()
	require.NoError(t, e.db.Create(&model.Referral{ReferrerID: referrerID, ReferredID: referredID}).Error)
}

func (e *testEnv) walletOf(t *testing.T, userID uint64) *model.Wallet {
	t.Helper()
	var w model.Wallet
	require.NoError(t, e.db.Where("user_id = ?", userID).First(&w).Error)
	return &w
}

func (e *testEnv) hasWallet(userID uint64) bool {
	var n int64
	e.db.Model(&model.Wallet{}).Where("user_id = ?", userID).Count(&n)
	return n > 0
}
