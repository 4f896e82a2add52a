package repo

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/utilpay/referral-rewards/internal/logger"
	"github.com/utilpay/referral-rewards/internal/model"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestOptimisticLock_StaleVersionLoses(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:optlock?mode=memory&cache=shared"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.Wallet{}))

	// seed wallet
	require.NoError(t, db.Create(&model.Wallet{UserID: 1, Balance: decimal.NewFromInt(100)}).Error)

	repo := NewRepository(db, nil, &kafka.Writer{}, must(logger.NewLogger()))
	ctx := context.Background()

	w, err := repo.GetWalletForUpdate(ctx, db, 1)
	require.NoError(t, err)
	stale := w.Version

	// first writer wins and bumps the version
	require.NoError(t, repo.UpdateWallet(ctx, db, w.ID,
		map[string]interface{}{"balance": w.Balance.Add(decimal.NewFromInt(10))}, stale))

	// a second writer holding the stale version must not apply
	err = repo.UpdateWallet(ctx, db, w.ID,
		map[string]interface{}{"balance": w.Balance.Add(decimal.NewFromInt(10))}, stale)
	assert.ErrorIs(t, err, ErrOptimisticLock)

	var final model.Wallet
	require.NoError(t, db.Where("user_id = ?", 1).First(&final).Error)
	assert.True(t, final.Balance.Equal(decimal.NewFromInt(110)), "exactly one credit applied, got %s", final.Balance)
	assert.EqualValues(t, stale+1, final.Version)
}

func must(l *zap.SugaredLogger, err error) *zap.SugaredLogger {
	if err != nil {
		panic(err)
	}
	return l
}
