package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/utilpay/referral-rewards/internal/model"
)

func TestTransactionView_LocalizesDate(t *testing.T) {
	kyiv, err := time.LoadLocation("Europe/Kyiv")
	require.NoError(t, err)

	// 12:00 UTC is 15:00 in Kyiv during summer time (UTC+3)
	created := time.Date(2024, 9, 25, 12, 0, 0, 0, time.UTC)
	v := NewTransactionView(model.Transaction{
		ID: 1, UserID: 2, Type: "credit",
		Amount:    dec("100.5"),
		CreatedAt: created,
	}, kyiv)

	assert.Equal(t, "100.50", v.Amount)
	assert.Equal(t, "25.09.2024, 15:00", v.TransactionDate)
}
