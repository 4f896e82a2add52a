package service

import (
	"time"

	"github.com/utilpay/referral-rewards/internal/model"
)

// dateLayout matches the original rendering of transaction dates.
const dateLayout = "02.01.2006, 15:04"

// TransactionView is a transaction with its timestamp shifted to the
// configured local zone at read time; the stored row keeps UTC.
type TransactionView struct {
	ID              uint64 `json:"id"`
	UserID          uint64 `json:"user_id"`
	Type            string `json:"transaction_type"`
	Amount          string `json:"amount"`
	TransactionDate string `json:"transaction_date"`
}

func NewTransactionView(t model.Transaction, loc *time.Location) TransactionView {
	return TransactionView{
		ID:              t.ID,
		UserID:          t.UserID,
		Type:            t.Type,
		Amount:          t.Amount.StringFixed(2),
		TransactionDate: t.CreatedAt.In(loc).Format(dateLayout),
	}
}

func NewTransactionViews(txs []model.Transaction, loc *time.Location) []TransactionView {
	views := make([]TransactionView, 0, len(txs))
	for _, t := range txs {
		views = append(views, NewTransactionView(t, loc))
	}
	return views
}

// UserView hides the credential hash.
type UserView struct {
	ID           uint64  `json:"id"`
	Username     string  `json:"username"`
	Email        *string `json:"email,omitempty"`
	ReferralCode string  `json:"referral_code"`
	IsActive     bool    `json:"is_active"`
	CreatedAt    string  `json:"created_at"`
}

func NewUserView(u model.User, loc *time.Location) UserView {
	return UserView{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		ReferralCode: u.ReferralCode,
		IsActive:     u.IsActive,
		CreatedAt:    u.CreatedAt.In(loc).Format(dateLayout),
	}
}
