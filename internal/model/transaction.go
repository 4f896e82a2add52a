package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction types written by the service itself. Anything else is a
// caller-supplied purchase type ("credit", "electricity", ...).
const (
	TypeFirstLineBonus  = "bonus_transaction_first_line"
	TypeSecondLineBonus = "bonus_transaction_second_line"
	TypePayout          = "request_payout"
)

type Transaction struct {
	ID     uint64          `gorm:"primaryKey"`
	UserID uint64          `gorm:"not null;index"`
	Type   string          `gorm:"size:64;not null"`
	Amount decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	// RelatedUserID is the transacting user a bonus row was earned from.
	RelatedUserID *uint64
	// SourceTransactionID links a bonus row to the purchase that produced it;
	// one bonus per (source, type) keeps allocation idempotent.
	SourceTransactionID *uint64   `gorm:"index"`
	CreatedAt           time.Time `gorm:"autoCreateTime"`
}

func (Transaction) TableName() string { return "transactions" }

// IsReserved reports whether txType is a service-generated type that must
// never feed back into bonus allocation.
func IsReserved(txType string) bool {
	switch txType {
	case TypeFirstLineBonus, TypeSecondLineBonus, TypePayout:
		return true
	}
	return false
}
