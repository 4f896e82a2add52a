package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Wallet struct {
	ID              uint64          `gorm:"primaryKey"`
	UserID          uint64          `gorm:"not null;uniqueIndex"`
	Balance         decimal.Decimal `gorm:"type:numeric(20,2);not null;default:'0'"`
	FirstLineBonus  decimal.Decimal `gorm:"type:numeric(20,2);not null;default:'0'"`
	SecondLineBonus decimal.Decimal `gorm:"type:numeric(20,2);not null;default:'0'"`
	PurchaseCount   uint64          `gorm:"not null;default:0"`
	Version         uint64          `gorm:"not null;default:0"`
	CreatedAt       time.Time       `gorm:"autoCreateTime"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime"`
}

func (Wallet) TableName() string { return "wallets" }
