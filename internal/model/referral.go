package model

import "time"

// Referral is a directed referrer -> referred edge. The unique index on
// ReferredID guarantees at most one referrer per user; the service treats a
// duplicate-key violation as "already has a referrer".
type Referral struct {
	ID         uint64    `gorm:"primaryKey"`
	ReferrerID uint64    `gorm:"not null;index"`
	ReferredID uint64    `gorm:"not null;uniqueIndex"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
}

func (Referral) TableName() string { return "referrals" }
