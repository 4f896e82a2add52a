package model

import "time"

type User struct {
	ID             uint64  `gorm:"primaryKey"`
	Username       string  `gorm:"size:64;not null;uniqueIndex"`
	Email          *string `gorm:"size:255;uniqueIndex"`
	HashedPassword string  `gorm:"size:128;not null"`
	ReferralCode   string  `gorm:"size:16;not null;uniqueIndex"`
	IsActive       bool    `gorm:"not null;default:true"`
	IsSuperuser    bool    `gorm:"not null;default:false"`
	Role           *string `gorm:"size:32"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`
}

func (User) TableName() string { return "users" }
