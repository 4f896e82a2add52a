package http

import (
	"github.com/gin-gonic/gin"
	"github.com/utilpay/referral-rewards/internal/auth"
	"github.com/utilpay/referral-rewards/internal/config"
	"go.uber.org/zap"
)

func NewRouter(h *Handler, issuer *auth.TokenIssuer, rl config.RateLimitConfig, log *zap.SugaredLogger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggingMiddleware(log))
	r.Use(RateLimitMiddleware(rl.RPS, rl.Burst))

	r.GET("/health", h.health)

	v1 := r.Group("/v1")
	{
		v1.POST("/users", h.register)
		v1.POST("/auth/login", h.login)
		v1.GET("/users", h.listUsers)
		v1.GET("/users/:id/transactions", h.userTransactions)
		v1.GET("/users/:id/bonuses", h.userBonuses)
		v1.GET("/users/:id/payouts", h.userPayouts)
		v1.GET("/wallets/:id/balance", h.walletBalance)

		authed := v1.Group("")
		authed.Use(AuthMiddleware(issuer))
		{
			authed.POST("/referrals/:code", h.redeemReferral)
			authed.DELETE("/referrals/:referredID", h.removeReferral)
			authed.POST("/transactions", h.createTransaction)
			authed.POST("/wallets/:id/payout", h.requestPayout)
		}
	}
	return r
}
