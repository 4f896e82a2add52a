package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/utilpay/referral-rewards/internal/auth"
	"github.com/utilpay/referral-rewards/internal/config"
	"github.com/utilpay/referral-rewards/internal/logger"
	"github.com/utilpay/referral-rewards/internal/model"
	"github.com/utilpay/referral-rewards/internal/repo"
	"github.com/utilpay/referral-rewards/internal/service"
	httptransport "github.com/utilpay/referral-rewards/internal/transport/http"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.Load("internal/config/config.yaml")
	if err != nil {
		panic(fmt.Errorf("load config: %w", err))
	}

	log, err := logger.NewLogger()
	if err != nil {
		panic(fmt.Errorf("init logger: %w", err))
	}
	defer log.Sync()

	loc, err := time.LoadLocation(cfg.App.Timezone)
	if err != nil {
		log.Fatalf("load timezone %q: %v", cfg.App.Timezone, err)
	}

	gdb, err := gorm.Open(postgres.Open(cfg.Postgres.DSN), &gorm.Config{PrepareStmt: true, TranslateError: true})
	if err != nil {
		log.Fatalf("open postgres: %v", err)
	}
	if err := gdb.AutoMigrate(
		&model.User{}, &model.Referral{}, &model.Wallet{},
		&model.Transaction{}, &model.OutboxEvent{},
	); err != nil {
		log.Fatalf("auto-migrate: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("redis ping: %v", err)
	}

	kw := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Kafka.Brokers...),
		Topic:    cfg.Kafka.Topic,
		Balancer: &kafka.LeastBytes{},
	}

	repository := repo.NewRepository(gdb, rdb, kw, log)
	issuer := auth.NewTokenIssuer(cfg.Auth.JWTSecret, time.Duration(cfg.Auth.TokenTTLMins)*time.Minute)

	users := service.NewUserService(repository, issuer, log)
	wallets := service.NewWalletService(repository, log)
	txs := service.NewTransactionService(repository, wallets, cfg.Bonus, log)

	h := httptransport.NewHandler(users, wallets, txs, loc, log)
	router := httptransport.NewRouter(h, issuer, cfg.RateLimit, log)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Infof("referral-rewards server listening on %s", addr)
	if err := http.ListenAndServe(addr, router); err != nil {
		log.Fatalf("listen: %v", err)
	}
}
