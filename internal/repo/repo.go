package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/utilpay/referral-rewards/internal/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrOptimisticLock is returned when a version-checked wallet update loses the race.
var ErrOptimisticLock = errors.New("optimistic lock conflict")

// RepositoryInterface restricts Repo methods so services can be unit-tested
// against a narrow surface.
type RepositoryInterface interface {
	DB(ctx context.Context) *gorm.DB

	CreateUser(ctx context.Context, u *model.User) error
	GetUserByID(ctx context.Context, id uint64) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	GetUserByReferralCode(ctx context.Context, code string) (*model.User, error)
	ListUsers(ctx context.Context, offset, limit int) ([]model.User, int64, error)

	CreateReferral(ctx context.Context, ref *model.Referral) error
	GetReferralByReferred(ctx context.Context, tx *gorm.DB, referredID uint64) (*model.Referral, error)
	DeleteReferral(ctx context.Context, referrerID, referredID uint64) (bool, error)

	GetWalletByUser(ctx context.Context, userID uint64) (*model.Wallet, error)
	GetWalletForUpdate(ctx context.Context, tx *gorm.DB, userID uint64) (*model.Wallet, error)
	CreateWallet(ctx context.Context, tx *gorm.DB, w *model.Wallet) error
	UpdateWallet(ctx context.Context, tx *gorm.DB, walletID uint64, fields map[string]interface{}, oldVersion uint64) error

	CreateTransaction(ctx context.Context, tx *gorm.DB, t *model.Transaction) error
	DuplicateExists(ctx context.Context, tx *gorm.DB, userID uint64, txType string, amount decimal.Decimal, since time.Time) (bool, error)
	BonusExists(ctx context.Context, tx *gorm.DB, sourceTxID uint64, txType string) (bool, error)
	ListTransactionsByUser(ctx context.Context, userID uint64, offset, limit int) ([]model.Transaction, int64, error)
	ListTransactionsByTypeInRange(ctx context.Context, userID uint64, types []string, from, to time.Time) ([]model.Transaction, error)

	CreateOutboxEvent(ctx context.Context, tx *gorm.DB, evt *model.OutboxEvent) error
	PollOutbox(ctx context.Context, limit int) ([]model.OutboxEvent, error)
	MarkOutboxProcessed(ctx context.Context, id uint64) error
	PublishEvent(ctx context.Context, evt model.OutboxEvent) error

	CacheBalance(ctx context.Context, userID uint64, bal decimal.Decimal) error
	GetCachedBalance(ctx context.Context, userID uint64) (decimal.Decimal, error)
}

// Repository implements RepositoryInterface.
type Repository struct {
	db     *gorm.DB
	rdb    *redis.Client
	writer *kafka.Writer
	log    *zap.SugaredLogger
}

// NewRepository constructs repo.
func NewRepository(db *gorm.DB, rdb *redis.Client, w *kafka.Writer, logger *zap.SugaredLogger) *Repository {
	return &Repository{db: db, rdb: rdb, writer: w, log: logger}
}

// DB returns underlying *gorm.DB
func (r *Repository) DB(ctx context.Context) *gorm.DB { return r.db.WithContext(ctx) }

// --- users ---

func (r *Repository) CreateUser(ctx context.Context, u *model.User) error {
	return r.db.WithContext(ctx).Create(u).Error
}

func (r *Repository) GetUserByID(ctx context.Context, id uint64) (*model.User, error) {
	var u model.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *Repository) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	var u model.User
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *Repository) GetUserByReferralCode(ctx context.Context, code string) (*model.User, error) {
	var u model.User
	if err := r.db.WithContext(ctx).Where("referral_code = ?", code).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *Repository) ListUsers(ctx context.Context, offset, limit int) ([]model.User, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&model.User{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var users []model.User
	err := r.db.WithContext(ctx).Order("id").Offset(offset).Limit(limit).Find(&users).Error
	return users, total, err
}

// --- referrals ---

// CreateReferral inserts an edge. The unique index on referred_id makes the
// database the final arbiter of "one referrer per user"; callers translate
// gorm.ErrDuplicatedKey.
func (r *Repository) CreateReferral(ctx context.Context, ref *model.Referral) error {
	return r.db.WithContext(ctx).Create(ref).Error
}

func (r *Repository) GetReferralByReferred(ctx context.Context, tx *gorm.DB, referredID uint64) (*model.Referral, error) {
	if tx == nil {
		tx = r.db
	}
	var ref model.Referral
	if err := tx.WithContext(ctx).Where("referred_id = ?", referredID).First(&ref).Error; err != nil {
		return nil, err
	}
	return &ref, nil
}

func (r *Repository) DeleteReferral(ctx context.Context, referrerID, referredID uint64) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("referrer_id = ? AND referred_id = ?", referrerID, referredID).
		Delete(&model.Referral{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// --- wallets ---

func (r *Repository) GetWalletByUser(ctx context.Context, userID uint64) (*model.Wallet, error) {
	var w model.Wallet
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&w).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

// GetWalletForUpdate reads the user's wallet row under a row lock. SQLite has
// no row locks (writers already serialize); there the version check alone
// fences concurrent credits.
func (r *Repository) GetWalletForUpdate(ctx context.Context, tx *gorm.DB, userID uint64) (*model.Wallet, error) {
	q := tx.WithContext(ctx)
	if tx.Dialector.Name() != "sqlite" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var w model.Wallet
	if err := q.Where("user_id = ?", userID).First(&w).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *Repository) CreateWallet(ctx context.Context, tx *gorm.DB, w *model.Wallet) error {
	return tx.WithContext(ctx).Create(w).Error
}

// UpdateWallet applies fields with an optimistic version check; the version
// column is bumped as part of the same update.
func (r *Repository) UpdateWallet(ctx context.Context, tx *gorm.DB, walletID uint64, fields map[string]interface{}, oldVersion uint64) error {
	updates := make(map[string]interface{}, len(fields)+2)
	for k, v := range fields {
		updates[k] = v
	}
	updates["version"] = oldVersion + 1
	updates["updated_at"] = time.Now()
	res := tx.WithContext(ctx).
		Model(&model.Wallet{}).
		Where("id = ? AND version = ?", walletID, oldVersion).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrOptimisticLock
	}
	return nil
}

// --- transactions ---

func (r *Repository) CreateTransaction(ctx context.Context, tx *gorm.DB, t *model.Transaction) error {
	return tx.WithContext(ctx).Create(t).Error
}

// DuplicateExists reports an identical (user, type, amount) row created since
// the given instant.
func (r *Repository) DuplicateExists(ctx context.Context, tx *gorm.DB, userID uint64, txType string, amount decimal.Decimal, since time.Time) (bool, error) {
	var t model.Transaction
	err := tx.WithContext(ctx).
		Where("user_id = ? AND type = ? AND amount = ? AND created_at >= ?", userID, txType, amount, since).
		First(&t).Error
	if err == nil {
		return true, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return false, err
}

// BonusExists reports whether a bonus row of the given type was already
// written for the source purchase.
func (r *Repository) BonusExists(ctx context.Context, tx *gorm.DB, sourceTxID uint64, txType string) (bool, error) {
	var t model.Transaction
	err := tx.WithContext(ctx).
		Where("source_transaction_id = ? AND type = ?", sourceTxID, txType).
		First(&t).Error
	if err == nil {
		return true, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return false, err
}

func (r *Repository) ListTransactionsByUser(ctx context.Context, userID uint64, offset, limit int) ([]model.Transaction, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&model.Transaction{}).
		Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var txs []model.Transaction
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("created_at").Offset(offset).Limit(limit).Find(&txs).Error
	return txs, total, err
}

// ListTransactionsByTypeInRange returns the user's rows of the given types
// with from <= created_at < to.
func (r *Repository) ListTransactionsByTypeInRange(ctx context.Context, userID uint64, types []string, from, to time.Time) ([]model.Transaction, error) {
	var txs []model.Transaction
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND type IN ? AND created_at >= ? AND created_at < ?", userID, types, from, to).
		Order("created_at").
		Find(&txs).Error
	return txs, err
}

// --- outbox ---

// CreateOutboxEvent writes event.
func (r *Repository) CreateOutboxEvent(ctx context.Context, tx *gorm.DB, evt *model.OutboxEvent) error {
	return tx.WithContext(ctx).Create(evt).Error
}

// PollOutbox pulls unprocessed events.
func (r *Repository) PollOutbox(ctx context.Context, limit int) ([]model.OutboxEvent, error) {
	var evts []model.OutboxEvent
	err := r.db.WithContext(ctx).Where("processed = false").Order("created_at").Limit(limit).Find(&evts).Error
	return evts, err
}

// MarkOutboxProcessed sets processed flag.
func (r *Repository) MarkOutboxProcessed(ctx context.Context, id uint64) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&model.OutboxEvent{}).Where("id = ?", id).
		Updates(map[string]interface{}{"processed": true, "processed_at": &now}).Error
}

// PublishEvent sends to Kafka.
func (r *Repository) PublishEvent(ctx context.Context, evt model.OutboxEvent) error {
	msg := kafka.Message{
		Key:   []byte(fmt.Sprintf("%d", evt.AggregateID)),
		Value: []byte(evt.Payload),
		Time:  time.Now(),
	}
	return r.writer.WriteMessages(ctx, msg)
}

// --- redis ---

// CacheBalance writes Redis.
func (r *Repository) CacheBalance(ctx context.Context, userID uint64, bal decimal.Decimal) error {
	return r.rdb.Set(ctx, fmt.Sprintf("wallet:balance:%d", userID), bal.String(), 5*time.Minute).Err()
}

// GetCachedBalance reads Redis.
func (r *Repository) GetCachedBalance(ctx context.Context, userID uint64) (decimal.Decimal, error) {
	str, err := r.rdb.Get(ctx, fmt.Sprintf("wallet:balance:%d", userID)).Result()
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromString(str)
}
