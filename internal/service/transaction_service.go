package service

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/utilpay/referral-rewards/internal/config"
	"github.com/utilpay/referral-rewards/internal/model"
	"github.com/utilpay/referral-rewards/internal/repo"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrInvalidAmount means a non-positive amount was passed.
	ErrInvalidAmount = errors.New("amount must be positive")
	// ErrDuplicateTransaction means an identical transaction was submitted
	// within the suppression window.
	ErrDuplicateTransaction = errors.New("identical transaction submitted recently, try again later")
	// ErrUserNotFound means the addressed user does not exist.
	ErrUserNotFound = errors.New("user not found")
)

// TransactionService records purchase transactions and allocates two-level
// referral bonuses to the upline.
type TransactionService struct {
	repo    repo.RepositoryInterface
	wallets *WalletService
	cfg     config.BonusConfig
	log     *zap.SugaredLogger
}

func NewTransactionService(r repo.RepositoryInterface, wallets *WalletService, cfg config.BonusConfig, logger *zap.SugaredLogger) *TransactionService {
	return &TransactionService{repo: r, wallets: wallets, cfg: cfg, log: logger}
}

// Create records a transaction for the user. Identical (user, type, amount)
// submissions inside the duplicate window are rejected without a write. On
// success the referral upline is credited; allocation failures are logged and
// never fail the recorded transaction.
func (s *TransactionService) Create(ctx context.Context, userID uint64, txType string, amount decimal.Decimal) (*model.Transaction, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount
	}
	var created *model.Transaction
	err := s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		since := time.Now().Add(-s.cfg.DuplicateWindow)
		dup, err := s.repo.DuplicateExists(ctx, tx, userID, txType, amount, since)
		if err != nil {
			return err
		}
		if dup {
			return ErrDuplicateTransaction
		}
		created = &model.Transaction{UserID: userID, Type: txType, Amount: amount}
		return s.repo.CreateTransaction(ctx, tx, created)
	})
	if err != nil {
		return nil, err
	}

	if err := s.allocateBonuses(ctx, created); err != nil {
		s.log.Errorf("allocate bonuses tx=%d user=%d: %v", created.ID, created.UserID, err)
	}
	return created, nil
}

// allocateBonuses walks up to two referral levels and credits each ancestor's
// wallet. Both credits run in one db transaction, separate from the purchase
// insert: a failed allocation leaves the purchase intact and is retryable,
// duplicate credits are fenced by the per-source bonus rows.
func (s *TransactionService) allocateBonuses(ctx context.Context, t *model.Transaction) error {
	if model.IsReserved(t.Type) {
		return nil
	}
	if t.Amount.LessThan(s.cfg.MinimumAmount) {
		return nil
	}
	return s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		first, err := s.referrerOf(ctx, tx, t.UserID)
		if err != nil {
			return err
		}
		if first == nil {
			return nil
		}
		if err := s.creditLine(ctx, tx, first.ReferrerID, s.cfg.FirstLineRate, model.TypeFirstLineBonus, t); err != nil {
			return err
		}
		second, err := s.referrerOf(ctx, tx, first.ReferrerID)
		if err != nil {
			return err
		}
		if second == nil {
			return nil
		}
		return s.creditLine(ctx, tx, second.ReferrerID, s.cfg.SecondLineRate, model.TypeSecondLineBonus, t)
	})
}

func (s *TransactionService) creditLine(ctx context.Context, tx *gorm.DB, beneficiaryID uint64, rate decimal.Decimal, line string, source *model.Transaction) error {
	exists, err := s.repo.BonusExists(ctx, tx, source.ID, line)
	if err != nil || exists {
		return err
	}
	bonus := source.Amount.Mul(rate).Round(2)
	return s.wallets.creditBonus(ctx, tx, beneficiaryID, bonus, line, source)
}

func (s *TransactionService) referrerOf(ctx context.Context, tx *gorm.DB, referredID uint64) (*model.Referral, error) {
	ref, err := s.repo.GetReferralByReferred(ctx, tx, referredID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return ref, nil
}

// History returns the user's transactions, oldest first, paginated.
func (s *TransactionService) History(ctx context.Context, userID uint64, params PageParams) (*Page[model.Transaction], error) {
	if _, err := s.repo.GetUserByID(ctx, userID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	params = params.normalize()
	txs, total, err := s.repo.ListTransactionsByUser(ctx, userID, params.offset(), params.Size)
	if err != nil {
		return nil, err
	}
	return newPage(txs, params, total), nil
}

// BonusLine selects which accumulator a bonus query addresses.
type BonusLine string

const (
	FirstLine  BonusLine = "first"
	SecondLine BonusLine = "second"
)

// BonusesInRange returns the user's earned bonus transactions for one line,
// bounded by inclusive start/end dates.
func (s *TransactionService) BonusesInRange(ctx context.Context, userID uint64, line BonusLine, from, to time.Time) ([]model.Transaction, error) {
	txType := model.TypeFirstLineBonus
	if line == SecondLine {
		txType = model.TypeSecondLineBonus
	}
	return s.repo.ListTransactionsByTypeInRange(ctx, userID, []string{txType}, dayStart(from), dayStart(to).AddDate(0, 0, 1))
}

// PayoutsInRange returns the user's payout transactions, bounded by inclusive
// start/end dates.
func (s *TransactionService) PayoutsInRange(ctx context.Context, userID uint64, from, to time.Time) ([]model.Transaction, error) {
	return s.repo.ListTransactionsByTypeInRange(ctx, userID, []string{model.TypePayout}, dayStart(from), dayStart(to).AddDate(0, 0, 1))
}

func dayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
