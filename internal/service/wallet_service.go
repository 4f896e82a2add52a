package service

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/utilpay/referral-rewards/internal/model"
	"github.com/utilpay/referral-rewards/internal/repo"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrWalletNotFound means the user never earned a bonus.
	ErrWalletNotFound = errors.New("wallet not found")
	// ErrZeroBalance rejects payouts from an emptied wallet.
	ErrZeroBalance = errors.New("zero balance")
	// ErrInsufficientBalance rejects payouts above the current balance.
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// WalletService owns the per-user bonus ledger: credits, payouts, balance.
type WalletService struct {
	repo repo.RepositoryInterface
	log  *zap.SugaredLogger
}

func NewWalletService(r repo.RepositoryInterface, logger *zap.SugaredLogger) *WalletService {
	return &WalletService{repo: r, log: logger}
}

// creditBonus upserts the beneficiary's wallet inside the caller's db
// transaction and records the bonus as its own transaction row, linked to the
// purchase that produced it.
func (s *WalletService) creditBonus(ctx context.Context, tx *gorm.DB, userID uint64, amount decimal.Decimal, line string, source *model.Transaction) error {
	var newBal decimal.Decimal
	w, err := s.repo.GetWalletForUpdate(ctx, tx, userID)
	switch {
	case err == nil:
		newBal = w.Balance.Add(amount)
		fields := map[string]interface{}{
			"balance":        newBal,
			"purchase_count": w.PurchaseCount + 1,
		}
		switch line {
		case model.TypeFirstLineBonus:
			fields["first_line_bonus"] = w.FirstLineBonus.Add(amount)
		case model.TypeSecondLineBonus:
			fields["second_line_bonus"] = w.SecondLineBonus.Add(amount)
		}
		if err := s.repo.UpdateWallet(ctx, tx, w.ID, fields, w.Version); err != nil {
			return err
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		w = &model.Wallet{UserID: userID, Balance: amount, PurchaseCount: 1}
		switch line {
		case model.TypeFirstLineBonus:
			w.FirstLineBonus = amount
		case model.TypeSecondLineBonus:
			w.SecondLineBonus = amount
		}
		if err := s.repo.CreateWallet(ctx, tx, w); err != nil {
			return err
		}
		newBal = amount
	default:
		return err
	}

	bonus := &model.Transaction{
		UserID:              userID,
		Type:                line,
		Amount:              amount,
		RelatedUserID:       &source.UserID,
		SourceTransactionID: &source.ID,
	}
	if err := s.repo.CreateTransaction(ctx, tx, bonus); err != nil {
		return err
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"user_id": userID, "line": line, "amount": amount, "balance": newBal,
		"source_transaction_id": source.ID,
	})
	evt := &model.OutboxEvent{
		Aggregate: "Wallet", AggregateID: userID, EventType: "BonusCredited", Payload: string(payload),
	}
	if err := s.repo.CreateOutboxEvent(ctx, tx, evt); err != nil {
		return err
	}

	if err := s.repo.CacheBalance(ctx, userID, newBal); err != nil {
		s.log.Warnf("cache balance user=%d: %v", userID, err)
	}
	return nil
}

// RequestPayout withdraws from the wallet and records a request_payout
// transaction. Payouts never pass through bonus allocation. Draining the
// balance to exactly zero also resets the line accumulators and the purchase
// counter.
func (s *WalletService) RequestPayout(ctx context.Context, userID uint64, amount decimal.Decimal) (*model.Transaction, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount
	}
	var payout *model.Transaction
	err := s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		w, err := s.repo.GetWalletForUpdate(ctx, tx, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrWalletNotFound
			}
			return err
		}
		if w.Balance.IsZero() {
			return ErrZeroBalance
		}
		if amount.GreaterThan(w.Balance) {
			return ErrInsufficientBalance
		}

		newBal := w.Balance.Sub(amount)
		fields := map[string]interface{}{"balance": newBal}
		if newBal.IsZero() {
			fields["first_line_bonus"] = decimal.Zero
			fields["second_line_bonus"] = decimal.Zero
			fields["purchase_count"] = 0
		}
		if err := s.repo.UpdateWallet(ctx, tx, w.ID, fields, w.Version); err != nil {
			return err
		}

		payout = &model.Transaction{UserID: userID, Type: model.TypePayout, Amount: amount}
		if err := s.repo.CreateTransaction(ctx, tx, payout); err != nil {
			return err
		}

		payload, _ := json.Marshal(map[string]interface{}{
			"user_id": userID, "amount": amount, "balance": newBal,
		})
		evt := &model.OutboxEvent{
			Aggregate: "Wallet", AggregateID: userID, EventType: "PayoutRequested", Payload: string(payload),
		}
		if err := s.repo.CreateOutboxEvent(ctx, tx, evt); err != nil {
			return err
		}

		if err := s.repo.CacheBalance(ctx, userID, newBal); err != nil {
			s.log.Warnf("cache balance user=%d: %v", userID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payout, nil
}

// GetBalance returns the wallet balance, cache first.
func (s *WalletService) GetBalance(ctx context.Context, userID uint64) (decimal.Decimal, error) {
	if bal, err := s.repo.GetCachedBalance(ctx, userID); err == nil {
		return bal, nil
	}
	w, err := s.repo.GetWalletByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, ErrWalletNotFound
		}
		return decimal.Zero, err
	}
	if err := s.repo.CacheBalance(ctx, userID, w.Balance); err != nil {
		s.log.Warnf("cache balance user=%d: %v", userID, err)
	}
	return w.Balance, nil
}

// GetWallet returns the full ledger row.
func (s *WalletService) GetWallet(ctx context.Context, userID uint64) (*model.Wallet, error) {
	w, err := s.repo.GetWalletByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return w, nil
}
