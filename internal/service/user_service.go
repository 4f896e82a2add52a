package service

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"

	"github.com/utilpay/referral-rewards/internal/auth"
	"github.com/utilpay/referral-rewards/internal/model"
	"github.com/utilpay/referral-rewards/internal/repo"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	// ErrUsernameTaken means the username is already registered.
	ErrUsernameTaken = errors.New("username already registered")
	// ErrInvalidCredentials covers unknown user, wrong password and
	// deactivated accounts alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrReferralCodeNotFound means no user owns the redeemed code.
	ErrReferralCodeNotFound = errors.New("referrer with this code not found")
	// ErrAlreadyReferred means the referred user already has a referrer.
	ErrAlreadyReferred = errors.New("user already has a referrer")
	// ErrSelfReferral rejects redeeming one's own code.
	ErrSelfReferral = errors.New("cannot redeem own referral code")
	// ErrReferralCodeGeneration means no unique code was found within the
	// attempt budget.
	ErrReferralCodeGeneration = errors.New("unable to generate unique referral code")
)

const (
	referralCodeLen      = 8
	referralCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	referralCodeAttempts = 5
)

// UserService handles registration, login and the referral graph.
type UserService struct {
	repo   repo.RepositoryInterface
	issuer *auth.TokenIssuer
	log    *zap.SugaredLogger
}

func NewUserService(r repo.RepositoryInterface, issuer *auth.TokenIssuer, logger *zap.SugaredLogger) *UserService {
	return &UserService{repo: r, issuer: issuer, log: logger}
}

// Register creates a user with a hashed password and a fresh referral code.
func (s *UserService) Register(ctx context.Context, username, password string, email *string) (*model.User, error) {
	if _, err := s.repo.GetUserByUsername(ctx, username); err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	code, err := s.newReferralCode(ctx)
	if err != nil {
		return nil, err
	}

	u := &model.User{
		Username:       username,
		Email:          email,
		HashedPassword: string(hashed),
		ReferralCode:   code,
		IsActive:       true,
	}
	if err := s.repo.CreateUser(ctx, u); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrUsernameTaken
		}
		return nil, err
	}
	return u, nil
}

func (s *UserService) newReferralCode(ctx context.Context) (string, error) {
	for i := 0; i < referralCodeAttempts; i++ {
		code, err := randomCode(referralCodeLen)
		if err != nil {
			return "", err
		}
		_, err = s.repo.GetUserByReferralCode(ctx, code)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return code, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", ErrReferralCodeGeneration
}

func randomCode(n int) (string, error) {
	buf := make([]byte, n)
	max := big.NewInt(int64(len(referralCodeAlphabet)))
	for i := range buf {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = referralCodeAlphabet[idx.Int64()]
	}
	return string(buf), nil
}

// Login verifies the password and returns a signed access token.
func (s *UserService) Login(ctx context.Context, username, password string) (string, error) {
	u, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}
	if !u.IsActive {
		return "", ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(u.HashedPassword), []byte(password)) != nil {
		return "", ErrInvalidCredentials
	}
	return s.issuer.CreateAccessToken(u.ID, u.Username)
}

// GetByID returns the user or ErrUserNotFound.
func (s *UserService) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	u, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}

// RedeemReferralCode links the redeeming user under the code's owner. A user
// can be referred at most once; the unique index on referred_id backs the
// application check, so a concurrent double redeem still resolves to
// ErrAlreadyReferred.
func (s *UserService) RedeemReferralCode(ctx context.Context, code string, referredID uint64) (*model.Referral, error) {
	referrer, err := s.repo.GetUserByReferralCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReferralCodeNotFound
		}
		return nil, err
	}
	if referrer.ID == referredID {
		return nil, ErrSelfReferral
	}
	if _, err := s.repo.GetReferralByReferred(ctx, nil, referredID); err == nil {
		return nil, ErrAlreadyReferred
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	ref := &model.Referral{ReferrerID: referrer.ID, ReferredID: referredID}
	if err := s.repo.CreateReferral(ctx, ref); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrAlreadyReferred
		}
		return nil, err
	}
	return ref, nil
}

// RemoveReferral deletes the referrer's own edge; false when no edge matched.
func (s *UserService) RemoveReferral(ctx context.Context, referrerID, referredID uint64) (bool, error) {
	return s.repo.DeleteReferral(ctx, referrerID, referredID)
}

// ListUsers returns a page of all users, oldest first.
func (s *UserService) ListUsers(ctx context.Context, params PageParams) (*Page[model.User], error) {
	params = params.normalize()
	users, total, err := s.repo.ListUsers(ctx, params.offset(), params.Size)
	if err != nil {
		return nil, err
	}
	return newPage(users, params, total), nil
}
