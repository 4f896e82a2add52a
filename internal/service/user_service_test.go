package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestRegister(t *testing.T) {
	env, ctx := newTestEnv(t)

	u, err := env.users.Register(ctx, "alice", "s3cret-pass", nil)
	require.NoError(t, err)
	assert.Len(t, u.ReferralCode, referralCodeLen)
	assert.True(t, u.IsActive)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.HashedPassword), []byte("s3cret-pass")))

	_, err = env.users.Register(ctx, "alice", "another-pass", nil)
	assert.ErrorIs(t, err, ErrUsernameTaken)
}

func TestLogin(t *testing.T) {
	env, ctx := newTestEnv(t)
	_, err := env.users.Register(ctx, "alice", "s3cret-pass", nil)
	require.NoError(t, err)

	token, err := env.users.Login(ctx, "alice", "s3cret-pass")
	require.NoError(t, err)
	claims, err := env.issuer.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Username)

	_, err = env.users.Login(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = env.users.Login(ctx, "nobody", "s3cret-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogin_InactiveUser(t *testing.T) {
	env, ctx := newTestEnv(t)
	u, err := env.users.Register(ctx, "alice", "s3cret-pass", nil)
	require.NoError(t, err)
	require.NoError(t, env.db.Model(u).Update("is_active", false).Error)

	_, err = env.users.Login(ctx, "alice", "s3cret-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRedeemReferralCode(t *testing.T) {
	env, ctx := newTestEnv(t)
	referrer := env.seedUser(t, "referrer")
	referred := env.seedUser(t, "referred")

	ref, err := env.users.RedeemReferralCode(ctx, referrer.ReferralCode, referred.ID)
	require.NoError(t, err)
	assert.Equal(t, referrer.ID, ref.ReferrerID)
	assert.Equal(t, referred.ID, ref.ReferredID)

	// a second redemption for the same referred user is rejected, even with
	// a different referrer's code
	another := env.seedUser(t, "another")
	_, err = env.users.RedeemReferralCode(ctx, another.ReferralCode, referred.ID)
	assert.ErrorIs(t, err, ErrAlreadyReferred)

	_, err = env.users.RedeemReferralCode(ctx, referrer.ReferralCode, referred.ID)
	assert.ErrorIs(t, err, ErrAlreadyReferred)
}

func TestRedeemReferralCode_UnknownCode(t *testing.T) {
	env, ctx := newTestEnv(t)
	referred := env.seedUser(t, "referred")

	_, err := env.users.RedeemReferralCode(ctx, "NOPE1234", referred.ID)
	assert.ErrorIs(t, err, ErrReferralCodeNotFound)
}

func TestRedeemReferralCode_Self(t *testing.T) {
	env, ctx := newTestEnv(t)
	u := env.seedUser(t, "loner")

	_, err := env.users.RedeemReferralCode(ctx, u.ReferralCode, u.ID)
	assert.ErrorIs(t, err, ErrSelfReferral)
}

func TestRemoveReferral(t *testing.T) {
	env, ctx := newTestEnv(t)
	referrer := env.seedUser(t, "referrer")
	referred := env.seedUser(t, "referred")
	env.seedReferral(t, referrer.ID, referred.ID)

	deleted, err := env.users.RemoveReferral(ctx, referrer.ID, referred.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = env.users.RemoveReferral(ctx, referrer.ID, referred.ID)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestListUsers_Pagination(t *testing.T) {
	env, ctx := newTestEnv(t)
	names := []string{"u1", "u2", "u3", "u4", "u5", "u6", "u7"}
	for _, n := range names {
		env.seedUser(t, n)
	}

	page, err := env.users.ListUsers(ctx, PageParams{Page: 2, Size: 5})
	require.NoError(t, err)
	assert.Len(t, page.Result, 2)
	assert.Equal(t, 2, page.TotalPages)
	assert.EqualValues(t, 7, page.TotalItems)
	assert.Equal(t, "u6", page.Result[0].Username)
}
