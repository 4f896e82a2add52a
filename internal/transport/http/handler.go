package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/utilpay/referral-rewards/internal/service"
	"go.uber.org/zap"
)

// Handler wires the services into gin routes.
type Handler struct {
	users   *service.UserService
	wallets *service.WalletService
	txs     *service.TransactionService
	loc     *time.Location
	log     *zap.SugaredLogger
}

func NewHandler(users *service.UserService, wallets *service.WalletService, txs *service.TransactionService, loc *time.Location, log *zap.SugaredLogger) *Handler {
	return &Handler{users: users, wallets: wallets, txs: txs, loc: loc, log: log}
}

type registerReq struct {
	Username string  `json:"username" binding:"required,min=3,max=64"`
	Password string  `json:"password" binding:"required,min=6"`
	Email    *string `json:"email" binding:"omitempty,email"`
}

func (h *Handler) register(c *gin.Context) {
	var req registerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	u, err := h.users.Register(c, req.Username, req.Password, req.Email)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, service.NewUserView(*u, h.loc))
}

type loginReq struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	token, err := h.users.Login(c, req.Username, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": token, "token_type": "bearer"})
}

func (h *Handler) redeemReferral(c *gin.Context) {
	ref, err := h.users.RedeemReferralCode(c, c.Param("code"), callerID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id": ref.ID, "referrer_id": ref.ReferrerID, "referred_id": ref.ReferredID,
	})
}

func (h *Handler) removeReferral(c *gin.Context) {
	referredID, err := strconv.ParseUint(c.Param("referredID"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid referred id"})
		return
	}
	deleted, err := h.users.RemoveReferral(c, callerID(c), referredID)
	if err != nil {
		h.fail(c, err)
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": "referral not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

type createTransactionReq struct {
	Type   string `json:"transaction_type" binding:"required,max=64"`
	Amount string `json:"amount" binding:"required"`
}

func (h *Handler) createTransaction(c *gin.Context) {
	var req createTransactionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	amt, err := decimal.NewFromString(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount"})
		return
	}
	t, err := h.txs.Create(c, callerID(c), req.Type, amt)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, service.NewTransactionView(*t, h.loc))
}

func (h *Handler) listUsers(c *gin.Context) {
	page, err := h.users.ListUsers(c, pageParams(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	views := make([]service.UserView, 0, len(page.Result))
	for _, u := range page.Result {
		views = append(views, service.NewUserView(u, h.loc))
	}
	c.JSON(http.StatusOK, gin.H{
		"result":       views,
		"current_page": page.CurrentPage,
		"size":         page.Size,
		"total_pages":  page.TotalPages,
		"total_items":  page.TotalItems,
	})
}

func (h *Handler) userTransactions(c *gin.Context) {
	userID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	page, err := h.txs.History(c, userID, pageParams(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user_id":      userID,
		"result":       service.NewTransactionViews(page.Result, h.loc),
		"current_page": page.CurrentPage,
		"size":         page.Size,
		"total_pages":  page.TotalPages,
		"total_items":  page.TotalItems,
	})
}

func (h *Handler) userBonuses(c *gin.Context) {
	userID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	line := service.FirstLine
	if c.DefaultQuery("line", "first") == "second" {
		line = service.SecondLine
	}
	from, to, err := dateRange(c, h.loc)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	txs, err := h.txs.BonusesInRange(c, userID, line, from, to)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, service.NewTransactionViews(txs, h.loc))
}

func (h *Handler) userPayouts(c *gin.Context) {
	userID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	from, to, err := dateRange(c, h.loc)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	txs, err := h.txs.PayoutsInRange(c, userID, from, to)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, service.NewTransactionViews(txs, h.loc))
}

func (h *Handler) walletBalance(c *gin.Context) {
	userID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	bal, err := h.wallets.GetBalance(c, userID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": userID, "balance": bal})
}

type payoutReq struct {
	Amount string `json:"amount" binding:"required"`
}

func (h *Handler) requestPayout(c *gin.Context) {
	userID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}
	if userID != callerID(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "cannot pay out another user's wallet"})
		return
	}
	var req payoutReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	amt, err := decimal.NewFromString(req.Amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount"})
		return
	}
	t, err := h.wallets.RequestPayout(c, userID, amt)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, service.NewTransactionView(*t, h.loc))
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// fail maps domain errors to HTTP statuses; anything unknown is a 500 with a
// generic body.
func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrDuplicateTransaction),
		errors.Is(err, service.ErrZeroBalance),
		errors.Is(err, service.ErrInsufficientBalance),
		errors.Is(err, service.ErrSelfReferral):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrUsernameTaken),
		errors.Is(err, service.ErrAlreadyReferred):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrWalletNotFound),
		errors.Is(err, service.ErrReferralCodeNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	default:
		h.log.Errorf("%s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func pageParams(c *gin.Context) service.PageParams {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "5"))
	return service.PageParams{Page: page, Size: size}
}

func dateRange(c *gin.Context, loc *time.Location) (time.Time, time.Time, error) {
	const layout = "2006-01-02"
	from, err := time.ParseInLocation(layout, c.DefaultQuery("from", time.Now().In(loc).AddDate(0, -1, 0).Format(layout)), loc)
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("invalid from date")
	}
	to, err := time.ParseInLocation(layout, c.DefaultQuery("to", time.Now().In(loc).Format(layout)), loc)
	if err != nil {
		return time.Time{}, time.Time{}, errors.New("invalid to date")
	}
	return from, to, nil
}
