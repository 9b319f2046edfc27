package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// PaymentHandler serves player deposit and withdrawal requests.
type PaymentHandler struct {
	deps *Deps
}

// NewPaymentHandler creates a new PaymentHandler instance.
func NewPaymentHandler(deps *Deps) *PaymentHandler {
	return &PaymentHandler{deps: deps}
}

// ActiveChannel returns the UPI address a deposit of ?amount= should
// be paid into.
func (h *PaymentHandler) ActiveChannel(c *gin.Context) {
	amount, err := strconv.ParseInt(c.Query("amount"), 10, 64)
	if err != nil || amount <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount"})
		return
	}

	channel, err := h.deps.Payments.ActiveChannel(c.Request.Context(), amount)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"upi_id": channel.UpiID})
}

type depositRequest struct {
	Amount int64  `json:"amount" binding:"required,gt=0"`
	UTR    string `json:"utr" binding:"required,min=8,max=32"`
}

// RequestDeposit files a manual deposit claim for admin review.
func (h *PaymentHandler) RequestDeposit(c *gin.Context) {
	var req depositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	deposit, err := h.deps.Payments.RequestDeposit(c.Request.Context(), currentUserID(c), req.Amount, req.UTR)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"deposit": deposit})
}

// MyDeposits returns the caller's deposit history.
func (h *PaymentHandler) MyDeposits(c *gin.Context) {
	deposits, err := h.deps.Payments.UserDeposits(c.Request.Context(), currentUserID(c), listLimit(c))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deposits": deposits})
}

type withdrawalRequest struct {
	Amount int64  `json:"amount" binding:"required,gt=0"`
	UpiID  string `json:"upi_id" binding:"required,min=5,max=64"`
}

// RequestWithdrawal files a payout request, holding the winnings.
func (h *PaymentHandler) RequestWithdrawal(c *gin.Context) {
	var req withdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := currentUserID(c)
	withdrawal, err := h.deps.Payments.RequestWithdrawal(c.Request.Context(), userID, req.Amount, req.UpiID)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"withdrawal": withdrawal})
}

// MyWithdrawals returns the caller's withdrawal history.
func (h *PaymentHandler) MyWithdrawals(c *gin.Context) {
	withdrawals, err := h.deps.Payments.UserWithdrawals(c.Request.Context(), currentUserID(c), listLimit(c))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"withdrawals": withdrawals})
}
