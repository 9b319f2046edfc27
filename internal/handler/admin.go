package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ludo-arena-backend/internal/model"
	"ludo-arena-backend/internal/pkg/lock"
	"ludo-arena-backend/internal/ws"
)

// AdminHandler serves the moderation API: review queues, settlement,
// tournament lifecycle, user moderation and channel management.
type AdminHandler struct {
	deps *Deps
}

// NewAdminHandler creates a new AdminHandler instance.
func NewAdminHandler(deps *Deps) *AdminHandler {
	return &AdminHandler{deps: deps}
}

// --- deposits ---

// ListDeposits returns the deposit queue, ?status= defaults to pending.
func (h *AdminHandler) ListDeposits(c *gin.Context) {
	deposits, err := h.deps.Payments.ListDeposits(c.Request.Context(), c.DefaultQuery("status", model.ReviewPending), listLimit(c))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deposits": deposits})
}

// ApproveDeposit credits the deposit and flips it to approved.
func (h *AdminHandler) ApproveDeposit(c *gin.Context) {
	depositID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var deposit *model.Deposit
	err := h.deps.Locks.WithLock(lock.KindDeposit, depositID, func() error {
		var err error
		deposit, err = h.deps.Payments.ApproveDeposit(c.Request.Context(), depositID, currentUserID(c))
		return err
	})
	if err != nil {
		respondErr(c, err)
		return
	}

	h.deps.Hub.SendToUser(deposit.UserID, ws.EventDepositUpdate, deposit)
	h.deps.Hub.SendToUser(deposit.UserID, ws.EventWalletUpdate, gin.H{"deposit_id": deposit.ID})
	c.JSON(http.StatusOK, gin.H{"deposit": deposit})
}

// RejectDeposit flips a pending deposit to rejected.
func (h *AdminHandler) RejectDeposit(c *gin.Context) {
	depositID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var deposit *model.Deposit
	err := h.deps.Locks.WithLock(lock.KindDeposit, depositID, func() error {
		var err error
		deposit, err = h.deps.Payments.RejectDeposit(c.Request.Context(), depositID, currentUserID(c))
		return err
	})
	if err != nil {
		respondErr(c, err)
		return
	}

	h.deps.Hub.SendToUser(deposit.UserID, ws.EventDepositUpdate, deposit)
	c.JSON(http.StatusOK, gin.H{"deposit": deposit})
}

// --- withdrawals ---

// ListWithdrawals returns the withdrawal queue.
func (h *AdminHandler) ListWithdrawals(c *gin.Context) {
	withdrawals, err := h.deps.Payments.ListWithdrawals(c.Request.Context(), c.DefaultQuery("status", model.ReviewPending), listLimit(c))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"withdrawals": withdrawals})
}

type approveWithdrawalRequest struct {
	UTR string `json:"utr" binding:"required,min=8,max=32"`
}

// ApproveWithdrawal records the payout UTR and completes the request.
func (h *AdminHandler) ApproveWithdrawal(c *gin.Context) {
	withdrawalID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req approveWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var withdrawal *model.Withdrawal
	err := h.deps.Locks.WithLock(lock.KindWithdrawal, withdrawalID, func() error {
		var err error
		withdrawal, err = h.deps.Payments.ApproveWithdrawal(c.Request.Context(), withdrawalID, currentUserID(c), req.UTR)
		return err
	})
	if err != nil {
		respondErr(c, err)
		return
	}

	h.deps.Hub.SendToUser(withdrawal.UserID, ws.EventWithdrawalUpdate, withdrawal)
	c.JSON(http.StatusOK, gin.H{"withdrawal": withdrawal})
}

// RejectWithdrawal refunds the held winnings and rejects the request.
func (h *AdminHandler) RejectWithdrawal(c *gin.Context) {
	withdrawalID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var withdrawal *model.Withdrawal
	err := h.deps.Locks.WithLock(lock.KindWithdrawal, withdrawalID, func() error {
		var err error
		withdrawal, err = h.deps.Payments.RejectWithdrawal(c.Request.Context(), withdrawalID, currentUserID(c))
		return err
	})
	if err != nil {
		respondErr(c, err)
		return
	}

	h.deps.Hub.SendToUser(withdrawal.UserID, ws.EventWithdrawalUpdate, withdrawal)
	h.deps.Hub.SendToUser(withdrawal.UserID, ws.EventWalletUpdate, gin.H{"withdrawal_id": withdrawal.ID})
	c.JSON(http.StatusOK, gin.H{"withdrawal": withdrawal})
}

// --- battle review ---

// ListBattles returns battles by ?status=, defaulting to the review
// queue.
func (h *AdminHandler) ListBattles(c *gin.Context) {
	battles, err := h.deps.Battles.ListByStatus(c.Request.Context(), c.DefaultQuery("status", model.BattleUnderReview), listLimit(c))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"battles": battles})
}

type settleBattleRequest struct {
	WinnerID int64 `json:"winner_id" binding:"required,gt=0"`
}

// SettleBattle approves a reviewed result and pays out the winner.
func (h *AdminHandler) SettleBattle(c *gin.Context) {
	battleID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req settleBattleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var battle *model.Battle
	err := h.deps.Locks.WithLock(lock.KindBattle, battleID, func() error {
		var err error
		battle, err = h.deps.Battles.Settle(c.Request.Context(), battleID, currentUserID(c), req.WinnerID)
		return err
	})
	if err != nil {
		respondErr(c, err)
		return
	}

	notifyParticipants(h.deps.Hub, battle)
	h.deps.Hub.SendToUser(req.WinnerID, ws.EventWalletUpdate, gin.H{"battle_id": battle.ID})
	c.JSON(http.StatusOK, gin.H{"battle": battle})
}

// DeclineBattle marks a claimed result as disputed.
func (h *AdminHandler) DeclineBattle(c *gin.Context) {
	battleID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var battle *model.Battle
	err := h.deps.Locks.WithLock(lock.KindBattle, battleID, func() error {
		var err error
		battle, err = h.deps.Battles.Decline(c.Request.Context(), battleID, currentUserID(c))
		return err
	})
	if err != nil {
		respondErr(c, err)
		return
	}

	notifyParticipants(h.deps.Hub, battle)
	c.JSON(http.StatusOK, gin.H{"battle": battle})
}

// VoidBattle cancels a battle and refunds both stakes.
func (h *AdminHandler) VoidBattle(c *gin.Context) {
	battleID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var battle *model.Battle
	err := h.deps.Locks.WithLock(lock.KindBattle, battleID, func() error {
		var err error
		battle, err = h.deps.Battles.Void(c.Request.Context(), battleID, currentUserID(c))
		return err
	})
	if err != nil {
		respondErr(c, err)
		return
	}

	notifyParticipants(h.deps.Hub, battle)
	c.JSON(http.StatusOK, gin.H{"battle": battle})
}

// --- tournaments ---

type createTournamentRequest struct {
	Title         string  `json:"title" binding:"required,min=3,max=80"`
	EntryFee      int64   `json:"entry_fee" binding:"required,gt=0"`
	PlayerCap     int32   `json:"player_cap" binding:"required,gte=2"`
	CommissionBps int32   `json:"commission_bps" binding:"gte=0,lte=10000"`
	PrizeSplit    []int32 `json:"prize_split" binding:"required,min=1"`
	StartsAt      string  `json:"starts_at" binding:"required"`
}

// CreateTournament registers a new upcoming tournament.
func (h *AdminHandler) CreateTournament(c *gin.Context) {
	var req createTournamentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	startsAt, err := time.Parse(time.RFC3339, req.StartsAt)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "starts_at must be RFC3339"})
		return
	}

	tournament, err := h.deps.Tournaments.Create(c.Request.Context(), req.Title, req.EntryFee, req.PlayerCap, req.CommissionBps, req.PrizeSplit, startsAt)
	if err != nil {
		respondErr(c, err)
		return
	}

	h.deps.Hub.Broadcast(ws.EventTournamentUpdate, tournament)
	c.JSON(http.StatusCreated, gin.H{"tournament": tournament})
}

// StartTournament moves an upcoming tournament to live.
func (h *AdminHandler) StartTournament(c *gin.Context) {
	h.tournamentTransition(c, func(id int64) error {
		return h.deps.Tournaments.Start(c.Request.Context(), id)
	})
}

type completeTournamentRequest struct {
	Ranked []int64 `json:"ranked" binding:"required,min=2"`
}

// CompleteTournament settles a live tournament with ranked results.
func (h *AdminHandler) CompleteTournament(c *gin.Context) {
	var req completeTournamentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.tournamentTransition(c, func(id int64) error {
		return h.deps.Tournaments.Complete(c.Request.Context(), id, req.Ranked)
	})
}

// CancelTournament cancels an upcoming tournament and refunds fees.
func (h *AdminHandler) CancelTournament(c *gin.Context) {
	h.tournamentTransition(c, func(id int64) error {
		return h.deps.Tournaments.CancelAndRefund(c.Request.Context(), id)
	})
}

func (h *AdminHandler) tournamentTransition(c *gin.Context, fn func(id int64) error) {
	tournamentID, ok := pathID(c, "id")
	if !ok {
		return
	}

	err := h.deps.Locks.WithLock(lock.KindTournament, tournamentID, func() error {
		return fn(tournamentID)
	})
	if err != nil {
		respondErr(c, err)
		return
	}

	tournament, err := h.deps.Tournaments.Get(c.Request.Context(), tournamentID)
	if err != nil {
		respondErr(c, err)
		return
	}

	h.deps.Hub.Broadcast(ws.EventTournamentUpdate, tournament)
	c.JSON(http.StatusOK, gin.H{"tournament": tournament})
}

// --- users ---

// ListUsers returns accounts for the admin panel.
func (h *AdminHandler) ListUsers(c *gin.Context) {
	users, err := h.deps.Accounts.ListUsers(c.Request.Context(), listLimit(c), 0)
	if err != nil {
		respondErr(c, err)
		return
	}

	views := make([]userView, len(users))
	for i, u := range users {
		views[i] = toUserView(u)
	}
	c.JSON(http.StatusOK, gin.H{"users": views})
}

type suspendRequest struct {
	Suspended bool `json:"suspended"`
}

// SuspendUser suspends or reactivates an account.
func (h *AdminHandler) SuspendUser(c *gin.Context) {
	userID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req suspendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.deps.Accounts.SetSuspended(c.Request.Context(), userID, req.Suspended); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "updated"})
}

type kycReviewRequest struct {
	Approve bool `json:"approve"`
}

// ReviewKYC approves or rejects submitted identity documents.
func (h *AdminHandler) ReviewKYC(c *gin.Context) {
	userID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req kycReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.deps.Accounts.ReviewKYC(c.Request.Context(), userID, req.Approve); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "updated"})
}

type adjustRequest struct {
	Amount int64  `json:"amount" binding:"required"`
	Bucket string `json:"bucket" binding:"required,oneof=balance winnings"`
}

// AdjustWallet credits or debits a user's wallet bucket.
func (h *AdminHandler) AdjustWallet(c *gin.Context) {
	userID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req adjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user *model.User
	err := h.deps.Locks.WithLock(lock.KindUser, userID, func() error {
		var err error
		user, err = h.deps.Accounts.AdminAdjust(c.Request.Context(), currentUserID(c), userID, req.Amount, req.Bucket)
		return err
	})
	if err != nil {
		respondErr(c, err)
		return
	}

	h.deps.Hub.SendToUser(userID, ws.EventWalletUpdate, gin.H{"by": "admin"})
	c.JSON(http.StatusOK, gin.H{"user": toUserView(user)})
}

type setRoleRequest struct {
	Role string `json:"role" binding:"required,oneof=none finance superadmin"`
}

// SetRole grants or revokes an admin role.
func (h *AdminHandler) SetRole(c *gin.Context) {
	userID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req setRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.deps.Accounts.SetRole(c.Request.Context(), userID, req.Role); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "updated"})
}

// --- channels ---

type createChannelRequest struct {
	UpiID      string `json:"upi_id" binding:"required,min=5,max=64"`
	DailyLimit int64  `json:"daily_limit" binding:"required,gt=0"`
}

// CreateChannel registers a new UPI collection channel.
func (h *AdminHandler) CreateChannel(c *gin.Context) {
	var req createChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	channel, err := h.deps.Payments.CreateChannel(c.Request.Context(), req.UpiID, req.DailyLimit)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"channel": channel})
}

// ListChannels returns all channels in rotation order.
func (h *AdminHandler) ListChannels(c *gin.Context) {
	channels, err := h.deps.Payments.ListChannels(c.Request.Context())
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"channels": channels})
}

// ResetChannel zeroes a channel's daily counter.
func (h *AdminHandler) ResetChannel(c *gin.Context) {
	channelID, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.deps.Payments.ResetChannel(c.Request.Context(), channelID); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "reset"})
}

type channelActiveRequest struct {
	Active bool `json:"active"`
}

// SetChannelActive enables or disables a channel.
func (h *AdminHandler) SetChannelActive(c *gin.Context) {
	channelID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req channelActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.deps.Payments.SetChannelActive(c.Request.Context(), channelID, req.Active); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "updated"})
}

// --- revenue ---

// Revenue returns the platform's accumulated commission.
func (h *AdminHandler) Revenue(c *gin.Context) {
	revenue, err := h.deps.Stats.Revenue(c.Request.Context())
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"revenue": revenue})
}
