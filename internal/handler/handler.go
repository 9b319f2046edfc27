// Package handler exposes the HTTP API.
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"ludo-arena-backend/internal/middleware"
	"ludo-arena-backend/internal/model"
	"ludo-arena-backend/internal/service"
)

const defaultListLimit = 50

// userView is the User shape returned to clients. The password hash
// never leaves the server.
type userView struct {
	ID             int64  `json:"id"`
	Phone          string `json:"phone"`
	Username       string `json:"username"`
	Balance        int64  `json:"balance"`
	Winnings       int64  `json:"winnings"`
	KYCStatus      string `json:"kyc_status"`
	Status         string `json:"status"`
	Role           string `json:"role"`
	ReferralCode   string `json:"referral_code"`
	GamesPlayed    int64  `json:"games_played"`
	GamesWon       int64  `json:"games_won"`
	TotalDeposited int64  `json:"total_deposited"`
	TotalWithdrawn int64  `json:"total_withdrawn"`
}

func toUserView(u *model.User) userView {
	return userView{
		ID:             u.ID,
		Phone:          u.Phone,
		Username:       u.Username,
		Balance:        u.Balance,
		Winnings:       u.Winnings,
		KYCStatus:      u.KYCStatus,
		Status:         u.Status,
		Role:           u.Role,
		ReferralCode:   u.ReferralCode,
		GamesPlayed:    u.GamesPlayed,
		GamesWon:       u.GamesWon,
		TotalDeposited: u.TotalDeposited,
		TotalWithdrawn: u.TotalWithdrawn,
	}
}

func currentUserID(c *gin.Context) int64 {
	return c.GetInt64(middleware.CtxUserID)
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return id, true
}

func listLimit(c *gin.Context) int {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", ""))
	if err != nil || limit <= 0 || limit > 200 {
		return defaultListLimit
	}
	return limit
}

// respondErr maps service errors onto HTTP statuses. Unknown errors
// become 500 without leaking internals.
func respondErr(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	message := "internal error"

	switch {
	case errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrBattleNotFound),
		errors.Is(err, service.ErrTournamentNotFound),
		errors.Is(err, service.ErrDepositNotFound),
		errors.Is(err, service.ErrWithdrawalNotFound),
		errors.Is(err, service.ErrOrderNotFound):
		status, message = http.StatusNotFound, err.Error()

	case errors.Is(err, service.ErrInvalidCredentials),
		errors.Is(err, service.ErrInvalidToken):
		status, message = http.StatusUnauthorized, err.Error()

	case errors.Is(err, service.ErrAccountSuspended),
		errors.Is(err, service.ErrKYCRequired),
		errors.Is(err, service.ErrNotParticipant):
		status, message = http.StatusForbidden, err.Error()

	case errors.Is(err, service.ErrPhoneTaken),
		errors.Is(err, service.ErrAlreadyJoined),
		errors.Is(err, service.ErrNotPending):
		status, message = http.StatusConflict, err.Error()

	case errors.Is(err, service.ErrInsufficientBalance),
		errors.Is(err, service.ErrInvalidAmount),
		errors.Is(err, service.ErrStakeOutOfRange),
		errors.Is(err, service.ErrBelowMinimum),
		errors.Is(err, service.ErrInvalidReferral),
		errors.Is(err, service.ErrSelfChallenge),
		errors.Is(err, service.ErrBattleNotOpen),
		errors.Is(err, service.ErrBattleNotOngoing),
		errors.Is(err, service.ErrBattleNotInReview),
		errors.Is(err, service.ErrBattleNotVoidable),
		errors.Is(err, service.ErrTournamentClosed),
		errors.Is(err, service.ErrTournamentFull),
		errors.Is(err, service.ErrTournamentNotLive),
		errors.Is(err, service.ErrNotEnoughPlayers),
		errors.Is(err, service.ErrBadPrizeSplit),
		errors.Is(err, service.ErrBadResults),
		errors.Is(err, service.ErrKYCNotSubmitted),
		errors.Is(err, service.ErrNoChannelAvailable):
		status, message = http.StatusBadRequest, err.Error()
	}

	c.JSON(status, gin.H{"error": message})
}
