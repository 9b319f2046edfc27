package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ludo-arena-backend/internal/model"
	"ludo-arena-backend/internal/pkg/lock"
	"ludo-arena-backend/internal/ws"
)

// BattleHandler serves the player-facing battle lifecycle.
type BattleHandler struct {
	deps *Deps
}

// NewBattleHandler creates a new BattleHandler instance.
func NewBattleHandler(deps *Deps) *BattleHandler {
	return &BattleHandler{deps: deps}
}

type createBattleRequest struct {
	Amount int64 `json:"amount" binding:"required,gt=0"`
}

// Create opens a challenge, staking the caller's wallet.
func (h *BattleHandler) Create(c *gin.Context) {
	var req createBattleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := currentUserID(c)
	var battle *model.Battle
	err := h.deps.Locks.WithLock(lock.KindUser, userID, func() error {
		var err error
		battle, err = h.deps.Battles.Create(c.Request.Context(), userID, req.Amount)
		return err
	})
	if err != nil {
		respondErr(c, err)
		return
	}

	h.deps.Hub.Broadcast(ws.EventBattleUpdate, battle)
	c.JSON(http.StatusCreated, gin.H{"battle": battle})
}

// ListOpen returns joinable challenges from other players.
func (h *BattleHandler) ListOpen(c *gin.Context) {
	battles, err := h.deps.Battles.ListOpen(c.Request.Context(), currentUserID(c), listLimit(c))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"battles": battles})
}

// ListMine returns the caller's battles.
func (h *BattleHandler) ListMine(c *gin.Context) {
	battles, err := h.deps.Battles.ListMine(c.Request.Context(), currentUserID(c), listLimit(c))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"battles": battles})
}

// Get returns one battle.
func (h *BattleHandler) Get(c *gin.Context) {
	battleID, ok := pathID(c, "id")
	if !ok {
		return
	}
	battle, err := h.deps.Battles.Get(c.Request.Context(), battleID)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"battle": battle})
}

// Accept joins an open challenge.
func (h *BattleHandler) Accept(c *gin.Context) {
	battleID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var battle *model.Battle
	err := h.deps.Locks.WithLock(lock.KindBattle, battleID, func() error {
		var err error
		battle, err = h.deps.Battles.Accept(c.Request.Context(), battleID, currentUserID(c))
		return err
	})
	if err != nil {
		respondErr(c, err)
		return
	}

	h.deps.Hub.SendToUser(battle.CreatorID, ws.EventBattleUpdate, battle)
	c.JSON(http.StatusOK, gin.H{"battle": battle})
}

// Cancel withdraws the caller's own unaccepted challenge.
func (h *BattleHandler) Cancel(c *gin.Context) {
	battleID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var battle *model.Battle
	err := h.deps.Locks.WithLock(lock.KindBattle, battleID, func() error {
		var err error
		battle, err = h.deps.Battles.Cancel(c.Request.Context(), battleID, currentUserID(c))
		return err
	})
	if err != nil {
		respondErr(c, err)
		return
	}

	h.deps.Hub.Broadcast(ws.EventBattleUpdate, battle)
	c.JSON(http.StatusOK, gin.H{"battle": battle})
}

type submitResultRequest struct {
	ScreenshotURL string `json:"screenshot_url" binding:"required,url"`
}

// SubmitResult claims the win with screenshot proof.
func (h *BattleHandler) SubmitResult(c *gin.Context) {
	battleID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req submitResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var battle *model.Battle
	err := h.deps.Locks.WithLock(lock.KindBattle, battleID, func() error {
		var err error
		battle, err = h.deps.Battles.SubmitResult(c.Request.Context(), battleID, currentUserID(c), req.ScreenshotURL)
		return err
	})
	if err != nil {
		respondErr(c, err)
		return
	}

	notifyParticipants(h.deps.Hub, battle)
	c.JSON(http.StatusOK, gin.H{"battle": battle})
}

func notifyParticipants(hub *ws.Hub, battle *model.Battle) {
	hub.SendToUser(battle.CreatorID, ws.EventBattleUpdate, battle)
	if battle.OpponentID != nil {
		hub.SendToUser(*battle.OpponentID, ws.EventBattleUpdate, battle)
	}
}
