package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ludo-arena-backend/internal/model"
	"ludo-arena-backend/internal/pkg/lock"
	"ludo-arena-backend/internal/ws"
)

// TournamentHandler serves the player-facing tournament endpoints.
type TournamentHandler struct {
	deps *Deps
}

// NewTournamentHandler creates a new TournamentHandler instance.
func NewTournamentHandler(deps *Deps) *TournamentHandler {
	return &TournamentHandler{deps: deps}
}

// List returns tournaments, optionally filtered by ?status=.
func (h *TournamentHandler) List(c *gin.Context) {
	tournaments, err := h.deps.Tournaments.List(c.Request.Context(), c.Query("status"), listLimit(c))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tournaments": tournaments})
}

// Get returns one tournament.
func (h *TournamentHandler) Get(c *gin.Context) {
	tournamentID, ok := pathID(c, "id")
	if !ok {
		return
	}
	tournament, err := h.deps.Tournaments.Get(c.Request.Context(), tournamentID)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tournament": tournament})
}

// Players returns a tournament's entrants.
func (h *TournamentHandler) Players(c *gin.Context) {
	tournamentID, ok := pathID(c, "id")
	if !ok {
		return
	}
	players, err := h.deps.Tournaments.Players(c.Request.Context(), tournamentID)
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"players": players})
}

// Join enters the caller into a tournament, debiting the entry fee.
func (h *TournamentHandler) Join(c *gin.Context) {
	tournamentID, ok := pathID(c, "id")
	if !ok {
		return
	}

	userID := currentUserID(c)
	var tournament *model.Tournament
	err := h.deps.Locks.WithLock(lock.KindTournament, tournamentID, func() error {
		var err error
		tournament, err = h.deps.Tournaments.Join(c.Request.Context(), tournamentID, userID)
		return err
	})
	if err != nil {
		respondErr(c, err)
		return
	}

	h.deps.Hub.Broadcast(ws.EventTournamentUpdate, tournament)
	h.deps.Hub.SendToUser(userID, ws.EventWalletUpdate, gin.H{"tournament_id": tournamentID})
	c.JSON(http.StatusOK, gin.H{"tournament": tournament})
}
