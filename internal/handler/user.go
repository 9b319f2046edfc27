package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// UserHandler serves the authenticated user's own account.
type UserHandler struct {
	deps *Deps
}

// NewUserHandler creates a new UserHandler instance.
func NewUserHandler(deps *Deps) *UserHandler {
	return &UserHandler{deps: deps}
}

// Me returns the caller's account and wallet snapshot.
func (h *UserHandler) Me(c *gin.Context) {
	user, err := h.deps.Accounts.GetUser(c.Request.Context(), currentUserID(c))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": toUserView(user)})
}

// Transactions returns the caller's ledger, newest first.
func (h *UserHandler) Transactions(c *gin.Context) {
	entries, err := h.deps.Wallet.Ledger(c.Request.Context(), currentUserID(c), listLimit(c))
	if err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": entries})
}

// SubmitKYC records that the caller handed in identity documents.
func (h *UserHandler) SubmitKYC(c *gin.Context) {
	if err := h.deps.Accounts.SubmitKYC(c.Request.Context(), currentUserID(c)); err != nil {
		respondErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "kyc submitted"})
}
