package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// AuthHandler serves registration and login.
type AuthHandler struct {
	deps *Deps
}

// NewAuthHandler creates a new AuthHandler instance.
func NewAuthHandler(deps *Deps) *AuthHandler {
	return &AuthHandler{deps: deps}
}

type registerRequest struct {
	Phone        string `json:"phone" binding:"required,min=10,max=15"`
	Username     string `json:"username" binding:"required,min=3,max=32"`
	Password     string `json:"password" binding:"required,min=6,max=72"`
	ReferralCode string `json:"referral_code"`
}

// Register creates an account and returns a session token.
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.deps.Accounts.Register(c.Request.Context(), req.Phone, req.Username, req.Password, req.ReferralCode)
	if err != nil {
		respondErr(c, err)
		return
	}

	token, err := h.deps.Tokens.Generate(user)
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"token": token, "user": toUserView(user)})
}

type loginRequest struct {
	Phone    string `json:"phone" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login verifies credentials and returns a session token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.deps.Accounts.Login(c.Request.Context(), req.Phone, req.Password)
	if err != nil {
		respondErr(c, err)
		return
	}

	token, err := h.deps.Tokens.Generate(user)
	if err != nil {
		respondErr(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "user": toUserView(user)})
}
