package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"sportsblock/internal/apperrors"
	"sportsblock/internal/auth"
	"sportsblock/internal/services"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authService *services.AuthService
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

// Login authenticates a Hive account that the wallet-provider gateway
// (Keychain/HiveSigner) has already verified, sanity-checking the account
// name and posting key format before issuing a session token.
// POST /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		HiveAccount   string `json:"hive_account" binding:"required"`
		PostingPubkey string `json:"posting_pubkey" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.New(apperrors.CodeValidation, err.Error()))
		return
	}

	account := strings.ToLower(strings.TrimSpace(req.HiveAccount))
	if err := auth.ValidateAccountName(account); err != nil {
		respondError(c, apperrors.Newf(apperrors.CodeValidation, "invalid hive account: %v", err))
		return
	}
	if err := auth.ValidatePublicKey(req.PostingPubkey); err != nil {
		respondError(c, apperrors.Newf(apperrors.CodeValidation, "invalid posting key: %v", err))
		return
	}

	user, err := h.authService.ProcessHiveLogin(account, req.PostingPubkey)
	if err != nil {
		respondError(c, err)
		return
	}

	token, err := auth.GenerateToken(user.ID, user.HiveAccount)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user":  user,
	})
}

// GetMe returns the currently authenticated user's profile
// GET /auth/me
func (h *AuthHandler) GetMe(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		respondError(c, apperrors.New(apperrors.CodeUnauthorized, "unauthorized"))
		return
	}

	user, err := h.authService.GetUserByID(userID)
	if err != nil {
		respondError(c, apperrors.New(apperrors.CodeNotFound, "user not found"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user": user,
	})
}

// Logout handles user logout (stateless JWT — client-side only)
// POST /auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "Successfully logged out",
	})
}
