package handlers

import (
	"net/http"

	"sportsblock/internal/apperrors"
	"sportsblock/internal/models"
	"sportsblock/internal/services"

	"github.com/gin-gonic/gin"
)

type StakeHandler struct {
	stakes *services.StakeService
}

func NewStakeHandler(stakes *services.StakeService) *StakeHandler {
	return &StakeHandler{stakes: stakes}
}

// PlaceStake stakes MEDALS on an outcome
// POST /api/predictions/:id/stakes
func (h *StakeHandler) PlaceStake(c *gin.Context) {
	predictionID, err := parseID(c)
	if err != nil {
		respondError(c, err)
		return
	}
	userID, hiveAccount, ok := requireAuth(c)
	if !ok {
		return
	}

	var req models.PlaceStakeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.New(apperrors.CodeValidation, err.Error()))
		return
	}

	receipt, err := h.stakes.PlaceStake(c.Request.Context(), userID, hiveAccount, predictionID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    receipt,
	})
}

// GetMyStakes returns the caller's stakes and aggregates for a prediction
// GET /api/predictions/:id/stakes/me
func (h *StakeHandler) GetMyStakes(c *gin.Context) {
	predictionID, err := parseID(c)
	if err != nil {
		respondError(c, err)
		return
	}
	userID, _, ok := requireAuth(c)
	if !ok {
		return
	}

	summary, err := h.stakes.GetMyStakes(c.Request.Context(), predictionID, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    summary,
	})
}
