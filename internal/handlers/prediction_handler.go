package handlers

import (
	"net/http"
	"strconv"

	"sportsblock/internal/apperrors"
	"sportsblock/internal/auth"
	"sportsblock/internal/models"
	"sportsblock/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type PredictionHandler struct {
	predictions *services.PredictionService
	settlement  *services.SettlementService
}

func NewPredictionHandler(predictions *services.PredictionService, settlement *services.SettlementService) *PredictionHandler {
	return &PredictionHandler{
		predictions: predictions,
		settlement:  settlement,
	}
}

// CreatePrediction creates a prediction with its outcomes
// POST /api/predictions
func (h *PredictionHandler) CreatePrediction(c *gin.Context) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		respondError(c, apperrors.New(apperrors.CodeUnauthorized, "unauthorized"))
		return
	}

	var req models.CreatePredictionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.New(apperrors.CodeValidation, err.Error()))
		return
	}

	prediction, err := h.predictions.Create(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    prediction,
	})
}

// ListPredictions returns predictions, newest first, cursor-paginated
// GET /api/predictions?status=&cursor=&limit=
func (h *PredictionHandler) ListPredictions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	page, err := h.predictions.List(
		c.Request.Context(),
		c.Query("status"),
		c.Query("cursor"),
		limit,
	)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"data":        page.Predictions,
		"count":       len(page.Predictions),
		"next_cursor": page.NextCursor,
	})
}

// GetPrediction returns a prediction with outcomes and odds, joining the
// caller's own stakes in when authenticated
// GET /api/predictions/:id
func (h *PredictionHandler) GetPrediction(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		respondError(c, err)
		return
	}

	var viewerID *uint
	if userID, exists := auth.GetUserID(c); exists {
		viewerID = &userID
	}

	view, err := h.predictions.Get(c.Request.Context(), id, viewerID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    view,
	})
}

// EditPrediction applies a pre-stake edit
// PUT /api/predictions/:id
func (h *PredictionHandler) EditPrediction(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		respondError(c, err)
		return
	}
	userID, hiveAccount, ok := requireAuth(c)
	if !ok {
		return
	}

	var req models.EditPredictionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.New(apperrors.CodeValidation, err.Error()))
		return
	}

	prediction, err := h.predictions.Edit(c.Request.Context(), id, userID, hiveAccount, &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    prediction,
	})
}

// DeletePrediction removes a zero-pool prediction
// DELETE /api/predictions/:id
func (h *PredictionHandler) DeletePrediction(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		respondError(c, err)
		return
	}
	userID, hiveAccount, ok := requireAuth(c)
	if !ok {
		return
	}

	if err := h.predictions.Delete(c.Request.Context(), id, userID, hiveAccount); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Prediction deleted",
	})
}

// LockPrediction locks an OPEN prediction early
// POST /api/predictions/:id/lock
func (h *PredictionHandler) LockPrediction(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		respondError(c, err)
		return
	}
	userID, hiveAccount, ok := requireAuth(c)
	if !ok {
		return
	}

	prediction, err := h.predictions.Lock(c.Request.Context(), id, userID, hiveAccount)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    prediction,
	})
}

// SettlePrediction declares the winning outcome and pays out the pool
// POST /api/predictions/:id/settle
func (h *PredictionHandler) SettlePrediction(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		respondError(c, err)
		return
	}
	userID, hiveAccount, ok := requireAuth(c)
	if !ok {
		return
	}

	var req models.SettlePredictionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.New(apperrors.CodeValidation, err.Error()))
		return
	}
	winningOutcomeID, err := uuid.Parse(req.WinningOutcomeID)
	if err != nil {
		respondError(c, apperrors.New(apperrors.CodeValidation, "malformed winning outcome id"))
		return
	}

	// Authorization before any mutation.
	if err := h.predictions.Authorize(c.Request.Context(), id, userID, hiveAccount); err != nil {
		respondError(c, err)
		return
	}

	result, err := h.settlement.Settle(c.Request.Context(), id, winningOutcomeID, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	response := gin.H{
		"success": true,
		"data":    result,
	}
	if result.AutoVoided {
		response["code"] = apperrors.CodeZeroPoolSettlement
		response["message"] = "winning outcome had no stakes; prediction voided and all stakes refunded"
	}

	c.JSON(http.StatusOK, response)
}

// VoidPrediction cancels a LOCKED prediction and refunds every stake
// POST /api/predictions/:id/void
func (h *PredictionHandler) VoidPrediction(c *gin.Context) {
	id, err := parseID(c)
	if err != nil {
		respondError(c, err)
		return
	}
	userID, hiveAccount, ok := requireAuth(c)
	if !ok {
		return
	}

	var req models.VoidPredictionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperrors.New(apperrors.CodeValidation, err.Error()))
		return
	}

	if err := h.predictions.Authorize(c.Request.Context(), id, userID, hiveAccount); err != nil {
		respondError(c, err)
		return
	}

	result, err := h.settlement.Void(c.Request.Context(), id, req.Reason, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result,
	})
}

func parseID(c *gin.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, apperrors.New(apperrors.CodeValidation, "malformed prediction id")
	}
	return id, nil
}

func requireAuth(c *gin.Context) (uint, string, bool) {
	userID, exists := auth.GetUserID(c)
	if !exists {
		respondError(c, apperrors.New(apperrors.CodeUnauthorized, "unauthorized"))
		return 0, "", false
	}
	hiveAccount, _ := auth.GetHiveAccount(c)
	return userID, hiveAccount, true
}
