package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/corgi-recs/corgi/internal/logger"
	"github.com/corgi-recs/corgi/internal/models"
	"github.com/corgi-recs/corgi/internal/privacy"
	"github.com/corgi-recs/corgi/internal/util"
)

type privacyResponse struct {
	Level                string `json:"level"`
	AllowPersonalization bool   `json:"allow_personalization"`
	AllowDetailedStorage bool   `json:"allow_detailed_storage"`
}

func newPrivacyResponse(level models.PrivacyLevel) privacyResponse {
	d := privacy.DecisionFor(level)
	return privacyResponse{
		Level:                string(d.Level),
		AllowPersonalization: d.AllowPersonalization,
		AllowDetailedStorage: d.AllowDetailedStorage,
	}
}

// GetPrivacy returns the caller's privacy level
// GET /api/v1/privacy
func (h *Handlers) GetPrivacy(c *gin.Context) {
	alias, ok := util.RequireUserAlias(c)
	if !ok {
		return
	}
	level, err := h.privacy.Level(c.Request.Context(), alias)
	if err != nil {
		util.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newPrivacyResponse(level))
}

// UpdatePrivacy replaces the caller's privacy level.
// Leaving full purges stored raw interactions.
// PUT /api/v1/privacy
func (h *Handlers) UpdatePrivacy(c *gin.Context) {
	alias, ok := util.RequireUserAlias(c)
	if !ok {
		return
	}

	var req struct {
		Level string `json:"level" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, "level is required")
		return
	}
	level, err := models.ParsePrivacyLevel(req.Level)
	if err != nil {
		util.RespondValidationError(c, "level", err.Error())
		return
	}

	ctx := c.Request.Context()
	if err := h.privacy.Set(ctx, alias, level); err != nil {
		util.RespondError(c, err)
		return
	}
	if !privacy.DecisionFor(level).AllowDetailedStorage {
		if n, err := h.interactions.Forget(ctx, alias); err != nil {
			logger.Log.Error("Failed to purge interactions after privacy change", logger.WithUserAlias(alias), zap.Error(err))
		} else if n > 0 {
			logger.Log.Info("Purged stored interactions", logger.WithUserAlias(alias), zap.Int64("rows", n))
		}
	}
	c.JSON(http.StatusOK, newPrivacyResponse(level))
}
