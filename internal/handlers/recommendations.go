package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/corgi-recs/corgi/internal/metrics"
	"github.com/corgi-recs/corgi/internal/models"
	"github.com/corgi-recs/corgi/internal/signals"
	"github.com/corgi-recs/corgi/internal/util"
)

type profileResponse struct {
	Status        signals.Status   `json:"status"`
	IsPromoted    bool             `json:"is_promoted"`
	NeedsReentry  bool             `json:"needs_reentry"`
	RandomRatio   float64          `json:"random_ratio"`
	WeightedRatio float64          `json:"weighted_ratio"`
	TopTags       []string         `json:"top_tags"`
	Profile       *signals.Profile `json:"profile,omitempty"`
}

// GetProfile returns the caller's signal profile and sourcing status
// GET /api/v1/recommendations/profile
func (h *Handlers) GetProfile(c *gin.Context) {
	alias, ok := util.RequireUserAlias(c)
	if !ok {
		return
	}
	status, profile, err := h.profiles.Status(c.Request.Context(), alias)
	if err != nil {
		util.RespondError(c, err)
		return
	}

	var interactions int64
	if profile != nil {
		interactions = profile.InteractionCount
	}
	random, weighted := h.profiles.Config().BlendRatios(interactions)
	c.JSON(http.StatusOK, profileResponse{
		Status:        status,
		IsPromoted:    status == signals.StatusPromoted,
		NeedsReentry:  status == signals.StatusReentry,
		RandomRatio:   random,
		WeightedRatio: weighted,
		TopTags:       profile.TopValues(models.DimensionTag, 10),
		Profile:       profile,
	})
}

// DeleteProfile resets the caller's signal profile and stored interactions
// DELETE /api/v1/recommendations/profile
func (h *Handlers) DeleteProfile(c *gin.Context) {
	alias, ok := util.RequireUserAlias(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	if err := h.profiles.Reset(ctx, alias); err != nil {
		util.RespondError(c, err)
		return
	}
	removed, err := h.interactions.Forget(ctx, alias)
	if err != nil {
		util.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reset": true, "interactions_removed": removed})
}

// GetMetrics returns aggregate injection statistics and click-through rates
// GET /api/v1/recommendations/metrics?days=7
func (h *Handlers) GetMetrics(c *gin.Context) {
	resp := gin.H{}
	if h.stats != nil {
		resp["injection"] = h.stats.Snapshot()
	}
	if h.alerts != nil {
		resp["alerts"] = gin.H{
			"active":  h.alerts.GetActiveAlerts(),
			"summary": h.alerts.GetStats(),
		}
	}
	if h.db != nil {
		days := util.ParseInt(c.DefaultQuery("days", "7"), 7)
		if days < 1 || days > 90 {
			util.RespondValidationError(c, "days", "days must be between 1 and 90")
			return
		}
		ctr, err := metrics.CalculateCTR(c.Request.Context(), h.db, time.Now().AddDate(0, 0, -days))
		if err != nil {
			util.RespondError(c, err)
			return
		}
		resp["ctr"] = ctr
		resp["period_days"] = days
	}
	c.JSON(http.StatusOK, resp)
}
