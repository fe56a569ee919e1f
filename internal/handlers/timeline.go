package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/corgi-recs/corgi/internal/injection"
	"github.com/corgi-recs/corgi/internal/placement"
	"github.com/corgi-recs/corgi/internal/util"
)

// GetHomeTimeline returns the caller's home timeline with recommendations merged in.
// GET /api/v1/timelines/home?limit=&strategy=&n=&cold_start=&new_user=&inject=&max_injections=&max_id=&since_id=
func (h *Handlers) GetHomeTimeline(c *gin.Context) {
	req := injection.Request{
		UserAlias:      util.GetUserAlias(c),
		AccessToken:    util.GetAccessToken(c),
		Strategy:       c.Query("strategy"),
		Limit:          util.ParseInt(c.Query("limit"), 0),
		MaxID:          c.Query("max_id"),
		SinceID:        c.Query("since_id"),
		ForceColdStart: util.ParseBool(c.Query("cold_start"), false),
		NewUser:        util.ParseBool(c.Query("new_user"), false),
	}

	inject, err := util.ParseOptionalBool(c.Query("inject"))
	if err != nil {
		util.RespondValidationError(c, "inject", "inject must be a boolean")
		return
	}
	req.Inject = inject

	maxInjections, err := util.ParseOptionalInt(c.Query("max_injections"))
	if err != nil {
		util.RespondValidationError(c, "max_injections", "max_injections must be an integer")
		return
	}
	req.MaxInjections = maxInjections

	if n := c.Query("n"); n != "" {
		req.StrategyParams = &placement.Params{N: util.ParseInt(n, -1)}
	}

	resp, err := h.timeline.BuildTimeline(c.Request.Context(), req)
	if err != nil {
		if c.Request.Context().Err() != nil {
			// client went away; nothing useful to send
			c.Status(499)
			return
		}
		util.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
