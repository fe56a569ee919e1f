package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apierrors "github.com/corgi-recs/corgi/internal/errors"
	"github.com/corgi-recs/corgi/internal/interactions"
	"github.com/corgi-recs/corgi/internal/logger"
	"github.com/corgi-recs/corgi/internal/models"
	"github.com/corgi-recs/corgi/internal/upstream"
	"github.com/corgi-recs/corgi/internal/util"
)

// interactionMetadata is the client's description of the post
type interactionMetadata struct {
	AuthorID    string   `json:"author_id"`
	Tags        []string `json:"tags"`
	Category    string   `json:"category"`
	Vibe        string   `json:"vibe"`
	Tone        string   `json:"tone"`
	AccountType string   `json:"account_type"`
	PostType    string   `json:"post_type"`
}

type interactionRequest struct {
	PostID     string               `json:"post_id" binding:"required"`
	ActionType string               `json:"action_type" binding:"required"`
	Metadata   *interactionMetadata `json:"metadata"`
	Context    interactions.Context `json:"context"`
}

func (m *interactionMetadata) post(id string) *models.Post {
	if m == nil {
		return nil
	}
	return &models.Post{
		ID:      id,
		Account: models.Account{ID: m.AuthorID},
		Tags:    m.Tags,
		Metadata: models.PostMetadata{
			Category:    m.Category,
			Vibe:        m.Vibe,
			Tone:        m.Tone,
			AccountType: m.AccountType,
			PostType:    m.PostType,
		},
	}
}

// LogInteraction records a user action on a post
// POST /api/v1/interactions
func (h *Handlers) LogInteraction(c *gin.Context) {
	alias, ok := util.RequireUserAlias(c)
	if !ok {
		return
	}

	var req interactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		util.RespondBadRequest(c, "invalid interaction: "+err.Error())
		return
	}
	action, err := models.ParseActionType(req.ActionType)
	if err != nil {
		util.RespondValidationError(c, "action_type", err.Error())
		return
	}

	result, err := h.interactions.Log(c.Request.Context(), interactions.Event{
		UserAlias: alias,
		PostID:    req.PostID,
		Action:    action,
		Post:      req.Metadata.post(req.PostID),
		Context:   req.Context,
	})
	if err != nil {
		util.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "result": result})
}

// StatusAction performs a Mastodon write (favourite, reblog, bookmark) and logs it as an interaction.
// POST /api/v1/statuses/:id/{favourite,reblog,bookmark}
func (h *Handlers) StatusAction(action models.ActionType) gin.HandlerFunc {
	return func(c *gin.Context) {
		alias, ok := util.RequireUserAlias(c)
		if !ok {
			return
		}
		id := c.Param("id")
		token := util.GetAccessToken(c)
		ctx := c.Request.Context()

		var (
			post *models.Post
			err  error
		)
		switch action {
		case models.ActionFavorite:
			post, err = h.statuses.Favourite(ctx, token, id)
		case models.ActionReblog:
			post, err = h.statuses.Reblog(ctx, token, id)
		case models.ActionBookmark:
			post, err = h.statuses.Bookmark(ctx, token, id)
		}
		if err != nil {
			respondUpstreamError(c, err)
			return
		}

		// the upstream write succeeded; a logging failure must not undo that for the client
		if _, err := h.interactions.Log(ctx, interactions.Event{
			UserAlias: alias,
			PostID:    post.ID,
			Action:    action,
			Post:      post,
		}); err != nil {
			logger.Log.Warn("Failed to log status action",
				logger.WithUserAlias(alias),
				logger.WithPostID(post.ID),
				zap.String("action", string(action)),
				zap.Error(err),
			)
		}
		c.JSON(http.StatusOK, post)
	}
}

func respondUpstreamError(c *gin.Context, err error) {
	var statusErr *upstream.StatusError
	switch {
	case errors.Is(err, upstream.ErrUnauthorized):
		util.RespondUnauthorized(c, "access token rejected by upstream instance")
	case errors.As(err, &statusErr) && statusErr.Code == http.StatusNotFound:
		util.RespondNotFound(c, "status")
	default:
		logger.Log.Warn("Upstream write failed", zap.Error(err))
		util.RespondWithAPIError(c, apierrors.ServiceUnavailable("upstream instance").WithDetails(err.Error()))
	}
}
