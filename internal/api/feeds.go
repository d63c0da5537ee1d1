package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/socialnet/network/internal/feed"
	"github.com/socialnet/network/internal/social"
)

// index serves the global feed
func (r *Router) index(c *gin.Context) {
	page, err := r.feed.Page(c.Request.Context(), feed.Global(), viewerID(c), c.Query("page"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"page": page})
}

// profile serves an account's header and its posts
func (r *Router) profile(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		abortWithError(c, social.AccountNotFound())
		return
	}

	ctx := c.Request.Context()
	profile, err := r.accounts.Profile(ctx, id, viewerID(c))
	if err != nil {
		abortWithError(c, err)
		return
	}
	page, err := r.feed.Page(ctx, feed.ByAccount(id), viewerID(c), c.Query("page"))
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"profile": profile,
		"page":    page,
	})
}

// following serves the posts of accounts the viewer follows
func (r *Router) following(c *gin.Context) {
	viewer := viewerID(c)
	page, err := r.feed.Page(c.Request.Context(), feed.ByFollowing(viewer), viewer, c.Query("page"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"page": page})
}
