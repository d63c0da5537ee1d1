package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/socialnet/network/internal/social"
)

type postForm struct {
	Body string `form:"body"`
}

type editRequest struct {
	Text *string `json:"text"`
}

func (r *Router) createPost(c *gin.Context) {
	var form postForm
	if err := c.ShouldBind(&form); err != nil {
		abortWithError(c, social.BadRequest("Invalid form."))
		return
	}
	if _, err := r.posts.Create(c.Request.Context(), viewerID(c), form.Body); err != nil {
		abortWithError(c, err)
		return
	}
	c.Redirect(http.StatusFound, "/")
}

func (r *Router) followUnfollow(c *gin.Context) {
	targetID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		abortWithError(c, social.AccountNotFound())
		return
	}

	intent := social.ParseIntent(c.PostForm("following_btn"))
	if err := r.graph.Apply(c.Request.Context(), viewerID(c), targetID, intent); err != nil {
		abortWithError(c, err)
		return
	}
	c.Redirect(http.StatusFound, fmt.Sprintf("/user/%d", targetID))
}

// edit reads a post on GET and rewrites its body on PUT
func (r *Router) edit(c *gin.Context) {
	postID, err := strconv.ParseInt(c.Param("post_id"), 10, 64)
	if err != nil {
		abortWithError(c, social.PostNotFound())
		return
	}
	ctx := c.Request.Context()
	viewer := viewerID(c)

	switch c.Request.Method {
	case http.MethodGet:
		post, err := r.editor.Handle(ctx, viewer, postID, social.VerbRead, nil)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, post)

	case http.MethodPut:
		var req editRequest
		if err := json.NewDecoder(c.Request.Body).Decode(&req); err != nil {
			// ownership errors win over a malformed body
			if _, readErr := r.editor.Read(ctx, viewer, postID); readErr != nil {
				abortWithError(c, readErr)
				return
			}
			abortWithError(c, social.BadRequest("Invalid JSON body."))
			return
		}
		if _, err := r.editor.Handle(ctx, viewer, postID, social.VerbUpdate, req.Text); err != nil {
			abortWithError(c, err)
			return
		}
		c.Status(http.StatusNoContent)

	default:
		_, err := r.editor.Handle(ctx, viewer, postID, social.Verb(strings.ToLower(c.Request.Method)), nil)
		abortWithError(c, err)
	}
}

func (r *Router) like(c *gin.Context) {
	postID, err := strconv.ParseInt(c.Param("post_id"), 10, 64)
	if err != nil {
		abortWithError(c, social.PostNotFound())
		return
	}
	post, err := r.likes.Toggle(c.Request.Context(), viewerID(c), postID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}
