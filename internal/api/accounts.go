package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/socialnet/network/internal/social"
	"github.com/socialnet/network/pkg/logging"
)

type loginForm struct {
	Username string `form:"username"`
	Password string `form:"password"`
	Next     string `form:"next"`
}

type registerForm struct {
	Username     string `form:"username"`
	Email        string `form:"email"`
	Password     string `form:"password"`
	Confirmation string `form:"confirmation"`
}

func (r *Router) loginForm(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"form":   "login",
		"fields": []string{"username", "password"},
		"next":   safeNext(c.Query("next")),
	})
}

func (r *Router) login(c *gin.Context) {
	var form loginForm
	if err := c.ShouldBind(&form); err != nil {
		abortWithError(c, social.BadRequest("Invalid form."))
		return
	}
	if form.Next == "" {
		form.Next = c.Query("next")
	}

	account, err := r.accounts.Authenticate(c.Request.Context(), form.Username, form.Password)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if err := signIn(c, r.sessions, account.ID); err != nil {
		abortWithError(c, err)
		return
	}

	logging.FromContext(c.Request.Context()).Info("Signed in", zap.Int64("account_id", account.ID))
	c.Redirect(http.StatusFound, safeNext(form.Next))
}

func (r *Router) logout(c *gin.Context) {
	if err := signOut(c, r.sessions); err != nil {
		abortWithError(c, err)
		return
	}
	c.Redirect(http.StatusFound, "/")
}

func (r *Router) registerForm(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"form":   "register",
		"fields": []string{"username", "email", "password", "confirmation"},
	})
}

func (r *Router) register(c *gin.Context) {
	var form registerForm
	if err := c.ShouldBind(&form); err != nil {
		abortWithError(c, social.BadRequest("Invalid form."))
		return
	}

	account, err := r.accounts.Register(c.Request.Context(), form.Username, form.Email, form.Password, form.Confirmation)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if err := signIn(c, r.sessions, account.ID); err != nil {
		abortWithError(c, err)
		return
	}
	c.Redirect(http.StatusFound, "/")
}
