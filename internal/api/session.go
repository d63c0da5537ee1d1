package api

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/socialnet/network/internal/social"
	"github.com/socialnet/network/pkg/config"
	"github.com/socialnet/network/pkg/logging"
)

const (
	sessionAccountKey = "account_id"
	viewerKey         = "viewer_id"
)

// NewSessionManager creates a session manager with cookie settings from cfg.
// The store is left as the scs default (in memory) until the caller sets one.
func NewSessionManager(cfg *config.SessionConfig) *scs.SessionManager {
	sm := scs.New()
	if cfg.Lifetime > 0 {
		sm.Lifetime = cfg.Lifetime
	}
	if cfg.CookieName != "" {
		sm.Cookie.Name = cfg.CookieName
	}
	sm.Cookie.HttpOnly = true
	sm.Cookie.SameSite = http.SameSiteLaxMode
	sm.Cookie.Secure = cfg.CookieSecure
	return sm
}

// sessionWriter commits the session before the first byte of the response
// goes out, so the session cookie can still be set.
type sessionWriter struct {
	gin.ResponseWriter
	sm        *scs.SessionManager
	ctx       context.Context
	committed bool
}

func (w *sessionWriter) commit() {
	if w.committed {
		return
	}
	w.committed = true

	switch w.sm.Status(w.ctx) {
	case scs.Modified:
		token, expiry, err := w.sm.Commit(w.ctx)
		if err != nil {
			logging.FromContext(w.ctx).Error("Failed to commit session", zap.Error(err))
			return
		}
		w.sm.WriteSessionCookie(w.ctx, w.ResponseWriter, token, expiry)
	case scs.Destroyed:
		w.sm.WriteSessionCookie(w.ctx, w.ResponseWriter, "", time.Time{})
	}
	w.Header().Add("Vary", "Cookie")
}

func (w *sessionWriter) WriteHeader(code int) {
	w.commit()
	w.ResponseWriter.WriteHeader(code)
}

func (w *sessionWriter) WriteHeaderNow() {
	w.commit()
	w.ResponseWriter.WriteHeaderNow()
}

func (w *sessionWriter) Write(b []byte) (int, error) {
	w.commit()
	return w.ResponseWriter.Write(b)
}

func (w *sessionWriter) WriteString(s string) (int, error) {
	w.commit()
	return w.ResponseWriter.WriteString(s)
}

// sessionMiddleware loads the session named by the request cookie and puts
// the signed-in account ID, if any, on the gin context.
func sessionMiddleware(sm *scs.SessionManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var token string
		if cookie, err := c.Request.Cookie(sm.Cookie.Name); err == nil {
			token = cookie.Value
		}

		ctx, err := sm.Load(c.Request.Context(), token)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.Request = c.Request.WithContext(ctx)
		c.Set(viewerKey, sm.GetInt64(ctx, sessionAccountKey))

		w := &sessionWriter{ResponseWriter: c.Writer, sm: sm, ctx: ctx}
		c.Writer = w

		c.Next()

		if !w.Written() {
			w.commit()
		}
	}
}

// viewerID returns the signed-in account ID, or 0 for anonymous requests
func viewerID(c *gin.Context) int64 {
	return c.GetInt64(viewerKey)
}

// signIn binds accountID to a fresh session token
func signIn(c *gin.Context, sm *scs.SessionManager, accountID int64) error {
	ctx := c.Request.Context()
	if err := sm.RenewToken(ctx); err != nil {
		return err
	}
	sm.Put(ctx, sessionAccountKey, accountID)
	c.Set(viewerKey, accountID)
	return nil
}

// signOut drops the session
func signOut(c *gin.Context, sm *scs.SessionManager) error {
	c.Set(viewerKey, int64(0))
	return sm.Destroy(c.Request.Context())
}

// requireLogin sends anonymous page requests to the login form
func requireLogin(c *gin.Context) {
	if viewerID(c) != 0 {
		c.Next()
		return
	}
	c.Redirect(http.StatusFound, "/login?next="+url.QueryEscape(c.Request.URL.RequestURI()))
	c.Abort()
}

// requireLoginJSON answers anonymous API requests with 401
func requireLoginJSON(c *gin.Context) {
	if viewerID(c) != 0 {
		c.Next()
		return
	}
	abortWithError(c, social.Unauthorized("Login required."))
}

// safeNext returns next when it is a local path, otherwise "/"
func safeNext(next string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	return next
}
