package api

import (
	"context"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/socialnet/network/internal/cache"
	"github.com/socialnet/network/internal/db"
	"github.com/socialnet/network/internal/feed"
	"github.com/socialnet/network/internal/social"
	"github.com/socialnet/network/pkg/config"
	"github.com/socialnet/network/pkg/logging"
)

// Router sets up API routes
type Router struct {
	db       *db.DB
	cache    *cache.Cache
	sessions *scs.SessionManager
	limiter  *RateLimiter
	logger   *zap.Logger

	accounts *social.AccountDirectory
	posts    *social.PostStore
	graph    *social.GraphMutator
	likes    *social.LikeToggler
	editor   *social.PostEditor
	feed     *feed.Composer
}

// NewRouter creates a new API router. redisCache may be nil.
func NewRouter(cfg *config.Config, database *db.DB, redisCache *cache.Cache, sessions *scs.SessionManager) *Router {
	repo := db.NewRepository(database.DB)
	composer := feed.NewComposer(repo, redisCache, cfg.Redis.FeedCacheTTL)

	return &Router{
		db:       database,
		cache:    redisCache,
		sessions: sessions,
		limiter:  NewRateLimiter(&cfg.RateLimit),
		logger:   logging.WithComponent("api-router"),
		accounts: social.NewAccountDirectory(repo),
		posts:    social.NewPostStore(repo, composer),
		graph:    social.NewGraphMutator(repo),
		likes:    social.NewLikeToggler(repo),
		editor:   social.NewPostEditor(repo),
		feed:     composer,
	}
}

// SetupRoutes sets up all API routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	engine.Use(requestLogger(r.logger), sessionMiddleware(r.sessions))

	// Health check endpoints
	engine.GET("/health", r.healthHandler)
	engine.GET("/.well-known/healthcheck.json", r.healthHandler)

	// Feeds
	engine.GET("/", r.index)
	engine.GET("/user/:id", r.profile)
	engine.GET("/following", requireLogin, r.following)

	// Accounts
	engine.GET("/login", r.loginForm)
	engine.POST("/login", r.login)
	engine.GET("/logout", r.logout)
	engine.POST("/logout", r.logout)
	engine.GET("/register", r.registerForm)
	engine.POST("/register", r.register)

	// Writes
	limit := r.limiter.Middleware()
	engine.POST("/post", requireLogin, limit, r.createPost)
	engine.POST("/follow_unfollow/:id", requireLogin, limit, r.followUnfollow)

	// JSON API
	engine.Any("/edit/:post_id", requireLoginJSON, limit, r.edit)
	engine.POST("/like/:post_id", requireLoginJSON, limit, r.like)
	engine.PUT("/like/:post_id", requireLoginJSON, limit, r.like)
}

// Close stops background work owned by the router
func (r *Router) Close() {
	r.limiter.Stop()
}

// healthHandler handles health check requests
func (r *Router) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := gin.H{"database": "OK"}
	if err := r.db.Health(ctx); err != nil {
		status = http.StatusServiceUnavailable
		checks["database"] = err.Error()
	}
	if r.cache != nil {
		checks["redis"] = "OK"
		if err := r.cache.Health(ctx); err != nil {
			status = http.StatusServiceUnavailable
			checks["redis"] = err.Error()
		}
	}

	c.JSON(status, gin.H{
		"status":  http.StatusText(status),
		"service": "network-api",
		"checks":  checks,
	})
}
