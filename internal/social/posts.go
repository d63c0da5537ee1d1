package social

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/socialnet/network/internal/db"
	"github.com/socialnet/network/internal/models"
	"github.com/socialnet/network/pkg/logging"
	"github.com/socialnet/network/pkg/telemetry"
)

// FeedInvalidator is told whenever a new post changes the global feed
type FeedInvalidator interface {
	Invalidate(ctx context.Context)
}

// PostStore creates posts
type PostStore struct {
	repo        *db.Repository
	invalidator FeedInvalidator
	now         func() time.Time
}

// NewPostStore creates a new post store. invalidator may be nil.
func NewPostStore(repo *db.Repository, invalidator FeedInvalidator) *PostStore {
	return &PostStore{
		repo:        repo,
		invalidator: invalidator,
		now:         time.Now,
	}
}

// Create stores a post by authorID stamped with the current time
func (s *PostStore) Create(ctx context.Context, authorID int64, body string) (*models.Post, error) {
	ctx, span := telemetry.StartSpan(ctx, "posts.create")
	defer span.End()

	if strings.TrimSpace(body) == "" {
		return nil, BadRequest("Post body is required.")
	}

	post := &models.Post{
		AccountID: authorID,
		Body:      body,
		CreatedAt: s.now().UTC(),
	}
	if err := db.NewPostRepository(s.repo).Create(ctx, post); err != nil {
		return nil, fmt.Errorf("failed to create post: %w", err)
	}

	if s.invalidator != nil {
		s.invalidator.Invalidate(ctx)
	}

	telemetry.Count(ctx, "network.posts.created")
	logging.FromContext(ctx).Info("Post created",
		zap.Int64("post_id", post.ID),
		zap.Int64("account_id", authorID),
	)
	return post, nil
}
