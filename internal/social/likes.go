package social

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/socialnet/network/internal/api/objects"
	"github.com/socialnet/network/internal/db"
	"github.com/socialnet/network/pkg/telemetry"
)

// LikeToggler flips a viewer's membership in a post's like-set
type LikeToggler struct {
	repo *db.Repository
}

// NewLikeToggler creates a new like toggler
func NewLikeToggler(repo *db.Repository) *LikeToggler {
	return &LikeToggler{repo: repo}
}

// Toggle likes postID for viewerID, or unlikes it when already liked, and
// returns the post as it stands afterwards. Owners cannot like their own
// posts.
func (t *LikeToggler) Toggle(ctx context.Context, viewerID, postID int64) (*objects.Post, error) {
	ctx, span := telemetry.StartSpan(ctx, "likes.toggle")
	defer span.End()
	span.SetAttributes(attribute.Int64("post.id", postID))

	var result *objects.Post
	var liked bool
	err := t.repo.Transaction(ctx, func(tx *db.Repository) error {
		post, err := db.NewPostRepository(tx).GetByID(ctx, postID)
		if err != nil {
			return fmt.Errorf("failed to load post: %w", err)
		}
		if post == nil {
			return PostNotFound()
		}
		if post.AccountID == viewerID {
			return Forbidden("You cannot like this post.")
		}

		likes := db.NewLikeRepository(tx)
		exists, err := likes.Exists(ctx, postID, viewerID)
		if err != nil {
			return fmt.Errorf("failed to check like: %w", err)
		}
		if exists {
			err = likes.Remove(ctx, postID, viewerID)
		} else {
			err = likes.Add(ctx, postID, viewerID)
		}
		if err != nil {
			return fmt.Errorf("failed to toggle like: %w", err)
		}
		liked = !exists

		posts, err := objects.NewPostLoader(tx).LoadPosts(ctx, []int64{postID}, viewerID)
		if err != nil {
			return err
		}
		if len(posts) == 0 {
			return PostNotFound()
		}
		result = &posts[0]
		return nil
	})
	if err != nil {
		return nil, err
	}

	telemetry.Count(ctx, "network.likes.toggled", attribute.Bool("liked", liked))
	return result, nil
}
