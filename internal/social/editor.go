package social

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"github.com/socialnet/network/internal/api/objects"
	"github.com/socialnet/network/internal/db"
	"github.com/socialnet/network/internal/models"
	"github.com/socialnet/network/pkg/telemetry"
)

// Verb is an action on a post through the editor
type Verb string

const (
	VerbRead   Verb = "read"
	VerbUpdate Verb = "update"
)

// PostEditor lets owners read and rewrite their posts
type PostEditor struct {
	repo *db.Repository
}

// NewPostEditor creates a new post editor
func NewPostEditor(repo *db.Repository) *PostEditor {
	return &PostEditor{repo: repo}
}

// Handle dispatches verb. Read returns the serialized post, update returns
// nil. Any other verb is a bad request.
func (e *PostEditor) Handle(ctx context.Context, viewerID, postID int64, verb Verb, text *string) (*objects.Post, error) {
	switch verb {
	case VerbRead:
		return e.Read(ctx, viewerID, postID)
	case VerbUpdate:
		return nil, e.Update(ctx, viewerID, postID, text)
	default:
		if _, err := e.owned(ctx, e.repo, viewerID, postID); err != nil {
			return nil, err
		}
		return nil, BadRequest("GET or PUT request required.")
	}
}

// Read returns the serialized post when viewerID owns it
func (e *PostEditor) Read(ctx context.Context, viewerID, postID int64) (*objects.Post, error) {
	ctx, span := telemetry.StartSpan(ctx, "editor.read")
	defer span.End()
	span.SetAttributes(attribute.Int64("post.id", postID))

	if _, err := e.owned(ctx, e.repo, viewerID, postID); err != nil {
		return nil, err
	}
	post, err := objects.NewPostLoader(e.repo).LoadPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, PostNotFound()
	}
	return post, nil
}

// Update replaces the body of a post owned by viewerID. A nil text leaves the
// body as it is.
func (e *PostEditor) Update(ctx context.Context, viewerID, postID int64, text *string) error {
	ctx, span := telemetry.StartSpan(ctx, "editor.update")
	defer span.End()
	span.SetAttributes(attribute.Int64("post.id", postID))

	return e.repo.Transaction(ctx, func(tx *db.Repository) error {
		if _, err := e.owned(ctx, tx, viewerID, postID); err != nil {
			return err
		}
		if text == nil {
			return nil
		}
		if err := db.NewPostRepository(tx).UpdateBody(ctx, postID, *text); err != nil {
			return fmt.Errorf("failed to update post: %w", err)
		}
		telemetry.Count(ctx, "network.posts.edited")
		return nil
	})
}

func (e *PostEditor) owned(ctx context.Context, repo *db.Repository, viewerID, postID int64) (*models.Post, error) {
	post, err := db.NewPostRepository(repo).GetByID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to load post: %w", err)
	}
	if post == nil {
		return nil, PostNotFound()
	}
	if post.AccountID != viewerID {
		return nil, Forbidden("You cannot edit this post.")
	}
	return post, nil
}
