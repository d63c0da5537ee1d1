package objects

import (
	"context"
	"fmt"
	"time"

	"github.com/socialnet/network/internal/db"
	"github.com/socialnet/network/internal/models"
)

// TimestampLayout renders post timestamps as "Mar 01 2024, 02:05 PM"
const TimestampLayout = "Jan 02 2006, 03:04 PM"

// Post is the serialized form of a post
type Post struct {
	PostID    int64  `json:"post_id"`
	Poster    string `json:"poster"`
	PosterID  int64  `json:"poster_id"`
	Likers    int64  `json:"likers"`
	Timestamp string `json:"timestamp"`
	Body      string `json:"body"`

	// Liked is set only when the post is rendered for a signed-in viewer
	Liked *bool `json:"liked,omitempty"`
}

// NewPost serializes a post
func NewPost(post *models.Post, poster *models.Account, likers int64) Post {
	return Post{
		PostID:    post.ID,
		Poster:    poster.Username,
		PosterID:  poster.ID,
		Likers:    likers,
		Timestamp: FormatTimestamp(post.CreatedAt),
		Body:      post.Body,
	}
}

// FormatTimestamp formats t in UTC with TimestampLayout
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// PostLoader loads serialized posts from the database
type PostLoader struct {
	repo *db.Repository
}

// NewPostLoader creates a new post loader
func NewPostLoader(repo *db.Repository) *PostLoader {
	return &PostLoader{repo: repo}
}

// LoadPosts loads serialized posts by IDs, keeping the order of ids and
// skipping IDs that no longer exist. A non-zero viewerID fills Liked.
func (l *PostLoader) LoadPosts(ctx context.Context, ids []int64, viewerID int64) ([]Post, error) {
	if len(ids) == 0 {
		return []Post{}, nil
	}

	posts, err := db.NewPostRepository(l.repo).GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load posts: %w", err)
	}

	authorIDs := make([]int64, 0, len(posts))
	seen := make(map[int64]bool, len(posts))
	for _, p := range posts {
		if !seen[p.AccountID] {
			seen[p.AccountID] = true
			authorIDs = append(authorIDs, p.AccountID)
		}
	}
	authors, err := db.NewAccountRepository(l.repo).GetByIDs(ctx, authorIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load accounts: %w", err)
	}

	likeRepo := db.NewLikeRepository(l.repo)
	counts, err := likeRepo.CountByPosts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load like counts: %w", err)
	}

	var liked map[int64]bool
	if viewerID != 0 {
		if liked, err = likeRepo.LikedBy(ctx, viewerID, ids); err != nil {
			return nil, fmt.Errorf("failed to load viewer likes: %w", err)
		}
	}

	result := make([]Post, 0, len(ids))
	for _, id := range ids {
		post := posts[id]
		if post == nil {
			continue
		}
		author := authors[post.AccountID]
		if author == nil {
			continue
		}
		obj := NewPost(post, author, counts[id])
		if liked != nil {
			v := liked[id]
			obj.Liked = &v
		}
		result = append(result, obj)
	}

	return result, nil
}

// LoadPost loads one serialized post. It returns nil, nil when the post does
// not exist.
func (l *PostLoader) LoadPost(ctx context.Context, id int64) (*Post, error) {
	posts, err := l.LoadPosts(ctx, []int64{id}, 0)
	if err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return nil, nil
	}
	return &posts[0], nil
}
