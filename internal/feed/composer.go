package feed

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/socialnet/network/internal/api/objects"
	"github.com/socialnet/network/internal/cache"
	"github.com/socialnet/network/internal/db"
	"github.com/socialnet/network/internal/social"
	"github.com/socialnet/network/pkg/logging"
	"github.com/socialnet/network/pkg/telemetry"
)

const globalVersionKey = "feed:global:version"

// Mode selects which posts a feed shows
type Mode int

const (
	ModeGlobal Mode = iota
	ModeByAccount
	ModeByFollowing
)

func (m Mode) String() string {
	switch m {
	case ModeGlobal:
		return "global"
	case ModeByAccount:
		return "by-account"
	case ModeByFollowing:
		return "by-following"
	default:
		return "unknown"
	}
}

// View is a feed request: a mode plus the account it is about
type View struct {
	Mode      Mode
	AccountID int64
}

// Global is every post
func Global() View { return View{Mode: ModeGlobal} }

// ByAccount is the posts of one account
func ByAccount(accountID int64) View { return View{Mode: ModeByAccount, AccountID: accountID} }

// ByFollowing is the posts of every account that accountID follows
func ByFollowing(accountID int64) View { return View{Mode: ModeByFollowing, AccountID: accountID} }

// Page is one page of a feed
type Page struct {
	Number             int            `json:"number"`
	NumPages           int            `json:"num_pages"`
	PageNumbers        []int          `json:"page_numbers"`
	Count              int64          `json:"count"`
	HasPrevious        bool           `json:"has_previous"`
	HasNext            bool           `json:"has_next"`
	PreviousPageNumber int            `json:"previous_page_number,omitempty"`
	NextPageNumber     int            `json:"next_page_number,omitempty"`
	Posts              []objects.Post `json:"posts"`
}

func newPage(number, numPages int, count int64, posts []objects.Post) *Page {
	p := &Page{
		Number:      number,
		NumPages:    numPages,
		PageNumbers: make([]int, numPages),
		Count:       count,
		HasPrevious: number > 1,
		HasNext:     number < numPages,
		Posts:       posts,
	}
	for i := range p.PageNumbers {
		p.PageNumbers[i] = i + 1
	}
	if p.HasPrevious {
		p.PreviousPageNumber = number - 1
	}
	if p.HasNext {
		p.NextPageNumber = number + 1
	}
	return p
}

// window is the part of a page that comes from ordering and counting, and
// is what gets cached.
type window struct {
	Number int     `json:"number"`
	Count  int64   `json:"count"`
	IDs    []int64 `json:"ids"`
}

// Composer builds feed pages
type Composer struct {
	repo   *db.Repository
	loader *objects.PostLoader
	cache  *cache.Cache
	ttl    time.Duration
	logger *zap.Logger
}

// NewComposer creates a new feed composer. redisCache may be nil.
func NewComposer(repo *db.Repository, redisCache *cache.Cache, ttl time.Duration) *Composer {
	return &Composer{
		repo:   repo,
		loader: objects.NewPostLoader(repo),
		cache:  redisCache,
		ttl:    ttl,
		logger: logging.WithComponent("feed"),
	}
}

// Page returns one page of the feed, newest first. viewerID is 0 for
// anonymous viewers. rawPage is the unparsed page query value.
func (c *Composer) Page(ctx context.Context, view View, viewerID int64, rawPage string) (*Page, error) {
	ctx, span := telemetry.StartSpan(ctx, "feed.page")
	defer span.End()
	span.SetAttributes(
		attribute.String("feed.mode", view.Mode.String()),
		attribute.Int64("feed.account_id", view.AccountID),
	)

	scope, err := c.scope(ctx, view)
	if err != nil {
		return nil, err
	}

	requested := ParsePage(rawPage)
	var w *window
	if view.Mode == ModeGlobal && c.cache != nil {
		w, err = c.cachedWindow(ctx, scope, requested)
	} else {
		w, err = c.window(ctx, scope, requested)
	}
	if err != nil {
		return nil, err
	}

	posts, err := c.loader.LoadPosts(ctx, w.IDs, viewerID)
	if err != nil {
		return nil, err
	}

	return newPage(w.Number, NumPages(w.Count), w.Count, posts), nil
}

func (c *Composer) scope(ctx context.Context, view View) (db.PostScope, error) {
	switch view.Mode {
	case ModeGlobal:
		return db.AllPosts(), nil
	case ModeByAccount:
		account, err := db.NewAccountRepository(c.repo).GetByID(ctx, view.AccountID)
		if err != nil {
			return nil, fmt.Errorf("failed to load account: %w", err)
		}
		if account == nil {
			return nil, social.AccountNotFound()
		}
		return db.PostsByAccount(view.AccountID), nil
	case ModeByFollowing:
		return db.PostsByFollowing(view.AccountID), nil
	default:
		return nil, fmt.Errorf("unknown feed mode %d", view.Mode)
	}
}

func (c *Composer) window(ctx context.Context, scope db.PostScope, requested int) (*window, error) {
	posts := db.NewPostRepository(c.repo)

	count, err := posts.Count(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to count posts: %w", err)
	}

	number := ClampPage(requested, NumPages(count))
	ids, err := posts.ListIDs(ctx, scope, Offset(number), PageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}

	return &window{Number: number, Count: count, IDs: ids}, nil
}

func (c *Composer) cachedWindow(ctx context.Context, scope db.PostScope, requested int) (*window, error) {
	version, err := c.cache.GetInt64(ctx, globalVersionKey)
	if err != nil {
		c.logger.Warn("Feed cache unavailable", zap.Error(err))
		return c.window(ctx, scope, requested)
	}

	key := cache.HashKey("feed", "global", strconv.FormatInt(version, 10), strconv.Itoa(requested))
	var cached window
	if err := c.cache.GetJSON(ctx, key, &cached); err == nil {
		return &cached, nil
	}

	w, err := c.window(ctx, scope, requested)
	if err != nil {
		return nil, err
	}
	if err := c.cache.SetJSON(ctx, key, w, c.ttl); err != nil {
		c.logger.Warn("Failed to cache feed page", zap.Error(err))
	}
	return w, nil
}

// Invalidate drops every cached global page by moving to a new version.
func (c *Composer) Invalidate(ctx context.Context) {
	if c.cache == nil {
		return
	}
	if _, err := c.cache.Incr(ctx, globalVersionKey); err != nil {
		c.logger.Warn("Failed to invalidate feed cache", zap.Error(err))
	}
}
