package db

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/socialnet/network/internal/models"
)

// ErrDuplicate is returned when an insert violates a unique constraint
var ErrDuplicate = errors.New("duplicate record")

// Repository provides database access methods
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new repository
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Transaction runs fn with a repository bound to a single transaction. Code
// inside fn must only use the repository it is given.
func (r *Repository) Transaction(ctx context.Context, fn func(tx *Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepository(tx))
	})
}

// AccountRepository provides account-related database operations
type AccountRepository struct {
	*Repository
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(repo *Repository) *AccountRepository {
	return &AccountRepository{Repository: repo}
}

// GetByID retrieves an account by ID
func (r *AccountRepository) GetByID(ctx context.Context, id int64) (*models.Account, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).First(&account, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

// GetByUsername retrieves an account by username
func (r *AccountRepository) GetByUsername(ctx context.Context, username string) (*models.Account, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

// GetByIDs retrieves multiple accounts keyed by ID
func (r *AccountRepository) GetByIDs(ctx context.Context, ids []int64) (map[int64]*models.Account, error) {
	result := make(map[int64]*models.Account, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var accounts []*models.Account
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&accounts).Error; err != nil {
		return nil, err
	}
	for _, a := range accounts {
		result[a.ID] = a
	}
	return result, nil
}

// Create creates a new account. ErrDuplicate is returned when the username is
// taken.
func (r *AccountRepository) Create(ctx context.Context, account *models.Account) error {
	err := r.db.WithContext(ctx).Create(account).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}

// PostRepository provides post-related database operations
type PostRepository struct {
	*Repository
}

// NewPostRepository creates a new post repository
func NewPostRepository(repo *Repository) *PostRepository {
	return &PostRepository{Repository: repo}
}

// GetByID retrieves a post by ID
func (r *PostRepository) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &post, nil
}

// GetByIDs retrieves multiple posts keyed by ID
func (r *PostRepository) GetByIDs(ctx context.Context, ids []int64) (map[int64]*models.Post, error) {
	result := make(map[int64]*models.Post, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var posts []*models.Post
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&posts).Error; err != nil {
		return nil, err
	}
	for _, p := range posts {
		result[p.ID] = p
	}
	return result, nil
}

// Create creates a new post
func (r *PostRepository) Create(ctx context.Context, post *models.Post) error {
	return r.db.WithContext(ctx).Create(post).Error
}

// UpdateBody replaces the body of a post. Owner and timestamp are never
// touched.
func (r *PostRepository) UpdateBody(ctx context.Context, id int64, body string) error {
	return r.db.WithContext(ctx).
		Model(&models.Post{}).
		Where("id = ?", id).
		Update("body", body).Error
}

// PostScope narrows a post query to one feed
type PostScope func(db *gorm.DB) *gorm.DB

// AllPosts selects every post
func AllPosts() PostScope {
	return func(db *gorm.DB) *gorm.DB { return db }
}

// PostsByAccount selects the posts authored by one account
func PostsByAccount(accountID int64) PostScope {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("account_id = ?", accountID)
	}
}

// PostsByFollowing selects the posts authored by any account that accountID
// follows.
func PostsByFollowing(accountID int64) PostScope {
	return func(db *gorm.DB) *gorm.DB {
		following := db.Session(&gorm.Session{NewDB: true}).
			Model(&models.Following{}).
			Select("following_id").
			Where("account_id = ?", accountID)
		return db.Where("account_id IN (?)", following)
	}
}

// Count returns the number of posts in scope
func (r *PostRepository) Count(ctx context.Context, scope PostScope) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Post{}).
		Scopes(scope).
		Count(&count).Error
	return count, err
}

// ListIDs returns post IDs in scope, newest first
func (r *PostRepository) ListIDs(ctx context.Context, scope PostScope, offset, limit int) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).
		Model(&models.Post{}).
		Scopes(scope).
		Order("created_at DESC").
		Order("id DESC").
		Offset(offset).
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// FollowRepository provides follow-graph database operations
type FollowRepository struct {
	*Repository
}

// NewFollowRepository creates a new follow repository
func NewFollowRepository(repo *Repository) *FollowRepository {
	return &FollowRepository{Repository: repo}
}

// AddFollowing puts targetID into accountID's following set
func (r *FollowRepository) AddFollowing(ctx context.Context, accountID, targetID int64) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.Following{AccountID: accountID, FollowingID: targetID, CreatedAt: time.Now().UTC()}).Error
}

// RemoveFollowing takes targetID out of accountID's following set
func (r *FollowRepository) RemoveFollowing(ctx context.Context, accountID, targetID int64) error {
	return r.db.WithContext(ctx).
		Where("account_id = ? AND following_id = ?", accountID, targetID).
		Delete(&models.Following{}).Error
}

// AddFollower puts followerID into accountID's followers set
func (r *FollowRepository) AddFollower(ctx context.Context, accountID, followerID int64) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.Follower{AccountID: accountID, FollowerID: followerID, CreatedAt: time.Now().UTC()}).Error
}

// RemoveFollower takes followerID out of accountID's followers set
func (r *FollowRepository) RemoveFollower(ctx context.Context, accountID, followerID int64) error {
	return r.db.WithContext(ctx).
		Where("account_id = ? AND follower_id = ?", accountID, followerID).
		Delete(&models.Follower{}).Error
}

// IsFollowing reports whether targetID is in accountID's following set
func (r *FollowRepository) IsFollowing(ctx context.Context, accountID, targetID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Following{}).
		Where("account_id = ? AND following_id = ?", accountID, targetID).
		Count(&count).Error
	return count > 0, err
}

// ListFollowingIDs returns the following set of an account
func (r *FollowRepository) ListFollowingIDs(ctx context.Context, accountID int64) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).
		Model(&models.Following{}).
		Where("account_id = ?", accountID).
		Order("following_id").
		Pluck("following_id", &ids).Error
	return ids, err
}

// ListFollowerIDs returns the followers set of an account
func (r *FollowRepository) ListFollowerIDs(ctx context.Context, accountID int64) ([]int64, error) {
	var ids []int64
	err := r.db.WithContext(ctx).
		Model(&models.Follower{}).
		Where("account_id = ?", accountID).
		Order("follower_id").
		Pluck("follower_id", &ids).Error
	return ids, err
}

// CountFollowing returns the size of an account's following set
func (r *FollowRepository) CountFollowing(ctx context.Context, accountID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Following{}).
		Where("account_id = ?", accountID).
		Count(&count).Error
	return count, err
}

// CountFollowers returns the size of an account's followers set
func (r *FollowRepository) CountFollowers(ctx context.Context, accountID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Follower{}).
		Where("account_id = ?", accountID).
		Count(&count).Error
	return count, err
}

// FollowingWithoutFollower returns following entries whose mirror follower
// entry is missing.
func (r *FollowRepository) FollowingWithoutFollower(ctx context.Context) ([]models.Following, error) {
	var rows []models.Following
	err := r.db.WithContext(ctx).
		Model(&models.Following{}).
		Where("NOT EXISTS (SELECT 1 FROM network_followers f WHERE f.account_id = network_following.following_id AND f.follower_id = network_following.account_id)").
		Order("account_id, following_id").
		Find(&rows).Error
	return rows, err
}

// FollowerWithoutFollowing returns follower entries whose mirror following
// entry is missing.
func (r *FollowRepository) FollowerWithoutFollowing(ctx context.Context) ([]models.Follower, error) {
	var rows []models.Follower
	err := r.db.WithContext(ctx).
		Model(&models.Follower{}).
		Where("NOT EXISTS (SELECT 1 FROM network_following f WHERE f.account_id = network_followers.follower_id AND f.following_id = network_followers.account_id)").
		Order("account_id, follower_id").
		Find(&rows).Error
	return rows, err
}

// LikeRepository provides like-set database operations
type LikeRepository struct {
	*Repository
}

// NewLikeRepository creates a new like repository
func NewLikeRepository(repo *Repository) *LikeRepository {
	return &LikeRepository{Repository: repo}
}

// Exists reports whether accountID is in the post's like-set
func (r *LikeRepository) Exists(ctx context.Context, postID, accountID int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Like{}).
		Where("post_id = ? AND account_id = ?", postID, accountID).
		Count(&count).Error
	return count > 0, err
}

// Add puts accountID into the post's like-set
func (r *LikeRepository) Add(ctx context.Context, postID, accountID int64) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.Like{PostID: postID, AccountID: accountID, CreatedAt: time.Now().UTC()}).Error
}

// Remove takes accountID out of the post's like-set
func (r *LikeRepository) Remove(ctx context.Context, postID, accountID int64) error {
	return r.db.WithContext(ctx).
		Where("post_id = ? AND account_id = ?", postID, accountID).
		Delete(&models.Like{}).Error
}

// CountByPost returns the size of a post's like-set
func (r *LikeRepository) CountByPost(ctx context.Context, postID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Like{}).
		Where("post_id = ?", postID).
		Count(&count).Error
	return count, err
}

// CountByPosts returns like-set sizes keyed by post ID. Posts without likes
// are absent from the map.
func (r *LikeRepository) CountByPosts(ctx context.Context, postIDs []int64) (map[int64]int64, error) {
	result := make(map[int64]int64, len(postIDs))
	if len(postIDs) == 0 {
		return result, nil
	}
	var rows []struct {
		PostID int64 `gorm:"column:post_id"`
		Count  int64 `gorm:"column:count"`
	}
	err := r.db.WithContext(ctx).
		Model(&models.Like{}).
		Select("post_id, COUNT(*) AS count").
		Where("post_id IN ?", postIDs).
		Group("post_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		result[row.PostID] = row.Count
	}
	return result, nil
}

// LikedBy returns the subset of postIDs that accountID has liked
func (r *LikeRepository) LikedBy(ctx context.Context, accountID int64, postIDs []int64) (map[int64]bool, error) {
	result := make(map[int64]bool, len(postIDs))
	if len(postIDs) == 0 {
		return result, nil
	}
	var liked []int64
	err := r.db.WithContext(ctx).
		Model(&models.Like{}).
		Where("account_id = ? AND post_id IN ?", accountID, postIDs).
		Pluck("post_id", &liked).Error
	if err != nil {
		return nil, err
	}
	for _, id := range liked {
		result[id] = true
	}
	return result, nil
}
