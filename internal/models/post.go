package models

import (
	"time"
)

// Post represents a short text entry authored by one account
type Post struct {
	ID        int64     `gorm:"primaryKey;autoIncrement;column:id"`
	AccountID int64     `gorm:"not null;index:network_posts_ix1,priority:1;column:account_id"`
	CreatedAt time.Time `gorm:"not null;index:network_posts_ix1,priority:2;index:network_posts_ix2;column:created_at"`
	Body      string    `gorm:"type:text;not null;default:'';column:body"`

	// Relationships
	Account *Account `gorm:"foreignKey:AccountID;references:ID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for Post
func (Post) TableName() string {
	return "network_posts"
}

// Like is one member of a post's like-set
type Like struct {
	PostID    int64     `gorm:"primaryKey;column:post_id"`
	AccountID int64     `gorm:"primaryKey;index:network_post_likes_ix1;column:account_id"`
	CreatedAt time.Time `gorm:"not null;column:created_at"`

	Post    *Post    `gorm:"foreignKey:PostID;references:ID;constraint:OnDelete:CASCADE"`
	Account *Account `gorm:"foreignKey:AccountID;references:ID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for Like
func (Like) TableName() string {
	return "network_post_likes"
}

// All returns every model managed by the schema, in creation order.
func All() []interface{} {
	return []interface{}{
		&Account{},
		&Post{},
		&Following{},
		&Follower{},
		&Like{},
	}
}
