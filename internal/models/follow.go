package models

import (
	"time"
)

// Following is one entry of an account's following set: AccountID follows
// FollowingID.
type Following struct {
	AccountID   int64     `gorm:"primaryKey;column:account_id"`
	FollowingID int64     `gorm:"primaryKey;index:network_following_ix1;column:following_id"`
	CreatedAt   time.Time `gorm:"not null;column:created_at"`

	Account  *Account `gorm:"foreignKey:AccountID;references:ID;constraint:OnDelete:CASCADE"`
	Followed *Account `gorm:"foreignKey:FollowingID;references:ID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for Following
func (Following) TableName() string {
	return "network_following"
}

// Follower is one entry of an account's followers set: FollowerID follows
// AccountID. It mirrors Following and is kept in step by the graph mutator.
type Follower struct {
	AccountID  int64     `gorm:"primaryKey;column:account_id"`
	FollowerID int64     `gorm:"primaryKey;index:network_followers_ix1;column:follower_id"`
	CreatedAt  time.Time `gorm:"not null;column:created_at"`

	Account  *Account `gorm:"foreignKey:AccountID;references:ID;constraint:OnDelete:CASCADE"`
	Follower *Account `gorm:"foreignKey:FollowerID;references:ID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for Follower
func (Follower) TableName() string {
	return "network_followers"
}
