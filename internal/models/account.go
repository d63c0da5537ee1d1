package models

import (
	"time"
)

// Account represents a registered user
type Account struct {
	ID        int64     `gorm:"primaryKey;autoIncrement;column:id"`
	Username  string    `gorm:"type:varchar(150);not null;uniqueIndex:network_accounts_ux1;column:username"`
	Email     string    `gorm:"type:varchar(254);not null;default:'';column:email"`
	Password  string    `gorm:"type:varchar(128);not null;column:password"` // bcrypt hash
	CreatedAt time.Time `gorm:"not null;column:created_at"`
}

// TableName specifies the table name for Account
func (Account) TableName() string {
	return "network_accounts"
}
