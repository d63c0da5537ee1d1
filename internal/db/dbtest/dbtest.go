// Package dbtest opens throwaway in-memory databases for tests.
package dbtest

import (
	"context"
	"testing"
	"time"

	"github.com/socialnet/network/internal/db"
	"github.com/socialnet/network/internal/models"
	"github.com/socialnet/network/pkg/config"
)

// New returns a migrated in-memory SQLite database that is closed when the
// test ends.
func New(t testing.TB) *db.DB {
	t.Helper()

	database, err := db.New(&config.DatabaseConfig{
		URL:         ":memory:",
		Driver:      "sqlite",
		AutoMigrate: true,
	}, "ERROR")
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

// Account inserts an account with the given username.
func Account(t testing.TB, database *db.DB, username string) *models.Account {
	t.Helper()

	account := &models.Account{
		Username: username,
		Email:    username + "@example.com",
		Password: "x",
	}
	if err := database.WithContext(context.Background()).Create(account).Error; err != nil {
		t.Fatalf("failed to create account %s: %v", username, err)
	}
	return account
}

// Post inserts a post authored by accountID at the given time.
func Post(t testing.TB, database *db.DB, accountID int64, body string, at time.Time) *models.Post {
	t.Helper()

	post := &models.Post{
		AccountID: accountID,
		Body:      body,
		CreatedAt: at.UTC(),
	}
	if err := database.WithContext(context.Background()).Create(post).Error; err != nil {
		t.Fatalf("failed to create post: %v", err)
	}
	return post
}
