package objects_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/socialnet/network/internal/api/objects"
	"github.com/socialnet/network/internal/db"
	"github.com/socialnet/network/internal/db/dbtest"
)

func TestFormatTimestamp(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		want string
	}{
		{"afternoon", time.Date(2024, 3, 1, 14, 5, 0, 0, time.UTC), "Mar 01 2024, 02:05 PM"},
		{"midnight", time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC), "Dec 31 2023, 12:00 AM"},
		{"converted to UTC", time.Date(2024, 7, 4, 9, 30, 0, 0, time.FixedZone("X", 2*3600)), "Jul 04 2024, 07:30 AM"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := objects.FormatTimestamp(tt.in); got != tt.want {
				t.Errorf("FormatTimestamp() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPostJSONShape(t *testing.T) {
	post := objects.Post{PostID: 1, Poster: "alice", PosterID: 2, Likers: 3, Timestamp: "Mar 01 2024, 02:05 PM", Body: "hi"}
	raw, err := json.Marshal(post)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	want := `{"post_id":1,"poster":"alice","poster_id":2,"likers":3,"timestamp":"Mar 01 2024, 02:05 PM","body":"hi"}`
	if string(raw) != want {
		t.Errorf("Marshal() = %s, want %s", raw, want)
	}
}

func TestPostLoader(t *testing.T) {
	ctx := context.Background()
	database := dbtest.New(t)
	repo := db.NewRepository(database.DB)
	loader := objects.NewPostLoader(repo)

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	alice := dbtest.Account(t, database, "alice")
	bob := dbtest.Account(t, database, "bob")
	p1 := dbtest.Post(t, database, alice.ID, "one", base)
	p2 := dbtest.Post(t, database, bob.ID, "two", base.Add(time.Minute))

	if err := db.NewLikeRepository(repo).Add(ctx, p1.ID, bob.ID); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	posts, err := loader.LoadPosts(ctx, []int64{p2.ID, 9999, p1.ID}, bob.ID)
	if err != nil {
		t.Fatalf("LoadPosts() error = %v", err)
	}
	if len(posts) != 2 {
		t.Fatalf("LoadPosts() returned %d posts, want 2", len(posts))
	}
	if posts[0].PostID != p2.ID || posts[1].PostID != p1.ID {
		t.Errorf("LoadPosts() order = %d,%d; want %d,%d", posts[0].PostID, posts[1].PostID, p2.ID, p1.ID)
	}
	if posts[1].Poster != "alice" || posts[1].PosterID != alice.ID {
		t.Errorf("poster = %s/%d, want alice/%d", posts[1].Poster, posts[1].PosterID, alice.ID)
	}
	if posts[1].Likers != 1 || posts[0].Likers != 0 {
		t.Errorf("likers = %d,%d; want 0,1", posts[0].Likers, posts[1].Likers)
	}
	if posts[1].Liked == nil || !*posts[1].Liked {
		t.Error("Liked for p1 should be true for bob")
	}
	if posts[0].Liked == nil || *posts[0].Liked {
		t.Error("Liked for p2 should be false for bob")
	}

	single, err := loader.LoadPost(ctx, p1.ID)
	if err != nil || single == nil {
		t.Fatalf("LoadPost() = %v, %v", single, err)
	}
	if single.Liked != nil {
		t.Error("LoadPost() should not set Liked")
	}
	if single.Timestamp != "Mar 01 2024, 12:00 PM" {
		t.Errorf("Timestamp = %q, want %q", single.Timestamp, "Mar 01 2024, 12:00 PM")
	}

	missing, err := loader.LoadPost(ctx, 9999)
	if err != nil || missing != nil {
		t.Errorf("LoadPost() missing = %v, %v; want nil, nil", missing, err)
	}
}
