package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"

	"github.com/kokoro-board/kokoro-board/api"
)

func newTestRedis(t *testing.T) *Redis {
	t.Helper()
	mr := miniredis.RunT(t)
	r, err := Connect(context.Background(), mr.Addr())
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func makePost(id string, createdAt time.Time) api.Post {
	return api.Post{
		ID:        id,
		Content:   "hello",
		CreatedAt: createdAt,
		ExpiresAt: createdAt.Add(24 * time.Hour),
	}
}

func listIDs(t *testing.T, r *Redis, now time.Time) []string {
	t.Helper()
	posts, err := r.ListValidPosts(context.Background(), now)
	if err != nil {
		t.Fatal(err)
	}
	ids := make([]string, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}
	return ids
}

func TestRedis_InsertAndListValidPosts(t *testing.T) {
	r := newTestRedis(t)
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	older := makePost("1", now.Add(-2*time.Hour))
	older.EmotionTag = &api.EmotionTag{ID: "tag-1", Name: "嬉しい"}
	newer := makePost("2", now.Add(-time.Hour))

	if err := r.InsertPost(ctx, older); err != nil {
		t.Fatal(err)
	}
	if err := r.InsertPost(ctx, newer); err != nil {
		t.Fatal(err)
	}

	posts, err := r.ListValidPosts(ctx, now)
	if err != nil {
		t.Fatal(err)
	}

	want := []string{"2", "1"} // newest first
	got := make([]string, len(posts))
	for i, p := range posts {
		got[i] = p.ID
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Post order does not match (-want +got):\n%s", diff)
	}

	for _, p := range posts {
		if p.ID != "1" {
			continue
		}
		if p.EmotionTag == nil || p.EmotionTag.Name != "嬉しい" {
			t.Errorf("Got emotion tag %+v, want 嬉しい", p.EmotionTag)
		}
		if !p.CreatedAt.Equal(older.CreatedAt) {
			t.Errorf("Got created at %s, want %s", p.CreatedAt, older.CreatedAt)
		}
	}
}

// A post whose expiry equals the query instant is already expired; only
// expiries strictly in the future are valid.
func TestRedis_ListValidPosts_expiryBoundary(t *testing.T) {
	r := newTestRedis(t)
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	for _, p := range []api.Post{
		makePost("expired", now.Add(-25*time.Hour)),
		makePost("boundary", now.Add(-24*time.Hour)),
		makePost("valid", now.Add(-time.Hour)),
	} {
		if err := r.InsertPost(ctx, p); err != nil {
			t.Fatal(err)
		}
	}

	if diff := cmp.Diff([]string{"valid"}, listIDs(t, r, now)); diff != "" {
		t.Errorf("Valid set does not match (-want +got):\n%s", diff)
	}
}

func TestRedis_IncrementEmpathy(t *testing.T) {
	r := newTestRedis(t)
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	if err := r.InsertPost(ctx, makePost("1", now.Add(-time.Hour))); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		if err := r.IncrementEmpathy(ctx, "1"); err != nil {
			t.Fatal(err)
		}
	}

	// A miss must not create a stray hash.
	if err := r.IncrementEmpathy(ctx, "no-such-post"); err != nil {
		t.Fatal(err)
	}

	posts, err := r.ListValidPosts(ctx, now)
	if err != nil {
		t.Fatal(err)
	}
	if len(posts) != 1 {
		t.Fatalf("Got %d posts, want 1", len(posts))
	}
	if got := posts[0].EmpathyCount; got != 2 {
		t.Errorf("Got empathy count %d, want 2", got)
	}
}

func TestRedis_RemoveExpired(t *testing.T) {
	r := newTestRedis(t)
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	for _, p := range []api.Post{
		makePost("1", now.Add(-26*time.Hour)),
		makePost("2", now.Add(-25*time.Hour)),
		makePost("3", now.Add(-time.Hour)),
	} {
		if err := r.InsertPost(ctx, p); err != nil {
			t.Fatal(err)
		}
	}

	removed, err := r.RemoveExpired(ctx, now)
	if err != nil {
		t.Fatal(err)
	}
	// The count reports what was actually pruned, nothing more.
	if removed != 2 {
		t.Errorf("Got %d removed posts, want 2", removed)
	}

	if diff := cmp.Diff([]string{"3"}, listIDs(t, r, now)); diff != "" {
		t.Errorf("Valid set does not match (-want +got):\n%s", diff)
	}

	removed, err = r.RemoveExpired(ctx, now)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 0 {
		t.Errorf("Second pass removed %d posts, want 0", removed)
	}
}
