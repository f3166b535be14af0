package api

import (
	"fmt"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSamplePosts(t *testing.T) {
	makePosts := func(n int) []Post {
		posts := make([]Post, n)
		for i := range posts {
			posts[i] = Post{ID: fmt.Sprintf("%d", i+1)}
		}
		return posts
	}

	tests := []struct {
		name    string
		posts   []Post
		k       int
		wantLen int
	}{
		{name: "Empty", posts: nil, k: 10, wantLen: 0},
		{name: "FewerPostsThanRequested", posts: makePosts(5), k: 10, wantLen: 5},
		{name: "MorePostsThanRequested", posts: makePosts(20), k: 10, wantLen: 10},
		{name: "ExactMatch", posts: makePosts(10), k: 10, wantLen: 10},
		{name: "Single", posts: makePosts(10), k: 1, wantLen: 1},
		{name: "ZeroRequested", posts: makePosts(10), k: 0, wantLen: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := samplePosts(tt.posts, tt.k)
			if len(got) != tt.wantLen {
				t.Fatalf("Got %d posts, want %d", len(got), tt.wantLen)
			}

			seen := make(map[string]bool, len(got))
			valid := make(map[string]bool, len(tt.posts))
			for _, p := range tt.posts {
				valid[p.ID] = true
			}
			for _, p := range got {
				if seen[p.ID] {
					t.Errorf("Post %s drawn twice", p.ID)
				}
				seen[p.ID] = true
				if !valid[p.ID] {
					t.Errorf("Post %s is not part of the input", p.ID)
				}
			}
		})
	}
}

// A draw of the full set is a permutation: same elements, nothing lost.
func TestSamplePosts_fullDraw(t *testing.T) {
	posts := []Post{{ID: "1"}, {ID: "2"}, {ID: "3"}, {ID: "4"}}

	got := samplePosts(posts, len(posts))

	gotIDs := make([]string, len(got))
	for i, p := range got {
		gotIDs[i] = p.ID
	}
	sort.Strings(gotIDs)

	want := []string{"1", "2", "3", "4"}
	if diff := cmp.Diff(want, gotIDs); diff != "" {
		t.Errorf("Draw is not a permutation of the input (-want +got):\n%s", diff)
	}
}

// The input slice must not be reordered by a draw.
func TestSamplePosts_inputUntouched(t *testing.T) {
	posts := []Post{{ID: "1"}, {ID: "2"}, {ID: "3"}, {ID: "4"}, {ID: "5"}}
	want := []string{"1", "2", "3", "4", "5"}

	samplePosts(posts, 3)

	gotIDs := make([]string, len(posts))
	for i, p := range posts {
		gotIDs[i] = p.ID
	}
	if diff := cmp.Diff(want, gotIDs); diff != "" {
		t.Errorf("Input order changed (-want +got):\n%s", diff)
	}
}
