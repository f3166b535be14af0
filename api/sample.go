package api

import "math/rand/v2"

// samplePosts draws min(k, len(posts)) posts uniformly without replacement.
// Each call seeds its own generator, so concurrent requests share no mutable
// random state.
func samplePosts(posts []Post, k int) []Post {
	if k > len(posts) {
		k = len(posts)
	}
	if k <= 0 {
		return []Post{}
	}

	rng := rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	idx := make([]int, len(posts))
	for i := range idx {
		idx[i] = i
	}

	// Partial Fisher-Yates over the index list; the first k slots end up as
	// the draw.
	out := make([]Post, k)
	for i := 0; i < k; i++ {
		j := i + rng.IntN(len(idx)-i)
		idx[i], idx[j] = idx[j], idx[i]
		out[i] = posts[idx[i]]
	}
	return out
}
