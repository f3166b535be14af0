package api

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kokoro-board/kokoro-board/api/validator"
)

// postVisibility is how long a post stays visible after creation.
const postVisibility = 24 * time.Hour

const (
	defaultSampleSize = 10
	minSampleSize     = 1
	maxSampleSize     = 50
)

// postResponse is the external shape of a post. The origin address and expiry
// time stay server-side.
type postResponse struct {
	ID           string      `json:"id"`
	Content      string      `json:"content"`
	EmotionTag   *EmotionTag `json:"emotion_tag"`
	EmpathyCount int         `json:"empathy_count"`
	CreatedAt    time.Time   `json:"created_at"`
}

func (p Post) response() postResponse {
	return postResponse{
		ID:           p.ID,
		Content:      p.Content,
		EmotionTag:   p.EmotionTag,
		EmpathyCount: p.EmpathyCount,
		CreatedAt:    p.CreatedAt,
	}
}

func postResponses(posts []Post) []postResponse {
	out := make([]postResponse, len(posts))
	for i, p := range posts {
		out[i] = p.response()
	}
	return out
}

// originAddress extracts the submitting client's network address from the
// connection. The first X-Forwarded-For hop is honored only when a trusted
// proxy sets it; taken from the client it would mint a fresh address per
// request and sidestep the daily posting limit.
func (a *API) originAddress(r *http.Request) string {
	if a.TrustedProxy {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			addr, _, _ := strings.Cut(fwd, ",")
			return strings.TrimSpace(addr)
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (a *API) createPost(w http.ResponseWriter, r *http.Request) {
	type request struct {
		Content      string `json:"content" validate:"required,max=1000"`
		EmotionTagID string `json:"emotion_tag_id"`
	}
	type errorsResponse struct {
		Errors []validator.ValidationError `json:"errors"`
	}

	var body request
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		a.respondError(w, http.StatusBadRequest, err, "Could not decode request body")
		return
	}

	if valid := a.validateBody(w, &body); !valid {
		return
	}

	if err := r.Body.Close(); err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not close request body")
		return
	}

	addr := a.originAddress(r)
	if errs := a.Val.Validate(addr, "required,ip"); len(errs) > 0 {
		a.respond(w, http.StatusBadRequest, &errorsResponse{
			Errors: []validator.ValidationError{
				{Field: "origin_address", Message: "must be a well-formed IP address"},
			},
		})
		return
	}

	var tag *EmotionTag
	if body.EmotionTagID != "" {
		t, err := a.DB.EmotionTag(r.Context(), body.EmotionTagID)
		if errors.Is(err, ErrNotFound) {
			a.respond(w, http.StatusBadRequest, &errorsResponse{
				Errors: []validator.ValidationError{
					{Field: "emotion_tag_id", Message: "unknown emotion tag"},
				},
			})
			return
		}
		if err != nil {
			a.respondError(w, http.StatusInternalServerError, err, "Could not look up emotion tag")
			return
		}
		tag = &t
	}

	now := a.now().In(a.location())
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, a.location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	_, err := a.DB.PostByAddressOnDay(r.Context(), addr, dayStart, dayEnd)
	switch {
	case err == nil:
		a.respondError(w, http.StatusTooManyRequests, ErrRateLimited,
			"You have already posted today. You can post again after midnight.")
		return
	case !errors.Is(err, ErrNotFound):
		a.respondError(w, http.StatusInternalServerError, err, "Could not check posting history")
		return
	}

	post, err := a.DB.InsertPost(r.Context(), Post{
		Content:       body.Content,
		EmotionTag:    tag,
		CreatedAt:     now,
		ExpiresAt:     now.Add(postVisibility),
		OriginAddress: addr,
	})
	if err != nil {
		// Two same-day submissions can race past the lookup above; the
		// store's uniqueness constraint decides the loser.
		if errors.Is(err, ErrRateLimited) {
			a.respondError(w, http.StatusTooManyRequests, err,
				"You have already posted today. You can post again after midnight.")
			return
		}
		a.respondError(w, http.StatusInternalServerError, err, "Could not insert post")
		return
	}

	if err := a.Cache.InsertPost(r.Context(), post); err != nil {
		a.Logger.Error("Could not cache post", "error", err.Error())
	}

	a.respond(w, http.StatusCreated, post.response())
}

// listPosts returns every post still inside its 24h visibility window, not
// just posts created on the current calendar day; near midnight those two
// sets differ, and visibility is what expiry governs.
func (a *API) listPosts(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Posts []postResponse `json:"posts"`
	}

	now := a.now()

	// Cache first, DB for the remainder. A cache failure degrades to a
	// DB-only read.
	posts, err := a.Cache.ListValidPosts(r.Context(), now)
	if err != nil {
		a.Logger.Error("Could not list cached posts", "error", err.Error())
		posts = nil
	}

	postIDs := make([]string, len(posts))
	for i, p := range posts {
		postIDs[i] = p.ID
	}

	dbPosts, err := a.DB.ListValidPosts(r.Context(), now, postIDs...)
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not list posts")
		return
	}
	posts = append(posts, dbPosts...)

	a.respond(w, http.StatusOK, response{Posts: postResponses(posts)})
}

func (a *API) randomPosts(w http.ResponseWriter, r *http.Request) {
	type response struct {
		Posts []postResponse `json:"posts"`
	}

	// Clamp before any store access; a malformed count silently defaults.
	count := defaultSampleSize
	if s := r.URL.Query().Get("count"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			count = min(max(n, minSampleSize), maxSampleSize)
		}
	}

	posts, err := a.DB.ListValidPosts(r.Context(), a.now())
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not list posts")
		return
	}

	a.respond(w, http.StatusOK, response{Posts: postResponses(samplePosts(posts, count))})
}

func (a *API) createEmpathy(w http.ResponseWriter, r *http.Request) {
	postID := r.PathValue("postID")

	post, err := a.DB.IncrementEmpathy(r.Context(), postID)
	if errors.Is(err, ErrNotFound) {
		a.respondError(w, http.StatusNotFound, err, "Post not found")
		return
	}
	if err != nil {
		a.respondError(w, http.StatusInternalServerError, err, "Could not add empathy")
		return
	}

	if err := a.Cache.IncrementEmpathy(r.Context(), post.ID); err != nil {
		a.Logger.Error("Could not update cached empathy count", "error", err.Error())
	}

	a.respond(w, http.StatusOK, post.response())
}
