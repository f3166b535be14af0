package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/kokoro-board/kokoro-board/api/validator"
)

// A DB provides a storage layer that persists posts and emotion tags.
type DB interface {
	// ListValidPosts returns all posts with expires_at > now, newest first,
	// excluding the given IDs.
	ListValidPosts(ctx context.Context, now time.Time, excludePostIDs ...string) ([]Post, error)
	// PostByAddressOnDay returns the post, if any, submitted by the address
	// within [dayStart, dayEnd). Returns ErrNotFound when the address has not
	// posted that day.
	PostByAddressOnDay(ctx context.Context, address string, dayStart, dayEnd time.Time) (Post, error)
	// InsertPost persists a new post. Returns ErrRateLimited when the store's
	// one-post-per-address-per-day constraint rejects the insert.
	InsertPost(ctx context.Context, post Post) (Post, error)
	// IncrementEmpathy atomically bumps the post's empathy counter by one and
	// returns the updated post. Returns ErrNotFound for an unknown ID.
	IncrementEmpathy(ctx context.Context, postID string) (Post, error)
	// EmotionTag returns the tag with the given ID, or ErrNotFound.
	EmotionTag(ctx context.Context, tagID string) (EmotionTag, error)
	ListEmotionTags(ctx context.Context) ([]EmotionTag, error)
}

// A Cache provides a storage layer that caches currently valid posts. Cache
// failures are never surfaced to clients; the DB remains authoritative.
type Cache interface {
	ListValidPosts(ctx context.Context, now time.Time) ([]Post, error)
	InsertPost(ctx context.Context, post Post) error
	IncrementEmpathy(ctx context.Context, postID string) error
}

// API provides the REST endpoints for the application.
type API struct {
	Logger *slog.Logger
	DB     DB
	Cache  Cache
	Val    *validator.Validator

	// Loc is the reference timezone for the one-post-per-day window.
	// Defaults to time.Local.
	Loc *time.Location

	// TrustedProxy indicates a trusted reverse proxy fronts the server, so
	// X-Forwarded-For may be used for the client address. Off by default:
	// the header is client-controlled.
	TrustedProxy bool

	// Now returns the current time. Defaults to time.Now; tests override it.
	Now func() time.Time

	once    sync.Once
	handler http.Handler
}

func (a *API) setupRoutes() {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /posts", a.listPosts)
	mux.HandleFunc("POST /posts", a.createPost)
	mux.HandleFunc("GET /posts/random", a.randomPosts)
	mux.HandleFunc("POST /posts/{postID}/empathy", a.createEmpathy)
	mux.HandleFunc("GET /emotion-tags", a.listEmotionTags)

	a.handler = a.logRequests(mux)
}

func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.once.Do(a.setupRoutes)
	a.handler.ServeHTTP(w, r)
}

// logRequests wraps next with request/response logging.
func (a *API) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		a.Logger.Info("Request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start).String(),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}

func (a *API) location() *time.Location {
	if a.Loc != nil {
		return a.Loc
	}
	return time.Local
}

func (a *API) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

func (a *API) respond(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		a.Logger.Error("Could not encode JSON body", "error", err.Error())
	}
}

func (a *API) respondError(w http.ResponseWriter, status int, err error, msg string) {
	type response struct {
		Error string `json:"error"`
	}
	a.Logger.Error("Error", "error", err.Error())
	a.respond(w, status, response{Error: msg})
}

func (a *API) validateBody(w http.ResponseWriter, s interface{}) bool {
	errs := a.Val.ValidateStruct(s)
	type response struct {
		Errors []validator.ValidationError `json:"errors"`
	}

	if len(errs) > 0 {
		a.respond(w, http.StatusBadRequest, &response{
			Errors: errs,
		})
		return false
	}
	return true
}
