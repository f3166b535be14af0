package api

import (
	"errors"
	"time"
)

// An EmotionTag is a named category a post may reference.
type EmotionTag struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// A Post represents a persisted emotion post. OriginAddress and ExpiresAt are
// internal bookkeeping and are never serialized in responses.
type Post struct {
	ID            string
	Content       string
	EmotionTag    *EmotionTag
	EmpathyCount  int
	CreatedAt     time.Time
	ExpiresAt     time.Time
	OriginAddress string
}

// DefaultEmotionTags is the initial tag vocabulary seeded at bootstrap.
var DefaultEmotionTags = []string{
	"安心", "悲しい", "嬉しい", "怒り", "不安",
	"期待", "驚き", "恐れ", "穏やか", "寂しい",
	"感謝", "後悔", "誇り", "焦り", "困惑",
}

var (
	// ErrNotFound indicates the referenced record does not exist. An expired
	// post that was already reaped is indistinguishable from one that never
	// existed.
	ErrNotFound = errors.New("not found")

	// ErrRateLimited indicates the origin address already posted during the
	// current calendar day.
	ErrRateLimited = errors.New("rate limited")
)
