package redis

import (
	"time"

	"github.com/kokoro-board/kokoro-board/api"
)

// A post represents a cached post. The emotion tag is denormalized into two
// hash fields so a cached post round-trips without a second lookup.
type post struct {
	ID             string    `redis:"id"`
	Content        string    `redis:"content"`
	EmotionTagID   string    `redis:"emotion_tag_id"`
	EmotionTagName string    `redis:"emotion_tag_name"`
	EmpathyCount   int       `redis:"empathy_count"`
	CreatedAt      time.Time `redis:"created_at"`
	ExpiresAt      time.Time `redis:"expires_at"`
}

func newPost(p api.Post) *post {
	out := &post{
		ID:           p.ID,
		Content:      p.Content,
		EmpathyCount: p.EmpathyCount,
		CreatedAt:    p.CreatedAt,
		ExpiresAt:    p.ExpiresAt,
	}
	if p.EmotionTag != nil {
		out.EmotionTagID = p.EmotionTag.ID
		out.EmotionTagName = p.EmotionTag.Name
	}
	return out
}

func (p post) APIPost() api.Post {
	out := api.Post{
		ID:           p.ID,
		Content:      p.Content,
		EmpathyCount: p.EmpathyCount,
		CreatedAt:    p.CreatedAt,
		ExpiresAt:    p.ExpiresAt,
	}
	if p.EmotionTagID != "" {
		out.EmotionTag = &api.EmotionTag{
			ID:   p.EmotionTagID,
			Name: p.EmotionTagName,
		}
	}
	return out
}
