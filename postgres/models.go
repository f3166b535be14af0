package postgres

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/kokoro-board/kokoro-board/api"
)

// An emotionTag represents an emotion tag row.
type emotionTag struct {
	bun.BaseModel `bun:"table:emotion_tags,alias:emotion_tag"`

	ID        string    `bun:",pk,type:uuid"`
	Name      string    `bun:",notnull,unique"`
	CreatedAt time.Time `bun:",nullzero,notnull,default:now()"`
}

// A post represents a post row. PostedOn holds the calendar day of CreatedAt
// in the store's reference timezone; the unique index over
// (origin_address, posted_on) is the one-post-per-day barrier.
type post struct {
	bun.BaseModel `bun:"table:posts,alias:post"`

	ID            string      `bun:",pk,type:uuid"`
	Content       string      `bun:",notnull"`
	EmotionTagID  string      `bun:",type:uuid,nullzero"`
	EmotionTag    *emotionTag `bun:"rel:belongs-to,join:emotion_tag_id=id"`
	EmpathyCount  int         `bun:",notnull,default:0"`
	CreatedAt     time.Time   `bun:",notnull"`
	ExpiresAt     time.Time   `bun:",notnull"`
	OriginAddress string      `bun:",notnull"`
	PostedOn      string      `bun:"posted_on,notnull,type:date"`
}

func (t emotionTag) APIEmotionTag() api.EmotionTag {
	return api.EmotionTag{
		ID:   t.ID,
		Name: t.Name,
	}
}

func (p post) APIPost() api.Post {
	out := api.Post{
		ID:            p.ID,
		Content:       p.Content,
		EmpathyCount:  p.EmpathyCount,
		CreatedAt:     p.CreatedAt,
		ExpiresAt:     p.ExpiresAt,
		OriginAddress: p.OriginAddress,
	}
	if p.EmotionTag != nil {
		tag := p.EmotionTag.APIEmotionTag()
		out.EmotionTag = &tag
	}
	return out
}
