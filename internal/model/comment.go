package model

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Comment belongs to exactly one target: a post id, or another comment id for
// one level of reply nesting.
type Comment struct {
	ID           bson.ObjectID `bson:"_id,omitempty" json:"commentId"`
	TargetID     string        `bson:"target_id"     json:"targetId"`
	AuthorID     string        `bson:"author_id"     json:"authorId"`
	AuthorName   string        `bson:"author_name"   json:"authorName"`
	AuthorAvatar string        `bson:"author_avatar" json:"authorAvatar"`
	Content      string        `bson:"content"       json:"content"`
	LikeCount    int64         `bson:"like_count"    json:"likeCount"`
	IsDeleted    bool          `bson:"is_deleted"    json:"isDeleted"`
	CreatedAt    time.Time     `bson:"created_at"    json:"createdAt"`
	UpdatedAt    time.Time     `bson:"updated_at"    json:"updatedAt"`
}
