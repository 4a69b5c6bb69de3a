package model

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Post visibility levels.
const (
	VisibilityPublic  = "public"
	VisibilityFriends = "friends"
	VisibilityPrivate = "private"
)

// ValidVisibility reports whether v is one of the known visibility levels.
func ValidVisibility(v string) bool {
	switch v {
	case VisibilityPublic, VisibilityFriends, VisibilityPrivate:
		return true
	}
	return false
}

// Media item types.
const (
	MediaTypeImage = "image"
	MediaTypeVideo = "video"
)

// MediaItem is one image or video attached to a post.
type MediaItem struct {
	Type      string `bson:"type"       json:"type"`
	SourceURL string `bson:"source_url" json:"sourceUrl"`
	Width     int    `bson:"width"      json:"width"`
	Height    int    `bson:"height"     json:"height"`
}

// Post is a feed item. Deletion is a soft flag so the author can restore it.
type Post struct {
	ID             bson.ObjectID `bson:"_id,omitempty" json:"postId"`
	AuthorID       string        `bson:"author_id"      json:"authorId"`
	AuthorName     string        `bson:"author_name"    json:"authorName"`
	AuthorAvatar   string        `bson:"author_avatar"  json:"authorAvatar"`
	Caption        string        `bson:"caption"        json:"caption"`
	Media          []MediaItem   `bson:"media"          json:"media"`
	LikeCount      int64         `bson:"like_count"     json:"likeCount"`
	ViewCount      int64         `bson:"view_count"     json:"viewCount"`
	CommentCount   int64         `bson:"comment_count"  json:"commentCount"`
	PromotionLevel int           `bson:"promotion_level" json:"promotionLevel"`
	Tags           []string      `bson:"tags"           json:"tags"`
	Visibility     string        `bson:"visibility"     json:"visibility"`
	IsDeleted      bool          `bson:"is_deleted"     json:"isDeleted"`
	CreatedAt      time.Time     `bson:"created_at"     json:"createdAt"`
	UpdatedAt      time.Time     `bson:"updated_at"     json:"updatedAt"`
}

// PostLike records that one user liked one post. The {post_id, user_id} pair
// is unique so a toggle cannot double-count.
type PostLike struct {
	ID        bson.ObjectID `bson:"_id,omitempty"`
	PostID    bson.ObjectID `bson:"post_id"`
	UserID    string        `bson:"user_id"`
	CreatedAt time.Time     `bson:"created_at"`
}
