package model

import (
	"time"
)

/*

Post is a single photo shared to the feed

Id: primary key, opaque uuid
CreatedAt: time when the post was created, also the feed sort key
UserID:
Profile: author of the post, "belongs-to" relation

Title: post's title in plain text
Description: optional longer caption
ImageURL: location of the uploaded image, immutable after creation

LikesCount:
	denormalized count of likes. The persisted column exists but is treated
	as untrustworthy: the feed recomputes it from the Likes set on every
	hydration.
Likes: all likes on this post, "has-many" relation
Comments: all comments on this post, kept sorted ascending by CreatedAt

ViewerHasLiked:
	derived per viewing user, never persisted. True iff the viewer's id
	appears in Likes.
Seen:
	derived per viewing user from the seen-status store, never persisted.
*/
type Post struct {
	Id             string    `gorm:"primaryKey" json:"id"`
	CreatedAt      time.Time `json:"created_at"`
	UserID         string    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"user_id"`
	Profile        Profile   `gorm:"foreignKey:UserID" json:"profile"`
	Title          string    `json:"title"`
	Description    *string   `json:"description"`
	ImageURL       string    `json:"image_url"`
	LikesCount     int       `json:"likes_count"`
	Likes          []Like    `gorm:"constraint:OnDelete:CASCADE;" json:"likes"`
	Comments       []Comment `gorm:"constraint:OnDelete:CASCADE;" json:"comments"`
	ViewerHasLiked bool      `gorm:"-" json:"user_has_liked"`
	Seen           bool      `gorm:"-" json:"seen"`
}
