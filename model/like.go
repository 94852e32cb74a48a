package model

import "time"

/*

Like is a "user liked a post" relation

Id: primary key, opaque uuid
UserID: user who liked
PostID: post being liked
CreatedAt: time when relation is created

At most one Like per (UserID, PostID) pair, enforced by a unique index.
The feed relies on this invariant and does not re-check it.
*/
type Like struct {
	Id        string    `gorm:"primaryKey" json:"id"`
	UserID    string    `gorm:"uniqueIndex:idx_like_user_post" json:"user_id"`
	PostID    string    `gorm:"uniqueIndex:idx_like_user_post" json:"post_id"`
	CreatedAt time.Time `json:"created_at"`
}
