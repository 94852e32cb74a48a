package model

import "time"

/*

Comment is a user comment on a post

Id: primary key, opaque uuid
UserID:
Profile: author of the comment, "belongs-to" relation
PostID: post being commented on
Content: plain text body, non-empty after trimming
CreatedAt: time when the comment was created

Comments on a post are kept in ascending CreatedAt order. The ordering is
restored after every load and merge rather than trusted from the source.
*/
type Comment struct {
	Id        string    `gorm:"primaryKey" json:"id"`
	UserID    string    `json:"user_id"`
	Profile   Profile   `gorm:"foreignKey:UserID" json:"profile"`
	PostID    string    `gorm:"index" json:"post_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
