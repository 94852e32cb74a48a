package model

import "time"

/*

Profile is a user visible to the feed

Id: primary key, matches the auth provider's user id
Username: unique handle
FullName: optional display name
AvatarURL: optional avatar image location

The feed core never writes profiles, they are managed by the account
screens.
*/
type Profile struct {
	Id        string    `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Username  string    `gorm:"uniqueIndex" json:"username"`
	FullName  *string   `json:"full_name"`
	AvatarURL *string   `json:"avatar_url"`
}
