package store

import (
	"context"

	"github.com/AshBuk/pic-share/model"
	"github.com/pkg/errors"
)

// Tables the feed core can observe change notifications for.
const (
	TablePosts    = "posts"
	TableLikes    = "likes"
	TableComments = "comments"
)

// Operation kinds carried by change notifications.
const (
	OpInsert = "INSERT"
	OpUpdate = "UPDATE"
	OpDelete = "DELETE"
)

// ErrRowNotFound is returned by owner-scoped mutations when no row matched,
// either because it doesn't exist or because the acting user doesn't own it.
// The two cases are indistinguishable on purpose: row-level security hides
// other users' rows.
var ErrRowNotFound = errors.New("no matching row for the acting user")

// ChangeEvent is the payload of a change notification. Consumers are expected
// to re-query rather than patch their state from it, so it intentionally
// carries no row data.
type ChangeEvent struct {
	Table string `json:"table"`
	Op    string `json:"op"`
	ID    string `json:"id"`
}

// Store is the query and mutation surface the feed core consumes. All reads
// return fully hydrated rows; all owner-scoped mutations enforce ownership at
// the row level.
type Store interface {
	// FeedPage returns one page of posts ordered by created_at descending,
	// preloaded with Profile, Likes and Comments (with comment Profiles).
	FeedPage(ctx context.Context, offset int, limit int) ([]*model.Post, error)

	// FeedPageByAuthor is FeedPage restricted to a single author.
	FeedPageByAuthor(ctx context.Context, userId string, offset int, limit int) ([]*model.Post, error)

	// LikesByPost returns the likes of the given posts keyed by post id.
	// Posts with no likes are absent from the map.
	LikesByPost(ctx context.Context, postIds []string) (map[string][]model.Like, error)

	// CommentsByPost returns the comments of the given posts keyed by post
	// id, with comment Profiles preloaded.
	CommentsByPost(ctx context.Context, postIds []string) (map[string][]model.Comment, error)

	InsertLike(ctx context.Context, postId string, userId string) error
	DeleteLike(ctx context.Context, postId string, userId string) error

	InsertComment(ctx context.Context, postId string, userId string, content string) error
	UpdateComment(ctx context.Context, commentId string, userId string, content string) error
	DeleteComment(ctx context.Context, commentId string, userId string) error

	DeletePost(ctx context.Context, postId string, userId string) error
}
