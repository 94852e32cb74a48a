package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/AshBuk/pic-share/model"
	"github.com/AshBuk/pic-share/utils"
	"github.com/AshBuk/pic-share/utils/dotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestMain(m *testing.M) {
	dotenv.LoadDotEnvsInTests()
	os.Exit(m.Run())
}

var gormTestBase = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newTempStore(t *testing.T) (*gorm.DB, *GormStore, *Notifier) {
	t.Helper()
	db, _ := utils.CreateTempDB(t)
	notifier := NewNotifier()
	t.Cleanup(func() { notifier.Close() })
	return db, NewGormStore(db, notifier), notifier
}

func seedProfile(t *testing.T, db *gorm.DB, id string, username string) {
	t.Helper()
	require.NoError(t, db.Create(&model.Profile{Id: id, Username: username}).Error)
}

func seedPost(t *testing.T, db *gorm.DB, id string, userId string, minutesAgo int) {
	t.Helper()
	require.NoError(t, db.Create(&model.Post{
		Id:        id,
		CreatedAt: gormTestBase.Add(-time.Duration(minutesAgo) * time.Minute),
		UserID:    userId,
		Title:     "photo " + id,
		ImageURL:  "https://img.example/" + id + ".jpg",
	}).Error)
}

func TestGormFeedPageOrderingAndPreloads(t *testing.T) {
	db, s, _ := newTempStore(t)
	ctx := context.Background()

	seedProfile(t, db, "user_a", "alice")
	seedProfile(t, db, "user_b", "bob")
	seedPost(t, db, "p_old", "user_a", 10)
	seedPost(t, db, "p_new", "user_b", 1)
	require.NoError(t, s.InsertLike(ctx, "p_new", "user_a"))
	require.NoError(t, s.InsertComment(ctx, "p_new", "user_a", "hello"))

	posts, err := s.FeedPage(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, "p_new", posts[0].Id, "feed is newest first")
	assert.Equal(t, "p_old", posts[1].Id)

	// Author, likes and comments (with their authors) arrive preloaded.
	assert.Equal(t, "bob", posts[0].Profile.Username)
	require.Len(t, posts[0].Likes, 1)
	assert.Equal(t, "user_a", posts[0].Likes[0].UserID)
	require.Len(t, posts[0].Comments, 1)
	assert.Equal(t, "alice", posts[0].Comments[0].Profile.Username)

	// Offset pagination walks the same ordering.
	page, err := s.FeedPage(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "p_old", page[0].Id)
}

func TestGormFeedPageByAuthor(t *testing.T) {
	db, s, _ := newTempStore(t)
	ctx := context.Background()

	seedProfile(t, db, "user_a", "alice")
	seedProfile(t, db, "user_b", "bob")
	seedPost(t, db, "p1", "user_a", 1)
	seedPost(t, db, "p2", "user_b", 2)
	seedPost(t, db, "p3", "user_a", 3)

	posts, err := s.FeedPageByAuthor(ctx, "user_a", 0, 10)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, "p1", posts[0].Id)
	assert.Equal(t, "p3", posts[1].Id)
}

func TestGormLikesAndCommentsByPost(t *testing.T) {
	db, s, _ := newTempStore(t)
	ctx := context.Background()

	seedProfile(t, db, "user_a", "alice")
	seedProfile(t, db, "user_b", "bob")
	seedPost(t, db, "p1", "user_a", 1)
	seedPost(t, db, "p2", "user_a", 2)
	require.NoError(t, s.InsertLike(ctx, "p1", "user_a"))
	require.NoError(t, s.InsertLike(ctx, "p1", "user_b"))
	require.NoError(t, s.InsertComment(ctx, "p2", "user_b", "nice"))

	likes, err := s.LikesByPost(ctx, []string{"p1", "p2"})
	require.NoError(t, err)
	assert.Len(t, likes["p1"], 2)
	// Posts without likes are absent, not empty.
	_, ok := likes["p2"]
	assert.False(t, ok)

	comments, err := s.CommentsByPost(ctx, []string{"p1", "p2"})
	require.NoError(t, err)
	require.Len(t, comments["p2"], 1)
	assert.Equal(t, "bob", comments["p2"][0].Profile.Username)
}

func TestGormLikeUniqueness(t *testing.T) {
	db, s, _ := newTempStore(t)
	ctx := context.Background()

	seedProfile(t, db, "user_a", "alice")
	seedPost(t, db, "p1", "user_a", 1)

	require.NoError(t, s.InsertLike(ctx, "p1", "user_a"))
	assert.Error(t, s.InsertLike(ctx, "p1", "user_a"), "the (user, post) unique index rejects a double like")

	likes, err := s.LikesByPost(ctx, []string{"p1"})
	require.NoError(t, err)
	assert.Len(t, likes["p1"], 1)
}

func TestGormOwnerScopedMutations(t *testing.T) {
	db, s, _ := newTempStore(t)
	ctx := context.Background()

	seedProfile(t, db, "user_a", "alice")
	seedProfile(t, db, "user_b", "bob")
	seedPost(t, db, "p1", "user_a", 1)
	require.NoError(t, s.InsertLike(ctx, "p1", "user_b"))
	require.NoError(t, s.InsertComment(ctx, "p1", "user_b", "original"))

	comments, err := s.CommentsByPost(ctx, []string{"p1"})
	require.NoError(t, err)
	commentId := comments["p1"][0].Id

	// A different user cannot touch rows they don't own; delete-like without
	// a matching row reports the same way.
	assert.ErrorIs(t, s.UpdateComment(ctx, commentId, "user_a", "hijack"), ErrRowNotFound)
	assert.ErrorIs(t, s.DeleteComment(ctx, commentId, "user_a"), ErrRowNotFound)
	assert.ErrorIs(t, s.DeletePost(ctx, "p1", "user_b"), ErrRowNotFound)
	assert.ErrorIs(t, s.DeleteLike(ctx, "p1", "user_a"), ErrRowNotFound)

	// The owner can.
	require.NoError(t, s.UpdateComment(ctx, commentId, "user_b", "  edited  "))
	comments, err = s.CommentsByPost(ctx, []string{"p1"})
	require.NoError(t, err)
	assert.Equal(t, "edited", comments["p1"][0].Content, "content is stored trimmed")

	require.NoError(t, s.DeleteComment(ctx, commentId, "user_b"))
	require.NoError(t, s.DeleteLike(ctx, "p1", "user_b"))
	require.NoError(t, s.DeletePost(ctx, "p1", "user_a"))

	posts, err := s.FeedPage(ctx, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, posts)
}

func TestGormMutationsPublishChangeEvents(t *testing.T) {
	db, s, notifier := newTempStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	seedProfile(t, db, "user_a", "alice")
	seedPost(t, db, "p1", "user_a", 1)

	msgs, err := notifier.Subscribe(ctx, TopicLikes)
	require.NoError(t, err)

	require.NoError(t, s.InsertLike(ctx, "p1", "user_a"))
	select {
	case msg := <-msgs:
		msg.Ack()
	case <-time.After(time.Second):
		t.Fatal("no change event after a successful like insert")
	}
}
