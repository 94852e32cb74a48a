package store

import (
	"context"
	"strings"

	"github.com/AshBuk/pic-share/model"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// GormStore is the Postgres-backed Store. Every successful mutation publishes
// a change notification, mirroring the row-change feed a managed datastore
// would emit. Self-originated writes notify too: the feed core treats its own
// mutations and remote ones uniformly.
type GormStore struct {
	db       *gorm.DB
	notifier *Notifier
}

func NewGormStore(db *gorm.DB, notifier *Notifier) *GormStore {
	return &GormStore{db: db, notifier: notifier}
}

func (s *GormStore) feedQuery(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Model(&model.Post{}).
		Preload("Profile").
		Preload("Likes").
		Preload("Comments").
		Preload("Comments.Profile")
}

func (s *GormStore) FeedPage(ctx context.Context, offset int, limit int) ([]*model.Post, error) {
	var posts []*model.Post
	res := s.feedQuery(ctx).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&posts)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "fail to query feed page")
	}
	return posts, nil
}

func (s *GormStore) FeedPageByAuthor(ctx context.Context, userId string, offset int, limit int) ([]*model.Post, error) {
	var posts []*model.Post
	res := s.feedQuery(ctx).
		Where("posts.user_id = ?", userId).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&posts)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "fail to query feed page by author")
	}
	return posts, nil
}

func (s *GormStore) LikesByPost(ctx context.Context, postIds []string) (map[string][]model.Like, error) {
	var likes []model.Like
	res := s.db.WithContext(ctx).
		Where("post_id IN ?", postIds).
		Find(&likes)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "fail to query likes")
	}
	byPost := make(map[string][]model.Like)
	for _, like := range likes {
		byPost[like.PostID] = append(byPost[like.PostID], like)
	}
	return byPost, nil
}

func (s *GormStore) CommentsByPost(ctx context.Context, postIds []string) (map[string][]model.Comment, error) {
	var comments []model.Comment
	res := s.db.WithContext(ctx).
		Preload("Profile").
		Where("post_id IN ?", postIds).
		Find(&comments)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "fail to query comments")
	}
	byPost := make(map[string][]model.Comment)
	for _, comment := range comments {
		byPost[comment.PostID] = append(byPost[comment.PostID], comment)
	}
	return byPost, nil
}

func (s *GormStore) InsertLike(ctx context.Context, postId string, userId string) error {
	like := model.Like{
		Id:     uuid.New().String(),
		PostID: postId,
		UserID: userId,
	}
	if err := s.db.WithContext(ctx).Create(&like).Error; err != nil {
		// The (user, post) unique index rejects double likes.
		return errors.Wrap(err, "fail to insert like")
	}
	s.notifier.PublishChange(ChangeEvent{Table: TableLikes, Op: OpInsert, ID: like.Id})
	return nil
}

func (s *GormStore) DeleteLike(ctx context.Context, postId string, userId string) error {
	res := s.db.WithContext(ctx).
		Where("post_id = ? AND user_id = ?", postId, userId).
		Delete(&model.Like{})
	if res.Error != nil {
		return errors.Wrap(res.Error, "fail to delete like")
	}
	if res.RowsAffected == 0 {
		return ErrRowNotFound
	}
	s.notifier.PublishChange(ChangeEvent{Table: TableLikes, Op: OpDelete, ID: postId})
	return nil
}

func (s *GormStore) InsertComment(ctx context.Context, postId string, userId string, content string) error {
	comment := model.Comment{
		Id:      uuid.New().String(),
		PostID:  postId,
		UserID:  userId,
		Content: strings.TrimSpace(content),
	}
	if err := s.db.WithContext(ctx).Create(&comment).Error; err != nil {
		return errors.Wrap(err, "fail to insert comment")
	}
	s.notifier.PublishChange(ChangeEvent{Table: TableComments, Op: OpInsert, ID: comment.Id})
	return nil
}

func (s *GormStore) UpdateComment(ctx context.Context, commentId string, userId string, content string) error {
	res := s.db.WithContext(ctx).Model(&model.Comment{}).
		Where("id = ? AND user_id = ?", commentId, userId).
		Update("content", strings.TrimSpace(content))
	if res.Error != nil {
		return errors.Wrap(res.Error, "fail to update comment")
	}
	if res.RowsAffected == 0 {
		return ErrRowNotFound
	}
	s.notifier.PublishChange(ChangeEvent{Table: TableComments, Op: OpUpdate, ID: commentId})
	return nil
}

func (s *GormStore) DeleteComment(ctx context.Context, commentId string, userId string) error {
	res := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", commentId, userId).
		Delete(&model.Comment{})
	if res.Error != nil {
		return errors.Wrap(res.Error, "fail to delete comment")
	}
	if res.RowsAffected == 0 {
		return ErrRowNotFound
	}
	s.notifier.PublishChange(ChangeEvent{Table: TableComments, Op: OpDelete, ID: commentId})
	return nil
}

func (s *GormStore) DeletePost(ctx context.Context, postId string, userId string) error {
	res := s.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", postId, userId).
		Delete(&model.Post{})
	if res.Error != nil {
		return errors.Wrap(res.Error, "fail to delete post")
	}
	if res.RowsAffected == 0 {
		return ErrRowNotFound
	}
	s.notifier.PublishChange(ChangeEvent{Table: TablePosts, Op: OpDelete, ID: postId})
	return nil
}
