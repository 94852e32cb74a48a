package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/AshBuk/pic-share/model"
	"github.com/AshBuk/pic-share/utils"
	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"github.com/pkg/errors"
)

// FakeStore is an in-memory Store for tests. The backing list is kept newest
// first, the same order FeedPage serves. Reads hand out deep copies so that
// callers observe value semantics like with a real database. Error fields,
// when set, are returned by the matching method before any state change.
type FakeStore struct {
	mu sync.Mutex

	// Posts backing the fake, newest first. Mutate via the Store methods or
	// SeedPosts, not directly.
	posts []*model.Post

	FeedPageErr error
	LikesErr    error
	CommentsErr error
	MutationErr error

	FeedPageCalls int
	LikesCalls    int
	CommentsCalls int

	// FeedPageHook, LikesHook and MutationHook, when set, run at the start of
	// the matching method before the store lock is taken. Tests use them to
	// interleave concurrent operations deterministically.
	FeedPageHook func()
	LikesHook    func()
	MutationHook func()
}

func NewFakeStore() *FakeStore {
	return &FakeStore{}
}

// SeedPosts replaces the backing list. Posts are ordered newest first by
// CreatedAt to match the feed query order.
func (s *FakeStore) SeedPosts(posts []*model.Post) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts = make([]*model.Post, len(posts))
	copy(s.posts, posts)
	for i := 0; i < len(s.posts); i++ {
		for j := i + 1; j < len(s.posts); j++ {
			if s.posts[j].CreatedAt.After(s.posts[i].CreatedAt) {
				s.posts[i], s.posts[j] = s.posts[j], s.posts[i]
			}
		}
	}
}

// LikesCallCount and CommentsCallCount read the counters under the store
// lock, for tests that poll while a background merge is running.
func (s *FakeStore) LikesCallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.LikesCalls
}

func (s *FakeStore) CommentsCallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.CommentsCalls
}

func clonePosts(posts []*model.Post) []*model.Post {
	cloned := make([]*model.Post, 0, len(posts))
	for _, post := range posts {
		c := &model.Post{}
		// copier deep-copies the nested Likes/Comments slices.
		if err := copier.CopyWithOption(c, post, copier.Option{DeepCopy: true}); err != nil {
			panic(err)
		}
		cloned = append(cloned, c)
	}
	return cloned
}

func (s *FakeStore) FeedPage(ctx context.Context, offset int, limit int) ([]*model.Post, error) {
	if s.FeedPageHook != nil {
		s.FeedPageHook()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FeedPageCalls++
	if s.FeedPageErr != nil {
		return nil, s.FeedPageErr
	}
	if offset >= len(s.posts) {
		return []*model.Post{}, nil
	}
	end := offset + limit
	if end > len(s.posts) {
		end = len(s.posts)
	}
	return clonePosts(s.posts[offset:end]), nil
}

func (s *FakeStore) FeedPageByAuthor(ctx context.Context, userId string, offset int, limit int) ([]*model.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FeedPageErr != nil {
		return nil, s.FeedPageErr
	}
	var byAuthor []*model.Post
	for _, post := range s.posts {
		if post.UserID == userId {
			byAuthor = append(byAuthor, post)
		}
	}
	if offset >= len(byAuthor) {
		return []*model.Post{}, nil
	}
	end := offset + limit
	if end > len(byAuthor) {
		end = len(byAuthor)
	}
	return clonePosts(byAuthor[offset:end]), nil
}

func (s *FakeStore) LikesByPost(ctx context.Context, postIds []string) (map[string][]model.Like, error) {
	if s.LikesHook != nil {
		s.LikesHook()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LikesCalls++
	if s.LikesErr != nil {
		return nil, s.LikesErr
	}
	byPost := make(map[string][]model.Like)
	for _, post := range s.posts {
		if !utils.ContainsString(postIds, post.Id) {
			continue
		}
		for _, like := range post.Likes {
			byPost[post.Id] = append(byPost[post.Id], like)
		}
	}
	return byPost, nil
}

func (s *FakeStore) CommentsByPost(ctx context.Context, postIds []string) (map[string][]model.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CommentsCalls++
	if s.CommentsErr != nil {
		return nil, s.CommentsErr
	}
	byPost := make(map[string][]model.Comment)
	for _, post := range s.posts {
		if !utils.ContainsString(postIds, post.Id) {
			continue
		}
		for _, comment := range post.Comments {
			byPost[post.Id] = append(byPost[post.Id], comment)
		}
	}
	return byPost, nil
}

func (s *FakeStore) InsertLike(ctx context.Context, postId string, userId string) error {
	if s.MutationHook != nil {
		s.MutationHook()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.MutationErr != nil {
		return s.MutationErr
	}
	for _, post := range s.posts {
		if post.Id != postId {
			continue
		}
		for _, like := range post.Likes {
			if like.UserID == userId {
				return errors.New("duplicate like")
			}
		}
		post.Likes = append(post.Likes, model.Like{
			Id:        uuid.New().String(),
			PostID:    postId,
			UserID:    userId,
			CreatedAt: time.Now(),
		})
		return nil
	}
	return ErrRowNotFound
}

func (s *FakeStore) DeleteLike(ctx context.Context, postId string, userId string) error {
	if s.MutationHook != nil {
		s.MutationHook()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.MutationErr != nil {
		return s.MutationErr
	}
	for _, post := range s.posts {
		if post.Id != postId {
			continue
		}
		for i, like := range post.Likes {
			if like.UserID == userId {
				post.Likes = append(post.Likes[:i], post.Likes[i+1:]...)
				return nil
			}
		}
	}
	return ErrRowNotFound
}

func (s *FakeStore) InsertComment(ctx context.Context, postId string, userId string, content string) error {
	if s.MutationHook != nil {
		s.MutationHook()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.MutationErr != nil {
		return s.MutationErr
	}
	for _, post := range s.posts {
		if post.Id != postId {
			continue
		}
		post.Comments = append(post.Comments, model.Comment{
			Id:        uuid.New().String(),
			PostID:    postId,
			UserID:    userId,
			Content:   strings.TrimSpace(content),
			CreatedAt: time.Now(),
		})
		return nil
	}
	return ErrRowNotFound
}

func (s *FakeStore) UpdateComment(ctx context.Context, commentId string, userId string, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.MutationErr != nil {
		return s.MutationErr
	}
	for _, post := range s.posts {
		for i, comment := range post.Comments {
			if comment.Id == commentId && comment.UserID == userId {
				post.Comments[i].Content = strings.TrimSpace(content)
				return nil
			}
		}
	}
	return ErrRowNotFound
}

func (s *FakeStore) DeleteComment(ctx context.Context, commentId string, userId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.MutationErr != nil {
		return s.MutationErr
	}
	for _, post := range s.posts {
		for i, comment := range post.Comments {
			if comment.Id == commentId && comment.UserID == userId {
				post.Comments = append(post.Comments[:i], post.Comments[i+1:]...)
				return nil
			}
		}
	}
	return ErrRowNotFound
}

func (s *FakeStore) DeletePost(ctx context.Context, postId string, userId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.MutationErr != nil {
		return s.MutationErr
	}
	for i, post := range s.posts {
		if post.Id == postId && post.UserID == userId {
			s.posts = append(s.posts[:i], s.posts[i+1:]...)
			return nil
		}
	}
	return ErrRowNotFound
}
