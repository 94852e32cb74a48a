package feed

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/AshBuk/pic-share/model"
	"github.com/AshBuk/pic-share/store"
	. "github.com/AshBuk/pic-share/utils/log"
	"github.com/jinzhu/copier"
	"github.com/pkg/errors"
)

var (
	// ErrNotSignedIn aborts actions attempted without a signed-in viewer.
	ErrNotSignedIn = errors.New("not signed in")
	// ErrEmptyComment rejects whitespace-only comment text before any store
	// call is made.
	ErrEmptyComment = errors.New("comment cannot be empty")
	// ErrActionInFlight rejects a second action of the same kind while one is
	// still running. Callers disable the triggering control instead of
	// queueing.
	ErrActionInFlight = errors.New("action already in flight")
)

// NoticeSink receives user-facing notices, the transient toast-style messages
// actions raise on success and failure.
type NoticeSink interface {
	Success(msg string)
	Error(msg string)
}

// LogNoticeSink routes notices to the process log. The HTTP layer substitutes
// a sink that forwards them to the client.
type LogNoticeSink struct{}

func (LogNoticeSink) Success(msg string) { Log.Info("notice: ", msg) }
func (LogNoticeSink) Error(msg string)   { Log.Warn("notice: ", msg) }

/*

Coordinator executes user-initiated mutations with optimistic local effect,
server confirmation and rollback on failure.

The cache is never written here: the optimistic view is an overlay published
to the presentation through OnPostUpdate, exactly until the scheduled
reconciliation folds the authoritative server state back in through the
cache's merge primitives.

One busy flag per action kind guards against concurrent duplicates. The flags
are not a data-race protection, they implement the "buttons disabled while
pending" contract.
*/
type Coordinator struct {
	store      store.Store
	cache      *Cache
	controller *Controller
	notices    NoticeSink
	viewerId   string
	cfg        Config

	mu          sync.Mutex
	likeBusy    bool
	commentBusy bool
	postBusy    bool
	overlay     map[string]*model.Post

	// OnPostUpdate publishes an optimistic (or rolled back) post to the
	// presentation layer. Nil is allowed.
	OnPostUpdate func(*model.Post)
}

func NewCoordinator(s store.Store, cache *Cache, controller *Controller, notices NoticeSink, viewerId string, cfg Config) *Coordinator {
	return &Coordinator{
		store:      s,
		cache:      cache,
		controller: controller,
		notices:    notices,
		viewerId:   viewerId,
		cfg:        cfg,
		overlay:    make(map[string]*model.Post),
	}
}

// currentPost returns the viewer-facing state of a post: the optimistic
// overlay entry when one exists, the cached post otherwise.
func (c *Coordinator) currentPost(postId string) *model.Post {
	c.mu.Lock()
	defer c.mu.Unlock()
	if post, ok := c.overlay[postId]; ok {
		return post
	}
	return c.cache.PostById(postId)
}

func (c *Coordinator) publish(post *model.Post) {
	if c.OnPostUpdate != nil {
		c.OnPostUpdate(post)
	}
}

func clonePost(post *model.Post) *model.Post {
	cp := &model.Post{}
	if err := copier.Copy(cp, post); err != nil {
		// copier only fails on invalid input types, which would be a
		// programming error here.
		panic(err)
	}
	return cp
}

// ToggleLike flips the viewer's like on a post. The flipped state is
// published synchronously before the store round trip; on failure the
// pre-action state is republished and an error notice raised, with no retry.
// On success a delayed likes merge reconciles with the authoritative state,
// coalescing rapid toggles.
func (c *Coordinator) ToggleLike(ctx context.Context, postId string) error {
	if c.viewerId == "" {
		c.notices.Error("Please sign in to like posts")
		return ErrNotSignedIn
	}

	c.mu.Lock()
	if c.likeBusy {
		c.mu.Unlock()
		return ErrActionInFlight
	}
	c.likeBusy = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.likeBusy = false
		c.mu.Unlock()
	}()

	prev := c.currentPost(postId)
	if prev == nil {
		return errors.New("unknown post " + postId)
	}

	prevLiked := prev.ViewerHasLiked
	next := clonePost(prev)
	next.ViewerHasLiked = !prevLiked
	if next.ViewerHasLiked {
		next.LikesCount = prev.LikesCount + 1
	} else {
		next.LikesCount = prev.LikesCount - 1
		if next.LikesCount < 0 {
			next.LikesCount = 0
		}
	}

	// Optimistic apply, strictly before the network call.
	c.mu.Lock()
	c.overlay[postId] = next
	c.mu.Unlock()
	c.publish(next)

	var err error
	if prevLiked {
		err = c.store.DeleteLike(ctx, postId, c.viewerId)
	} else {
		err = c.store.InsertLike(ctx, postId, c.viewerId)
	}

	if err != nil {
		// Rollback to the pre-action state.
		c.mu.Lock()
		delete(c.overlay, postId)
		c.mu.Unlock()
		c.publish(prev)
		c.notices.Error("Failed to update like")
		return errors.Wrap(err, "fail to toggle like")
	}

	time.AfterFunc(c.cfg.ActionSyncDelay, func() {
		c.cache.MergeLikesOnly(context.Background())
		c.clearOverlay(postId)
		c.controller.publishSnapshot()
	})
	return nil
}

// AddComment validates and inserts a comment. The comment itself is not
// optimistically inserted, its id and timestamp are server-assigned; the
// delayed merges surface it. On failure the caller keeps the typed text and
// may retry.
func (c *Coordinator) AddComment(ctx context.Context, postId string, content string) error {
	if c.viewerId == "" {
		c.notices.Error("Please sign in to comment")
		return ErrNotSignedIn
	}
	if strings.TrimSpace(content) == "" {
		return ErrEmptyComment
	}
	return c.runCommentMutation(func() error {
		return c.store.InsertComment(ctx, postId, c.viewerId, content)
	}, "Comment added!", "Failed to add comment")
}

// UpdateComment edits a comment the viewer owns.
func (c *Coordinator) UpdateComment(ctx context.Context, commentId string, content string) error {
	if c.viewerId == "" {
		c.notices.Error("Please sign in to comment")
		return ErrNotSignedIn
	}
	if strings.TrimSpace(content) == "" {
		return ErrEmptyComment
	}
	return c.runCommentMutation(func() error {
		return c.store.UpdateComment(ctx, commentId, c.viewerId, content)
	}, "Comment updated!", "Failed to update comment")
}

// DeleteComment removes a comment the viewer owns.
func (c *Coordinator) DeleteComment(ctx context.Context, commentId string) error {
	if c.viewerId == "" {
		c.notices.Error("Please sign in to comment")
		return ErrNotSignedIn
	}
	return c.runCommentMutation(func() error {
		return c.store.DeleteComment(ctx, commentId, c.viewerId)
	}, "Comment deleted", "Failed to delete comment")
}

func (c *Coordinator) runCommentMutation(mutate func() error, successMsg string, failureMsg string) error {
	c.mu.Lock()
	if c.commentBusy {
		c.mu.Unlock()
		return ErrActionInFlight
	}
	c.commentBusy = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.commentBusy = false
		c.mu.Unlock()
	}()

	if err := mutate(); err != nil {
		c.notices.Error(failureMsg)
		return errors.Wrap(err, "comment mutation failed")
	}

	c.notices.Success(successMsg)
	// Quick comments merge for the feed itself, then the shared reconcile
	// path to sync any other open view of the same post.
	time.AfterFunc(c.cfg.ActionSyncDelay, func() {
		c.cache.MergeCommentsOnly(context.Background())
		c.controller.publishSnapshot()
	})
	time.AfterFunc(c.cfg.ReconcileDebounce, c.controller.ScheduleReconcile)
	return nil
}

// DeletePost removes a post the viewer owns. Ownership is enforced by the
// store's row-level predicate; the coordinator only scopes the request. A
// full reload follows, post removal shifts every later pagination offset.
func (c *Coordinator) DeletePost(ctx context.Context, postId string) error {
	if c.viewerId == "" {
		c.notices.Error("Please sign in to delete posts")
		return ErrNotSignedIn
	}

	c.mu.Lock()
	if c.postBusy {
		c.mu.Unlock()
		return ErrActionInFlight
	}
	c.postBusy = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.postBusy = false
		c.mu.Unlock()
	}()

	if err := c.store.DeletePost(ctx, postId, c.viewerId); err != nil {
		c.notices.Error("Failed to delete post")
		return errors.Wrap(err, "fail to delete post")
	}

	c.notices.Success("Post deleted!")
	time.AfterFunc(c.cfg.ActionSyncDelay, func() {
		if err := c.cache.Reload(context.Background()); err != nil {
			Log.Error("post-delete reload failed: ", err)
		}
		c.controller.publishSnapshot()
	})
	return nil
}

func (c *Coordinator) clearOverlay(postId string) {
	c.mu.Lock()
	delete(c.overlay, postId)
	c.mu.Unlock()
}
