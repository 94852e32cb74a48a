package feed

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/AshBuk/pic-share/model"
	"github.com/AshBuk/pic-share/store"
	. "github.com/AshBuk/pic-share/utils/log"
	"github.com/pkg/errors"
)

// Config carries the feed core's tuning knobs. Tests shrink the durations to
// keep timing deterministic.
type Config struct {
	// Posts per page. The store query order and this size together define
	// the pagination offsets, so it must not change while a cache is live.
	PageSize int

	// Page-0 loads within this window are served from the cache without a
	// store round trip.
	CacheDuration time.Duration

	// Debounce for attention-resume reconciliation.
	ReconcileDebounce time.Duration

	// Delay between a successful user mutation and the reconciling merge,
	// coalescing rapid repeats.
	ActionSyncDelay time.Duration
}

func DefaultConfig() Config {
	return Config{
		PageSize:          3,
		CacheDuration:     30 * time.Second,
		ReconcileDebounce: 100 * time.Millisecond,
		ActionSyncDelay:   50 * time.Millisecond,
	}
}

/*

Cache is the process-wide window of hydrated feed posts and the single source
of truth for what the presentation renders. It offers exactly three ways to
mutate the window, with different blast radii:

	LoadPage       full page fetch, replaces (page 0) or appends (page N)
	MergeLikesOnly likes-only reconciliation, preserves unchanged posts
	MergeCommentsOnly same for comments

Nothing else may write the cached list.

Identity contract: a merge that finds a post semantically unchanged keeps the
exact same *model.Post pointer, and keeps the top-level slice reference when
no post changed at all. Renderers compare pointers (see memo.go) to skip
expensive subtrees, so allocating a fresh but equal post is a correctness bug
here, not a style issue.

Supersession: generation counts list-membership changes (loads and reloads).
A merge snapshots the generation before its query and discards its result if
the generation advanced meanwhile, so an in-flight Reload always wins over a
concurrent merge.
*/
type Cache struct {
	store    store.Store
	cfg      Config
	viewerId string

	mu                sync.Mutex
	posts             []*model.Post
	nextPage          int
	hasMore           bool
	lastPageZeroFetch time.Time
	generation        uint64
}

func NewCache(s store.Store, viewerId string, cfg Config) *Cache {
	return &Cache{
		store:    s,
		cfg:      cfg,
		viewerId: viewerId,
	}
}

// Hydrate recomputes the derived fields of a freshly fetched post. The
// persisted likes counter is untrusted and always recomputed from the Likes
// set; comment order is restored rather than trusted from the source.
func Hydrate(post *model.Post, viewerId string) {
	post.LikesCount = len(post.Likes)
	post.ViewerHasLiked = viewerLiked(post.Likes, viewerId)
	sortComments(post.Comments)
}

func viewerLiked(likes []model.Like, viewerId string) bool {
	if viewerId == "" {
		return false
	}
	for _, like := range likes {
		if like.UserID == viewerId {
			return true
		}
	}
	return false
}

func sortComments(comments []model.Comment) {
	sort.SliceStable(comments, func(i, j int) bool {
		return comments[i].CreatedAt.Before(comments[j].CreatedAt)
	})
}

// LoadPage fetches one page of hydrated posts. Page 0 replaces the window and
// refreshes the freshness clock, later pages append. A page-0 call within the
// freshness window is served from the cache unless force is set. Callers must
// not re-request an already loaded page; dedup is not performed.
//
// On store failure the window is left untouched.
func (c *Cache) LoadPage(ctx context.Context, page int, force bool) error {
	c.mu.Lock()
	if page == 0 && !force && !c.lastPageZeroFetch.IsZero() &&
		time.Since(c.lastPageZeroFetch) < c.cfg.CacheDuration {
		c.mu.Unlock()
		return nil
	}
	gen := c.generation
	c.mu.Unlock()

	// Fetch one row beyond the page so hasMore is known without trusting a
	// total count; the extra row is trimmed before it enters the window.
	posts, err := c.store.FeedPage(ctx, page*c.cfg.PageSize, c.cfg.PageSize+1)
	if err != nil {
		return errors.Wrap(err, "fail to load feed page")
	}
	hasMore := len(posts) > c.cfg.PageSize
	if hasMore {
		posts = posts[:c.cfg.PageSize]
	}
	for _, post := range posts {
		Hydrate(post, c.viewerId)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if page == 0 {
		c.posts = posts
		c.nextPage = 1
		c.lastPageZeroFetch = time.Now()
	} else {
		if c.generation != gen {
			// The window was replaced while this page was in flight, its
			// offsets no longer line up. Drop it.
			return nil
		}
		merged := make([]*model.Post, 0, len(c.posts)+len(posts))
		merged = append(merged, c.posts...)
		merged = append(merged, posts...)
		c.posts = merged
		c.nextPage = page + 1
	}
	c.hasMore = hasMore
	c.generation++
	return nil
}

// Reload resets pagination and refetches page 0 bypassing the freshness
// window. On failure the previous window stays in place.
func (c *Cache) Reload(ctx context.Context) error {
	return c.LoadPage(ctx, 0, true)
}

// MergeLikesOnly refetches just the likes of the cached posts and recomputes
// LikesCount and ViewerHasLiked. Posts whose two derived values are unchanged
// keep their exact pointer; if no post changed the list reference is kept
// too. Errors are swallowed: this is best-effort background sync, the next
// reconciliation converges.
func (c *Cache) MergeLikesOnly(ctx context.Context) {
	ids, gen, ok := c.idSnapshot()
	if !ok {
		return
	}

	likesByPost, err := c.store.LikesByPost(ctx, ids)
	if err != nil {
		Log.Debug("likes merge skipped: ", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		// A reload replaced the window, its result is authoritative.
		return
	}

	changed := false
	next := make([]*model.Post, len(c.posts))
	for i, post := range c.posts {
		// Shallow copy keeps the Comments backing array intact, so
		// comment-reference memoization still holds for this post.
		cp := *post
		cp.Likes = likesByPost[post.Id]
		cp.LikesCount = len(cp.Likes)
		cp.ViewerHasLiked = viewerLiked(cp.Likes, c.viewerId)
		// The render predicate decides pointer reuse, so a post is
		// reallocated exactly when a renderer would repaint it.
		if PostUnchanged(post, &cp) {
			next[i] = post
			continue
		}
		next[i] = &cp
		changed = true
	}
	if changed {
		c.posts = next
	}
}

// MergeCommentsOnly refetches just the comments of the cached posts and
// replaces each changed post's comment list, re-sorted ascending by creation
// time. The list reference only changes if some post's comments differ.
// Errors are swallowed like in MergeLikesOnly.
func (c *Cache) MergeCommentsOnly(ctx context.Context) {
	ids, gen, ok := c.idSnapshot()
	if !ok {
		return
	}

	commentsByPost, err := c.store.CommentsByPost(ctx, ids)
	if err != nil {
		Log.Debug("comments merge skipped: ", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		return
	}

	changed := false
	next := make([]*model.Post, len(c.posts))
	for i, post := range c.posts {
		comments := commentsByPost[post.Id]
		sortComments(comments)
		// PostUnchanged cannot arbitrate here: a fresh query always allocates
		// a new backing array, so equality is by comment id and content.
		if commentsEqual(post.Comments, comments) {
			next[i] = post
			continue
		}
		cp := *post
		cp.Comments = comments
		next[i] = &cp
		changed = true
	}
	if changed {
		c.posts = next
	}
}

func commentsEqual(prev []model.Comment, cur []model.Comment) bool {
	if len(prev) != len(cur) {
		return false
	}
	for i := range prev {
		if prev[i].Id != cur[i].Id || prev[i].Content != cur[i].Content {
			return false
		}
	}
	return true
}

// idSnapshot captures the cached post ids together with the generation they
// were observed at. Merge queries run outside the lock against this id set,
// then re-validate the generation before committing.
func (c *Cache) idSnapshot() ([]string, uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.posts) == 0 {
		return nil, 0, false
	}
	ids := make([]string, 0, len(c.posts))
	for _, post := range c.posts {
		ids = append(ids, post.Id)
	}
	return ids, c.generation, true
}

// Posts returns the current list reference. Callers must treat it as
// immutable.
func (c *Cache) Posts() []*model.Post {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.posts
}

func (c *Cache) HasMore() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasMore
}

// NextPage returns the index LoadPage expects for the next append.
func (c *Cache) NextPage() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nextPage
}

// PostById returns the cached post with the given id, or nil.
func (c *Cache) PostById(id string) *model.Post {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, post := range c.posts {
		if post.Id == id {
			return post
		}
	}
	return nil
}
