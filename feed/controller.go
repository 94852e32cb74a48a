package feed

import (
	"context"
	"sync"
	"time"

	"github.com/AshBuk/pic-share/model"
	"github.com/AshBuk/pic-share/store"
	. "github.com/AshBuk/pic-share/utils/log"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
)

// Controller lifecycle states. There is no terminal state, the controller
// lives for the lifetime of the feed view.
type State int32

const (
	StateIdle State = iota
	StateLoadingInitial
	StateReady
	StateLoadingMore
	StateReloading
)

// Snapshot is the stable read view the presentation layer renders from.
// Images carries one render key per post, in feed order; the presentation
// re-renders an image element only when its key changes by value.
type Snapshot struct {
	Posts         []*model.Post `json:"posts"`
	Images        []ImageKey    `json:"images"`
	Loading       bool          `json:"loading"`
	Error         string        `json:"error,omitempty"`
	HasMore       bool          `json:"has_more"`
	IsLoadingMore bool          `json:"is_loading_more"`
}

/*

Controller binds external triggers to cache operations and exposes the cache
state as a reactive view.

Bindings:
  - like change notifications    -> MergeLikesOnly
  - comment change notifications -> MergeCommentsOnly
  - post change notifications    -> Reload (membership changed, partial merge
    would desynchronize pagination offsets)
  - force-refresh requests       -> Reload
  - attention resume             -> debounced likes+comments reconciliation

FetchNextPage is guarded so overlapping calls coalesce into a no-op, and the
bottom-sentinel auto load fires at most once per controller lifetime.
*/
type Controller struct {
	cache    *Cache
	notifier *store.Notifier
	cfg      Config

	mu          sync.Mutex
	state       State
	lastError   string
	loadingMore bool

	// reconcilePending coalesces reconcile triggers within the debounce
	// window.
	reconcilePending bool

	autoLoadOnce sync.Once

	// subscriberMap maps subscription id to its snapshot channel, in the form
	// of a buffered channel per subscriber so a slow consumer never blocks a
	// cache commit. Entries are removed when the subscriber's context ends.
	subMu         sync.RWMutex
	subscriberMap map[string]chan Snapshot
}

func NewController(cache *Cache, notifier *store.Notifier, cfg Config) *Controller {
	return &Controller{
		cache:         cache,
		notifier:      notifier,
		cfg:           cfg,
		state:         StateIdle,
		subscriberMap: make(map[string]chan Snapshot),
	}
}

// Start performs the initial load and binds the notification topics. The
// bindings live until ctx terminates. An initial load failure is surfaced in
// the snapshot error state, not returned: the controller stays usable and the
// user retries via Refresh.
func (c *Controller) Start(ctx context.Context) error {
	c.setState(StateLoadingInitial)
	c.recordError(c.cache.LoadPage(ctx, 0, false))
	c.setState(StateReady)
	c.publishSnapshot()

	bindings := []struct {
		topic   string
		handler func(context.Context)
	}{
		{store.TopicLikes, c.cache.MergeLikesOnly},
		{store.TopicComments, c.cache.MergeCommentsOnly},
		{store.TopicPosts, c.reloadQuietly},
		{store.TopicRefresh, c.reloadQuietly},
	}
	for _, binding := range bindings {
		msgs, err := c.notifier.Subscribe(ctx, binding.topic)
		if err != nil {
			return err
		}
		go c.consume(ctx, msgs, binding.handler)
	}
	return nil
}

func (c *Controller) consume(ctx context.Context, msgs <-chan *message.Message, handler func(context.Context)) {
	for msg := range msgs {
		msg.Ack()
		handler(ctx)
		c.publishSnapshot()
	}
}

// reloadQuietly is the notification-driven reload: errors degrade to the
// last-known-good window and are only logged, there is no user action to
// bounce them back to.
func (c *Controller) reloadQuietly(ctx context.Context) {
	if err := c.cache.Reload(ctx); err != nil {
		Log.Error("notification-driven reload failed: ", err)
	}
}

// FetchNextPage advances the window by one page. It is a no-op while a
// load-more is already running or when the store has no more posts.
func (c *Controller) FetchNextPage(ctx context.Context) error {
	c.mu.Lock()
	if c.loadingMore || !c.cache.HasMore() {
		c.mu.Unlock()
		return nil
	}
	c.loadingMore = true
	c.state = StateLoadingMore
	page := c.cache.NextPage()
	c.mu.Unlock()

	err := c.cache.LoadPage(ctx, page, false)

	c.mu.Lock()
	c.loadingMore = false
	c.state = StateReady
	c.mu.Unlock()
	c.recordError(err)
	c.publishSnapshot()
	return err
}

// Refresh clears pagination and refetches page 0, bypassing the freshness
// window. This is the user-facing reload path.
func (c *Controller) Refresh(ctx context.Context) error {
	c.setState(StateReloading)
	err := c.cache.Reload(ctx)
	c.setState(StateReady)
	c.recordError(err)
	c.publishSnapshot()
	return err
}

// ScheduleReconcile requests an opportunistic likes+comments reconciliation,
// debounced so that a burst of attention-resume triggers (focus, visibility,
// navigation return) runs the merges once.
func (c *Controller) ScheduleReconcile() {
	c.mu.Lock()
	if c.reconcilePending {
		c.mu.Unlock()
		return
	}
	c.reconcilePending = true
	c.mu.Unlock()

	time.AfterFunc(c.cfg.ReconcileDebounce, func() {
		c.mu.Lock()
		c.reconcilePending = false
		c.mu.Unlock()

		ctx := context.Background()
		c.cache.MergeLikesOnly(ctx)
		c.cache.MergeCommentsOnly(ctx)
		c.publishSnapshot()
	})
}

// RevealSentinel reports that the bottom-of-feed sentinel became visible.
// Exactly one automatic page load is granted per controller lifetime, after
// that the user pages explicitly.
func (c *Controller) RevealSentinel(ctx context.Context) {
	c.autoLoadOnce.Do(func() {
		if err := c.FetchNextPage(ctx); err != nil {
			Log.Error("sentinel-triggered page load failed: ", err)
		}
	})
}

// Snapshot composes the current read view.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	posts := c.cache.Posts()
	images := make([]ImageKey, len(posts))
	for i, post := range posts {
		images[i] = ImageKeyFor(post, i, c.cfg.PageSize)
	}
	return Snapshot{
		Posts:         posts,
		Images:        images,
		Loading:       c.state == StateLoadingInitial || c.state == StateReloading,
		Error:         c.lastError,
		HasMore:       c.cache.HasMore(),
		IsLoadingMore: c.loadingMore,
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe registers a snapshot channel that receives a fresh snapshot after
// every cache commit, valid until ctx terminates. The current snapshot is
// delivered immediately.
func (c *Controller) Subscribe(ctx context.Context) <-chan Snapshot {
	id := "feed_sub_" + uuid.New().String()
	ch := make(chan Snapshot, 1)

	c.subMu.Lock()
	c.subscriberMap[id] = ch
	c.subMu.Unlock()

	ch <- c.Snapshot()

	go func() {
		<-ctx.Done()
		c.subMu.Lock()
		delete(c.subscriberMap, id)
		c.subMu.Unlock()
	}()

	return ch
}

// publishSnapshot pushes the current snapshot to every subscriber. A
// subscriber that hasn't drained its previous snapshot has it replaced, only
// the latest view matters.
func (c *Controller) publishSnapshot() {
	snapshot := c.Snapshot()

	c.subMu.RLock()
	defer c.subMu.RUnlock()
	for _, ch := range c.subscriberMap {
		select {
		case ch <- snapshot:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snapshot:
			default:
			}
		}
	}
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Controller) recordError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.lastError = err.Error()
	} else {
		c.lastError = ""
	}
}
