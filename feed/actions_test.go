package feed

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/AshBuk/pic-share/model"
	"github.com/AshBuk/pic-share/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingSink captures notices so tests can assert on exactly what the user
// would have seen.
type recordingSink struct {
	mu        sync.Mutex
	successes []string
	failures  []string
}

func (r *recordingSink) Success(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.successes = append(r.successes, msg)
}

func (r *recordingSink) Error(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, msg)
}

func (r *recordingSink) failureCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.failures)
}

func (r *recordingSink) successCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.successes)
}

func setupCoordinator(t *testing.T, viewerId string, posts ...*model.Post) (*store.FakeStore, *Cache, *Coordinator, *recordingSink) {
	t.Helper()
	fake := store.NewFakeStore()
	fake.SeedPosts(posts)

	cache := NewCache(fake, viewerId, testConfig())
	require.NoError(t, cache.LoadPage(context.Background(), 0, false))

	notifier := store.NewNotifier()
	t.Cleanup(func() { notifier.Close() })
	controller := NewController(cache, notifier, testConfig())

	sink := &recordingSink{}
	coordinator := NewCoordinator(fake, cache, controller, sink, viewerId, testConfig())
	return fake, cache, coordinator, sink
}

func TestToggleLikeOptimisticThenReconciled(t *testing.T) {
	_, cache, coordinator, sink := setupCoordinator(t, testViewer, makePost("p1", 1))

	var published []*model.Post
	var publishMu sync.Mutex
	coordinator.OnPostUpdate = func(post *model.Post) {
		publishMu.Lock()
		published = append(published, post)
		publishMu.Unlock()
	}

	cached := cache.PostById("p1")
	require.NoError(t, coordinator.ToggleLike(context.Background(), "p1"))

	// The optimistic post was published without touching the cache entry.
	publishMu.Lock()
	require.Len(t, published, 1)
	assert.True(t, published[0].ViewerHasLiked)
	assert.Equal(t, 1, published[0].LikesCount)
	assert.NotSame(t, cached, published[0])
	publishMu.Unlock()
	assert.False(t, cached.ViewerHasLiked)

	// The delayed merge folds the authoritative state into the cache.
	assert.Eventually(t, func() bool {
		post := cache.PostById("p1")
		return post.ViewerHasLiked && post.LikesCount == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, sink.failureCount())
}

func TestToggleLikeUnlike(t *testing.T) {
	_, cache, coordinator, _ := setupCoordinator(t, testViewer,
		withLikes(makePost("p1", 1), testViewer, "user_other"))

	require.True(t, cache.PostById("p1").ViewerHasLiked)
	require.NoError(t, coordinator.ToggleLike(context.Background(), "p1"))

	assert.Eventually(t, func() bool {
		post := cache.PostById("p1")
		return !post.ViewerHasLiked && post.LikesCount == 1
	}, time.Second, 5*time.Millisecond)
}

func TestToggleLikeRollsBackOnFailure(t *testing.T) {
	fake, cache, coordinator, sink := setupCoordinator(t, testViewer, makePost("p1", 1))
	fake.MutationErr = assert.AnError

	var published []*model.Post
	var publishMu sync.Mutex
	coordinator.OnPostUpdate = func(post *model.Post) {
		publishMu.Lock()
		published = append(published, post)
		publishMu.Unlock()
	}

	err := coordinator.ToggleLike(context.Background(), "p1")
	require.Error(t, err)

	// Optimistic publish, then rollback to the exact pre-action post.
	publishMu.Lock()
	require.Len(t, published, 2)
	assert.True(t, published[0].ViewerHasLiked)
	assert.Same(t, cache.PostById("p1"), published[1])
	assert.False(t, published[1].ViewerHasLiked)
	publishMu.Unlock()

	// Exactly one error notice, no retry, no lingering overlay state.
	assert.Equal(t, 1, sink.failureCount())
	time.Sleep(5 * testConfig().ActionSyncDelay)
	assert.Equal(t, 1, sink.failureCount())
	assert.False(t, cache.PostById("p1").ViewerHasLiked)
	assert.Equal(t, 0, cache.PostById("p1").LikesCount)
}

func TestToggleLikeRequiresSignIn(t *testing.T) {
	_, _, coordinator, sink := setupCoordinator(t, "", makePost("p1", 1))

	err := coordinator.ToggleLike(context.Background(), "p1")
	assert.ErrorIs(t, err, ErrNotSignedIn)
	assert.Equal(t, 1, sink.failureCount())
}

func TestToggleLikeRejectsConcurrentDuplicate(t *testing.T) {
	fake, _, coordinator, _ := setupCoordinator(t, testViewer, makePost("p1", 1))

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	fake.MutationHook = func() {
		once.Do(func() {
			close(entered)
			<-release
		})
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		assert.NoError(t, coordinator.ToggleLike(context.Background(), "p1"))
	}()

	<-entered
	err := coordinator.ToggleLike(context.Background(), "p1")
	assert.ErrorIs(t, err, ErrActionInFlight)
	close(release)
	wg.Wait()
}

func TestToggleLikeUnknownPost(t *testing.T) {
	_, _, coordinator, _ := setupCoordinator(t, testViewer, makePost("p1", 1))
	assert.Error(t, coordinator.ToggleLike(context.Background(), "nope"))
}

func TestAddCommentRejectsBlankText(t *testing.T) {
	_, cache, coordinator, sink := setupCoordinator(t, testViewer, makePost("p1", 1))

	assert.ErrorIs(t, coordinator.AddComment(context.Background(), "p1", ""), ErrEmptyComment)
	assert.ErrorIs(t, coordinator.AddComment(context.Background(), "p1", "   \n\t"), ErrEmptyComment)
	assert.Equal(t, 0, sink.successCount())
	assert.Empty(t, cache.PostById("p1").Comments)
}

func TestAddCommentSurfacesThroughMerge(t *testing.T) {
	_, cache, coordinator, sink := setupCoordinator(t, testViewer,
		withComment(makePost("p1", 1), "c1", "first", testBaseTime))

	require.NoError(t, coordinator.AddComment(context.Background(), "p1", "  Nice!  "))
	assert.Equal(t, 1, sink.successCount())

	assert.Eventually(t, func() bool {
		comments := cache.PostById("p1").Comments
		return len(comments) == 2 && comments[1].Content == "Nice!"
	}, time.Second, 5*time.Millisecond)
}

func TestAddCommentFailureKeepsCacheAndNotifies(t *testing.T) {
	fake, cache, coordinator, sink := setupCoordinator(t, testViewer, makePost("p1", 1))
	fake.MutationErr = assert.AnError

	require.Error(t, coordinator.AddComment(context.Background(), "p1", "hello"))
	assert.Equal(t, 1, sink.failureCount())
	assert.Equal(t, 0, sink.successCount())
	assert.Empty(t, cache.PostById("p1").Comments)
}

func TestUpdateCommentOwnershipScoped(t *testing.T) {
	post := makePost("p1", 1)
	post.Comments = append(post.Comments,
		model.Comment{Id: "c_mine", PostID: "p1", UserID: testViewer, Content: "mine", CreatedAt: testBaseTime},
		model.Comment{Id: "c_theirs", PostID: "p1", UserID: "user_other", Content: "theirs", CreatedAt: testBaseTime.Add(time.Second)},
	)
	_, cache, coordinator, _ := setupCoordinator(t, testViewer, post)

	require.NoError(t, coordinator.UpdateComment(context.Background(), "c_mine", "edited"))
	assert.Eventually(t, func() bool {
		return cache.PostById("p1").Comments[0].Content == "edited"
	}, time.Second, 5*time.Millisecond)

	err := coordinator.UpdateComment(context.Background(), "c_theirs", "hijack")
	assert.ErrorIs(t, err, store.ErrRowNotFound)
}

func TestDeleteCommentOwnershipScoped(t *testing.T) {
	post := makePost("p1", 1)
	post.Comments = append(post.Comments,
		model.Comment{Id: "c_mine", PostID: "p1", UserID: testViewer, Content: "mine", CreatedAt: testBaseTime},
		model.Comment{Id: "c_theirs", PostID: "p1", UserID: "user_other", Content: "theirs", CreatedAt: testBaseTime.Add(time.Second)},
	)
	_, cache, coordinator, _ := setupCoordinator(t, testViewer, post)

	assert.ErrorIs(t, coordinator.DeleteComment(context.Background(), "c_theirs"), store.ErrRowNotFound)

	require.NoError(t, coordinator.DeleteComment(context.Background(), "c_mine"))
	assert.Eventually(t, func() bool {
		comments := cache.PostById("p1").Comments
		return len(comments) == 1 && comments[0].Id == "c_theirs"
	}, time.Second, 5*time.Millisecond)
}

func TestDeletePostReloadsWindow(t *testing.T) {
	mine := makePost("p1", 1)
	mine.UserID = testViewer
	_, cache, coordinator, sink := setupCoordinator(t, testViewer,
		mine, makePost("p2", 2), makePost("p3", 3), makePost("p4", 4))

	require.NoError(t, coordinator.DeletePost(context.Background(), "p1"))
	assert.Equal(t, 1, sink.successCount())

	// The reload repacks the first page from the remaining posts.
	assert.Eventually(t, func() bool {
		posts := cache.Posts()
		return cache.PostById("p1") == nil && len(posts) == 3 && posts[0].Id == "p2"
	}, time.Second, 5*time.Millisecond)
}

func TestDeletePostNotOwned(t *testing.T) {
	_, cache, coordinator, sink := setupCoordinator(t, testViewer,
		makePost("p1", 1), makePost("p2", 2), makePost("p3", 3))

	err := coordinator.DeletePost(context.Background(), "p1")
	assert.ErrorIs(t, err, store.ErrRowNotFound)
	assert.Equal(t, 1, sink.failureCount())
	assert.NotNil(t, cache.PostById("p1"))
}
