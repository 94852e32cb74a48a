package server

import (
	"net/http"
	"strconv"

	"github.com/AshBuk/pic-share/feed"
	"github.com/AshBuk/pic-share/model"
	"github.com/AshBuk/pic-share/server/middlewares"
	"github.com/AshBuk/pic-share/store"
	"github.com/AshBuk/pic-share/utils"
	. "github.com/AshBuk/pic-share/utils/log"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
)

// FeedServer exposes the single-viewer feed core over HTTP. The process is a
// per-viewer gateway: exactly one feed service is mounted, bound to the
// signed-in viewer, and requests are rejected unless their token resolves to
// that viewer.
type FeedServer struct {
	Feed     *feed.Service
	Store    store.Store
	Notifier *store.Notifier
	Redis    *utils.RedisClient
	ViewerId string
	PageSize int
}

func NewFeedServer(f *feed.Service, s store.Store, n *store.Notifier, redis *utils.RedisClient, viewerId string, pageSize int) *FeedServer {
	return &FeedServer{
		Feed:     f,
		Store:    s,
		Notifier: n,
		Redis:    redis,
		ViewerId: viewerId,
		PageSize: pageSize,
	}
}

// RegisterRoutes binds all feed endpoints on the router group.
func (s *FeedServer) RegisterRoutes(api *gin.RouterGroup) {
	api.GET("/feed", s.GetFeed)
	api.GET("/feed/live", s.StreamFeed)
	api.POST("/feed/next", s.NextPage)
	api.POST("/feed/sentinel", s.RevealSentinel)
	api.POST("/feed/refresh", s.ForceRefresh)

	api.POST("/posts/:id/like", s.ToggleLike)
	api.POST("/posts/:id/comments", s.AddComment)
	api.PATCH("/comments/:id", s.UpdateComment)
	api.DELETE("/comments/:id", s.DeleteComment)
	api.DELETE("/posts/:id", s.DeletePost)

	api.GET("/users/:id/posts", s.UserPosts)
}

// viewer extracts the authenticated viewer id and enforces that it matches
// the viewer this gateway is bound to.
func (s *FeedServer) viewer(c *gin.Context) (string, bool) {
	viewerId := c.GetHeader(middlewares.HeaderViewerId)
	if viewerId == "" || viewerId != s.ViewerId {
		c.JSON(http.StatusForbidden, gin.H{"error": "feed is bound to another viewer"})
		return "", false
	}
	return viewerId, true
}

// GetFeed returns the current snapshot. Serving the feed counts as the viewer
// paying attention again, so it also schedules the debounced reconciliation,
// and it annotates + records per-post seen status.
func (s *FeedServer) GetFeed(c *gin.Context) {
	if _, ok := s.viewer(c); !ok {
		return
	}

	s.Feed.Controller.ScheduleReconcile()

	snapshot := s.Feed.Controller.Snapshot()
	snapshot.Posts = s.annotateSeen(snapshot.Posts)
	c.JSON(http.StatusOK, snapshot)
}

// annotateSeen marks which posts the viewer has already been served, then
// records the whole page as seen. Redis failures degrade to everything-unseen
// rather than failing the request. Cached posts are shared, so annotation
// happens on shallow copies.
func (s *FeedServer) annotateSeen(posts []*model.Post) []*model.Post {
	if s.Redis == nil || len(posts) == 0 {
		return posts
	}

	ids := make([]string, 0, len(posts))
	for _, post := range posts {
		ids = append(ids, post.Id)
	}

	seen, err := s.Redis.GetPostsSeenStatus(ids, s.ViewerId)
	if err != nil || len(seen) != len(posts) {
		Log.Debug("seen-status lookup failed: ", err)
		return posts
	}

	annotated := make([]*model.Post, len(posts))
	for i, post := range posts {
		cp := *post
		cp.Seen = seen[i]
		annotated[i] = &cp
	}

	if err := s.Redis.MarkPostsAsSeen(ids, s.ViewerId); err != nil {
		Log.Debug("seen-status update failed: ", err)
	}
	return annotated
}

func (s *FeedServer) NextPage(c *gin.Context) {
	if _, ok := s.viewer(c); !ok {
		return
	}
	if err := s.Feed.Controller.FetchNextPage(c.Request.Context()); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, s.Feed.Controller.Snapshot())
}

func (s *FeedServer) RevealSentinel(c *gin.Context) {
	if _, ok := s.viewer(c); !ok {
		return
	}
	s.Feed.Controller.RevealSentinel(c.Request.Context())
	c.JSON(http.StatusOK, s.Feed.Controller.Snapshot())
}

// ForceRefresh is the process-wide escape hatch: it publishes on the refresh
// topic instead of touching the controller, so any collaborator (the upload
// dialog, a detail view teardown) can use the same path.
func (s *FeedServer) ForceRefresh(c *gin.Context) {
	if _, ok := s.viewer(c); !ok {
		return
	}
	s.Notifier.PublishRefresh()
	c.JSON(http.StatusAccepted, gin.H{"status": "refresh requested"})
}

func (s *FeedServer) ToggleLike(c *gin.Context) {
	if _, ok := s.viewer(c); !ok {
		return
	}
	err := s.Feed.Actions.ToggleLike(c.Request.Context(), c.Param("id"))
	s.respondAction(c, err)
}

type commentBody struct {
	Content string `json:"content"`
}

func (s *FeedServer) AddComment(c *gin.Context) {
	if _, ok := s.viewer(c); !ok {
		return
	}
	var body commentBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed body"})
		return
	}
	err := s.Feed.Actions.AddComment(c.Request.Context(), c.Param("id"), body.Content)
	s.respondAction(c, err)
}

func (s *FeedServer) UpdateComment(c *gin.Context) {
	if _, ok := s.viewer(c); !ok {
		return
	}
	var body commentBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed body"})
		return
	}
	err := s.Feed.Actions.UpdateComment(c.Request.Context(), c.Param("id"), body.Content)
	s.respondAction(c, err)
}

func (s *FeedServer) DeleteComment(c *gin.Context) {
	if _, ok := s.viewer(c); !ok {
		return
	}
	err := s.Feed.Actions.DeleteComment(c.Request.Context(), c.Param("id"))
	s.respondAction(c, err)
}

func (s *FeedServer) DeletePost(c *gin.Context) {
	if _, ok := s.viewer(c); !ok {
		return
	}
	err := s.Feed.Actions.DeletePost(c.Request.Context(), c.Param("id"))
	s.respondAction(c, err)
}

// respondAction maps coordinator errors onto HTTP statuses.
func (s *FeedServer) respondAction(c *gin.Context, err error) {
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	case errors.Is(err, feed.ErrNotSignedIn):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.Is(err, feed.ErrEmptyComment):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, feed.ErrActionInFlight):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrRowNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	}
}

// UserPosts lists one author's posts, newest first, hydrated for the current
// viewer. This path bypasses the feed cache: profile pages have their own
// lifecycle and don't participate in feed pagination.
func (s *FeedServer) UserPosts(c *gin.Context) {
	viewerId, ok := s.viewer(c)
	if !ok {
		return
	}

	page, err := strconv.Atoi(c.DefaultQuery("page", "0"))
	if err != nil || page < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid page"})
		return
	}

	// Lookahead fetch, same contract as the feed cache: an author feed of an
	// exact page multiple must not report a further page.
	posts, err := s.Store.FeedPageByAuthor(c.Request.Context(), c.Param("id"), page*s.PageSize, s.PageSize+1)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	hasMore := len(posts) > s.PageSize
	if hasMore {
		posts = posts[:s.PageSize]
	}
	for _, post := range posts {
		feed.Hydrate(post, viewerId)
	}
	c.JSON(http.StatusOK, gin.H{
		"posts":    posts,
		"has_more": hasMore,
	})
}
