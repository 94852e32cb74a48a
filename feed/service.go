package feed

import (
	"context"

	"github.com/AshBuk/pic-share/store"
)

// Service bundles the feed core for one viewer: the cache, the controller
// bound to it, and the action coordinator. Exactly one Service is constructed
// per process and injected where needed; collaborators that can't hold a
// reference request reloads through the notifier's refresh topic instead.
type Service struct {
	Cache      *Cache
	Controller *Controller
	Actions    *Coordinator

	cancel context.CancelFunc
}

func NewService(s store.Store, notifier *store.Notifier, viewerId string, cfg Config, notices NoticeSink) *Service {
	cache := NewCache(s, viewerId, cfg)
	controller := NewController(cache, notifier, cfg)
	actions := NewCoordinator(s, cache, controller, notices, viewerId, cfg)
	return &Service{
		Cache:      cache,
		Controller: controller,
		Actions:    actions,
	}
}

// Start runs the initial load and binds the notification topics until Close.
func (s *Service) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	return s.Controller.Start(ctx)
}

func (s *Service) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}
