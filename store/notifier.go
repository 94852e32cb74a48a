package store

import (
	"context"
	"encoding/json"

	. "github.com/AshBuk/pic-share/utils/log"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// Topics the notifier publishes on. Table topics carry ChangeEvent payloads,
// the refresh topic carries none (subscribers always re-query).
const (
	TopicPosts    = "store.posts"
	TopicLikes    = "store.likes"
	TopicComments = "store.comments"

	// TopicRefresh is the process-wide force-refresh escape hatch. Any
	// collaborator that wants the feed reloaded without holding a controller
	// reference publishes here, e.g. the upload-success handler.
	TopicRefresh = "feed.refresh"
)

// TopicForTable maps a store table to its notification topic.
func TopicForTable(table string) string {
	switch table {
	case TablePosts:
		return TopicPosts
	case TableLikes:
		return TopicLikes
	case TableComments:
		return TopicComments
	}
	return ""
}

// Notifier is the in-process change notification channel. For now we use a
// golang channel implementation for the EventBus, but later when needed we
// could substitute it with a Postgres logical-replication based one.
type Notifier struct {
	bus *gochannel.GoChannel
}

func NewNotifier() *Notifier {
	return &Notifier{
		bus: gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, watermill.NopLogger{}),
	}
}

// PublishChange announces a row change on the table's topic. Publish failures
// are logged and dropped: notifications are a hint, consumers converge on the
// next reconciliation anyway.
func (n *Notifier) PublishChange(ev ChangeEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		Log.Error("fail to marshal change event: ", err)
		return
	}
	topic := TopicForTable(ev.Table)
	if topic == "" {
		Log.Error("change event for unknown table: ", ev.Table)
		return
	}
	if err := n.bus.Publish(topic, message.NewMessage(watermill.NewUUID(), payload)); err != nil {
		Log.Error("fail to publish change event: ", err)
	}
}

// PublishRefresh requests a full feed reload from whatever controller is
// currently subscribed.
func (n *Notifier) PublishRefresh() {
	if err := n.bus.Publish(TopicRefresh, message.NewMessage(watermill.NewUUID(), nil)); err != nil {
		Log.Error("fail to publish refresh request: ", err)
	}
}

// Subscribe returns a channel of messages on the given topic, valid until ctx
// terminates. Consumers must Ack every message.
func (n *Notifier) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	return n.bus.Subscribe(ctx, topic)
}

func (n *Notifier) Close() error {
	return n.bus.Close()
}
