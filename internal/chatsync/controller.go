package chatsync

import (
	"context"
	"sync"
	"time"

	"github.com/skillswap/chatsync/internal/models"
	"github.com/skillswap/chatsync/internal/push"
)

// refreshTimeout bounds the fetches triggered by a single push event.
const refreshTimeout = 15 * time.Second

// State is the controller's connection state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Subscriber is the push-channel connection the controller drives. One
// Subscriber serves one user identity and is closed at most once.
type Subscriber interface {
	Connect(ctx context.Context) error
	Events() <-chan push.Event
	Close() error
}

// SubscriberFactory builds a fresh Subscriber for a user id. The controller
// never reuses a connection across identities.
type SubscriberFactory func(userID string) Subscriber

// Controller owns the push connection lifecycle and translates inbound
// notifications into store refreshes. It is the only component that opens or
// closes the push channel.
type Controller struct {
	conversations *ConversationStore
	channel       *MessageChannel
	newSubscriber SubscriberFactory

	mu    sync.Mutex
	state State
	user  *models.User
	sub   Subscriber
	stop  chan struct{}

	// onRefresh, when set, is invoked after the stores were refreshed in
	// response to a push event. The rendering layer hangs its redraw here.
	onRefresh func()
}

// NewController wires the stores to a subscriber factory. The controller
// starts Disconnected; call SetIdentity when a user logs in.
func NewController(conversations *ConversationStore, channel *MessageChannel, factory SubscriberFactory) *Controller {
	return &Controller{
		conversations: conversations,
		channel:       channel,
		newSubscriber: factory,
		state:         StateDisconnected,
	}
}

// SetOnRefresh registers the post-refresh hook. Call before SetIdentity.
func (c *Controller) SetOnRefresh(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onRefresh = fn
}

// State reports the current connection state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Identity returns the user the push channel is connected for, or nil.
func (c *Controller) Identity() *models.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user
}

// SetIdentity opens a push subscription for user. Any connection for a
// previous identity is torn down first; a new identity always starts from a
// clean connection. On connect failure the controller returns to
// Disconnected and the error is surfaced.
func (c *Controller) SetIdentity(ctx context.Context, user *models.User) error {
	c.ClearIdentity()

	c.mu.Lock()
	c.user = user
	c.state = StateConnecting
	sub := c.newSubscriber(user.ID)
	stop := make(chan struct{})
	c.sub = sub
	c.stop = stop
	c.mu.Unlock()

	if err := sub.Connect(ctx); err != nil {
		log.Error("push connection for user %s failed: %v", user.ID, err)
		c.mu.Lock()
		owned := c.sub == sub
		if owned {
			c.sub = nil
			c.stop = nil
			c.user = nil
			c.state = StateDisconnected
		}
		c.mu.Unlock()
		// A concurrent ClearIdentity that already took ownership has closed
		// both stop and sub; closing again here would panic.
		if owned {
			close(stop)
			sub.Close()
		}
		return err
	}

	c.mu.Lock()
	if c.sub == sub {
		c.state = StateConnected
	}
	c.mu.Unlock()

	go c.eventLoop(sub, stop)
	log.Info("live sync connected for user %s", user.ID)
	return nil
}

// ClearIdentity closes the push connection and returns to Disconnected. It is
// a no-op when already disconnected.
func (c *Controller) ClearIdentity() {
	c.mu.Lock()
	sub, stop := c.sub, c.stop
	c.sub = nil
	c.stop = nil
	c.user = nil
	c.state = StateDisconnected
	c.mu.Unlock()

	if stop != nil {
		close(stop)
	}
	if sub != nil {
		if err := sub.Close(); err != nil {
			log.Warn("closing push channel: %v", err)
		}
		log.Info("live sync disconnected")
	}
}

// Close tears down the connection on component teardown. Equivalent to
// ClearIdentity.
func (c *Controller) Close() {
	c.ClearIdentity()
}

func (c *Controller) eventLoop(sub Subscriber, stop chan struct{}) {
	events := sub.Events()
	for {
		select {
		case <-stop:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			c.handleEvent(ev)
		}
	}
}

// handleEvent re-derives state from the fetch endpoints: the conversation
// list always, the selected history when the event plausibly concerns it. An
// event without a conversation id refreshes whatever is selected.
func (c *Controller) handleEvent(ev push.Event) {
	if ev.Type != push.EventReceiveMessage {
		log.Debug("ignoring push event type %q", ev.Type)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	if err := c.conversations.LoadAll(ctx); err != nil {
		log.Warn("push-triggered conversation refresh failed: %v", err)
	}
	if sel := c.channel.Selected(); sel != "" && (ev.ConversationID == "" || ev.ConversationID == sel) {
		if err := c.channel.LoadHistory(ctx); err != nil && err != ErrNoConversation {
			log.Warn("push-triggered history refresh failed: %v", err)
		}
	}

	c.mu.Lock()
	fn := c.onRefresh
	c.mu.Unlock()
	if fn != nil {
		fn()
	}
}
