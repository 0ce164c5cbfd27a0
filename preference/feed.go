package preference

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/pitabwire/natspubsub" // required for NATS pubsub driver registration
	"github.com/pitabwire/util"
	"github.com/rs/xid"
	"gocloud.dev/pubsub"
	_ "gocloud.dev/pubsub/mempubsub" // required for in-memory pubsub driver registration
)

// ChangeFeed carries "the slot changed" signals between execution contexts
// sharing one slot. A feed never delivers an announcement back to the feed
// that sent it.
type ChangeFeed interface {
	Announce(ctx context.Context) error
	// Watch calls onChange for every announcement made elsewhere until stop
	// is called or ctx ends.
	Watch(ctx context.Context, onChange func(ctx context.Context)) (stop func(), err error)
}

// NoopFeed is used where there is no other context to hear from.
type NoopFeed struct{}

func (NoopFeed) Announce(context.Context) error { return nil }

func (NoopFeed) Watch(context.Context, func(context.Context)) (func(), error) {
	return func() {}, nil
}

const (
	originKey          = "origin"
	feedShutdownPeriod = 5 * time.Second
)

// PubSubFeed announces changes on a gocloud.dev pubsub topic, mem:// for
// contexts within one process and nats:// across processes.
type PubSubFeed struct {
	topicURL        string
	subscriptionURL string
	origin          string

	mu    sync.Mutex
	topic *pubsub.Topic
}

// FeedOption configures a PubSubFeed.
type FeedOption func(*PubSubFeed)

// WithSubscriptionURL sets the subscription URL when the driver needs one
// different from the topic URL, e.g. a per process NATS consumer.
func WithSubscriptionURL(url string) FeedOption {
	return func(f *PubSubFeed) {
		f.subscriptionURL = url
	}
}

// NewPubSubFeed opens the topic at topicURL.
func NewPubSubFeed(ctx context.Context, topicURL string, opts ...FeedOption) (*PubSubFeed, error) {
	if strings.TrimSpace(topicURL) == "" {
		return nil, errors.New("change feed url cannot be empty")
	}

	f := &PubSubFeed{
		topicURL:        topicURL,
		subscriptionURL: topicURL,
		origin:          xid.New().String(),
	}
	for _, opt := range opts {
		opt(f)
	}

	topic, err := pubsub.OpenTopic(ctx, f.topicURL)
	if err != nil {
		return nil, fmt.Errorf("could not open change feed topic: %w", err)
	}
	f.topic = topic
	return f, nil
}

// Origin identifies this feed in the messages it sends.
func (f *PubSubFeed) Origin() string {
	return f.origin
}

func (f *PubSubFeed) Announce(ctx context.Context) error {
	f.mu.Lock()
	topic := f.topic
	f.mu.Unlock()
	if topic == nil {
		return errors.New("change feed is closed")
	}

	return topic.Send(ctx, &pubsub.Message{
		Body:     []byte(DefaultKey),
		Metadata: map[string]string{originKey: f.origin},
	})
}

func (f *PubSubFeed) Watch(ctx context.Context, onChange func(ctx context.Context)) (func(), error) {
	subscription, err := pubsub.OpenSubscription(ctx, f.subscriptionURL)
	if err != nil {
		return nil, fmt.Errorf("could not open change feed subscription: %w", err)
	}

	wCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		f.listen(wCtx, subscription, onChange)
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done

			sCtx, sCancel := context.WithTimeout(context.WithoutCancel(ctx), feedShutdownPeriod)
			defer sCancel()
			if sErr := subscription.Shutdown(sCtx); sErr != nil {
				util.Log(ctx).WithError(sErr).Warn("could not shut down change feed subscription")
			}
		})
	}, nil
}

func (f *PubSubFeed) listen(ctx context.Context, subscription *pubsub.Subscription, onChange func(context.Context)) {
	logger := util.Log(ctx).WithField("url", f.subscriptionURL).WithField("origin", f.origin)
	logger.Debug("watching for preference changes")

	for {
		msg, err := subscription.Receive(ctx)
		if err != nil {
			if ctx.Err() == nil {
				logger.WithError(err).Error("could not receive change notification")
			}
			return
		}
		msg.Ack()

		if msg.Metadata[originKey] == f.origin {
			continue
		}
		onChange(ctx)
	}
}

// Close releases the topic. In-process mem:// topics are shared by URL and are
// left open for their other users.
func (f *PubSubFeed) Close(ctx context.Context) error {
	f.mu.Lock()
	topic := f.topic
	f.topic = nil
	f.mu.Unlock()

	if topic == nil || strings.HasPrefix(strings.ToLower(f.topicURL), "mem://") {
		return nil
	}
	return topic.Shutdown(ctx)
}
