package messaging

import "context"

// PublisherInterface is what the application publishes care log change
// events through. testutil.MockPublisher records them in tests.
type PublisherInterface interface {
	Publish(ctx context.Context, routingKey string, event any) error
	Close() error
}

var _ PublisherInterface = (*Publisher)(nil)
