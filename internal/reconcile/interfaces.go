package reconcile

import (
	"context"

	"github.com/samvad-hq/fileio-go/pkg/fileio"
	"github.com/samvad-hq/fileio-go/pkg/publishers"
)

// Lister pages through the remote account listing.
type Lister interface {
	List(ctx context.Context, p fileio.ListParams) (*fileio.Result, error)
}

// EventPublisher publishes lifecycle events downstream.
type EventPublisher interface {
	Publish(ctx context.Context, evt publishers.Event) (int, error)
}
