package remote

import "context"

// Gateway is the remote document store.
//
// Subscribe callbacks run on a goroutine owned by the gateway and may be
// invoked concurrently with Load and Save. Implementations deliver every
// committed write to every subscriber of that pond, including the writer.
type Gateway interface {
	// Load returns the current document, or nil when none exists.
	Load(ctx context.Context, pondID string) (*Doc, error)

	// Save replaces the document. The store assigns UpdatedAt.
	Save(ctx context.Context, pondID string, doc Doc) error

	// Subscribe registers fn for every future write to pondID and, if a
	// document exists, delivers it once immediately. The returned function
	// cancels the subscription and is safe to call more than once.
	Subscribe(ctx context.Context, pondID string, fn func(Doc)) (func(), error)
}

// Connection is implemented by gateways bound to one transport connection.
// Done is closed when the connection is lost; subscriptions made through
// the gateway end with it.
type Connection interface {
	Done() <-chan struct{}
}
