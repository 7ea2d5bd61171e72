package notify

import "context"

// Client sends notifications to a queue backend.
type Client interface {
	Send(ctx context.Context, msg Message) error
}
