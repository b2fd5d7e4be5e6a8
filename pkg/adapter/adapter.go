package adapter

import "context"

// Adapter drives a shell session from some input source until the session
// ends or the input is exhausted.
type Adapter interface {
	Start(ctx context.Context) error
}
