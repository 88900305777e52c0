package llm

import "context"

// Client is a minimal generation interface to allow pluggable providers.
// Complete answers a question using only the supplied context block.
type Client interface {
	Complete(ctx context.Context, question, contextBlock string) (string, error)
}
