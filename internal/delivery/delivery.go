// Package delivery sends rendered digests to the configured channels.
//
// Channels are fire-and-forget from the pipeline's perspective: a failed
// send is logged and the run continues, because the digest is already on
// disk and in the database by the time delivery starts.
package delivery

import "context"

// Channel delivers one digest to one destination.
type Channel interface {
	// Name identifies the channel in logs and counters.
	Name() string

	// Send delivers the digest body. The subject is advisory; channels
	// without a subject line fold it into or drop it from the message.
	Send(ctx context.Context, subject, body string) error
}
