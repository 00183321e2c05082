package hjortron

import (
	"context"

	"pkt.systems/hjortron/internal/view"
	"pkt.systems/pslog"
)

// WatchOptions configures a watch client session.
type WatchOptions struct {
	// URL is the ws:// address printed by the serving session.
	URL            string
	Password       string
	RequestControl bool
	Logger         pslog.Logger
}

// Watch connects to a served session and mirrors it on the local
// terminal. Ctrl-] detaches.
func Watch(ctx context.Context, opts WatchOptions) error {
	return view.NewClient(view.ClientOptions{
		URL:            opts.URL,
		Password:       opts.Password,
		RequestControl: opts.RequestControl,
		Logger:         opts.Logger,
	}).Run(ctx)
}
