package bus

import "time"

// Event kinds published by the dashboard core. Subscribers filter by prefix,
// so "job." receives every job event and "queue." every store mutation.
const (
	KindQueueChanged     = "queue.changed"
	KindQueueFetchFailed = "queue.fetch_failed"
	KindJobState         = "job.state_changed"
	KindLiveOpened       = "live.opened"
	KindLiveWaiting      = "live.waiting"
	KindLiveClosed       = "live.closed"
	KindAuthLoggedIn     = "auth.logged_in"
	KindAuthLoggedOut    = "auth.logged_out"
	KindReviewSettled    = "review.settled"
)

// Event represents a dashboard event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
