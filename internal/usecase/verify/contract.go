package verify

import (
	"context"
	"time"
)

// Counter returns the service-reported document count of an index.
type Counter interface {
	Count(ctx context.Context, index string) (int64, error)
}

// Clock abstracts time so polling can be tested without waiting.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
