// Package clock abstracts the current time so services and the scheduler
// can be pinned to a fixed instant in tests.
package clock

import (
	"context"
	"time"
)

type Clock interface {
	Now(ctx context.Context) time.Time
}
