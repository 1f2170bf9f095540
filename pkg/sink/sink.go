// Package sink delivers decoded Readings to downstream destinations.
package sink

import (
	"context"
	"time"

	"github.com/illmade-knight/go-sensormapper/pkg/decoder"
)

// ReadingSink accepts decoded Readings together with the time their source
// message was received. Emit may be called concurrently.
type ReadingSink interface {
	Start(ctx context.Context) error
	Emit(ctx context.Context, reading decoder.Reading, ts time.Time) error
	Stop(ctx context.Context) error
}
