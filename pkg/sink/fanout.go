package sink

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/illmade-knight/go-sensormapper/pkg/decoder"
)

// Fanout emits every Reading to each of its sinks in order. A failing sink
// does not prevent delivery to the others.
type Fanout struct {
	sinks []ReadingSink
}

// NewFanout combines sinks. At least one sink is required.
func NewFanout(sinks ...ReadingSink) (*Fanout, error) {
	if len(sinks) == 0 {
		return nil, errors.New("fanout requires at least one sink")
	}
	for i, s := range sinks {
		if s == nil {
			return nil, fmt.Errorf("sink %d is nil", i)
		}
	}
	return &Fanout{sinks: sinks}, nil
}

// Start starts each sink, stopping at the first failure.
func (f *Fanout) Start(ctx context.Context) error {
	for i, s := range f.sinks {
		if err := s.Start(ctx); err != nil {
			return fmt.Errorf("failed to start sink %d: %w", i, err)
		}
	}
	return nil
}

func (f *Fanout) Emit(ctx context.Context, reading decoder.Reading, ts time.Time) error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.Emit(ctx, reading, ts); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Stop stops every sink and joins their errors.
func (f *Fanout) Stop(ctx context.Context) error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
