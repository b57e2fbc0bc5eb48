package events

import (
	"context"
	"errors"

	"github.com/khrees2412/jobsift/internal/ingest"
)

// Multi fans a snapshot out to several publishers
type Multi []ingest.Publisher

// Publish implements ingest.Publisher. Every publisher is called even when
// an earlier one fails.
func (m Multi) Publish(ctx context.Context, p ingest.Progress) error {
	var errs []error
	for _, pub := range m {
		if pub == nil {
			continue
		}
		if err := pub.Publish(ctx, p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
