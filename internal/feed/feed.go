// Package feed is the engine's boundary to upstream market data. It is the
// only package that touches the network for prices.
package feed

import (
	"context"

	"pricewatch/internal/model"
)

// PriceFeed supplies the latest price sample for an asset. Implementations
// must honor ctx cancellation/deadlines and report transient upstream
// failures as errors wrapping model.ErrFeedUnavailable.
type PriceFeed interface {
	GetLatest(ctx context.Context, asset string) (model.Sample, error)
}
