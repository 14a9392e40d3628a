package spectrum

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/llehouerou/murmur/internal/tap"
)

// Run analyzes every window received on sub and hands the frames to publish,
// in arrival order, until ctx is canceled or the subscription is retired.
// Malformed windows are dropped.
func (a *Analyzer) Run(ctx context.Context, sub *tap.Subscription, publish func([]float64)) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.Done:
			return
		case w := <-sub.C:
			bars, err := a.Analyze(w)
			if err != nil {
				log.Debug().Err(err).Msg("Spectrum window dropped")
				continue
			}
			publish(bars)
		}
	}
}
