// Package progress converts consumed sample counts into elapsed playback time.
package progress

import (
	"context"
	"time"

	"github.com/llehouerou/murmur/internal/tap"
)

// DefaultInterval is the minimum wall-clock time between two publishes.
const DefaultInterval = 250 * time.Millisecond

// Reporter keeps an exact running count of the samples of one session and
// decides when the elapsed time is worth publishing.
type Reporter struct {
	rate     int
	channels int
	offset   float64
	interval time.Duration
	now      func() time.Time
	source   func() int64

	count     int64
	last      time.Time
	published bool
}

// New returns a reporter for a stream of rate frames per second, channels
// samples per frame, that started offset seconds into the track.
func New(rate, channels int, offset float64, interval time.Duration) *Reporter {
	if channels < 1 {
		channels = 1
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Reporter{
		rate:     rate,
		channels: channels,
		offset:   offset,
		interval: interval,
		now:      time.Now,
	}
}

// SetClock replaces the wall clock used for throttling. Offline readers pass
// a clock derived from the samples themselves.
func (r *Reporter) SetClock(now func() time.Time) { r.now = now }

// SetSource makes Run take the running count from consumed, the number of
// samples pulled since the session started, instead of summing the windows it
// receives. Windows dropped on a full subscription then cost no samples.
func (r *Reporter) SetSource(consumed func() int64) { r.source = consumed }

// Observe adds samples to the running count and returns the elapsed time. The
// second result is true when the value should be published: on the first
// observation of the session, then whenever interval has passed since the
// previous publish.
func (r *Reporter) Observe(samples int) (float64, bool) {
	return r.ObserveTotal(r.count + int64(samples))
}

// ObserveTotal is Observe for a caller that knows the running count itself.
// The count never goes backwards.
func (r *Reporter) ObserveTotal(total int64) (float64, bool) {
	r.count = max(r.count, total)
	elapsed := r.Elapsed()

	now := r.now()
	if r.published && now.Sub(r.last) < r.interval {
		return elapsed, false
	}
	r.published = true
	r.last = now
	return elapsed, true
}

// Elapsed returns offset + count / (rate * channels) in seconds.
func (r *Reporter) Elapsed() float64 {
	if r.rate <= 0 {
		return r.offset
	}
	return r.offset + float64(r.count)/float64(r.rate*r.channels)
}

// Count returns the number of samples observed.
func (r *Reporter) Count() int64 { return r.count }

// Run observes every window received on sub and publishes throttled elapsed
// times until ctx is canceled or the subscription is retired.
func (r *Reporter) Run(ctx context.Context, sub *tap.Subscription, publish func(float64)) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.Done:
			return
		case w := <-sub.C:
			total := r.count + int64(len(w))
			if r.source != nil {
				total = r.source()
			}
			if secs, ok := r.ObserveTotal(total); ok {
				publish(secs)
			}
		}
	}
}
