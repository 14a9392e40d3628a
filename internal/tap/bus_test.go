package tap

import (
	"sync"
	"testing"
	"testing/synctest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_PublishWithoutSubscribers(t *testing.T) {
	b := NewBus()
	assert.NotPanics(t, func() { b.Publish([]float64{1, 2}) })
	assert.Zero(t, b.Dropped())
}

func TestBus_FansOutToEverySubscriber(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		b := NewBus()
		a := b.Subscribe(4)
		c := b.Subscribe(4)

		b.Publish([]float64{1})
		b.Publish([]float64{2})

		for _, sub := range []*Subscription{a, c} {
			assert.Equal(t, []float64{1}, <-sub.C)
			assert.Equal(t, []float64{2}, <-sub.C)
		}
	})
}

func TestBus_DropsWhenFull(t *testing.T) {
	b := NewBus()
	slow := b.Subscribe(2)
	fast := b.Subscribe(16)

	for i := range 10 {
		b.Publish([]float64{float64(i)})
	}

	assert.Len(t, slow.C, 2)
	assert.Len(t, fast.C, 10)
	assert.Equal(t, uint64(8), b.Dropped())

	// The slow subscriber keeps the oldest windows.
	assert.Equal(t, []float64{0}, <-slow.C)
	assert.Equal(t, []float64{1}, <-slow.C)
}

func TestBus_DefaultBacklog(t *testing.T) {
	b := NewBus()
	s := b.Subscribe(0)
	assert.Equal(t, DefaultBacklog, cap(s.C))
}

func TestBus_CloseSignalsDone(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		b := NewBus()
		s := b.Subscribe(4)
		b.Close()
		<-s.Done

		// Publishing after close is ignored and never panics.
		b.Publish([]float64{1})
		assert.Empty(t, s.C)

		b.Close()
	})
}

func TestBus_SubscribeAfterClose(t *testing.T) {
	b := NewBus()
	b.Close()
	s := b.Subscribe(4)

	select {
	case <-s.Done:
	default:
		t.Fatal("subscription on closed bus should be retired")
	}
}

func TestBus_ConcurrentPublishAndClose(t *testing.T) {
	b := NewBus()
	subs := make([]*Subscription, 4)
	for i := range subs {
		subs[i] = b.Subscribe(1)
	}

	var wg sync.WaitGroup
	for range 4 {
		wg.Go(func() {
			for range 1000 {
				b.Publish([]float64{0})
			}
		})
	}
	wg.Go(func() {
		_ = b.Subscribe(1)
		b.Close()
	})
	wg.Wait()

	for _, s := range subs {
		_, open := <-s.Done
		require.False(t, open)
	}
}
