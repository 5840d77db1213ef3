package recovery

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/vietddude/recoverd/internal/core/domain"
)

func TestScheduler_FIFOSingleDrain(t *testing.T) {
	var (
		mu       sync.Mutex
		order    []string
		inFlight atomic.Int32
		maxSeen  atomic.Int32
	)

	s := NewScheduler(context.Background(), func(_ context.Context, rec *domain.ErrorRecord) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		if n > maxSeen.Load() {
			maxSeen.Store(n)
		}
		time.Sleep(time.Millisecond)
		mu.Lock()
		order = append(order, rec.ID)
		mu.Unlock()
	}, nil)

	var want []string
	for i := 0; i < 20; i++ {
		id := fmt.Sprint(i)
		want = append(want, id)
		s.Enqueue(&domain.ErrorRecord{ID: id})
	}
	s.Wait()

	assert.Equal(t, want, order)
	assert.Equal(t, int32(1), maxSeen.Load())
	assert.Equal(t, 0, s.Len())
}

func TestScheduler_PanicDoesNotStallQueue(t *testing.T) {
	var processed atomic.Int32
	s := NewScheduler(context.Background(), func(_ context.Context, rec *domain.ErrorRecord) {
		if rec.ID == "bad" {
			panic("strategy exploded")
		}
		processed.Add(1)
	}, nil)

	s.Enqueue(&domain.ErrorRecord{ID: "bad"})
	s.Enqueue(&domain.ErrorRecord{ID: "good"})
	s.Wait()

	assert.Equal(t, int32(1), processed.Load())

	// A new drain starts after the previous one ended.
	s.Enqueue(&domain.ErrorRecord{ID: "later"})
	s.Wait()
	assert.Equal(t, int32(2), processed.Load())
}

func TestScheduler_Clear(t *testing.T) {
	release := make(chan struct{})
	var processed atomic.Int32
	s := NewScheduler(context.Background(), func(context.Context, *domain.ErrorRecord) {
		<-release
		processed.Add(1)
	}, nil)

	s.Enqueue(&domain.ErrorRecord{ID: "in-flight"})
	s.Enqueue(&domain.ErrorRecord{ID: "pending-1"})
	s.Enqueue(&domain.ErrorRecord{ID: "pending-2"})

	// The first record may or may not have been popped yet.
	dropped := s.Clear()
	assert.GreaterOrEqual(t, dropped, 2)

	close(release)
	s.Wait()
	assert.LessOrEqual(t, processed.Load(), int32(1))
}
