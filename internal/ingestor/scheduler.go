package ingestor

import (
	"context"
	"sync"
	"time"
)

// scheduler owns the periodic tasks of one Run. Tasks stop when the context
// passed to every is cancelled; wait blocks until all of them returned.
type scheduler struct {
	wg sync.WaitGroup
}

func (s *scheduler) every(ctx context.Context, interval time.Duration, task func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				task()
			}
		}
	}()
}

func (s *scheduler) wait() {
	s.wg.Wait()
}
