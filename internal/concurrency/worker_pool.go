package concurrency

import (
	"context"
	"sync"
)

type WorkerFn func(ctx context.Context, index int)

// ForEach runs fn for every index in [0, tasks) on at most workers
// goroutines and returns when all have finished or ctx is done. fn is not
// called for indexes left after cancellation.
func ForEach(ctx context.Context, workers, tasks int, fn WorkerFn) {
	if tasks <= 0 {
		return
	}
	if workers <= 0 || workers > tasks {
		workers = tasks
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				fn(ctx, idx)
			}
		}()
	}

feed:
	for i := 0; i < tasks; i++ {
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()
}
