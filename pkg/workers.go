package coincidence

import (
	"context"
	"fmt"
	"sync"
)

func worker(ctx context.Context, id int, r *Reconstructor, jobs <-chan RawWindow, results chan<- WindowResult) {
	for {
		select {
		case <-ctx.Done():
			return
		case window, ok := <-jobs:
			if !ok {
				return
			}
			if configuration.Verbosity > 2 {
				message := fmt.Sprintf("Worker %d processing window %d", id, window.Index)
				logger.Info(message, "workers")
			}
			result := r.processWindowSafe(id, window)
			select {
			case results <- result:
			case <-ctx.Done():
				return
			}
		}
	}
}

func (r *Reconstructor) processWindowSafe(id int, window RawWindow) (result WindowResult) {
	defer func() {
		if rec := recover(); rec != nil {
			errMessage := fmt.Errorf("worker %d recovered from panic on window %d: %v", id, window.Index, rec)
			logger.Error(errMessage.Error())
			r.Stats.WindowsFailed.Inc()
			result = WindowResult{Index: window.Index, Error: true}
		}
	}()
	return r.ProcessWindow(window)
}

// RunWorkers processes the windows with numWorkers goroutines and closes
// results once every worker has returned. Results come out in completion
// order. On cancellation the workers stop taking windows and a window in
// progress is dropped.
func RunWorkers(ctx context.Context, numWorkers int, r *Reconstructor, windows <-chan RawWindow, results chan<- WindowResult) {
	var wg sync.WaitGroup
	for w := 1; w <= numWorkers; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			worker(ctx, id, r, windows, results)
		}(w)
	}
	wg.Wait()
	close(results)
}
