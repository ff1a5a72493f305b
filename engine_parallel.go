package codegraph

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"codegraph/internal/store"
)

// extractParallel is the worker-pool Phase B. Each worker parses and
// extracts into per-file BatchedStores; nothing touches SQLite here, so
// the commit phase stays single-writer and the output stays ordered no
// matter how the pool schedules work.
func (e *Engine) extractParallel(ctx context.Context, items []*workItem) error {
	pending := make([]*workItem, 0, len(items))
	for _, item := range items {
		if item.status != store.FileReadError {
			pending = append(pending, item)
		}
	}
	if len(pending) == 0 {
		return nil
	}

	numWorkers := runtime.NumCPU()
	if e.cfg.Workers > 0 {
		numWorkers = e.cfg.Workers
	}
	if numWorkers > len(pending) {
		numWorkers = len(pending)
	}

	workCh := make(chan *workItem, len(pending))
	for _, item := range pending {
		workCh <- item
	}
	close(workCh)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Each item gets its own parser and batch, so workers share
			// nothing but the channel.
			for item := range workCh {
				if err := extractItem(ctx, item); err != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = fmt.Errorf("codegraph: extract %s: %w", item.src.relPath, err)
					}
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	return firstErr
}
