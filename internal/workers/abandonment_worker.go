package workers

import (
	"context"
	"log"
	"sync"
	"time"

	"digitalcart/internal/lock"
)

const abandonmentLeaseKey = "abandonment-pass"

// Processor runs one pass over the pending carts.
type Processor interface {
	ProcessOnce(ctx context.Context) (int, error)
}

// AbandonmentWorker runs the processor on a ticker. A pass is skipped while
// another one holds the lease, here or on another instance.
type AbandonmentWorker struct {
	processor Processor
	lease     lock.Lease
	interval  time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewAbandonmentWorker(processor Processor, lease lock.Lease, interval time.Duration) *AbandonmentWorker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if lease == nil {
		lease = lock.NewLocal()
	}
	return &AbandonmentWorker{processor: processor, lease: lease, interval: interval}
}

// Start launches the ticker loop. Calling Start on a running worker does
// nothing.
func (w *AbandonmentWorker) Start(parent context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(parent)
	w.cancel = cancel
	w.wg.Add(1)
	go w.loop(ctx)
	log.Printf("[WORKER] [INFO] abandonment worker started, interval %s", w.interval)
}

// Stop cancels the loop and waits for a running pass to return.
func (w *AbandonmentWorker) Stop() {
	w.mu.Lock()
	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	w.wg.Wait()
	log.Println("[WORKER] [INFO] abandonment worker stopped")
}

func (w *AbandonmentWorker) loop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.RunOnce(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// RunOnce takes the lease and runs a single pass. It reports whether the pass
// ran.
func (w *AbandonmentWorker) RunOnce(ctx context.Context) bool {
	release, ok, err := w.lease.Acquire(ctx, abandonmentLeaseKey, w.interval)
	if err != nil {
		log.Println("[WORKER] [ERROR] abandonment lease:", err)
		return false
	}
	if !ok {
		log.Println("[WORKER] [INFO] previous abandonment pass still running, skipping")
		return false
	}
	defer release()

	claimed, err := w.processor.ProcessOnce(ctx)
	if err != nil {
		log.Println("[WORKER] [ERROR] abandonment pass:", err)
	}
	if claimed > 0 {
		log.Printf("[WORKER] [INFO] abandonment pass sent %d reminder(s)", claimed)
	}
	return true
}
