package taximeter

import (
	"context"
	"log"
	"sync"
)

// snapshotOp is one queued snapshot change; a nil snap clears the stored snapshot
type snapshotOp struct {
	snap *Snapshot
}

// snapshotWriter persists snapshot changes on its own goroutine. It keeps a single pending
// slot: a newer change replaces an unwritten older one, and changes are written in the order
// they were queued, so a clear queued after a save is always the last write.
type snapshotWriter struct {
	gateway Gateway

	mu      sync.Mutex
	pending *snapshotOp

	// writing serializes writes between the loop and callers flushing directly
	writing sync.Mutex

	wake      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func newSnapshotWriter(gateway Gateway) *snapshotWriter {
	w := &snapshotWriter{
		gateway: gateway,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	w.wg.Add(1)
	go w.loop()
	return w
}

func (w *snapshotWriter) save(snap Snapshot) {
	w.queue(&snapshotOp{snap: &snap})
}

func (w *snapshotWriter) clear() {
	w.queue(&snapshotOp{})
}

func (w *snapshotWriter) queue(op *snapshotOp) {
	w.mu.Lock()
	w.pending = op
	w.mu.Unlock()

	select {
	case <-w.done:
		w.flush()
		return
	default:
	}

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *snapshotWriter) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.wake:
			w.flush()
		case <-w.done:
			w.flush()
			return
		}
	}
}

// flush writes the pending change, if any, after any write already in flight
func (w *snapshotWriter) flush() {
	w.writing.Lock()
	defer w.writing.Unlock()

	w.mu.Lock()
	op := w.pending
	w.pending = nil
	w.mu.Unlock()
	if op == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if op.snap == nil {
		if err := w.gateway.ClearSnapshot(ctx); err != nil {
			log.Printf("[meter] clear snapshot: %s", err)
		}
		return
	}
	if err := w.gateway.SaveSnapshot(ctx, *op.snap); err != nil {
		log.Printf("[meter] save snapshot: %s", err)
	}
}

// close stops the loop after writing whatever is still pending
func (w *snapshotWriter) close() {
	w.closeOnce.Do(func() { close(w.done) })
	w.wg.Wait()
}
