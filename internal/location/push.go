package location

import (
	"context"
	"sync"

	"github.com/cubny/taximeter"
)

var _ taximeter.LocationFeed = (*PushFeed)(nil)

type watcher struct {
	in   chan taximeter.Position
	done <-chan struct{}
}

// PushFeed delivers the positions handed to Push to every active watch
type PushFeed struct {
	permission

	mu       sync.Mutex
	watchers map[uint64]watcher
	nextID   uint64
}

func NewPushFeed(answer taximeter.Permission) *PushFeed {
	f := &PushFeed{watchers: make(map[uint64]watcher)}
	f.answer = answer
	return f
}

// Watch registers a watcher until ctx is cancelled
func (f *PushFeed) Watch(ctx context.Context) (<-chan taximeter.Position, error) {
	if !f.granted() {
		return nil, taximeter.ErrPermissionDenied
	}

	in := make(chan taximeter.Position)
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.watchers[id] = watcher{in: in, done: ctx.Done()}
	f.mu.Unlock()

	go func() {
		<-ctx.Done()
		f.mu.Lock()
		delete(f.watchers, id)
		f.mu.Unlock()
	}()

	return forward(ctx, in), nil
}

// Push hands p to every active watch, blocking until each took it or went away.
// It returns ErrNotWatching when there is no watch to deliver to.
func (f *PushFeed) Push(ctx context.Context, p taximeter.Position) error {
	f.mu.Lock()
	watchers := make([]watcher, 0, len(f.watchers))
	for _, w := range f.watchers {
		watchers = append(watchers, w)
	}
	f.mu.Unlock()

	delivered := 0
	for _, w := range watchers {
		select {
		case <-w.done:
			continue
		default:
		}
		select {
		case w.in <- p:
			delivered++
		case <-w.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if delivered == 0 {
		return ErrNotWatching
	}
	return nil
}

// Watching reports whether a watch is active
func (f *PushFeed) Watching() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.watchers) > 0
}
