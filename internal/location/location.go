// Package location provides the position sources a Meter watches: a feed that forwards
// samples pushed by the host and a feed that replays a recorded drive.
package location

import (
	"context"
	"errors"
	"sync"

	"github.com/cubny/taximeter"
)

var ErrNotWatching = errors.New("location: nobody is watching")

// permission is the configurable answer to permission requests
type permission struct {
	mu     sync.Mutex
	answer taximeter.Permission
}

func (p *permission) Permission(ctx context.Context) (taximeter.Permission, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.answer, nil
}

// RequestPermission answers without prompting; there is no user to ask on a server
func (p *permission) RequestPermission(ctx context.Context) (taximeter.Permission, error) {
	return p.Permission(ctx)
}

// SetPermission changes the answer of the following requests
func (p *permission) SetPermission(answer taximeter.Permission) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.answer = answer
}

func (p *permission) granted() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.answer == taximeter.PermissionGranted
}

// forward copies in to the returned channel until ctx is done, then closes it
func forward(ctx context.Context, in <-chan taximeter.Position) <-chan taximeter.Position {
	out := make(chan taximeter.Position)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case p, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- p:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}
