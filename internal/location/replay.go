package location

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"time"

	"github.com/cubny/taximeter"
)

var _ taximeter.LocationFeed = (*ReplayFeed)(nil)

// ReplayFeed plays a recorded drive back at a fixed pace. A new watch continues where the
// previous one stopped, so a paused meter resumes the recording instead of restarting it.
type ReplayFeed struct {
	permission

	interval time.Duration

	mu        sync.Mutex
	positions []taximeter.Position
	cursor    int
}

// NewReplayFeed reads ride_id,lat,lng,unix_ts[,speed_mps,accuracy_m] records from r.
// Malformed records are skipped. interval is the wall time between two samples.
func NewReplayFeed(r io.Reader, interval time.Duration) (*ReplayFeed, error) {
	in := csv.NewReader(r)
	in.FieldsPerRecord = -1
	in.TrimLeadingSpace = true

	var positions []taximeter.Position
	for {
		record, err := in.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		p, err := taximeter.NewPosition(record...)
		if err != nil {
			log.Printf("[location] skipping record %v: %s", record, err)
			continue
		}
		positions = append(positions, p)
	}
	if len(positions) == 0 {
		return nil, errors.New("replay has no positions")
	}

	f := &ReplayFeed{interval: interval, positions: positions}
	f.answer = taximeter.PermissionGranted
	return f, nil
}

// OpenReplayFeed reads the recording at path
func OpenReplayFeed(path string, interval time.Duration) (*ReplayFeed, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open replay: %w", err)
	}
	defer file.Close()
	return NewReplayFeed(file, interval)
}

// Watch plays the remaining positions; the channel closes when ctx is done or the recording ends
func (f *ReplayFeed) Watch(ctx context.Context) (<-chan taximeter.Position, error) {
	if !f.granted() {
		return nil, taximeter.ErrPermissionDenied
	}

	in := make(chan taximeter.Position)
	go func() {
		defer close(in)
		var tick <-chan time.Time
		if f.interval > 0 {
			ticker := time.NewTicker(f.interval)
			defer ticker.Stop()
			tick = ticker.C
		}
		for {
			p, ok := f.peek()
			if !ok {
				return
			}
			if tick != nil {
				select {
				case <-ctx.Done():
					return
				case <-tick:
				}
			}
			select {
			case <-ctx.Done():
				return
			case in <- p:
				f.advance()
			}
		}
	}()
	return in, nil
}

// Remaining returns how many positions are left to play
func (f *ReplayFeed) Remaining() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.positions) - f.cursor
}

func (f *ReplayFeed) peek() (taximeter.Position, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.cursor >= len(f.positions) {
		return taximeter.Position{}, false
	}
	return f.positions[f.cursor], true
}

func (f *ReplayFeed) advance() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cursor++
}
