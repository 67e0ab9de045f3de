package taximeter

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/cubny/taximeter/internal/pipeline"
)

var ErrLinesEmpty = errors.New("ride lines are empty")

// ride holds the lines of one ride which can run against its pipeline
// to compute the ride's fare
type ride struct {
	rideID int
	lines  []Line
	conf   Config
}

// rideFare is the result of the ride pipeline
type rideFare struct {
	rideID int
	fare   Yen
}

// newRide creates a ride; the ride id is taken from the first line
func newRide(lines []Line, conf Config) (*ride, error) {
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	if len(lines) == 0 || len(lines[0]) == 0 {
		return nil, ErrLinesEmpty
	}
	rideID, err := strconv.Atoi(lines[0][0])
	if err != nil {
		return nil, fmt.Errorf("ride id %q: %w", lines[0][0], err)
	}

	return &ride{
		rideID: rideID,
		lines:  lines,
		conf:   conf,
	}, nil
}

// run replays the ride's positions through a session and publishes its fare
func (r *ride) run(ctx context.Context, outc chan<- rideFare) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	positions, errc := pipeline.Generate(ctx, r.positions)
	total, err := r.fare(ctx, positions)
	if err != nil {
		return err
	}

	for err := range errc {
		switch {
		case errors.Is(err, ErrLinesEmpty):
		case err != nil:
			return err
		}
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case outc <- total:
	}

	return nil
}

// positions is a pipeline.GenerateFunc which generates a stream of positions based on lines.
// Malformed lines are skipped.
func (r *ride) positions() (Position, error) {
	if len(r.lines) == 0 {
		return Position{}, ErrLinesEmpty
	}

	line := r.unshiftLines()
	position, err := NewPosition(line...)
	if err != nil {
		log.Printf("[estimator] ride %d: skipping line %v: %s", r.rideID, line, err)
		return Position{}, pipeline.ErrSkip
	}

	return position, nil
}

// fare is the sink of the ride pipeline: the first position starts the session,
// every position is ingested and the last one finishes it
func (r *ride) fare(ctx context.Context, positions <-chan Position) (rideFare, error) {
	preset := r.conf.Preset
	session := idleSession(preset)
	var last time.Time

	err := pipeline.Sink(ctx, positions, func(p Position) error {
		if session.State == StateIdle {
			started, err := session.Start(preset, p.Timestamp)
			if err != nil {
				return err
			}
			session = started
		}
		session, _, _ = session.Ingest(preset, p)
		last = p.Timestamp
		return nil
	})
	if err != nil {
		return rideFare{}, err
	}

	if session.IsActive() {
		if session, err = session.Finish(last); err != nil {
			return rideFare{}, err
		}
	}

	return rideFare{
		rideID: r.rideID,
		fare:   session.Runtime.FareYen,
	}, nil
}

// unshiftLines unshifts a member from ride's lines
func (r *ride) unshiftLines() Line {
	line, lines := r.lines[0], r.lines[1:]
	r.lines = lines
	return line
}
