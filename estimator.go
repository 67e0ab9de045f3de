package taximeter

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"strconv"

	"github.com/cubny/taximeter/internal/pipeline"
)

// estimator takes a reader stream of rides' positions and streams out the fare
// of each ride into the writer stream
type estimator struct {
	reader io.Reader
	writer io.Writer
	conf   Config
}

// NewEstimator creates an estimator that replays every ride of in through a session
// under config.Preset and writes ride_id,fare_yen records to out
func NewEstimator(in io.Reader, out io.Writer, config Config) (*estimator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &estimator{
		reader: in,
		writer: out,
		conf:   config,
	}, nil
}

// Run runs the estimator pipeline
func (e *estimator) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	in := csv.NewReader(e.reader)
	in.FieldsPerRecord = -1
	in.TrimLeadingSpace = true

	linec, errc1 := pipeline.Generate(ctx, e.streamFromCSV(in))
	ridec, errc2 := pipeline.Group(ctx, linec, e.groupByRideID)
	outc, errc3 := pipeline.WorkerPool(ctx, e.conf.Concurrency, ridec, e.estimateRide)
	if err := e.sinkCSV(ctx, outc); err != nil {
		return err
	}

	errm := pipeline.MergeErrors(ctx, errc1, errc2, errc3)
	for err := range errm {
		switch {
		case errors.Is(err, io.EOF):
		case err != nil:
			return err
		}
	}

	return nil
}

// groupByRideID is a pipeline.BelongFunc that groups consecutive lines by ride id
func (e *estimator) groupByRideID(item Line, group []Line) (bool, error) {
	if len(item) == 0 || len(group[0]) == 0 {
		return false, errors.New("empty line")
	}
	return item[0] == group[0][0], nil
}

// streamFromCSV returns a pipeline.GenerateFunc that reads one line at a time from a csv.Reader
func (e *estimator) streamFromCSV(in *csv.Reader) pipeline.GenerateFunc[Line] {
	return func() (Line, error) {
		record, err := in.Read()
		return Line(record), err
	}
}

// sinkCSVRecord writes a rideFare record to csv.Writer
func (e *estimator) sinkCSVRecord(w *csv.Writer) pipeline.EachFunc[rideFare] {
	return func(rf rideFare) error {
		record := Line{strconv.Itoa(rf.rideID), strconv.FormatInt(int64(rf.fare), 10)}
		return w.Write(record)
	}
}

// sinkCSV writes all rideFare records to the estimator writer in CSV format
func (e *estimator) sinkCSV(ctx context.Context, outc <-chan rideFare) error {
	output := csv.NewWriter(e.writer)
	if err := pipeline.Sink(ctx, outc, e.sinkCSVRecord(output)); err != nil {
		return err
	}

	output.Flush()
	return output.Error()
}

// estimateRide is a pipeline.WorkerFunc that runs the ride pipeline for each ride
func (e *estimator) estimateRide(ctx context.Context, lines []Line, outc chan<- rideFare) error {
	r, err := newRide(lines, e.conf)
	if err != nil {
		return err
	}
	return r.run(ctx, outc)
}
