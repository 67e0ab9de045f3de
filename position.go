package taximeter

import (
	"errors"
	"strconv"
	"time"

	"github.com/cubny/taximeter/internal/geo"
)

// Coordinate is a point on the earth in degrees
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// DistanceBetween returns the great-circle distance between a and b in kilometers
func DistanceBetween(a, b Coordinate) float64 {
	return geo.DistanceKm(a.Latitude, a.Longitude, b.Latitude, b.Longitude)
}

// Position is one sample of the location feed.
// SpeedMps and AccuracyM are zero when the sensor did not report them.
type Position struct {
	RideID int `json:"ride_id,omitempty"`
	Coordinate
	Timestamp time.Time `json:"timestamp"`
	SpeedMps  float64   `json:"speed_mps,omitempty"`
	AccuracyM float64   `json:"accuracy_m,omitempty"`
}

// NewPosition creates a Position out of a tuple of strings:
// ride id, latitude, longitude, unix timestamp and optionally speed (m/s) and accuracy (m)
func NewPosition(tuple ...string) (Position, error) {
	if len(tuple) < 4 {
		return Position{}, errors.New("position needs at least ride id, lat, long and timestamp")
	}

	rideID, err := strconv.Atoi(tuple[0])
	if err != nil {
		return Position{}, err
	}

	lat, err := strconv.ParseFloat(tuple[1], 64)
	if err != nil {
		return Position{}, err
	}

	long, err := strconv.ParseFloat(tuple[2], 64)
	if err != nil {
		return Position{}, err
	}

	ti, err := strconv.ParseInt(tuple[3], 10, 64)
	if err != nil {
		return Position{}, err
	}

	p := Position{
		RideID:     rideID,
		Coordinate: Coordinate{Latitude: lat, Longitude: long},
		Timestamp:  time.Unix(ti, 0),
	}

	if len(tuple) > 4 && tuple[4] != "" {
		if p.SpeedMps, err = strconv.ParseFloat(tuple[4], 64); err != nil {
			return Position{}, err
		}
	}
	if len(tuple) > 5 && tuple[5] != "" {
		if p.AccuracyM, err = strconv.ParseFloat(tuple[5], 64); err != nil {
			return Position{}, err
		}
	}

	return p, nil
}

// Distance returns the haversine distance to the given position in kilometers
func (p Position) Distance(from Position) float64 {
	return DistanceBetween(from.Coordinate, p.Coordinate)
}
