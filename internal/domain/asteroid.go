package domain

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrFeedUnavailable is returned by feed clients for every upstream failure:
// network errors, non-success responses, timeouts and responses missing the
// near_earth_objects grouping.
var ErrFeedUnavailable = errors.New("neo feed unavailable")

// NumericString holds a value the feed may encode as a JSON string or a JSON
// number. The empty string means the value was absent.
type NumericString string

func (n *NumericString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*n = NumericString(strings.TrimSpace(s))
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(b, &num); err != nil {
		return err
	}
	*n = NumericString(num.String())
	return nil
}

// RawObject is one near-Earth object as published by the feed.
type RawObject struct {
	ID                   NumericString      `json:"id"`
	NeoReferenceID       NumericString      `json:"neo_reference_id"`
	Name                 string             `json:"name"`
	EstimatedDiameter    RawDiameter        `json:"estimated_diameter"`
	PotentiallyHazardous bool               `json:"is_potentially_hazardous_asteroid"`
	CloseApproachData    []RawCloseApproach `json:"close_approach_data"`
	OrbitalData          *RawOrbitalData    `json:"orbital_data,omitempty"`
}

// RawDiameter carries the estimated diameter in one or both unit systems.
type RawDiameter struct {
	Kilometers *RawDiameterRange `json:"kilometers,omitempty"`
	Meters     *RawDiameterRange `json:"meters,omitempty"`
}

// RawDiameterRange is a min/max diameter estimate. Empty means absent.
type RawDiameterRange struct {
	Min NumericString `json:"estimated_diameter_min,omitempty"`
	Max NumericString `json:"estimated_diameter_max,omitempty"`
}

// RawCloseApproach is one close approach entry.
type RawCloseApproach struct {
	Date             string              `json:"close_approach_date"`
	DateFull         string              `json:"close_approach_date_full"`
	RelativeVelocity RawRelativeVelocity `json:"relative_velocity"`
	MissDistance     RawMissDistance     `json:"miss_distance"`
}

// RawRelativeVelocity is the approach speed in either unit.
type RawRelativeVelocity struct {
	KilometersPerSecond NumericString `json:"kilometers_per_second"`
	KilometersPerHour   NumericString `json:"kilometers_per_hour"`
}

// RawMissDistance is the approach miss distance.
type RawMissDistance struct {
	Kilometers NumericString `json:"kilometers"`
}

// RawOrbitalData holds the orbital elements, when the feed includes them.
type RawOrbitalData struct {
	OrbitalPeriod NumericString `json:"orbital_period"`
	Eccentricity  NumericString `json:"eccentricity"`
	Inclination   NumericString `json:"inclination"`
}

// firstApproach returns the first close approach entry, or a zero entry.
func (r RawObject) firstApproach() RawCloseApproach {
	if len(r.CloseApproachData) == 0 {
		return RawCloseApproach{}
	}
	return r.CloseApproachData[0]
}

// Asteroid is the canonical record served to clients. Risk is always
// LabelFor(RiskScore).
type Asteroid struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Diameter      DiameterKm      `json:"estimated_diameter_km"`
	Hazardous     bool            `json:"is_potentially_hazardous_asteroid"`
	CloseApproach []CloseApproach `json:"close_approach_data"`
	Orbit         Orbit           `json:"orbital_data"`
	Risk          RiskLabel       `json:"risk"`
	RiskScore     int             `json:"risk_score"`
}

// DiameterKm is the estimated diameter range in kilometers.
type DiameterKm struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// CloseApproach is the display form of a close approach.
type CloseApproach struct {
	DateFull       string `json:"close_approach_date_full"`
	VelocityKmS    string `json:"relative_velocity_km_s"`
	MissDistanceKm string `json:"miss_distance_km"`
}

// Orbit holds the orbital elements as published.
type Orbit struct {
	Period       string `json:"orbital_period"`
	Eccentricity string `json:"eccentricity"`
	Inclination  string `json:"inclination"`
}

// Approach returns the record's close approach, or the defaults when the
// record was built without one.
func (a Asteroid) Approach() CloseApproach {
	if len(a.CloseApproach) == 0 {
		return CloseApproach{DateFull: unknownDate, VelocityKmS: defaultVelocity, MissDistanceKm: defaultDistance}
	}
	return a.CloseApproach[0]
}
