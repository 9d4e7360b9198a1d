package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

const (
	unknownDate     = "Unknown"
	unknownName     = "Unknown"
	defaultVelocity = "0.00"
	defaultDistance = "0"
	defaultPeriod   = "N/A"
	defaultAngle    = "0"

	// maxExponent bounds the decimal exponent accepted for rendering.
	maxExponent = 64
)

var secondsPerHour = decimal.NewFromInt(3600)

// Normalize maps a raw feed object to its canonical, unscored form. It never
// fails; absent fields take the defaults documented on the package.
func Normalize(raw RawObject) Asteroid {
	approach := raw.firstApproach()

	return Asteroid{
		ID:        normalizeID(raw),
		Name:      orDefault(strings.TrimSpace(raw.Name), unknownName),
		Diameter:  normalizeDiameter(raw.EstimatedDiameter),
		Hazardous: raw.PotentiallyHazardous,
		CloseApproach: []CloseApproach{{
			DateFull:       normalizeDate(approach),
			VelocityKmS:    renderVelocity(approach.RelativeVelocity),
			MissDistanceKm: renderFixed(approach.MissDistance.Kilometers, 0, defaultDistance),
		}},
		Orbit: normalizeOrbit(raw.OrbitalData),
	}
}

func normalizeID(raw RawObject) string {
	if raw.ID != "" {
		return string(raw.ID)
	}
	return string(raw.NeoReferenceID)
}

// normalizeDiameter prefers the kilometers block per bound and converts
// meters only when the kilometer value is missing.
func normalizeDiameter(d RawDiameter) DiameterKm {
	var km, m RawDiameterRange
	if d.Kilometers != nil {
		km = *d.Kilometers
	}
	if d.Meters != nil {
		m = *d.Meters
	}
	return DiameterKm{
		Min: kmBound(km.Min, m.Min),
		Max: kmBound(km.Max, m.Max),
	}
}

func kmBound(km, m NumericString) float64 {
	if v, ok := parseFloat(km); ok {
		return v
	}
	if v, ok := parseFloat(m); ok {
		return v / 1000
	}
	return 0
}

func normalizeDate(a RawCloseApproach) string {
	if s := strings.TrimSpace(a.DateFull); s != "" {
		return s
	}
	if s := strings.TrimSpace(a.Date); s != "" {
		return s
	}
	return unknownDate
}

// renderVelocity renders km/s with two decimals, deriving it from km/h when
// only that unit is present.
func renderVelocity(v RawRelativeVelocity) string {
	if d, ok := parseDecimal(v.KilometersPerSecond); ok {
		return d.StringFixed(2)
	}
	if d, ok := parseDecimal(v.KilometersPerHour); ok {
		return d.Div(secondsPerHour).StringFixed(2)
	}
	return defaultVelocity
}

func renderFixed(s NumericString, places int32, fallback string) string {
	d, ok := parseDecimal(s)
	if !ok {
		return fallback
	}
	return d.StringFixed(places)
}

// parseDecimal accepts only finite values with a bounded exponent, so
// rendering with StringFixed stays proportional to the input.
func parseDecimal(s NumericString) (decimal.Decimal, bool) {
	if _, ok := parseFloat(s); !ok {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(strings.TrimSpace(string(s)))
	if err != nil || d.Exponent() > maxExponent || d.Exponent() < -maxExponent {
		return decimal.Zero, false
	}
	return d, true
}

func normalizeOrbit(o *RawOrbitalData) Orbit {
	if o == nil {
		return Orbit{Period: defaultPeriod, Eccentricity: defaultAngle, Inclination: defaultAngle}
	}
	return Orbit{
		Period:       orDefault(string(o.OrbitalPeriod), defaultPeriod),
		Eccentricity: orDefault(string(o.Eccentricity), defaultAngle),
		Inclination:  orDefault(string(o.Inclination), defaultAngle),
	}
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
