package domain

import (
	"math"
	"strconv"
	"strings"
)

// RiskLabel is the discrete triage label derived from a risk score.
type RiskLabel string

const (
	RiskNone     RiskLabel = "None"
	RiskLow      RiskLabel = "Low"
	RiskModerate RiskLabel = "Moderate"
	RiskHigh     RiskLabel = "High"
	RiskCritical RiskLabel = "Critical"
)

const (
	lunarDistanceKm = 384400
	// absentDistanceKm stands in for a missing miss distance so the object
	// never reads as close.
	absentDistanceKm = 999999999

	diameterSaturationM   = 1000
	velocitySaturationKmS = 50

	weightDiameter = 0.4
	weightVelocity = 0.3
	weightDistance = 0.3

	hazardFloor = 50
)

// Factors are the physical inputs of the risk score.
type Factors struct {
	DiameterM      float64
	VelocityKmS    float64
	MissDistanceKm float64
	Hazardous      bool
}

// FactorsFromRaw extracts scoring inputs from a raw feed object.
func FactorsFromRaw(raw RawObject) Factors {
	approach := raw.firstApproach()

	distance, ok := parseFloat(approach.MissDistance.Kilometers)
	if !ok {
		distance = absentDistanceKm
	}

	return Factors{
		DiameterM:      rawDiameterM(raw.EstimatedDiameter),
		VelocityKmS:    rawVelocityKmS(approach.RelativeVelocity),
		MissDistanceKm: distance,
		Hazardous:      raw.PotentiallyHazardous,
	}
}

// FactorsFromAsteroid extracts scoring inputs from an already canonical
// record, as used for the fallback dataset.
func FactorsFromAsteroid(a Asteroid) Factors {
	approach := a.Approach()

	velocity, _ := parseFloat(NumericString(approach.VelocityKmS))
	distance, ok := parseFloat(NumericString(approach.MissDistanceKm))
	if !ok {
		distance = absentDistanceKm
	}

	return Factors{
		DiameterM:      a.Diameter.Max * 1000,
		VelocityKmS:    velocity,
		MissDistanceKm: distance,
		Hazardous:      a.Hazardous,
	}
}

// rawDiameterM prefers the meters maximum and falls back to kilometers.
// A zero meters value counts as missing.
func rawDiameterM(d RawDiameter) float64 {
	if d.Meters != nil {
		if m, ok := parseFloat(d.Meters.Max); ok && m > 0 {
			return m
		}
	}
	if d.Kilometers != nil {
		if km, ok := parseFloat(d.Kilometers.Max); ok {
			return km * 1000
		}
	}
	return 0
}

func rawVelocityKmS(v RawRelativeVelocity) float64 {
	if kms, ok := parseFloat(v.KilometersPerSecond); ok {
		return kms
	}
	if kmh, ok := parseFloat(v.KilometersPerHour); ok {
		return kmh / 3600
	}
	return 0
}

// Score computes the 0–100 risk score and its label.
func Score(f Factors) (int, RiskLabel) {
	distance := f.MissDistanceKm
	if distance <= 0 {
		distance = 1
	}

	normDiameter := saturate(nonNegative(f.DiameterM) / diameterSaturationM * 100)
	normVelocity := saturate(nonNegative(f.VelocityKmS) / velocitySaturationKmS * 100)
	normDistance := saturate(lunarDistanceKm / distance * 100)

	raw := normDiameter*weightDiameter + normVelocity*weightVelocity + normDistance*weightDistance
	if f.Hazardous {
		raw = math.Max(raw, hazardFloor)
	}

	score := int(math.Round(raw))
	score = min(max(score, 0), 100)
	return score, LabelFor(score)
}

// LabelFor maps a score to its label. The Low boundary is strict: 5 is None.
func LabelFor(score int) RiskLabel {
	switch {
	case score >= 75:
		return RiskCritical
	case score >= 50:
		return RiskHigh
	case score >= 25:
		return RiskModerate
	case score > 5:
		return RiskLow
	default:
		return RiskNone
	}
}

// Assess normalizes and scores a raw feed object.
func Assess(raw RawObject) Asteroid {
	a := Normalize(raw)
	a.RiskScore, a.Risk = Score(FactorsFromRaw(raw))
	return a
}

// AssessCanonical scores a canonical record, replacing any score it had.
func AssessCanonical(a Asteroid) Asteroid {
	a.RiskScore, a.Risk = Score(FactorsFromAsteroid(a))
	return a
}

func saturate(v float64) float64 {
	return math.Min(100, v)
}

func nonNegative(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	return v
}

func parseFloat(s NumericString) (float64, bool) {
	v := strings.TrimSpace(string(s))
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
