// Package domain models near-Earth object (NEO) data from the NASA NeoWs
// feed and the hazard triage applied to it.
//
// # Data Source
//
// Objects come from the NeoWs feed endpoint
// (https://api.nasa.gov/neo/rest/v1/feed), which groups objects by close
// approach date:
//
//	{"near_earth_objects": {"2026-10-15": [ {...}, {...} ], "2026-10-16": [...]}}
//
// Nothing inside an object is guaranteed. Numeric values arrive either as
// JSON numbers (diameters) or as numeric strings (velocity, distance,
// orbital elements), and whole blocks such as orbital_data are usually
// absent from feed responses.
//
// # Canonical Records
//
// [Normalize] maps a [RawObject] to an [Asteroid] and never fails. Absent
// values take fixed defaults:
//
//	diameter           0 km
//	velocity           "0.00" km/s
//	miss distance      "0" km
//	approach date      "Unknown"
//	orbital period     "N/A"
//	eccentricity       "0"
//	inclination        "0"
//
// Diameter is read from the kilometers block; the meters block is used
// (divided by 1000) only when kilometers are missing. Velocity is rendered
// with two decimals and miss distance with none, using decimal rounding of
// the source string so the same input always renders the same text.
//
// # Risk Score
//
// The score is an engineered triage heuristic, not an impact probability.
// Three factors are normalized to 0–100 and blended:
//
//	normDiameter = min(100, diameter_m / 1000 * 100)    1 km saturates
//	normVelocity = min(100, velocity_km_s / 50 * 100)   50 km/s saturates
//	normDistance = min(100, 384400 / distance_km * 100) lunar distance saturates
//
//	raw = 0.4*normDiameter + 0.3*normVelocity + 0.3*normDistance
//
// Objects flagged as potentially hazardous by NASA are floored at 50, then
// the value is rounded to an integer. Labels:
//
//	>= 75 Critical | >= 50 High | >= 25 Moderate | > 5 Low | otherwise None
//
// A missing miss distance reads as 999,999,999 km so an absent value never
// looks close; a zero or negative distance reads as 1 km.
//
// [Score] is the only scoring function in the service. The on-demand
// listing, the fallback dataset and the daily scan all go through it.
package domain
