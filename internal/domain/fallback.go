package domain

// fallbackAsteroids is served when the live feed is unavailable. Scores are
// filled in by Fallback so they always come from Score.
var fallbackAsteroids = [...]Asteroid{
	{
		ID: "2023-QW", Name: "(2023 QW)",
		Diameter:  DiameterKm{Min: 0.12, Max: 0.28},
		Hazardous: true,
		CloseApproach: []CloseApproach{
			{DateFull: "2026-08-22 14:30", VelocityKmS: "25.40", MissDistanceKm: "5700000"},
		},
		Orbit: Orbit{Period: "365", Eccentricity: "0.1", Inclination: "5.4"},
	},
	{
		ID: "2021-OR2", Name: "(2021 OR2)",
		Diameter:  DiameterKm{Min: 1.8, Max: 4.1},
		Hazardous: true,
		CloseApproach: []CloseApproach{
			{DateFull: "2026-01-15 08:00", VelocityKmS: "19.80", MissDistanceKm: "2300000"},
		},
		Orbit: Orbit{Period: "400", Eccentricity: "0.2", Inclination: "12.4"},
	},
	{
		ID: "2024-TY", Name: "(2024 TY)",
		Diameter:  DiameterKm{Min: 0.05, Max: 0.11},
		Hazardous: false,
		CloseApproach: []CloseApproach{
			{DateFull: "2026-09-10 21:00", VelocityKmS: "12.10", MissDistanceKm: "45000000"},
		},
		Orbit: Orbit{Period: "320", Eccentricity: "0.05", Inclination: "2.1"},
	},
	{
		ID: "1994-PC1", Name: "(1994 PC1)",
		Diameter:  DiameterKm{Min: 0.8, Max: 1.2},
		Hazardous: true,
		CloseApproach: []CloseApproach{
			{DateFull: "2026-03-05 12:45", VelocityKmS: "35.20", MissDistanceKm: "11200000"},
		},
		Orbit: Orbit{Period: "500", Eccentricity: "0.3", Inclination: "8.5"},
	},
}

// Fallback returns a fresh, scored copy of the fallback dataset.
func Fallback() []Asteroid {
	out := make([]Asteroid, len(fallbackAsteroids))
	for i, a := range fallbackAsteroids {
		a.CloseApproach = append([]CloseApproach(nil), a.CloseApproach...)
		out[i] = AssessCanonical(a)
	}
	return out
}
