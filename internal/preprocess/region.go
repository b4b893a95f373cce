package preprocess

// Region selects the bounds profile used for outlier screening. The global
// profile is deliberately wide; regional profiles tighten it where the
// climate is known.
type Region string

const (
	RegionGlobal Region = "global"
	RegionBrazil Region = "brazil"
	RegionUSA    Region = "usa"
	RegionNordic Region = "nordic"
)

// DetectRegion maps coordinates onto a bounds profile using coarse
// bounding boxes. Anything unmatched is treated as global.
func DetectRegion(lat, lon float64) Region {
	switch {
	case inBrazil(lat, lon):
		return RegionBrazil
	case inUSA(lat, lon):
		return RegionUSA
	case inNordic(lat, lon):
		return RegionNordic
	}
	return RegionGlobal
}

func inBrazil(lat, lon float64) bool {
	return lat >= -33.75 && lat <= 5.27 && lon >= -73.99 && lon <= -34.79
}

func inUSA(lat, lon float64) bool {
	return lat >= 24.5 && lat <= 49.4 && lon >= -125.0 && lon <= -66.9
}

func inNordic(lat, lon float64) bool {
	return lat >= 54.5 && lat <= 71.5 && lon >= 4.0 && lon <= 31.6
}
