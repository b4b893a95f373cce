// Package normals resolves the climatological prior for a location: the
// nearest reference station within a maximum distance, with its monthly
// normal values per variable.
package normals

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/evaonline/eto-engine/internal/models"
	"github.com/evaonline/eto-engine/internal/store"
)

// DefaultMaxDistanceKm bounds how far away a reference station may be
// before its normals stop being representative.
const DefaultMaxDistanceKm = 120.0

type Loader struct {
	store *store.Store
}

func NewLoader(s *store.Store) *Loader {
	return &Loader{store: s}
}

// Lookup returns the prior from the nearest station within maxDistanceKm,
// or found=false when none qualifies. maxDistanceKm <= 0 selects the
// default.
func (l *Loader) Lookup(latitude, longitude, maxDistanceKm float64) (bool, *models.ClimatologicalPrior, error) {
	if maxDistanceKm <= 0 {
		maxDistanceKm = DefaultMaxDistanceKm
	}

	stations, err := l.store.GetNormalsStations()
	if err != nil {
		return false, nil, fmt.Errorf("load stations: %w", err)
	}

	var (
		nearest     *store.NormalsStation
		nearestDist float64
	)
	for i := range stations {
		d := haversineKm(latitude, longitude, stations[i].Latitude, stations[i].Longitude)
		if d > maxDistanceKm {
			continue
		}
		if nearest == nil || d < nearestDist {
			nearest = &stations[i]
			nearestDist = d
		}
	}
	if nearest == nil {
		return false, nil, nil
	}

	normals, err := l.store.GetMonthlyNormals(nearest.StationID)
	if err != nil {
		return false, nil, fmt.Errorf("load normals for %s: %w", nearest.StationID, err)
	}
	if len(normals) == 0 {
		return false, nil, nil
	}

	return true, &models.ClimatologicalPrior{
		City:       nearest.City,
		DistanceKm: nearestDist,
		Normals:    normals,
	}, nil
}

// ImportCSV loads normals from a CSV with header
// station_id,city,latitude,longitude,variable,month,value.
func (l *Loader) ImportCSV(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return 0, fmt.Errorf("read header: %w", err)
	}
	if len(header) < 7 {
		return 0, fmt.Errorf("expected 7 columns, got %d", len(header))
	}

	seen := make(map[string]bool)
	imported := 0
	for line := 2; ; line++ {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return imported, fmt.Errorf("line %d: %w", line, err)
		}

		lat, err := strconv.ParseFloat(row[2], 64)
		if err != nil {
			return imported, fmt.Errorf("line %d: latitude: %w", line, err)
		}
		lon, err := strconv.ParseFloat(row[3], 64)
		if err != nil {
			return imported, fmt.Errorf("line %d: longitude: %w", line, err)
		}
		month, err := strconv.Atoi(row[5])
		if err != nil || month < 1 || month > 12 {
			return imported, fmt.Errorf("line %d: invalid month %q", line, row[5])
		}
		value, err := strconv.ParseFloat(row[6], 64)
		if err != nil {
			return imported, fmt.Errorf("line %d: value: %w", line, err)
		}

		if !seen[row[0]] {
			if err := l.store.UpsertNormalsStation(store.NormalsStation{
				StationID: row[0],
				City:      row[1],
				Latitude:  lat,
				Longitude: lon,
			}); err != nil {
				return imported, fmt.Errorf("line %d: station: %w", line, err)
			}
			seen[row[0]] = true
		}

		if err := l.store.UpsertMonthlyNormal(row[0], models.Variable(row[4]), time.Month(month), value); err != nil {
			return imported, fmt.Errorf("line %d: normal: %w", line, err)
		}
		imported++
	}
	return imported, nil
}

const earthRadiusKm = 6371.0

func haversineKm(lat1, lon1, lat2, lon2 float64) float64 {
	rad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := rad(lat2 - lat1)
	dLon := rad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rad(lat1))*math.Cos(rad(lat2))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(a))
}
