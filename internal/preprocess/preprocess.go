package preprocess

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/evaonline/eto-engine/internal/models"
)

// ErrNoDateIndex is returned when a series carries no usable date index.
// Single bad values never produce an error; they become missing plus a warning.
var ErrNoDateIndex = errors.New("series has no usable date index")

// Sources fill gaps with -999 variants; anything at or below this threshold
// is a fill code, not a measurement.
const sentinelThreshold = -900.0

type bounds struct {
	min, max float64
}

var globalBounds = map[models.Variable]bounds{
	models.VarTempMax:        {-50, 60},
	models.VarTempMin:        {-60, 50},
	models.VarTempMean:       {-55, 55},
	models.VarHumidity:       {0, 100},
	models.VarWindSpeed:      {0, 75},
	models.VarSolarRadiation: {0, 45},
	models.VarPrecipitation:  {0, 500},
}

var regionalBounds = map[Region]map[models.Variable]bounds{
	RegionBrazil: {
		models.VarTempMax:        {-10, 50},
		models.VarTempMin:        {-15, 40},
		models.VarTempMean:       {-12, 45},
		models.VarHumidity:       {0, 100},
		models.VarWindSpeed:      {0, 40},
		models.VarSolarRadiation: {0, 35},
		models.VarPrecipitation:  {0, 400},
	},
	RegionUSA: {
		models.VarTempMax:        {-40, 55},
		models.VarTempMin:        {-50, 45},
		models.VarTempMean:       {-45, 50},
		models.VarHumidity:       {0, 100},
		models.VarWindSpeed:      {0, 60},
		models.VarSolarRadiation: {0, 40},
		models.VarPrecipitation:  {0, 500},
	},
	RegionNordic: {
		models.VarTempMax:        {-40, 40},
		models.VarTempMin:        {-50, 30},
		models.VarTempMean:       {-45, 35},
		models.VarHumidity:       {0, 100},
		models.VarWindSpeed:      {0, 50},
		models.VarSolarRadiation: {0, 32},
		models.VarPrecipitation:  {0, 300},
	},
}

func boundsFor(region Region) map[models.Variable]bounds {
	if b, ok := regionalBounds[region]; ok {
		return b
	}
	return globalBounds
}

// Clean returns a copy of series with sentinel fill values and out-of-range
// values replaced by missing, temperature ordering repaired, and a warning
// per correction class. It fails only when the series itself is unusable.
func Clean(series models.SourceSeries, region Region) (models.SourceSeries, []string, error) {
	if len(series.Records) == 0 {
		return models.SourceSeries{}, nil, fmt.Errorf("source %s: %w", series.SourceID, ErrNoDateIndex)
	}
	for _, rec := range series.Records {
		if rec.Date.IsZero() {
			return models.SourceSeries{}, nil, fmt.Errorf("source %s: record without date: %w", series.SourceID, ErrNoDateIndex)
		}
	}

	limits := boundsFor(region)

	cleaned := models.SourceSeries{
		SourceID: series.SourceID,
		Records:  make([]models.DailyRecord, len(series.Records)),
	}
	copy(cleaned.Records, series.Records)
	sort.Slice(cleaned.Records, func(i, j int) bool {
		return cleaned.Records[i].Date.Before(cleaned.Records[j].Date)
	})

	sentinels := map[models.Variable]int{}
	outliers := map[models.Variable]int{}
	humidityClamped := 0
	tempSwapped := 0

	for i := range cleaned.Records {
		rec := &cleaned.Records[i]

		for _, v := range models.Variables() {
			val := rec.Value(v)
			if !val.Valid {
				continue
			}
			if val.Float64 <= sentinelThreshold {
				rec.SetValue(v, sql.NullFloat64{})
				sentinels[v]++
				continue
			}
			// Sensor drift often pushes humidity a touch over 100; clamp the
			// near misses, discard the rest.
			if v == models.VarHumidity && val.Float64 > 100 && val.Float64 <= 105 {
				rec.SetValue(v, sql.NullFloat64{Float64: 100, Valid: true})
				humidityClamped++
				continue
			}
			lim := limits[v]
			if val.Float64 < lim.min || val.Float64 > lim.max {
				rec.SetValue(v, sql.NullFloat64{})
				outliers[v]++
			}
		}

		if rec.TempMax.Valid && rec.TempMin.Valid && rec.TempMax.Float64 < rec.TempMin.Float64 {
			rec.TempMax, rec.TempMin = rec.TempMin, rec.TempMax
			tempSwapped++
		}
	}

	var warnings []string
	for _, v := range models.Variables() {
		if n := sentinels[v]; n > 0 {
			warnings = append(warnings, fmt.Sprintf("%s: %d fill value(s) replaced with missing", v, n))
		}
		if n := outliers[v]; n > 0 {
			lim := limits[v]
			warnings = append(warnings, fmt.Sprintf("%s: %d value(s) outside [%.1f, %.1f] removed", v, n, lim.min, lim.max))
		}
	}
	if humidityClamped > 0 {
		warnings = append(warnings, fmt.Sprintf("%s: %d value(s) clamped to 100%%", models.VarHumidity, humidityClamped))
	}
	if tempSwapped > 0 {
		warnings = append(warnings, fmt.Sprintf("%s/%s: %d day(s) with max below min, values swapped", models.VarTempMax, models.VarTempMin, tempSwapped))
	}

	cleaned.Warnings = warnings
	return cleaned, warnings, nil
}
