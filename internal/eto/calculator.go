package eto

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/evaonline/eto-engine/internal/metrics"
	"github.com/evaonline/eto-engine/internal/models"
)

// Input is one day of measurements for a single location. Units are fixed:
// °C, %, m/s, MJ/m²/day, mm, meters, decimal degrees.
type Input struct {
	Date      time.Time
	Latitude  float64
	Longitude float64
	Elevation float64

	TempMax        sql.NullFloat64
	TempMin        sql.NullFloat64
	TempMean       sql.NullFloat64
	Humidity       sql.NullFloat64
	WindSpeed      sql.NullFloat64
	SolarRadiation sql.NullFloat64
	Precipitation  sql.NullFloat64

	// WindHeight is the measurement height of WindSpeed in meters.
	// Zero means the 2 m reference height.
	WindHeight float64

	// Filled marks inputs that came from a fusion fallback or fill path;
	// such days are capped at medium quality.
	Filled bool
}

// Config carries calculator settings; construct once and pass in.
type Config struct {
	// SoilHeatFlux G in MJ/m²/day. Negligible at the daily step, so the
	// default of zero follows FAO-56.
	SoilHeatFlux float64
}

type Calculator struct {
	cfg Config
}

func NewCalculator(cfg Config) *Calculator {
	return &Calculator{cfg: cfg}
}

// typical climatic bounds: inputs outside these still compute but are not
// trusted enough for a high quality flag.
type typicalRange struct {
	min, max float64
}

var typicalRanges = map[models.Variable]typicalRange{
	models.VarTempMax:        {-30, 50},
	models.VarTempMin:        {-40, 40},
	models.VarTempMean:       {-35, 45},
	models.VarHumidity:       {5, 100},
	models.VarWindSpeed:      {0, 25},
	models.VarSolarRadiation: {0.3, 40},
	models.VarPrecipitation:  {0, 300},
}

// Calculate validates the day's measurements and computes ETo. Validation
// short-circuits in a fixed order: required variables, coordinate ranges,
// temperature ordering. A failure produces a degraded record (ETo 0,
// quality low, error text) rather than an error value, so series processing
// never halts on one bad day.
func (c *Calculator) Calculate(in Input) models.EToRecord {
	rec := models.EToRecord{Date: in.Date}

	if missing := missingVariables(in); len(missing) > 0 {
		rec.Quality = models.QualityLow
		rec.Error = fmt.Sprintf("missing required variables: %s", strings.Join(missing, ", "))
		metrics.EToComputed.WithLabelValues(string(rec.Quality)).Inc()
		return rec
	}

	if in.Latitude < -90 || in.Latitude > 90 || in.Longitude < -180 || in.Longitude > 180 {
		rec.Quality = models.QualityLow
		rec.Error = fmt.Sprintf("invalid coordinates: latitude=%.4f longitude=%.4f", in.Latitude, in.Longitude)
		metrics.EToComputed.WithLabelValues(string(rec.Quality)).Inc()
		return rec
	}

	tMax := in.TempMax.Float64
	tMin := in.TempMin.Float64
	if tMax < tMin {
		rec.Quality = models.QualityLow
		rec.Error = fmt.Sprintf("%s (%.1f) is below %s (%.1f)", models.VarTempMax, tMax, models.VarTempMin, tMin)
		metrics.EToComputed.WithLabelValues(string(rec.Quality)).Inc()
		return rec
	}

	tMean := in.TempMean.Float64
	rh := in.Humidity.Float64
	u2 := WindAt2m(in.WindSpeed.Float64, in.WindHeight)
	rs := in.SolarRadiation.Float64

	p := atmosphericPressure(in.Elevation)
	gamma := psychrometricConstant(p)
	delta := vaporPressureSlope(tMean)

	es := (saturationVaporPressure(tMax) + saturationVaporPressure(tMin)) / 2
	ea := es * rh / 100

	ra := extraterrestrialRadiation(in.Latitude, in.Date)
	rso := clearSkyRadiation(ra, in.Elevation)
	rn := netRadiation(rs, rso, ea, tMax, tMin)

	rec.EToMmDay = penmanMonteith(delta, rn, c.cfg.SoilHeatFlux, gamma, tMean, u2, es, ea)
	rec.Quality = c.quality(in)
	metrics.EToComputed.WithLabelValues(string(rec.Quality)).Inc()
	return rec
}

// CalculateSeries applies Calculate to every fused record. Each day is a
// pure function of its own row; degraded days appear in the output with
// quality low instead of interrupting the batch.
func (c *Calculator) CalculateSeries(fused []models.FusedRecord, latitude, longitude, elevation float64) []models.EToRecord {
	out := make([]models.EToRecord, 0, len(fused))
	for i := range fused {
		out = append(out, c.Calculate(inputFromFused(&fused[i], latitude, longitude, elevation)))
	}
	return out
}

func inputFromFused(rec *models.FusedRecord, latitude, longitude, elevation float64) Input {
	in := Input{
		Date:      rec.Date,
		Latitude:  latitude,
		Longitude: longitude,
		Elevation: elevation,
		Filled:    rec.AnyFilled(),
	}
	set := func(dst *sql.NullFloat64, fv models.FusedValue) {
		if fv.Valid {
			*dst = sql.NullFloat64{Float64: fv.Value, Valid: true}
		}
	}
	set(&in.TempMax, rec.TempMax)
	set(&in.TempMin, rec.TempMin)
	set(&in.TempMean, rec.TempMean)
	set(&in.Humidity, rec.Humidity)
	set(&in.WindSpeed, rec.WindSpeed)
	set(&in.SolarRadiation, rec.SolarRadiation)
	set(&in.Precipitation, rec.Precipitation)
	return in
}

func missingVariables(in Input) []string {
	var missing []string
	check := func(v models.Variable, val sql.NullFloat64) {
		if !val.Valid {
			missing = append(missing, string(v))
		}
	}
	check(models.VarTempMax, in.TempMax)
	check(models.VarTempMin, in.TempMin)
	check(models.VarTempMean, in.TempMean)
	check(models.VarHumidity, in.Humidity)
	check(models.VarWindSpeed, in.WindSpeed)
	check(models.VarSolarRadiation, in.SolarRadiation)
	check(models.VarPrecipitation, in.Precipitation)
	if in.Date.IsZero() {
		missing = append(missing, "date")
	}
	return missing
}

func (c *Calculator) quality(in Input) models.Quality {
	if in.Filled {
		return models.QualityMedium
	}
	within := func(v models.Variable, val float64) bool {
		r := typicalRanges[v]
		return val >= r.min && val <= r.max
	}
	if !within(models.VarTempMax, in.TempMax.Float64) ||
		!within(models.VarTempMin, in.TempMin.Float64) ||
		!within(models.VarTempMean, in.TempMean.Float64) ||
		!within(models.VarHumidity, in.Humidity.Float64) ||
		!within(models.VarWindSpeed, in.WindSpeed.Float64) ||
		!within(models.VarSolarRadiation, in.SolarRadiation.Float64) ||
		!within(models.VarPrecipitation, in.Precipitation.Float64) {
		return models.QualityMedium
	}
	return models.QualityHigh
}
