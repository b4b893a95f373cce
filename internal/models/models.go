package models

import (
	"database/sql"
	"time"
)

// Variable identifies one canonical daily meteorological variable. Names
// follow the NASA POWER parameter convention; other sources are harmonized
// to these at the adapter boundary.
type Variable string

const (
	VarTempMax        Variable = "T2M_MAX"           // °C
	VarTempMin        Variable = "T2M_MIN"           // °C
	VarTempMean       Variable = "T2M"               // °C
	VarHumidity       Variable = "RH2M"              // %
	VarWindSpeed      Variable = "WS2M"              // m/s at 2 m
	VarSolarRadiation Variable = "ALLSKY_SFC_SW_DWN" // MJ/m²/day
	VarPrecipitation  Variable = "PRECTOTCORR"       // mm/day
)

// Variables returns the canonical variable set in a stable order.
func Variables() []Variable {
	return []Variable{
		VarTempMax, VarTempMin, VarTempMean,
		VarHumidity, VarWindSpeed, VarSolarRadiation, VarPrecipitation,
	}
}

// DailyRecord is one day of raw or cleaned observations from a single source.
// Missing values are Invalid, never a sentinel number.
type DailyRecord struct {
	Date           time.Time
	TempMax        sql.NullFloat64
	TempMin        sql.NullFloat64
	TempMean       sql.NullFloat64
	Humidity       sql.NullFloat64
	WindSpeed      sql.NullFloat64
	SolarRadiation sql.NullFloat64
	Precipitation  sql.NullFloat64
}

func (r *DailyRecord) Value(v Variable) sql.NullFloat64 {
	switch v {
	case VarTempMax:
		return r.TempMax
	case VarTempMin:
		return r.TempMin
	case VarTempMean:
		return r.TempMean
	case VarHumidity:
		return r.Humidity
	case VarWindSpeed:
		return r.WindSpeed
	case VarSolarRadiation:
		return r.SolarRadiation
	case VarPrecipitation:
		return r.Precipitation
	}
	return sql.NullFloat64{}
}

func (r *DailyRecord) SetValue(v Variable, val sql.NullFloat64) {
	switch v {
	case VarTempMax:
		r.TempMax = val
	case VarTempMin:
		r.TempMin = val
	case VarTempMean:
		r.TempMean = val
	case VarHumidity:
		r.Humidity = val
	case VarWindSpeed:
		r.WindSpeed = val
	case VarSolarRadiation:
		r.SolarRadiation = val
	case VarPrecipitation:
		r.Precipitation = val
	}
}

// SourceSeries is one source's date-ordered daily records plus any quality
// warnings attached during preprocessing.
type SourceSeries struct {
	SourceID string
	Records  []DailyRecord
	Warnings []string
}

// ClimatologicalPrior holds monthly normal values from the nearest reference
// station, used to seed the fusion estimator.
type ClimatologicalPrior struct {
	City       string
	DistanceKm float64
	// Normals[v][m] is the long-term normal of v for calendar month m.
	Normals map[Variable]map[time.Month]float64
}

// Normal returns the monthly normal for a variable, if the prior carries one.
func (p *ClimatologicalPrior) Normal(v Variable, m time.Month) (float64, bool) {
	if p == nil {
		return 0, false
	}
	byMonth, ok := p.Normals[v]
	if !ok {
		return 0, false
	}
	val, ok := byMonth[m]
	return val, ok
}

// FusedValue is the fusion estimate of one variable on one day.
type FusedValue struct {
	Value    float64
	Variance float64
	Valid    bool
	// Filled marks values that did not come out of the sequential estimator:
	// mean fallback after an estimator reset, or T2M derived from max/min.
	Filled bool
}

// FusedRecord is one day of the fused series, one slot per variable.
type FusedRecord struct {
	Date           time.Time
	TempMax        FusedValue
	TempMin        FusedValue
	TempMean       FusedValue
	Humidity       FusedValue
	WindSpeed      FusedValue
	SolarRadiation FusedValue
	Precipitation  FusedValue
}

func (r *FusedRecord) Value(v Variable) FusedValue {
	switch v {
	case VarTempMax:
		return r.TempMax
	case VarTempMin:
		return r.TempMin
	case VarTempMean:
		return r.TempMean
	case VarHumidity:
		return r.Humidity
	case VarWindSpeed:
		return r.WindSpeed
	case VarSolarRadiation:
		return r.SolarRadiation
	case VarPrecipitation:
		return r.Precipitation
	}
	return FusedValue{}
}

func (r *FusedRecord) SetValue(v Variable, val FusedValue) {
	switch v {
	case VarTempMax:
		r.TempMax = val
	case VarTempMin:
		r.TempMin = val
	case VarTempMean:
		r.TempMean = val
	case VarHumidity:
		r.Humidity = val
	case VarWindSpeed:
		r.WindSpeed = val
	case VarSolarRadiation:
		r.SolarRadiation = val
	case VarPrecipitation:
		r.Precipitation = val
	}
}

// AnyFilled reports whether any present variable came from a fallback path.
func (r *FusedRecord) AnyFilled() bool {
	for _, v := range Variables() {
		fv := r.Value(v)
		if fv.Valid && fv.Filled {
			return true
		}
	}
	return false
}

// Quality is the confidence label attached to a computed ETo value.
type Quality string

const (
	QualityHigh   Quality = "high"
	QualityMedium Quality = "medium"
	QualityLow    Quality = "low"
)

// EToRecord is one day of computed reference evapotranspiration.
// On validation failure EToMmDay is 0, Quality is low and Error describes
// what was wrong; batch processing never halts on a bad day.
type EToRecord struct {
	Date     time.Time
	EToMmDay float64
	Quality  Quality
	Error    string
}
