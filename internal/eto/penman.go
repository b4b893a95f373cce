// Package eto computes daily reference evapotranspiration with the FAO-56
// Penman-Monteith equation.
package eto

import (
	"math"
	"time"
)

const (
	solarConstant   = 0.0820   // MJ/m²/min
	stefanBoltzmann = 4.903e-9 // MJ/K⁴/m²/day
	albedo          = 0.23     // reference grass surface
)

// atmosphericPressure returns pressure in kPa at elevation z meters.
func atmosphericPressure(z float64) float64 {
	return 101.3 * math.Pow((293.0-0.0065*z)/293.0, 5.26)
}

// psychrometricConstant returns γ in kPa/°C for pressure P in kPa.
func psychrometricConstant(p float64) float64 {
	return 0.000665 * p
}

// saturationVaporPressure returns e°(T) in kPa for temperature in °C.
func saturationVaporPressure(t float64) float64 {
	return 0.6108 * math.Exp(17.27*t/(t+237.3))
}

// vaporPressureSlope returns Δ in kPa/°C at the mean temperature.
func vaporPressureSlope(tMean float64) float64 {
	d := tMean + 237.3
	return 4098.0 * saturationVaporPressure(tMean) / (d * d)
}

// extraterrestrialRadiation returns Ra in MJ/m²/day for latitude in decimal
// degrees and the given date.
func extraterrestrialRadiation(latitude float64, date time.Time) float64 {
	j := float64(date.YearDay())
	phi := latitude * math.Pi / 180

	dr := 1 + 0.033*math.Cos(2*math.Pi/365*j)
	delta := 0.409 * math.Sin(2*math.Pi/365*j-1.39)

	// Sunset hour angle; the argument leaves [-1, 1] only inside polar
	// circles, where the sun never rises or never sets.
	x := -math.Tan(phi) * math.Tan(delta)
	if x > 1 {
		x = 1
	} else if x < -1 {
		x = -1
	}
	ws := math.Acos(x)

	return 24 * 60 / math.Pi * solarConstant * dr *
		(ws*math.Sin(phi)*math.Sin(delta) + math.Cos(phi)*math.Cos(delta)*math.Sin(ws))
}

// clearSkyRadiation returns Rso in MJ/m²/day.
func clearSkyRadiation(ra, elevation float64) float64 {
	return (0.75 + 2e-5*elevation) * ra
}

// netRadiation returns Rn in MJ/m²/day from measured shortwave radiation rs,
// clear-sky radiation rso, actual vapor pressure ea and the day's
// temperature extremes in °C.
func netRadiation(rs, rso, ea, tMax, tMin float64) float64 {
	rns := (1 - albedo) * rs

	ratio := 1.0
	if rso > 0 {
		ratio = rs / rso
		if ratio > 1 {
			ratio = 1
		}
	}

	tMaxK4 := math.Pow(tMax+273.16, 4)
	tMinK4 := math.Pow(tMin+273.16, 4)
	rnl := stefanBoltzmann * (tMaxK4 + tMinK4) / 2 *
		(0.34 - 0.14*math.Sqrt(ea)) * (1.35*ratio - 0.35)

	return rns - rnl
}

// WindAt2m converts a wind speed measured at height z meters to the 2 m
// reference height using the FAO-56 logarithmic profile. Heights at or
// below 2 m are returned unchanged.
func WindAt2m(uz, z float64) float64 {
	if z <= 2 {
		return uz
	}
	return uz * 4.87 / math.Log(67.8*z-5.42)
}

// penmanMonteith combines the energy and aerodynamic terms. All inputs in
// FAO-56 units; the result is mm/day, floored at zero.
func penmanMonteith(delta, rn, g, gamma, tMean, u2, es, ea float64) float64 {
	num := 0.408*delta*(rn-g) + gamma*900/(tMean+273)*u2*(es-ea)
	den := delta + gamma*(1+0.34*u2)
	et0 := num / den
	if et0 < 0 || math.IsNaN(et0) {
		return 0
	}
	return et0
}
